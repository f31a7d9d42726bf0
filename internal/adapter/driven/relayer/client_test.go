package relayer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noisemap/noisemap/internal/adapter/driven/relayer"
	"github.com/noisemap/noisemap/internal/domain/port/driven"
)

type stubTransaction struct {
	waitErr error
	waited  bool
}

func (t *stubTransaction) Hash() string { return "0xstub" }

func (t *stubTransaction) Wait(_ context.Context) error {
	t.waited = true
	return t.waitErr
}

func newTestClient(t *testing.T, handler http.Handler) *relayer.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return relayer.NewClientWithHTTPClient(server.Client(), server.URL)
}

func initClient(t *testing.T, client *relayer.Client) {
	t.Helper()
	require.NoError(t, client.Init(context.Background()))
}

func keysHandler(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/keys", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"key_id": "key-1"})
	})
}

func TestInitIsIdempotent(t *testing.T) {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/keys", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"key_id": "key-1"})
	})
	client := newTestClient(t, mux)

	require.NoError(t, client.Init(context.Background()))
	require.NoError(t, client.Init(context.Background()))

	assert.Equal(t, int64(1), calls.Load())
}

func TestInitFailureLeavesClientRetryable(t *testing.T) {
	var healthy atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/keys", func(w http.ResponseWriter, _ *http.Request) {
		if !healthy.Load() {
			http.Error(w, "key ceremony in progress", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"key_id": "key-1"})
	})
	client := newTestClient(t, mux)

	require.Error(t, client.Init(context.Background()))

	_, err := client.Encrypt(context.Background(), "0xcontract", "0xme", 42)
	require.Error(t, err)

	healthy.Store(true)
	require.NoError(t, client.Init(context.Background()))

	_, err = client.Encrypt(context.Background(), "0xcontract", "0xme", 42)
	assert.Error(t, err) // no encrypt route registered; reaching it proves init succeeded
}

func TestEncryptSendsContractIdentityAndValue(t *testing.T) {
	mux := http.NewServeMux()
	keysHandler(mux)
	mux.HandleFunc("POST /v1/encrypt", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contract string `json:"contract"`
			Identity string `json:"identity"`
			Value    int64  `json:"value"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "0xcontract", req.Contract)
		assert.Equal(t, "0xsubmitter", req.Identity)
		assert.Equal(t, int64(72), req.Value)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"ciphertext": "0xcipher",
			"proof":      "0xinput-proof",
		})
	})
	client := newTestClient(t, mux)
	initClient(t, client)

	encrypted, err := client.Encrypt(context.Background(), "0xcontract", "0xsubmitter", 72)
	require.NoError(t, err)

	assert.Equal(t, "0xcipher", encrypted.Ciphertext)
	assert.Equal(t, "0xinput-proof", encrypted.Proof)
}

func TestEncryptRequiresInit(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	_, err := client.Encrypt(context.Background(), "0xcontract", "0xsubmitter", 72)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestVerifyDecryptionSubmitsProofBeforeReturningValues(t *testing.T) {
	mux := http.NewServeMux()
	keysHandler(mux)
	mux.HandleFunc("POST /v1/decrypt", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Handles  []string `json:"handles"`
			Contract string   `json:"contract"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"0xhandle-1"}, req.Handles)
		assert.Equal(t, "0xcontract", req.Contract)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"clear_values":     map[string]int64{"0xhandle-1": 85},
			"abi_clear_values": "0xabi",
			"proof":            "0xdecrypt-proof",
		})
	})
	client := newTestClient(t, mux)
	initClient(t, client)

	tx := &stubTransaction{}
	var gotClearValues, gotProof string
	submit := func(_ context.Context, clearValues, proof string) (driven.Transaction, error) {
		gotClearValues = clearValues
		gotProof = proof
		return tx, nil
	}

	values, err := client.VerifyDecryption(context.Background(), []string{"0xhandle-1"}, "0xcontract", submit)
	require.NoError(t, err)

	assert.Equal(t, "0xabi", gotClearValues)
	assert.Equal(t, "0xdecrypt-proof", gotProof)
	assert.True(t, tx.waited)
	assert.Equal(t, map[string]int64{"0xhandle-1": 85}, values)
}

func TestVerifyDecryptionPropagatesSubmitFailure(t *testing.T) {
	mux := http.NewServeMux()
	keysHandler(mux)
	mux.HandleFunc("POST /v1/decrypt", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"clear_values":     map[string]int64{"0xhandle-1": 85},
			"abi_clear_values": "0xabi",
			"proof":            "0xdecrypt-proof",
		})
	})
	client := newTestClient(t, mux)
	initClient(t, client)

	submit := func(_ context.Context, _, _ string) (driven.Transaction, error) {
		return nil, driven.ErrAlreadyVerified
	}

	values, err := client.VerifyDecryption(context.Background(), []string{"0xhandle-1"}, "0xcontract", submit)

	require.ErrorIs(t, err, driven.ErrAlreadyVerified)
	assert.Nil(t, values)
}

func TestVerifyDecryptionPropagatesConfirmationFailure(t *testing.T) {
	mux := http.NewServeMux()
	keysHandler(mux)
	mux.HandleFunc("POST /v1/decrypt", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"clear_values":     map[string]int64{"0xhandle-1": 85},
			"abi_clear_values": "0xabi",
			"proof":            "0xdecrypt-proof",
		})
	})
	client := newTestClient(t, mux)
	initClient(t, client)

	tx := &stubTransaction{waitErr: driven.ErrAlreadyVerified}
	submit := func(_ context.Context, _, _ string) (driven.Transaction, error) {
		return tx, nil
	}

	values, err := client.VerifyDecryption(context.Background(), []string{"0xhandle-1"}, "0xcontract", submit)

	require.ErrorIs(t, err, driven.ErrAlreadyVerified)
	assert.Nil(t, values)
}
