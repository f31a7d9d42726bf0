package application_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/noisemap/noisemap/internal/application"
	"github.com/noisemap/noisemap/internal/domain/model"
	"github.com/noisemap/noisemap/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockEncryptor struct {
	mu           sync.Mutex
	initErr      error
	initCalls    int
	encryptErr   error
	encryptCalls []int64
}

func (m *mockEncryptor) Init(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initCalls++
	return m.initErr
}

func (m *mockEncryptor) Encrypt(_ context.Context, _, _ string, value int64) (driven.EncryptedValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.encryptCalls = append(m.encryptCalls, value)
	if m.encryptErr != nil {
		return driven.EncryptedValue{}, m.encryptErr
	}
	return driven.EncryptedValue{Ciphertext: "0xcipher", Proof: "0xproof"}, nil
}

func (m *mockEncryptor) setInitErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initErr = err
}

func (m *mockEncryptor) initCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initCalls
}

type mockTransaction struct {
	hash    string
	waitErr error
	waited  bool
}

func (m *mockTransaction) Hash() string { return m.hash }

func (m *mockTransaction) Wait(_ context.Context) error {
	m.waited = true
	return m.waitErr
}

type verifyCall struct {
	ID          string
	ClearValues string
	Proof       string
}

type mockLedgerWriter struct {
	creates   []driven.NewRecord
	createErr error
	createTx  *mockTransaction
	onCreate  func(driven.NewRecord)

	verifies  []verifyCall
	verifyErr error
	verifyTx  *mockTransaction
}

func (m *mockLedgerWriter) CreateRecord(_ context.Context, rec driven.NewRecord) (driven.Transaction, error) {
	m.creates = append(m.creates, rec)
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.onCreate != nil {
		m.onCreate(rec)
	}
	if m.createTx == nil {
		m.createTx = &mockTransaction{hash: "0xtx-create"}
	}
	return m.createTx, nil
}

func (m *mockLedgerWriter) VerifyDecryption(_ context.Context, id, clearValues, proof string) (driven.Transaction, error) {
	m.verifies = append(m.verifies, verifyCall{ID: id, ClearValues: clearValues, Proof: proof})
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	if m.verifyTx == nil {
		m.verifyTx = &mockTransaction{hash: "0xtx-verify"}
	}
	return m.verifyTx, nil
}

type mockLedgerReader struct {
	mu         sync.Mutex
	ids        []string
	listErr    error
	listCalls  int
	records    map[string]driven.RecordFields
	recordErrs map[string]error
	handles    map[string]string
	handleErr  error
	available  bool
}

func (m *mockLedgerReader) ListRecordIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]string(nil), m.ids...), nil
}

func (m *mockLedgerReader) GetRecord(_ context.Context, id string) (driven.RecordFields, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.recordErrs[id]; ok {
		return driven.RecordFields{}, err
	}
	fields, ok := m.records[id]
	if !ok {
		return driven.RecordFields{}, driven.ErrRecordNotFound
	}
	return fields, nil
}

func (m *mockLedgerReader) GetCiphertextHandle(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handleErr != nil {
		return "", m.handleErr
	}
	return m.handles[id], nil
}

func (m *mockLedgerReader) IsAvailable(_ context.Context) (bool, error) {
	return m.available, nil
}

func (m *mockLedgerReader) setRecord(fields driven.RecordFields) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]driven.RecordFields)
	}
	m.records[fields.ID] = fields
	for _, id := range m.ids {
		if id == fields.ID {
			return
		}
	}
	m.ids = append(m.ids, fields.ID)
}

func (m *mockLedgerReader) listCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

type mockRecordCache struct {
	replaceErr error
	replaced   [][]model.Record
	upserts    []model.Record
	listOut    []model.Record
	listErr    error
}

func (m *mockRecordCache) ReplaceAll(_ context.Context, records []model.Record) error {
	m.replaced = append(m.replaced, append([]model.Record(nil), records...))
	return m.replaceErr
}

func (m *mockRecordCache) Upsert(_ context.Context, record model.Record) error {
	m.upserts = append(m.upserts, record)
	return nil
}

func (m *mockRecordCache) List(_ context.Context) ([]model.Record, error) {
	return m.listOut, m.listErr
}

func (m *mockRecordCache) Get(_ context.Context, _ string) (*model.Record, error) {
	return nil, nil
}

type decryptCall struct {
	Handles  []string
	Contract string
}

// mockDecryptor mimics the primitive's two-phase contract: it invokes the
// submit callback and awaits the nested transaction before resolving.
type mockDecryptor struct {
	calls       []decryptCall
	err         error
	clearValues map[string]int64
}

func (m *mockDecryptor) VerifyDecryption(ctx context.Context, handles []string, contract string, submit driven.SubmitProof) (map[string]int64, error) {
	m.calls = append(m.calls, decryptCall{Handles: handles, Contract: contract})
	if m.err != nil {
		return nil, m.err
	}

	tx, err := submit(ctx, "0xabi-clear-values", "0xdecryption-proof")
	if err != nil {
		return nil, err
	}
	if err := tx.Wait(ctx); err != nil {
		return nil, err
	}

	return m.clearValues, nil
}

// --- Shared helpers ---

const testContract = "0xc0ffee254729296a45a3885639ac7e10f9d54979"

func newTestMetrics() *application.Metrics {
	return application.NewMetrics(prometheus.NewRegistry())
}

func newTestNotifier() *application.Notifier {
	return application.NewNotifier(20*time.Millisecond, 30*time.Millisecond)
}

func newConnectedGate(t *testing.T, enc driven.Encryptor, notifier *application.Notifier) *application.SessionGate {
	t.Helper()
	gate := application.NewSessionGate(enc, notifier, slog.Default())
	require.NoError(t, gate.Connect(context.Background(), "0xreporter"))
	require.True(t, gate.Ready())
	return gate
}

func newTestRecords(reader driven.LedgerReader, cache driven.RecordCache, gate *application.SessionGate, notifier *application.Notifier, metrics *application.Metrics) *application.RecordService {
	return application.NewRecordService(reader, cache, gate, notifier, metrics, slog.Default())
}
