package ledger

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cenkalti/backoff/v4"

	"github.com/noisemap/noisemap/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Transaction = (*transaction)(nil)

// Transaction status values reported by the gateway.
const (
	txStatusPending   = "pending"
	txStatusConfirmed = "confirmed"
	txStatusFailed    = "failed"
)

// transaction is an in-flight ledger write identified by its hash. Wait
// polls the gateway's transaction endpoint with exponential backoff until
// the write confirms or fails.
type transaction struct {
	client *Client
	hash   string
}

func newTransaction(client *Client, hash string) *transaction {
	return &transaction{client: client, hash: hash}
}

// Hash returns the gateway-assigned transaction hash.
func (t *transaction) Hash() string {
	return t.hash
}

type txStatusPayload struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Wait blocks until the transaction confirms, fails, the confirmation window
// elapses, or ctx is done. Confirmation is the sole completion signal:
// returning nil means the write is on the ledger.
func (t *transaction) Wait(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = t.client.confirmWait

	operation := func() error {
		var payload txStatusPayload
		if err := t.client.get(ctx, "/v1/tx/"+url.PathEscape(t.hash), &payload); err != nil {
			// Transient gateway errors are retried within the window.
			return err
		}

		switch payload.Status {
		case txStatusConfirmed:
			return nil
		case txStatusFailed:
			message := payload.Error
			if message == "" {
				message = "transaction failed"
			}
			if mapped := mapLedgerMessage(message); mapped != nil {
				return backoff.Permanent(mapped)
			}
			return backoff.Permanent(fmt.Errorf("transaction %s: %s", t.hash, message))
		default:
			return fmt.Errorf("transaction %s still %s", t.hash, txStatusPending)
		}
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("awaiting confirmation of %s: %w", t.hash, err)
	}
	return nil
}
