package driven

import "context"

// Transaction represents an in-flight ledger write. Wait is the sole
// completion signal the workflows rely on: the write either confirms
// atomically or fails.
type Transaction interface {
	// Hash returns the ledger-assigned transaction identifier.
	Hash() string
	// Wait blocks until ledger confirmation is observed, the transaction is
	// rejected, or ctx is done.
	Wait(ctx context.Context) error
}

// RecordFields is the ledger's public view of a stored record. The
// confidential value appears only as VerifiedValue, and only once the record
// has been verified.
type RecordFields struct {
	ID            string
	Label         string
	AreaCode      int
	PublicTag     int
	SubmittedAt   int64
	Submitter     string
	IsVerified    bool
	VerifiedValue int64
}

// NewRecord carries everything needed for a createRecord ledger write.
type NewRecord struct {
	ID         string
	Label      string
	Ciphertext string
	Proof      string
	AreaCode   int
	PublicTag  int
	ContentTag string
}

// LedgerReader defines the driven port for the ledger's read surface.
// Reads are eventually consistent with prior writes from the same session.
type LedgerReader interface {
	ListRecordIDs(ctx context.Context) ([]string, error)
	// GetRecord returns ErrRecordNotFound (wrapped) for unknown ids.
	GetRecord(ctx context.Context, id string) (RecordFields, error)
	// GetCiphertextHandle resolves the opaque handle used to request
	// decryption of the record's confidential value.
	GetCiphertextHandle(ctx context.Context, id string) (string, error)
	IsAvailable(ctx context.Context) (bool, error)
}

// LedgerWriter defines the driven port for the ledger's write surface.
// Writes are transactional: the returned Transaction confirms or fails as
// a unit.
type LedgerWriter interface {
	CreateRecord(ctx context.Context, rec NewRecord) (Transaction, error)
	// VerifyDecryption records the proven plaintext for a record. Returns
	// ErrAlreadyVerified (wrapped) when another party verified it first.
	VerifyDecryption(ctx context.Context, id string, clearValues string, proof string) (Transaction, error)
}
