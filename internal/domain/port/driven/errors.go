package driven

import "errors"

// Sentinel errors returned by driven adapters and matched with errors.Is at
// workflow boundaries.
var (
	// ErrRecordNotFound indicates the ledger has no record with the given id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrAlreadyVerified indicates a verification write raced with another
	// party's verification of the same record. Workflows treat this as a
	// soft success: the authoritative value appears on the next reload.
	ErrAlreadyVerified = errors.New("data already verified")

	// ErrRejectedBySigner indicates the user declined to sign a transaction.
	ErrRejectedBySigner = errors.New("user rejected transaction")
)
