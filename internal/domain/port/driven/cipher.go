package driven

import "context"

// EncryptedValue is the ciphertext and input proof produced by the encryption
// service for a single plaintext integer.
type EncryptedValue struct {
	Ciphertext string
	Proof      string
}

// Encryptor defines the driven port for the client-side encryption primitive.
type Encryptor interface {
	// Init performs the one-time key-material setup. It is safe to call
	// again after a failure; a successful Init makes later calls no-ops.
	Init(ctx context.Context) error
	// Encrypt encrypts value for the target contract context, bound to the
	// submitter identity.
	Encrypt(ctx context.Context, targetContext, identity string, value int64) (EncryptedValue, error)
}

// SubmitProof performs the ledger write that records decrypted clear values
// together with their decryption proof. The decryptor awaits the returned
// transaction before resolving, so the nested confirmation is part of the
// verification step itself.
type SubmitProof func(ctx context.Context, clearValues, proof string) (Transaction, error)

// Decryptor defines the driven port for the verified-decryption primitive.
type Decryptor interface {
	// VerifyDecryption decrypts the given ciphertext handles for the target
	// contract context and returns the per-handle clear values. The submit
	// callback is invoked with the ABI-encoded clear values and proof; its
	// transaction must confirm before VerifyDecryption returns.
	VerifyDecryption(ctx context.Context, handles []string, targetContext string, submit SubmitProof) (map[string]int64, error)
}
