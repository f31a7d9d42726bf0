package model

// Phase is the state of one user-initiated workflow invocation. A phase value
// lives only for the duration of a single submission or decryption; it is
// never persisted.
type Phase string

const (
	PhaseIdle Phase = "idle"

	// Submission phases, in happy-path order.
	PhaseEncrypting Phase = "encrypting"
	PhaseSubmitting Phase = "submitting"
	PhaseConfirming Phase = "confirming"

	// Decryption phases, in happy-path order.
	PhaseCheckingVerified Phase = "checking_verified"
	PhaseRequesting       Phase = "requesting"
	PhaseVerifying        Phase = "verifying"

	// Terminal phases. Failed is absorbing and reachable from any
	// non-idle phase.
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether the phase ends a workflow invocation.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}
