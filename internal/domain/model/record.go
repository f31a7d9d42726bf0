// Package model defines the core domain types for noisemap.
package model

import "time"

// Input bounds for a new measurement, matching the submission form contract.
const (
	MinDecibel  = 0
	MaxDecibel  = 150
	MinAreaCode = 1
	MaxAreaCode = 999
)

// RecentActivityWindow is the age below which a record counts as recent activity.
const RecentActivityWindow = 24 * time.Hour

// ClearState describes where a record's plaintext value, if any, comes from.
type ClearState string

const (
	// ClearStateNone means the confidential value has not been decrypted
	// in this session and is not verified on the ledger.
	ClearStateNone ClearState = "none"
	// ClearStateProvisional means a session-local decryption produced the
	// value. It is not authoritative and is superseded on the next reload.
	ClearStateProvisional ClearState = "provisional"
	// ClearStateVerified means the value was proven against its ciphertext
	// and recorded on the ledger. Verified values never change.
	ClearStateVerified ClearState = "verified"
)

// ClearValue is the tagged plaintext source for a record's confidential value:
// not decrypted, provisionally decrypted this session, or ledger-verified.
// The zero value is the not-decrypted state.
type ClearValue struct {
	state ClearState
	value int64
}

// NotDecrypted returns the ClearValue for a record with no observable plaintext.
func NotDecrypted() ClearValue {
	return ClearValue{state: ClearStateNone}
}

// Provisional returns a session-local, non-authoritative ClearValue.
func Provisional(value int64) ClearValue {
	return ClearValue{state: ClearStateProvisional, value: value}
}

// Verified returns a ledger-verified, authoritative ClearValue.
func Verified(value int64) ClearValue {
	return ClearValue{state: ClearStateVerified, value: value}
}

// State returns the tag. The zero ClearValue reports ClearStateNone.
func (c ClearValue) State() ClearState {
	if c.state == "" {
		return ClearStateNone
	}
	return c.state
}

// Value returns the plaintext and true when one is observable
// (provisional or verified).
func (c ClearValue) Value() (int64, bool) {
	if c.State() == ClearStateNone {
		return 0, false
	}
	return c.value, true
}

// IsVerified returns true when the value is ledger-verified.
func (c ClearValue) IsVerified() bool {
	return c.State() == ClearStateVerified
}

// Record represents one submitted noise measurement. The decibel level is
// confidential; label, area code, and timestamp are public for mapping.
type Record struct {
	ID          string
	Label       string
	AreaCode    int // Public location code (publicValue1 on the ledger).
	PublicTag   int // Secondary public tag (publicValue2); currently always 0.
	SubmittedAt int64
	Submitter   string
	Clear       ClearValue

	// CiphertextHandle is the opaque reference used to request decryption.
	// It is resolved lazily when a decryption is attempted and is empty in
	// bulk listings.
	CiphertextHandle string
}

// SubmittedAtTime returns the submission timestamp as a time.Time.
func (r Record) SubmittedAtTime() time.Time {
	return time.Unix(r.SubmittedAt, 0).UTC()
}

// IsRecent reports whether the record was submitted within the recent-activity
// window ending at now.
func (r Record) IsRecent(now time.Time) bool {
	return now.Sub(r.SubmittedAtTime()) < RecentActivityWindow
}
