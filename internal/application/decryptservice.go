package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/noisemap/noisemap/internal/domain/model"
	"github.com/noisemap/noisemap/internal/domain/port/driven"
)

// racePhrase is the ledger's revert message when a verification write loses
// the race against another party's verification of the same record.
const racePhrase = "data already verified"

// DecryptResult is the outcome of one decryption workflow invocation.
type DecryptResult struct {
	// Value is the authenticated plaintext. Valid only when ValueKnown.
	Value int64
	// ValueKnown is false when the workflow resolved without a value: the
	// record was concurrently verified by another party and the
	// authoritative value arrives with the next reload.
	ValueKnown bool
	// FromLedger is true when the value came straight from the ledger's
	// verified state and no decryption primitive was invoked.
	FromLedger bool
}

// DecryptService owns the decryption workflow: it turns a stored ciphertext
// handle into an authenticated plaintext through the
// checkingVerified -> requesting -> verifying -> succeeded sequence, with an
// early exit for already-verified records.
type DecryptService struct {
	gate      *SessionGate
	reader    driven.LedgerReader
	writer    driven.LedgerWriter
	decryptor driven.Decryptor
	records   *RecordService
	notifier  *Notifier
	metrics   *Metrics
	logger    *slog.Logger
	contract  string

	phase phaseSlot
}

// NewDecryptService creates a DecryptService targeting the given contract
// context.
func NewDecryptService(
	gate *SessionGate,
	reader driven.LedgerReader,
	writer driven.LedgerWriter,
	decryptor driven.Decryptor,
	records *RecordService,
	notifier *Notifier,
	metrics *Metrics,
	logger *slog.Logger,
	contract string,
) *DecryptService {
	return &DecryptService{
		gate:      gate,
		reader:    reader,
		writer:    writer,
		decryptor: decryptor,
		records:   records,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
		contract:  contract,
	}
}

// Phase returns the most recently observed workflow phase, for UI rendering
// only.
func (s *DecryptService) Phase() model.Phase {
	return s.phase.get()
}

// Decrypt runs the decryption workflow for one record. Verification is
// monotonic and authoritative: a record the ledger already reports verified
// returns its stored value directly and never re-enters the decryption
// primitive. Two overlapping calls for the same record are not mutually
// exclusive here; the ledger's write semantics decide the race and the
// losing call resolves softly via the already-verified branch.
func (s *DecryptService) Decrypt(ctx context.Context, recordID string) (DecryptResult, error) {
	if !s.gate.Ready() {
		s.phase.set(model.PhaseFailed)
		s.metrics.Decryptions.WithLabelValues(OutcomeFailed).Inc()
		s.notifier.Set(model.NotifyError, "Please connect wallet first")
		return DecryptResult{}, ErrNotReady
	}

	s.phase.set(model.PhaseCheckingVerified)

	fields, err := s.reader.GetRecord(ctx, recordID)
	if err != nil {
		return DecryptResult{}, s.fail("fetch record", recordID, err)
	}

	if fields.IsVerified {
		s.phase.set(model.PhaseSucceeded)
		s.metrics.Decryptions.WithLabelValues(OutcomeShortCircuit).Inc()
		s.notifier.Set(model.NotifySuccess, "Noise data already verified")
		return DecryptResult{Value: fields.VerifiedValue, ValueKnown: true, FromLedger: true}, nil
	}

	s.phase.set(model.PhaseRequesting)

	handle, err := s.reader.GetCiphertextHandle(ctx, recordID)
	if err != nil {
		return DecryptResult{}, s.fail("resolve ciphertext handle", recordID, err)
	}

	s.phase.set(model.PhaseVerifying)
	s.notifier.Set(model.NotifyPending, "Verifying decryption...")

	clearValues, err := s.decryptor.VerifyDecryption(ctx, []string{handle}, s.contract,
		func(ctx context.Context, clear, proof string) (driven.Transaction, error) {
			return s.writer.VerifyDecryption(ctx, recordID, clear, proof)
		})
	if err != nil {
		if isVerificationRace(err) {
			return s.absorbRace(ctx, recordID)
		}
		return DecryptResult{}, s.fail("verify decryption", recordID, err)
	}

	value, ok := clearValues[handle]
	if !ok {
		return DecryptResult{}, s.fail("verify decryption", recordID,
			fmt.Errorf("no clear value returned for handle %s", handle))
	}

	s.records.SetProvisional(recordID, value)
	if err := s.records.Reload(ctx); err != nil {
		s.logger.Error("post-decrypt reload failed", "id", recordID, "error", err)
	}

	s.phase.set(model.PhaseSucceeded)
	s.metrics.Decryptions.WithLabelValues(OutcomeSucceeded).Inc()
	s.notifier.Set(model.NotifySuccess, "Noise data decrypted successfully!")
	s.logger.Info("noise data decrypted", "id", recordID)

	return DecryptResult{Value: value, ValueKnown: true}, nil
}

// absorbRace handles the decrypt-after-concurrent-verify case: reload the
// store so the authoritative value appears, report success, return no
// provisional value.
func (s *DecryptService) absorbRace(ctx context.Context, recordID string) (DecryptResult, error) {
	s.logger.Info("record verified concurrently, absorbing", "id", recordID)

	if err := s.records.Reload(ctx); err != nil {
		s.logger.Error("post-race reload failed", "id", recordID, "error", err)
	}

	s.phase.set(model.PhaseSucceeded)
	s.metrics.Decryptions.WithLabelValues(OutcomeRaceAbsorbed).Inc()
	s.notifier.Set(model.NotifySuccess, "Data already verified")

	return DecryptResult{}, nil
}

func (s *DecryptService) fail(step, recordID string, err error) error {
	s.phase.set(model.PhaseFailed)
	s.metrics.Decryptions.WithLabelValues(OutcomeFailed).Inc()
	s.notifier.Set(model.NotifyError, "Decryption failed")
	s.logger.Error("decryption failed", "step", step, "id", recordID, "error", err)
	return fmt.Errorf("%s: %w", step, err)
}

// isVerificationRace matches the sentinel or the ledger's known revert
// phrase anywhere in the error chain's message.
func isVerificationRace(err error) bool {
	if errors.Is(err, driven.ErrAlreadyVerified) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), racePhrase)
}
