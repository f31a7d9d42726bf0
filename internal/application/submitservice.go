package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/noisemap/noisemap/internal/domain/model"
	"github.com/noisemap/noisemap/internal/domain/port/driven"
)

// contentTag is the fixed content-type tag attached to every ledger write.
const contentTag = "Noise Monitoring Report"

// rejectionPhrase is the signer's known rejection message, pattern-matched to
// distinguish user cancellation from other collaborator failures.
const rejectionPhrase = "user rejected transaction"

// ErrNotReady is returned when a workflow runs before the session gate opens.
var ErrNotReady = errors.New("session not ready")

// ValidationError is a precondition failure on user input. It is rejected
// before any encryption or ledger side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmitService owns the submission workflow: it turns a plaintext
// measurement into an encrypted ledger write through the
// encrypting -> submitting -> confirming -> succeeded sequence.
type SubmitService struct {
	gate      *SessionGate
	encryptor driven.Encryptor
	writer    driven.LedgerWriter
	records   *RecordService
	notifier  *Notifier
	ids       *RecordIDGenerator
	metrics   *Metrics
	logger    *slog.Logger
	contract  string

	phase phaseSlot
}

// NewSubmitService creates a SubmitService targeting the given contract
// context.
func NewSubmitService(
	gate *SessionGate,
	encryptor driven.Encryptor,
	writer driven.LedgerWriter,
	records *RecordService,
	notifier *Notifier,
	ids *RecordIDGenerator,
	metrics *Metrics,
	logger *slog.Logger,
	contract string,
) *SubmitService {
	return &SubmitService{
		gate:      gate,
		encryptor: encryptor,
		writer:    writer,
		records:   records,
		notifier:  notifier,
		ids:       ids,
		metrics:   metrics,
		logger:    logger,
		contract:  contract,
	}
}

// Phase returns the most recently observed workflow phase. Overlapping
// submissions overwrite each other's phase; the value is for UI rendering
// only.
func (s *SubmitService) Phase() model.Phase {
	return s.phase.get()
}

// Submit runs the submission workflow for one user action. Side effects are
// strictly ordered: no ledger write happens before encryption succeeds, and
// the store is not reloaded before the write confirms. Identical inputs
// submitted twice produce two records; ids are timestamp-derived.
//
// On success it returns the id of the newly created record.
func (s *SubmitService) Submit(ctx context.Context, label, decibel, areaCode string) (string, error) {
	if !s.gate.Ready() {
		s.phase.set(model.PhaseFailed)
		s.metrics.Submissions.WithLabelValues(OutcomeFailed).Inc()
		s.notifier.Set(model.NotifyError, "Please connect wallet first")
		return "", ErrNotReady
	}

	value, code, err := validateSubmission(label, decibel, areaCode)
	if err != nil {
		s.phase.set(model.PhaseFailed)
		s.metrics.Submissions.WithLabelValues(OutcomeInvalid).Inc()
		s.notifier.Set(model.NotifyError, err.Error())
		return "", err
	}

	s.phase.set(model.PhaseEncrypting)
	s.notifier.Set(model.NotifyPending, "Encrypting noise data...")

	encrypted, err := s.encryptor.Encrypt(ctx, s.contract, s.gate.Identity(), value)
	if err != nil {
		return "", s.fail("encrypt measurement", err)
	}

	s.phase.set(model.PhaseSubmitting)
	id := s.ids.Next(time.Now())

	tx, err := s.writer.CreateRecord(ctx, driven.NewRecord{
		ID:         id,
		Label:      label,
		Ciphertext: encrypted.Ciphertext,
		Proof:      encrypted.Proof,
		AreaCode:   code,
		PublicTag:  0,
		ContentTag: contentTag,
	})
	if err != nil {
		return "", s.fail("create record", err)
	}

	s.phase.set(model.PhaseConfirming)
	s.notifier.Set(model.NotifyPending, "Uploading encrypted data...")

	if err := tx.Wait(ctx); err != nil {
		return "", s.fail("confirm record write", err)
	}

	s.phase.set(model.PhaseSucceeded)
	s.metrics.Submissions.WithLabelValues(OutcomeSucceeded).Inc()
	s.notifier.Set(model.NotifySuccess, "Noise report encrypted and uploaded!")
	s.logger.Info("noise report submitted", "id", id, "area_code", code, "tx", tx.Hash())

	if err := s.records.Reload(ctx); err != nil {
		s.logger.Error("post-submit reload failed", "id", id, "error", err)
	}

	return id, nil
}

// fail moves the workflow to the absorbing failed state and surfaces a
// user-facing message, distinguishing signer rejection from generic failure.
func (s *SubmitService) fail(step string, err error) error {
	s.phase.set(model.PhaseFailed)

	if isSignerRejection(err) {
		s.metrics.Submissions.WithLabelValues(OutcomeRejected).Inc()
		s.notifier.Set(model.NotifyError, "Transaction rejected")
	} else {
		s.metrics.Submissions.WithLabelValues(OutcomeFailed).Inc()
		s.notifier.Set(model.NotifyError, "Upload failed: "+err.Error())
	}

	s.logger.Error("submission failed", "step", step, "error", err)
	return fmt.Errorf("%s: %w", step, err)
}

// validateSubmission checks the submission preconditions: non-empty label,
// decibel integer within [0,150], area code integer within [1,999].
func validateSubmission(label, decibel, areaCode string) (int64, int, error) {
	if strings.TrimSpace(label) == "" {
		return 0, 0, &ValidationError{Field: "label", Reason: "must not be empty"}
	}

	value, err := strconv.ParseInt(strings.TrimSpace(decibel), 10, 64)
	if err != nil {
		return 0, 0, &ValidationError{Field: "decibel", Reason: "must be an integer"}
	}
	if value < model.MinDecibel || value > model.MaxDecibel {
		return 0, 0, &ValidationError{
			Field:  "decibel",
			Reason: fmt.Sprintf("must be between %d and %d", model.MinDecibel, model.MaxDecibel),
		}
	}

	code, err := strconv.Atoi(strings.TrimSpace(areaCode))
	if err != nil {
		return 0, 0, &ValidationError{Field: "area code", Reason: "must be an integer"}
	}
	if code < model.MinAreaCode || code > model.MaxAreaCode {
		return 0, 0, &ValidationError{
			Field:  "area code",
			Reason: fmt.Sprintf("must be between %d and %d", model.MinAreaCode, model.MaxAreaCode),
		}
	}

	return value, code, nil
}

// isSignerRejection matches the sentinel or the signer's known rejection
// phrase anywhere in the error chain's message.
func isSignerRejection(err error) bool {
	if errors.Is(err, driven.ErrRejectedBySigner) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), rejectionPhrase)
}

// phaseSlot is a mutex-guarded Phase value shared by overlapping invocations.
type phaseSlot struct {
	mu    sync.Mutex
	phase model.Phase
}

func (p *phaseSlot) set(ph model.Phase) {
	p.mu.Lock()
	p.phase = ph
	p.mu.Unlock()
}

func (p *phaseSlot) get() model.Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase == "" {
		return model.PhaseIdle
	}
	return p.phase
}
