package application

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/noisemap/noisemap/internal/domain/model"
	"github.com/noisemap/noisemap/internal/domain/port/driven"
)

// RecordService is the in-memory record store: the single source of truth
// for rendering and statistics. Reload pulls a fresh snapshot from the
// ledger; the sqlite cache warms the store at startup and keeps the last
// snapshot available between runs.
type RecordService struct {
	reader   driven.LedgerReader
	cache    driven.RecordCache
	gate     *SessionGate
	notifier *Notifier
	metrics  *Metrics
	logger   *slog.Logger

	mu          sync.RWMutex
	records     map[string]model.Record
	refreshing  bool
	subscribers []func([]model.Record)
}

// NewRecordService creates a RecordService with an empty snapshot.
func NewRecordService(
	reader driven.LedgerReader,
	cache driven.RecordCache,
	gate *SessionGate,
	notifier *Notifier,
	metrics *Metrics,
	logger *slog.Logger,
) *RecordService {
	return &RecordService{
		reader:   reader,
		cache:    cache,
		gate:     gate,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		records:  make(map[string]model.Record),
	}
}

// Subscribe registers a callback invoked with the new snapshot after every
// applied change.
func (s *RecordService) Subscribe(fn func([]model.Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// WarmLoad populates the store from the local cache so records render before
// the first ledger reload. Cache staleness is acceptable: the read model is
// eventually consistent anyway.
func (s *RecordService) WarmLoad(ctx context.Context) error {
	cached, err := s.cache.List(ctx)
	if err != nil {
		return err
	}
	if len(cached) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, rec := range cached {
		s.records[rec.ID] = rec
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("record store warmed from cache", "records", len(cached))
	s.publish(snapshot)
	return nil
}

// Reload refreshes the store from the ledger: a bulk id listing followed by
// per-id detail fetches. It fails fast as a no-op when no identity is
// authenticated. Per-id fetch failures are logged and skipped; a partial
// snapshot is acceptable. Concurrent reloads are permitted but not
// deduplicated -- the last one to complete wins.
func (s *RecordService) Reload(ctx context.Context) error {
	if !s.gate.Authenticated() {
		return nil
	}

	s.setRefreshing(true)
	defer s.setRefreshing(false)

	start := time.Now()

	ids, err := s.reader.ListRecordIDs(ctx)
	if err != nil {
		s.logger.Error("record listing failed", "error", err)
		s.notifier.Set(model.NotifyError, "Failed to load noise data")
		return err
	}

	fetched := make([]model.Record, 0, len(ids))
	var skipped int
	for _, id := range ids {
		fields, err := s.reader.GetRecord(ctx, id)
		if err != nil {
			s.logger.Error("record fetch failed, skipping", "id", id, "error", err)
			skipped++
			continue
		}
		fetched = append(fetched, recordFromFields(fields))
	}

	snapshot := s.apply(fetched)
	s.persist(ctx, snapshot)

	s.metrics.ReloadDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("record store reloaded",
		"records", len(fetched),
		"skipped", skipped,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	s.publish(snapshot)
	return nil
}

// Get returns the record with the given id from the current snapshot.
func (s *RecordService) Get(id string) (model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Snapshot returns the current records, newest first.
func (s *RecordService) Snapshot() []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Stats computes the aggregate summary over the current snapshot.
func (s *RecordService) Stats(now time.Time) model.Stats {
	return model.ComputeStats(s.Snapshot(), now)
}

// Refreshing reports whether a reload is in flight. The flag exists for UI
// rendering only; it is not a concurrency guard.
func (s *RecordService) Refreshing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshing
}

// SetProvisional records a session-local decrypted plaintext for a record.
// Provisional values stay observable across reloads until the ledger reports
// the record verified, at which point the verified value supersedes them.
func (s *RecordService) SetProvisional(id string, value int64) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if ok && !rec.Clear.IsVerified() {
		rec.Clear = model.Provisional(value)
		s.records[id] = rec
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if ok {
		s.publish(snapshot)
	}
}

// apply replaces the snapshot with the fetched records, preserving two kinds
// of session-local knowledge: provisional plaintexts for records the ledger
// still reports unverified, and verified values the ledger has not yet
// reflected (verification is monotonic; a verified record never becomes
// unverified).
func (s *RecordService) apply(fetched []model.Record) []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]model.Record, len(fetched))
	for _, rec := range fetched {
		if prev, ok := s.records[rec.ID]; ok && !rec.Clear.IsVerified() {
			switch prev.Clear.State() {
			case model.ClearStateVerified, model.ClearStateProvisional:
				rec.Clear = prev.Clear
			}
		}
		next[rec.ID] = rec
	}

	s.records = next
	s.updateGaugesLocked()
	return s.snapshotLocked()
}

// persist writes the snapshot through to the local cache. Cache failures are
// logged, never surfaced: the in-memory store remains correct without it.
func (s *RecordService) persist(ctx context.Context, snapshot []model.Record) {
	if err := s.cache.ReplaceAll(ctx, snapshot); err != nil {
		s.logger.Error("record cache persist failed", "error", err)
	}
}

func (s *RecordService) setRefreshing(v bool) {
	s.mu.Lock()
	s.refreshing = v
	s.mu.Unlock()
}

func (s *RecordService) snapshotLocked() []model.Record {
	out := make([]model.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt != out[j].SubmittedAt {
			return out[i].SubmittedAt > out[j].SubmittedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *RecordService) updateGaugesLocked() {
	var verified int
	for _, rec := range s.records {
		if rec.Clear.IsVerified() {
			verified++
		}
	}
	s.metrics.RecordsTotal.Set(float64(len(s.records)))
	s.metrics.RecordsVerified.Set(float64(verified))
}

func (s *RecordService) publish(snapshot []model.Record) {
	s.mu.RLock()
	subs := make([]func([]model.Record), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// recordFromFields maps the ledger's public record view into the domain type.
func recordFromFields(f driven.RecordFields) model.Record {
	cv := model.NotDecrypted()
	if f.IsVerified {
		cv = model.Verified(f.VerifiedValue)
	}

	return model.Record{
		ID:          f.ID,
		Label:       f.Label,
		AreaCode:    f.AreaCode,
		PublicTag:   f.PublicTag,
		SubmittedAt: f.SubmittedAt,
		Submitter:   f.Submitter,
		Clear:       cv,
	}
}
