package driven

import (
	"context"

	"github.com/noisemap/noisemap/internal/domain/model"
)

// RecordCache defines the driven port for the local record snapshot cache.
// The cache warms the in-memory store at startup and keeps stats available
// between reloads; the ledger remains the source of truth.
type RecordCache interface {
	// ReplaceAll atomically replaces the cached snapshot. Provisional
	// session-local plaintexts are not persisted.
	ReplaceAll(ctx context.Context, records []model.Record) error
	Upsert(ctx context.Context, record model.Record) error
	List(ctx context.Context) ([]model.Record, error)
	// Get returns nil, nil when the record is not cached.
	Get(ctx context.Context, id string) (*model.Record, error)
}
