package application

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// recordIDPrefix is the canonical record id prefix on the ledger.
const recordIDPrefix = "noise-"

// RecordIDGenerator mints record ids from the submission timestamp
// ("noise-<unixMillis>"). Two submissions inside the same millisecond would
// collide, so the generator tracks the last issued millisecond and appends a
// short random suffix on collision instead of silently reusing the id.
type RecordIDGenerator struct {
	mu         sync.Mutex
	lastMillis int64
}

// NewRecordIDGenerator creates a RecordIDGenerator.
func NewRecordIDGenerator() *RecordIDGenerator {
	return &RecordIDGenerator{}
}

// Next returns a record id unique within this process for the given time.
func (g *RecordIDGenerator) Next(now time.Time) string {
	millis := now.UnixMilli()

	g.mu.Lock()
	collided := millis == g.lastMillis
	if !collided {
		g.lastMillis = millis
	}
	g.mu.Unlock()

	if collided {
		return fmt.Sprintf("%s%d-%s", recordIDPrefix, millis, uuid.NewString()[:8])
	}
	return fmt.Sprintf("%s%d", recordIDPrefix, millis)
}
