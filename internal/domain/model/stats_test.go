package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noisemap/noisemap/internal/domain/model"
)

func TestComputeStatsEmpty(t *testing.T) {
	stats := model.ComputeStats(nil, time.Now())

	assert.Equal(t, 0, stats.TotalReports)
	assert.Equal(t, 0, stats.VerifiedReports)
	assert.Equal(t, 0, stats.RecentActivity)
	assert.Equal(t, 0.0, stats.AverageDecibel)
	assert.Equal(t, int64(0), stats.MaxDecibel)
}

func TestComputeStatsAggregates(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	records := []model.Record{
		{ID: "noise-1", SubmittedAt: now.Add(-1 * time.Hour).Unix(), Clear: model.Verified(70)},
		{ID: "noise-2", SubmittedAt: now.Add(-2 * time.Hour).Unix(), Clear: model.Verified(90)},
		// Provisional values are not authoritative and must not contribute
		// to the decibel aggregates.
		{ID: "noise-3", SubmittedAt: now.Add(-30 * time.Hour).Unix(), Clear: model.Provisional(120)},
		{ID: "noise-4", SubmittedAt: now.Add(-48 * time.Hour).Unix(), Clear: model.NotDecrypted()},
	}

	stats := model.ComputeStats(records, now)

	assert.Equal(t, 4, stats.TotalReports)
	assert.Equal(t, 2, stats.VerifiedReports)
	assert.Equal(t, 2, stats.RecentActivity)
	assert.Equal(t, 80.0, stats.AverageDecibel)
	assert.Equal(t, int64(90), stats.MaxDecibel)
}

func TestComputeStatsRecentWindowBoundary(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	records := []model.Record{
		{ID: "noise-old", SubmittedAt: now.Add(-24 * time.Hour).Unix()},
		{ID: "noise-new", SubmittedAt: now.Add(-24*time.Hour + time.Second).Unix()},
	}

	stats := model.ComputeStats(records, now)

	// Strictly-less-than comparison: a record exactly 24h old is not recent.
	assert.Equal(t, 1, stats.RecentActivity)
}

func TestClearValueZeroIsNotDecrypted(t *testing.T) {
	var c model.ClearValue

	assert.Equal(t, model.ClearStateNone, c.State())
	assert.False(t, c.IsVerified())

	_, ok := c.Value()
	assert.False(t, ok)
}

func TestClearValueVerifiedZeroIsObservable(t *testing.T) {
	c := model.Verified(0)

	v, ok := c.Value()
	assert.True(t, ok)
	assert.Equal(t, int64(0), v)
	assert.True(t, c.IsVerified())
}
