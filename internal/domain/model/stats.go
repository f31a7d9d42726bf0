package model

import "time"

// Stats is the aggregate summary over a record snapshot. Average and peak are
// computed over verified values only; unverified ciphertexts contribute to
// the totals but not to the decibel aggregates.
type Stats struct {
	TotalReports    int
	VerifiedReports int
	RecentActivity  int
	AverageDecibel  float64
	MaxDecibel      int64
}

// ComputeStats derives summary statistics from a record snapshot. It is a
// pure function: no caching, no side effects, recomputed on demand.
func ComputeStats(records []Record, now time.Time) Stats {
	stats := Stats{TotalReports: len(records)}

	var sum int64
	for _, r := range records {
		if r.IsRecent(now) {
			stats.RecentActivity++
		}

		if !r.Clear.IsVerified() {
			continue
		}
		stats.VerifiedReports++

		value, _ := r.Clear.Value()
		sum += value
		if value > stats.MaxDecibel {
			stats.MaxDecibel = value
		}
	}

	if stats.VerifiedReports > 0 {
		stats.AverageDecibel = float64(sum) / float64(stats.VerifiedReports)
	}

	return stats
}
