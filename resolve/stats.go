package resolve

import (
	"time"

	tracker "go-exchange-rate-tracker"
)

// SourceStats summarizes a set of source results for diagnostics
type SourceStats struct {
	Count      int
	Sources    []string
	Timestamps []SourceTimestamp
}

// SourceTimestamp the data time of one source and its age at the time of the summary
type SourceTimestamp struct {
	Source    string
	Timestamp time.Time
	Age       time.Duration
}

// Stats summarizes results as seen at now.
func Stats(results []tracker.SourceResult, now time.Time) SourceStats {
	stats := SourceStats{
		Count:      len(results),
		Sources:    make([]string, 0, len(results)),
		Timestamps: make([]SourceTimestamp, 0, len(results)),
	}
	for _, r := range results {
		stats.Sources = append(stats.Sources, r.Source)
		stats.Timestamps = append(stats.Timestamps, SourceTimestamp{
			Source:    r.Source,
			Timestamp: r.Timestamp,
			Age:       now.Sub(r.Timestamp),
		})
	}
	return stats
}

// Spread is the distance between the newest and the oldest timestamp.
func (s SourceStats) Spread() time.Duration {
	if len(s.Timestamps) == 0 {
		return 0
	}
	newest, oldest := s.Timestamps[0].Timestamp, s.Timestamps[0].Timestamp
	for _, ts := range s.Timestamps[1:] {
		if ts.Timestamp.After(newest) {
			newest = ts.Timestamp
		}
		if ts.Timestamp.Before(oldest) {
			oldest = ts.Timestamp
		}
	}
	return newest.Sub(oldest)
}
