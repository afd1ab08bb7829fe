//go:build vassist_stats

package pipeline

import "time"

// messageStats stamps a monotonic creation time for latency statistics
// when the vassist_stats build tag is set.
type messageStats struct {
	createdAt time.Time
}

func newMessageStats() messageStats { return messageStats{createdAt: time.Now()} }

func (s messageStats) age() time.Duration {
	if s.createdAt.IsZero() {
		return 0
	}
	return time.Since(s.createdAt)
}
