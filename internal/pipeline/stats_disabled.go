//go:build !vassist_stats

package pipeline

import "time"

// messageStats is a zero-size no-op when the vassist_stats build tag is
// not set, matching the original implementation's ENABLE_STATS_LOGGING
// preprocessor guard.
type messageStats struct{}

func newMessageStats() messageStats { return messageStats{} }

func (messageStats) age() time.Duration { return 0 }
