package ledger

import "time"

// Timestamps persist as unix milliseconds; zero stays zero so FLAT rows carry
// no stale entry time.

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
