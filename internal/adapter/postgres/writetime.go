package postgres

import "time"

// WriteTime returns t unless it is zero, in which case now is used. Write
// paths stamp fresh records with the current time, but rollback re-inserts
// snapshot rows and those must keep their original timestamps.
func WriteTime(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
