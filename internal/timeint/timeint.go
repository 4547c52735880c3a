// Package timeint provides the integer time-bucket keys used for dedup windows.
//
// A transaction stores the bucket key of the job it completed; a device is
// blocked from re-claiming that job until the bucket rolls over. Buckets are
// derived from whole UTC days so they are stable across restarts and servers.
package timeint

import "time"

const secondsPerDay = 24 * 60 * 60

// DayNumber returns the number of whole UTC days since the Unix epoch.
func DayNumber(at time.Time) int64 {
	return at.UTC().Unix() / secondsPerDay
}

// BucketKey returns the dedup-window key for a job with the given reset_day.
// A reset_day of N groups N consecutive days into one bucket; values below 1
// are treated as 1.
func BucketKey(resetDay int, at time.Time) int64 {
	if resetDay < 1 {
		resetDay = 1
	}
	return DayNumber(at) / int64(resetDay)
}

// DayKey formats the calendar day used for per-day counter keys.
func DayKey(at time.Time) string {
	return at.UTC().Format("20060102")
}
