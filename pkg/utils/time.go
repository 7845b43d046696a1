package utils

import "time"

// FormatTimestamp renders a version boundary the way the REST API exposes it
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseRFC3339 parses a time string in RFC3339 format
func ParseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Truncate cuts t down to the given storage resolution.
// A non-positive resolution means whole seconds.
func Truncate(t time.Time, resolution time.Duration) time.Time {
	if resolution <= 0 {
		resolution = time.Second
	}
	return t.UTC().Truncate(resolution)
}
