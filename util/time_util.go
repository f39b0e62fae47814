package util

import "time"

// GetCurrentTimeMillis returns the current time as Unix milliseconds.
func GetCurrentTimeMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// GetCurrentTimeNanos returns the current time as Unix nanoseconds.
func GetCurrentTimeNanos() int64 {
	return time.Now().UnixNano()
}

// GetCurrentTimestamp returns the current time as Unix seconds.
func GetCurrentTimestamp() int64 {
	return time.Now().Unix()
}
