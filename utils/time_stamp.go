package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NowNano returns the current time as nanoseconds since Unix epoch.
func NowNano() int64 {
	return time.Now().UnixNano()
}

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// SessionName returns a readable, unique file stem for a session:
//
//	<prefix>_YYYYMMDD_HHMMSS_<first 8 chars of id>
func SessionName(prefix, sessionID string, startedAt time.Time) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%s_%s", prefix, startedAt.Format("20060102_150405"), short)
}
