package config

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Unique suffix modes for artifact file names.
const (
	SuffixTimestamp = "timestamp"
	SuffixUUID      = "uuid"
	SuffixNone      = "none"
)

const timestampSuffixLayout = " (2006-01-02 150405)"

// SuffixFunc returns the suffix appended to an artifact name for a run
// started at t.
type SuffixFunc func(t time.Time) string

// Suffix returns the suffix function for mode. Unknown modes use the
// timestamp suffix; ok reports whether mode was recognised.
func Suffix(mode string) (fn SuffixFunc, ok bool) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case SuffixTimestamp, "":
		return timestampSuffix, true
	case SuffixUUID:
		return uuidSuffix, true
	case SuffixNone:
		return noSuffix, true
	default:
		return timestampSuffix, false
	}
}

func timestampSuffix(t time.Time) string {
	return t.Format(timestampSuffixLayout)
}

func uuidSuffix(time.Time) string {
	return "_" + strings.ToLower(uuid.NewString())
}

func noSuffix(time.Time) string {
	return ""
}
