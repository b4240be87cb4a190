package timex

import (
	"fmt"
	"strings"
	"time"
)

// MicroLayout is ISO-8601 with microsecond precision in UTC, the persisted
// form of token expiry instants.
const MicroLayout = "2006-01-02T15:04:05.000000Z"

var parseLayouts = []string{
	MicroLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// FormatMicro renders t in MicroLayout after converting it to UTC.
func FormatMicro(t time.Time) string {
	return t.UTC().Format(MicroLayout)
}

// ParseMicro accepts MicroLayout, RFC 3339 and the zone-less ISO form.
// Zone-less values are taken as UTC.
func ParseMicro(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
