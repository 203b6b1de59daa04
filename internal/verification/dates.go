// internal/verification/dates.go
package verification

import (
	"strings"
	"time"
)

const exifDateLayout = "2006:01:02 15:04:05"

// Layouts tried after the EXIF form, roughly in order of how often they show
// up in XMP packets and PNG text chunks.
var genericDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006:01:02 15:04:05-07:00",
	"2006:01:02",
	time.RFC1123Z,
	time.RFC1123,
	time.ANSIC,
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

// parseMetadataDate parses an embedded timestamp in loc. Timestamps carrying
// their own offset are returned as written and compared after conversion.
func parseMetadataDate(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if s == "" {
		return time.Time{}, false
	}

	// EXIF values sometimes carry sub-seconds or a trailing zone, keep the core.
	if len(s) >= len(exifDateLayout) && s[4] == ':' && s[7] == ':' {
		if t, err := time.ParseInLocation(exifDateLayout, s[:len(exifDateLayout)], loc); err == nil {
			return t, true
		}
	}

	for _, layout := range genericDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
