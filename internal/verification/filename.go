// internal/verification/filename.go
package verification

import (
	"strconv"
	"strings"
	"time"
)

// calendarDate is a year/month/day triple as written somewhere, not
// necessarily a valid date.
type calendarDate struct {
	Year, Month, Day int
}

func (d calendarDate) matches(t time.Time) bool {
	y, m, day := t.Date()
	return d.Year == y && d.Month == int(m) && d.Day == day
}

// filenameDate extracts a date embedded in a filename, trying YYYYMMDD first
// and DDMMYYYY second. Separators "-" and "_" are optional.
func filenameDate(name string) (calendarDate, bool) {
	lower := strings.ToLower(name)

	if m := filenameDateYMD.FindStringSubmatch(lower); m != nil {
		return calendarDate{Year: atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3])}, true
	}
	if m := filenameDateDMY.FindStringSubmatch(lower); m != nil {
		return calendarDate{Year: atoi(m[3]), Month: atoi(m[2]), Day: atoi(m[1])}, true
	}
	return calendarDate{}, false
}

// atoi is only called on regexp digit groups.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// sameDay compares calendar components of t and now in now's location.
func sameDay(t, now time.Time) bool {
	ty, tm, td := t.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return ty == ny && tm == nm && td == nd
}
