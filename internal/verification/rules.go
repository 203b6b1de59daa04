// internal/verification/rules.go
package verification

import (
	"regexp"
	"strings"
)

const (
	minFileSizeBytes = 10 * 1024
	minDimensionPx   = 200

	// Only strings in this length range take part in the generic metadata scan.
	minScannedStringLen = 4
	maxScannedStringLen = 499
)

// Patterns match anywhere in the lowercased filename, so short tokens such as
// "ps" and "new" also hit "apps" and "newsfeed".
var suspiciousFilenamePatterns = []string{
	`edit`,
	`edited`,
	`modified`,
	`cropped`,
	`crop`,
	`resized`,
	`copy`,
	`\(\d+\)`,
	`- copy`,
	`final`,
	`v\d+`,
	`version`,
	`new`,
	`fixed`,
	`updated`,
	`altered`,
	`manipulated`,
	`photoshop`,
	`ps`,
	`gimp`,
	`canva`,
}

var editingSoftwarePatterns = []string{
	"photoshop",
	"adobe",
	"lightroom",
	"illustrator",
	"after effects",
	"gimp",
	"affinity",
	"pixelmator",
	"paint.net",
	"corel",
	"paintshop",
	"canva",
	"picsart",
	"snapseed",
	"vsco",
	"inshot",
	"fotor",
	"polarr",
	"facetune",
	"kapwing",
	"figma",
	"sketch",
	"editor",
	"edited",
	"modified",
}

var (
	filenameDateYMD = regexp.MustCompile(`(20\d{2})[-_]?(\d{2})[-_]?(\d{2})`)
	filenameDateDMY = regexp.MustCompile(`(\d{2})[-_]?(\d{2})[-_]?(20\d{2})`)
)

// Rules is the immutable set of compiled heuristics a Verifier applies.
type Rules struct {
	filename []*regexp.Regexp
	software []string
}

// DefaultRules returns the built-in filename and editing-software heuristics.
func DefaultRules() *Rules {
	r := &Rules{
		filename: make([]*regexp.Regexp, 0, len(suspiciousFilenamePatterns)),
		software: make([]string, len(editingSoftwarePatterns)),
	}
	for _, p := range suspiciousFilenamePatterns {
		r.filename = append(r.filename, regexp.MustCompile(p))
	}
	copy(r.software, editingSoftwarePatterns)
	return r
}

// SuspiciousFilename reports whether name carries a post-processing or reuse marker.
func (r *Rules) SuspiciousFilename(name string) bool {
	lower := strings.ToLower(name)
	for _, re := range r.filename {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// EditingSoftware returns the first editing-tool pattern found in value.
func (r *Rules) EditingSoftware(value string) (string, bool) {
	lower := strings.ToLower(value)
	for _, p := range r.software {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}
