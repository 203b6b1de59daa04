// internal/verification/verifier.go
package verification

import (
	"bytes"
	"image"
	"time"

	// Decoders the dimension check understands.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go.uber.org/zap"
)

// DefaultMaxPixels bounds the images the verifier is willing to fully decode.
const DefaultMaxPixels = 64 * 1024 * 1024

// Verifier decides whether an uploaded image looks like an untouched device
// screenshot taken today. A Verifier is immutable and safe for concurrent use.
type Verifier struct {
	rules     *Rules
	now       func() time.Time
	maxPixels int
	logger    *zap.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock sets the source of "today". The clock's location defines the
// calendar day used for every same-day comparison.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// WithRules replaces the default heuristics.
func WithRules(r *Rules) Option {
	return func(v *Verifier) {
		v.rules = r
	}
}

// WithMaxPixels sets the largest width*height that will be decoded. Zero
// disables the bound.
func WithMaxPixels(n int) Option {
	return func(v *Verifier) {
		v.maxPixels = n
	}
}

// WithLogger makes the verifier log the cause of every rejection at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) {
		v.logger = l
	}
}

// New creates a Verifier with the built-in rules and the wall clock.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		rules:     DefaultRules(),
		now:       time.Now,
		maxPixels: DefaultMaxPixels,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs every check against file. It never fails: undecodable input is
// simply an invalid screenshot. Whatever the failing checks, the result holds
// at most one generic error, while Causes and Metadata keep the detail for
// audit logs.
func (v *Verifier) Verify(file SubmittedImage) VerificationResult {
	now := v.now()
	var meta ImageMetadata
	var causes []Cause

	if file.SizeBytes < minFileSizeBytes {
		causes = append(causes, CauseFileTooSmall)
	}

	if v.rules.SuspiciousFilename(file.Filename) {
		causes = append(causes, CauseSuspiciousFilename)
	}

	if d, ok := filenameDate(file.Filename); ok && !d.matches(now) {
		causes = append(causes, CauseFilenameDateMismatch)
	}

	if !v.checkDimensions(file.Bytes, &meta) {
		causes = append(causes, CauseInvalidDimensions)
	}

	causes = append(causes, v.checkEmbedded(file, now, &meta)...)

	result := VerificationResult{
		IsValid:  len(causes) == 0,
		Errors:   []VerificationError{},
		Metadata: meta,
		Causes:   causes,
	}
	if !result.IsValid {
		result.Errors = []VerificationError{genericError()}
		v.logger.Debug("screenshot rejected",
			zap.String("filename", file.Filename),
			zap.Int64("size_bytes", file.SizeBytes),
			zap.Any("causes", causes))
	}
	return result
}

// checkDimensions decodes data and records its size. Width and height stay
// unset unless the whole image decodes.
func (v *Verifier) checkDimensions(data []byte, meta *ImageMetadata) bool {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return false
	}
	if v.maxPixels > 0 && cfg.Width*cfg.Height > v.maxPixels {
		v.logger.Debug("image exceeds pixel budget",
			zap.Int("width", cfg.Width),
			zap.Int("height", cfg.Height))
		return false
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return false
	}

	width, height := cfg.Width, cfg.Height
	meta.Width, meta.Height, meta.Format = &width, &height, format
	return width >= minDimensionPx && height >= minDimensionPx
}

// checkEmbedded inspects embedded metadata for editing tools and a capture
// date. Without any embedded date the client supplied modification time is
// used instead.
func (v *Verifier) checkEmbedded(file SubmittedImage, now time.Time, meta *ImageMetadata) []Cause {
	var causes []Cause
	loc := now.Location()

	embedded, ok := parseEmbedded(file.Bytes)
	if ok {
		meta.HasEmbeddedMetadata = true
		meta.Software = embedded.get(fieldSoftware)
		meta.Make = embedded.get(fieldMake)
		meta.Model = embedded.get(fieldModel)
		meta.DateTimeOriginal = embeddedDate(embedded, fieldDateTimeOriginal, loc)
		meta.CreateDate = embeddedDate(embedded, fieldCreateDate, loc)
		meta.ModifyDate = embeddedDate(embedded, fieldModifyDate, loc)

		if field, pattern, found := findEditingSignature(v.rules, embedded); found {
			v.logger.Debug("editing software signature",
				zap.String("field", field),
				zap.String("pattern", pattern))
			causes = append(causes, CauseEditingSoftware)
		}
	}

	for _, captured := range []*time.Time{meta.DateTimeOriginal, meta.CreateDate, meta.ModifyDate} {
		if captured == nil {
			continue
		}
		meta.DateOfCapture = captured
		if !sameDay(*captured, now) {
			causes = append(causes, CauseCaptureDateMismatch)
		}
		return causes
	}

	if !file.LastModified.IsZero() {
		lastModified := file.LastModified
		meta.DateOfCapture = &lastModified
	}
	if !sameDay(file.LastModified, now) {
		causes = append(causes, CauseCaptureDateMismatch)
	}
	return causes
}

// embeddedDate returns the first value of field that parses as a date.
func embeddedDate(m *embeddedMetadata, field string, loc *time.Location) *time.Time {
	for _, tag := range m.tags {
		if tag.Name != field {
			continue
		}
		if t, ok := parseMetadataDate(tag.Value, loc); ok {
			return &t
		}
	}
	return nil
}

// findEditingSignature checks the priority fields first and then every other
// string of reasonable length.
func findEditingSignature(r *Rules, m *embeddedMetadata) (field, pattern string, found bool) {
	for _, name := range priorityFields {
		if value := m.get(name); value != "" {
			if p, ok := r.EditingSoftware(value); ok {
				return name, p, true
			}
		}
	}
	for _, tag := range m.tags {
		if len(tag.Value) < minScannedStringLen || len(tag.Value) > maxScannedStringLen {
			continue
		}
		if p, ok := r.EditingSoftware(tag.Value); ok {
			return tag.Name, p, true
		}
	}
	return "", "", false
}
