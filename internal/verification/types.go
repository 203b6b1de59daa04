// internal/verification/types.go
package verification

import "time"

// Generic failure surfaced to submitters regardless of which check failed.
const (
	CodeVerificationFailed = "VERIFICATION_FAILED"
	failedMessage          = "Screenshot verification failed"
	failedDetails          = "Please take a fresh screenshot directly from your device and try again."
)

// Cause identifies which internal check rejected an image. Causes are kept for
// audit logs only and must never be shown to the submitter.
type Cause string

const (
	CauseFileTooSmall         Cause = "file_too_small"
	CauseSuspiciousFilename   Cause = "suspicious_filename"
	CauseFilenameDateMismatch Cause = "filename_date_mismatch"
	CauseInvalidDimensions    Cause = "invalid_dimensions"
	CauseEditingSoftware      Cause = "editing_software_detected"
	CauseCaptureDateMismatch  Cause = "capture_date_mismatch"
)

// SubmittedImage is an uploaded file as received from the client.
type SubmittedImage struct {
	Bytes        []byte
	Filename     string
	SizeBytes    int64
	LastModified time.Time // client supplied, untrusted
}

// ImageMetadata is everything the verifier could extract from the image.
type ImageMetadata struct {
	Width               *int       `json:"width,omitempty" bson:"width,omitempty"`
	Height              *int       `json:"height,omitempty" bson:"height,omitempty"`
	Format              string     `json:"format,omitempty" bson:"format,omitempty"`
	Software            string     `json:"software,omitempty" bson:"software,omitempty"`
	Make                string     `json:"make,omitempty" bson:"make,omitempty"`
	Model               string     `json:"model,omitempty" bson:"model,omitempty"`
	DateTimeOriginal    *time.Time `json:"date_time_original,omitempty" bson:"date_time_original,omitempty"`
	CreateDate          *time.Time `json:"create_date,omitempty" bson:"create_date,omitempty"`
	ModifyDate          *time.Time `json:"modify_date,omitempty" bson:"modify_date,omitempty"`
	DateOfCapture       *time.Time `json:"date_of_capture,omitempty" bson:"date_of_capture,omitempty"`
	HasEmbeddedMetadata bool       `json:"has_embedded_metadata" bson:"has_embedded_metadata"`
}

// VerificationError is the user-facing description of a failed verification.
type VerificationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// VerificationResult is the outcome of one Verify call.
type VerificationResult struct {
	IsValid  bool                `json:"is_valid"`
	Errors   []VerificationError `json:"errors"`
	Metadata ImageMetadata       `json:"metadata"`
	// Causes lists every check that failed, in check order.
	Causes []Cause `json:"causes,omitempty"`
}

func genericError() VerificationError {
	return VerificationError{
		Code:    CodeVerificationFailed,
		Message: failedMessage,
		Details: failedDetails,
	}
}
