// internal/models/verification.go
package models

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"intesters-backend/internal/verification"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	}
	return false
}

// VerificationRecord is the audit trail of a single screenshot submission.
type VerificationRecord struct {
	ID           primitive.ObjectID         `bson:"_id,omitempty" json:"id"`
	SubmissionID string                     `bson:"submission_id" json:"submission_id"`
	UserID       string                     `bson:"user_id" json:"user_id"`
	Email        string                     `bson:"email,omitempty" json:"email,omitempty"`
	Filename     string                     `bson:"filename" json:"filename"`
	SizeBytes    int64                      `bson:"size_bytes" json:"size_bytes"`
	ContentType  string                     `bson:"content_type,omitempty" json:"content_type,omitempty"`
	LastModified *time.Time                 `bson:"last_modified,omitempty" json:"last_modified,omitempty"`
	IsValid      bool                       `bson:"is_valid" json:"is_valid"`
	Causes       []verification.Cause       `bson:"causes" json:"causes"`
	Metadata     verification.ImageMetadata `bson:"metadata" json:"metadata"`
	ProofKey     string                     `bson:"proof_key,omitempty" json:"proof_key,omitempty"`
	ReviewStatus ReviewStatus               `bson:"review_status" json:"review_status"`
	ReviewedBy   string                     `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	ReviewNote   string                     `bson:"review_note,omitempty" json:"review_note,omitempty"`
	ReviewedAt   *time.Time                 `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	RequestID    string                     `bson:"request_id,omitempty" json:"request_id,omitempty"`
	IPAddress    string                     `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent    string                     `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	ProcessTime  int64                      `bson:"process_time_ms" json:"process_time_ms"`
	CreatedAt    time.Time                  `bson:"created_at" json:"created_at"`
}

// VerificationFilter narrows admin listings. Nil and empty fields match everything.
type VerificationFilter struct {
	UserID       string
	IsValid      *bool
	ReviewStatus ReviewStatus
	From         *time.Time
	To           *time.Time
}

// VerificationStats is the aggregate over a date range.
type VerificationStats struct {
	Total    int          `bson:"total" json:"total"`
	Valid    int          `bson:"valid" json:"valid"`
	Invalid  int          `bson:"invalid" json:"invalid"`
	Pending  int          `bson:"pending" json:"pending"`
	Approved int          `bson:"approved" json:"approved"`
	Rejected int          `bson:"rejected" json:"rejected"`
	Causes   []CauseCount `bson:"causes" json:"causes"`
}

type CauseCount struct {
	Cause verification.Cause `bson:"_id" json:"cause"`
	Count int                `bson:"count" json:"count"`
}

// VerifyScreenshotResponse is what a tester sees. Causes and metadata stay
// in the audit record.
type VerifyScreenshotResponse struct {
	SubmissionID string                           `json:"submission_id"`
	IsValid      bool                             `json:"is_valid"`
	Errors       []verification.VerificationError `json:"errors"`
}

type VerificationDetailResponse struct {
	Record   *VerificationRecord `json:"record"`
	ProofURL string              `json:"proof_url,omitempty"`
}

type VerificationListResponse struct {
	Records    []VerificationRecord `json:"records"`
	Total      int                  `json:"total_records"`
	Pagination Pagination           `json:"pagination"`
}

type Pagination struct {
	Limit int `json:"limit"`
	Skip  int `json:"skip"`
}

type ReviewRequest struct {
	Decision ReviewStatus `json:"decision"`
	Note     string       `json:"note,omitempty"`
}

func (r *ReviewRequest) Validate() error {
	if r.Decision != ReviewApproved && r.Decision != ReviewRejected {
		return errors.New("decision must be approved or rejected")
	}
	if len(r.Note) > 1000 {
		return errors.New("note must be at most 1000 characters")
	}
	return nil
}

// Bind lets render.Bind decode and validate the request in one step.
func (r *ReviewRequest) Bind(_ *http.Request) error {
	r.Decision = ReviewStatus(strings.ToLower(strings.TrimSpace(string(r.Decision))))
	r.Note = strings.TrimSpace(r.Note)
	return r.Validate()
}
