// internal/services/submission_service.go
package services

import (
	"context"
	"net/http"
	"time"

	"intesters-backend/internal/models"
	"intesters-backend/internal/repository"
	"intesters-backend/internal/storage"
	"intesters-backend/internal/verification"
	apperrors "intesters-backend/pkg/errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// ScreenshotVerifier is satisfied by *verification.Verifier.
type ScreenshotVerifier interface {
	Verify(file verification.SubmittedImage) verification.VerificationResult
}

// Submission is one uploaded screenshot together with who sent it.
type Submission struct {
	UserID       string
	Email        string
	Filename     string
	ContentType  string
	Data         []byte
	LastModified time.Time
	RequestID    string
	IPAddress    string
	UserAgent    string
}

type SubmissionOutcome struct {
	SubmissionID string
	Result       verification.VerificationResult
	Record       *models.VerificationRecord
}

type SubmissionService interface {
	Submit(ctx context.Context, sub Submission) (*SubmissionOutcome, error)
	ListRecords(ctx context.Context, filter models.VerificationFilter, limit, skip int) ([]models.VerificationRecord, models.Pagination, error)
	GetRecord(ctx context.Context, id string) (*models.VerificationDetailResponse, error)
	Review(ctx context.Context, id, reviewer string, req models.ReviewRequest) (*models.VerificationRecord, error)
	Stats(ctx context.Context, from, to *time.Time) (*models.VerificationStats, error)
}

type submissionService struct {
	verifier   ScreenshotVerifier
	repo       repository.VerificationRepository
	store      storage.ProofStore
	presignTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewSubmissionService wires the verifier to the audit trail. store may be
// nil, in which case accepted screenshots are not kept.
func NewSubmissionService(verifier ScreenshotVerifier, repo repository.VerificationRepository, store storage.ProofStore, presignTTL time.Duration, logger *zap.Logger) SubmissionService {
	return &submissionService{
		verifier:   verifier,
		repo:       repo,
		store:      store,
		presignTTL: presignTTL,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, sub Submission) (*SubmissionOutcome, error) {
	start := s.now()

	result := s.verifier.Verify(verification.SubmittedImage{
		Bytes:        sub.Data,
		Filename:     sub.Filename,
		SizeBytes:    int64(len(sub.Data)),
		LastModified: sub.LastModified,
	})

	id := uuid.New()
	record := &models.VerificationRecord{
		SubmissionID: id.String(),
		UserID:       sub.UserID,
		Email:        sub.Email,
		Filename:     sub.Filename,
		SizeBytes:    int64(len(sub.Data)),
		ContentType:  contentType(sub.ContentType, result.Metadata.Format),
		IsValid:      result.IsValid,
		Causes:       result.Causes,
		Metadata:     result.Metadata,
		ReviewStatus: models.ReviewPending,
		RequestID:    sub.RequestID,
		IPAddress:    sub.IPAddress,
		UserAgent:    sub.UserAgent,
		CreatedAt:    start,
	}
	if !sub.LastModified.IsZero() {
		lastModified := sub.LastModified
		record.LastModified = &lastModified
	}

	if result.IsValid && s.store != nil {
		key := storage.ProofKey(start, id, sub.Filename)
		if err := s.store.Put(ctx, key, sub.Data, record.ContentType); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrStorage, http.StatusInternalServerError, "failed to store screenshot")
		}
		record.ProofKey = key
	}

	record.ProcessTime = s.now().Sub(start).Milliseconds()
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, apperrors.NewInternalError(err, "failed to record verification")
	}

	s.logger.Info("Screenshot verified",
		zap.String("submission_id", record.SubmissionID),
		zap.String("user_id", sub.UserID),
		zap.String("filename", sub.Filename),
		zap.Int64("size_bytes", record.SizeBytes),
		zap.Bool("is_valid", result.IsValid),
		zap.Any("causes", result.Causes),
		zap.Any("metadata", result.Metadata),
		zap.String("proof_key", record.ProofKey),
		zap.Int64("process_time_ms", record.ProcessTime))

	return &SubmissionOutcome{
		SubmissionID: record.SubmissionID,
		Result:       result,
		Record:       record,
	}, nil
}

func (s *submissionService) ListRecords(ctx context.Context, filter models.VerificationFilter, limit, skip int) ([]models.VerificationRecord, models.Pagination, error) {
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if limit < 1 {
		limit = defaultListLimit
	}
	if skip < 0 {
		skip = 0
	}
	page := models.Pagination{Limit: limit, Skip: skip}

	if filter.ReviewStatus != "" && !filter.ReviewStatus.Valid() {
		return nil, page, apperrors.NewValidationError("unknown review status: " + string(filter.ReviewStatus))
	}

	records, err := s.repo.List(ctx, filter, limit, skip)
	if err != nil {
		return nil, page, apperrors.NewInternalError(err, "failed to list verifications")
	}
	return records, page, nil
}

func (s *submissionService) GetRecord(ctx context.Context, id string) (*models.VerificationDetailResponse, error) {
	record, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.VerificationDetailResponse{Record: record}
	if record.ProofKey != "" && s.store != nil {
		url, err := s.store.PresignGet(ctx, record.ProofKey, s.presignTTL)
		if err != nil {
			s.logger.Warn("Failed to presign proof URL",
				zap.String("proof_key", record.ProofKey),
				zap.Error(err))
		} else {
			detail.ProofURL = url
		}
	}
	return detail, nil
}

func (s *submissionService) Review(ctx context.Context, id, reviewer string, req models.ReviewRequest) (*models.VerificationRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	record, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateReview(ctx, record.ID, req.Decision, reviewer, req.Note, s.now())
	if err != nil {
		if apperrors.GetErrorType(err) != "" {
			return nil, err
		}
		return nil, apperrors.NewInternalError(err, "failed to update review")
	}

	s.logger.Info("Verification reviewed",
		zap.String("submission_id", updated.SubmissionID),
		zap.String("reviewer", reviewer),
		zap.String("decision", string(req.Decision)),
		zap.Bool("is_valid", updated.IsValid))
	return updated, nil
}

func (s *submissionService) Stats(ctx context.Context, from, to *time.Time) (*models.VerificationStats, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, apperrors.NewValidationError("to must not be before from")
	}
	stats, err := s.repo.GetStats(ctx, from, to)
	if err != nil {
		return nil, apperrors.NewInternalError(err, "failed to aggregate verifications")
	}
	return stats, nil
}

// lookup accepts either the Mongo ObjectID or the submission UUID.
func (s *submissionService) lookup(ctx context.Context, id string) (*models.VerificationRecord, error) {
	var (
		record *models.VerificationRecord
		err    error
	)
	if oid, parseErr := primitive.ObjectIDFromHex(id); parseErr == nil {
		record, err = s.repo.GetByID(ctx, oid)
	} else if _, parseErr := uuid.Parse(id); parseErr == nil {
		record, err = s.repo.GetBySubmissionID(ctx, id)
	} else {
		return nil, apperrors.NewValidationError("invalid verification id")
	}

	if err != nil {
		if apperrors.GetErrorType(err) != "" {
			return nil, err
		}
		return nil, apperrors.NewInternalError(err, "failed to load verification")
	}
	return record, nil
}

// contentType prefers what the decoder recognised over the client header.
func contentType(declared, format string) string {
	if format != "" {
		return "image/" + format
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}
