// internal/repository/interfaces.go
package repository

import (
	"context"
	"time"

	"intesters-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type VerificationRepository interface {
	Create(ctx context.Context, record *models.VerificationRecord) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.VerificationRecord, error)
	GetBySubmissionID(ctx context.Context, submissionID string) (*models.VerificationRecord, error)
	List(ctx context.Context, filter models.VerificationFilter, limit, skip int) ([]models.VerificationRecord, error)
	UpdateReview(ctx context.Context, id primitive.ObjectID, status models.ReviewStatus, reviewer, note string, reviewedAt time.Time) (*models.VerificationRecord, error)
	GetStats(ctx context.Context, from, to *time.Time) (*models.VerificationStats, error)
}
