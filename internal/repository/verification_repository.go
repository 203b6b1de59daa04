// internal/repository/verification_repository.go
package repository

import (
	"context"
	"errors"
	"net/http"
	"time"

	"intesters-backend/internal/models"
	"intesters-backend/internal/verification"
	apperrors "intesters-backend/pkg/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type verificationRepository struct {
	collection *mongo.Collection
}

func NewVerificationRepository(collection *mongo.Collection) VerificationRepository {
	return &verificationRepository{
		collection: collection,
	}
}

func (r *verificationRepository) Create(ctx context.Context, record *models.VerificationRecord) error {
	record.ID = primitive.NewObjectID()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.Causes == nil {
		record.Causes = []verification.Cause{}
	}

	_, err := r.collection.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.NewAppError(apperrors.ErrConflict, http.StatusConflict, "submission already recorded")
	}
	return err
}

func (r *verificationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.VerificationRecord, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *verificationRepository) GetBySubmissionID(ctx context.Context, submissionID string) (*models.VerificationRecord, error) {
	return r.findOne(ctx, bson.M{"submission_id": submissionID})
}

func (r *verificationRepository) findOne(ctx context.Context, filter bson.M) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	err := r.collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFoundError("verification")
		}
		return nil, err
	}
	return &record, nil
}

func (r *verificationRepository) List(ctx context.Context, filter models.VerificationFilter, limit, skip int) ([]models.VerificationRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(skip))

	cursor, err := r.collection.Find(ctx, buildListFilter(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.VerificationRecord{}
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	return records, nil
}

func (r *verificationRepository) UpdateReview(ctx context.Context, id primitive.ObjectID, status models.ReviewStatus, reviewer, note string, reviewedAt time.Time) (*models.VerificationRecord, error) {
	update := bson.M{
		"$set": bson.M{
			"review_status": status,
			"reviewed_by":   reviewer,
			"review_note":   note,
			"reviewed_at":   reviewedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var record models.VerificationRecord
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFoundError("verification")
		}
		return nil, err
	}
	return &record, nil
}

func (r *verificationRepository) GetStats(ctx context.Context, from, to *time.Time) (*models.VerificationStats, error) {
	cursor, err := r.collection.Aggregate(ctx, statsPipeline(from, to))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var facets []struct {
		Totals []models.VerificationStats `bson:"totals"`
		Causes []models.CauseCount        `bson:"causes"`
	}
	if err = cursor.All(ctx, &facets); err != nil {
		return nil, err
	}

	stats := &models.VerificationStats{Causes: []models.CauseCount{}}
	if len(facets) == 0 {
		return stats, nil
	}
	if len(facets[0].Totals) > 0 {
		*stats = facets[0].Totals[0]
	}
	stats.Causes = facets[0].Causes
	if stats.Causes == nil {
		stats.Causes = []models.CauseCount{}
	}
	return stats, nil
}

func buildListFilter(f models.VerificationFilter) bson.M {
	filter := buildDateFilter(f.From, f.To)
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.IsValid != nil {
		filter["is_valid"] = *f.IsValid
	}
	if f.ReviewStatus != "" {
		filter["review_status"] = f.ReviewStatus
	}
	return filter
}

func buildDateFilter(from, to *time.Time) bson.M {
	filter := bson.M{}

	if from != nil || to != nil {
		dateFilter := bson.M{}
		if from != nil {
			dateFilter["$gte"] = *from
		}
		if to != nil {
			dateFilter["$lte"] = *to
		}
		filter["created_at"] = dateFilter
	}

	return filter
}

func countIf(cond interface{}) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{cond, 1, 0}}}
}

func statusIs(status models.ReviewStatus) bson.M {
	return bson.M{"$eq": bson.A{"$review_status", status}}
}

func statsPipeline(from, to *time.Time) []bson.M {
	return []bson.M{
		{
			"$match": buildDateFilter(from, to),
		},
		{
			"$facet": bson.M{
				"totals": bson.A{
					bson.M{
						"$group": bson.M{
							"_id":      nil,
							"total":    bson.M{"$sum": 1},
							"valid":    countIf("$is_valid"),
							"invalid":  countIf(bson.M{"$not": bson.A{"$is_valid"}}),
							"pending":  countIf(statusIs(models.ReviewPending)),
							"approved": countIf(statusIs(models.ReviewApproved)),
							"rejected": countIf(statusIs(models.ReviewRejected)),
						},
					},
				},
				"causes": bson.A{
					bson.M{"$unwind": "$causes"},
					bson.M{"$group": bson.M{"_id": "$causes", "count": bson.M{"$sum": 1}}},
					bson.M{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}},
				},
			},
		},
	}
}
