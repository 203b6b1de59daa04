package repository

import (
	"context"
	"net/http"
	"testing"
	"time"

	"intesters-backend/internal/models"
	"intesters-backend/internal/verification"
	apperrors "intesters-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func namespace(mt *mtest.T) string {
	return mt.DB.Name() + "." + mt.Coll.Name()
}

func TestVerificationRepository_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns id and defaults", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		record := &models.VerificationRecord{SubmissionID: "sub-1", UserID: "tester-1"}
		require.NoError(mt, repo.Create(context.Background(), record))

		assert.False(mt, record.ID.IsZero())
		assert.False(mt, record.CreatedAt.IsZero())
		assert.Equal(mt, []verification.Cause{}, record.Causes)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "insert", started.CommandName)
	})

	mt.Run("duplicate submission is a conflict", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: intesters.verifications index: submission_id_1",
		}))

		err := repo.Create(context.Background(), &models.VerificationRecord{SubmissionID: "sub-1"})
		require.Error(mt, err)
		assert.True(mt, apperrors.IsErrorType(err, apperrors.ErrConflict))
		assert.Equal(mt, http.StatusConflict, apperrors.GetStatusCode(err))
	})

	mt.Run("other write errors pass through", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 2, Message: "bad value"}))

		err := repo.Create(context.Background(), &models.VerificationRecord{SubmissionID: "sub-2"})
		require.Error(mt, err)
		assert.False(mt, apperrors.IsErrorType(err, apperrors.ErrConflict))
	})
}

func TestVerificationRepository_Lookup(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("by id", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "submission_id", Value: "sub-1"},
			{Key: "user_id", Value: "tester-1"},
			{Key: "is_valid", Value: false},
			{Key: "causes", Value: bson.A{"file_too_small", "capture_date_mismatch"}},
			{Key: "review_status", Value: "pending"},
		}))

		record, err := repo.GetByID(context.Background(), id)
		require.NoError(mt, err)
		assert.Equal(mt, id, record.ID)
		assert.Equal(mt, "sub-1", record.SubmissionID)
		assert.Equal(mt, []verification.Cause{verification.CauseFileTooSmall, verification.CauseCaptureDateMismatch}, record.Causes)
		assert.Equal(mt, models.ReviewPending, record.ReviewStatus)
	})

	mt.Run("missing submission is not found", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		record, err := repo.GetBySubmissionID(context.Background(), "nope")
		assert.Nil(mt, record)
		assert.True(mt, apperrors.IsErrorType(err, apperrors.ErrNotFound))
		assert.Equal(mt, http.StatusNotFound, apperrors.GetStatusCode(err))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "nope", started.Command.Lookup("filter", "submission_id").StringValue())
	})

	mt.Run("server errors are not masked", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Name: "Unauthorized", Message: "not authorized"}))

		_, err := repo.GetByID(context.Background(), primitive.NewObjectID())
		require.Error(mt, err)
		assert.False(mt, apperrors.IsErrorType(err, apperrors.ErrNotFound))
	})
}

func TestVerificationRepository_List(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes every record", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "submission_id", Value: "sub-2"}, {Key: "user_id", Value: "tester-1"}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "submission_id", Value: "sub-1"}, {Key: "user_id", Value: "tester-1"}},
		))

		records, err := repo.List(context.Background(), models.VerificationFilter{UserID: "tester-1"}, 10, 5)
		require.NoError(mt, err)
		require.Len(mt, records, 2)
		assert.Equal(mt, "sub-2", records[0].SubmissionID)
		assert.Equal(mt, "sub-1", records[1].SubmissionID)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "tester-1", started.Command.Lookup("filter", "user_id").StringValue())
		assert.Equal(mt, int64(-1), started.Command.Lookup("sort", "created_at").AsInt64())
	})

	mt.Run("empty result is an empty slice", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		records, err := repo.List(context.Background(), models.VerificationFilter{}, 50, 0)
		require.NoError(mt, err)
		assert.NotNil(mt, records)
		assert.Empty(mt, records)
	})
}

func TestVerificationRepository_UpdateReview(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	reviewedAt := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

	mt.Run("returns the updated record", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "submission_id", Value: "sub-1"},
			{Key: "review_status", Value: "approved"},
			{Key: "reviewed_by", Value: "mod@intesters.app"},
			{Key: "review_note", Value: "looks genuine"},
			{Key: "reviewed_at", Value: reviewedAt},
		}}))

		record, err := repo.UpdateReview(context.Background(), id, models.ReviewApproved, "mod@intesters.app", "looks genuine", reviewedAt)
		require.NoError(mt, err)
		assert.Equal(mt, models.ReviewApproved, record.ReviewStatus)
		assert.Equal(mt, "mod@intesters.app", record.ReviewedBy)
		require.NotNil(mt, record.ReviewedAt)
		assert.True(mt, reviewedAt.Equal(*record.ReviewedAt))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "findAndModify", started.CommandName)
		assert.True(mt, started.Command.Lookup("new").Boolean())
		assert.Equal(mt, "approved", started.Command.Lookup("update", "$set", "review_status").StringValue())
	})

	mt.Run("unknown record is not found", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		record, err := repo.UpdateReview(context.Background(), primitive.NewObjectID(), models.ReviewRejected, "mod", "", reviewedAt)
		assert.Nil(mt, record)
		assert.True(mt, apperrors.IsErrorType(err, apperrors.ErrNotFound))
	})
}

func TestVerificationRepository_GetStats(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes facets", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "totals", Value: bson.A{bson.D{
				{Key: "_id", Value: nil},
				{Key: "total", Value: int32(5)},
				{Key: "valid", Value: int32(2)},
				{Key: "invalid", Value: int32(3)},
				{Key: "pending", Value: int32(4)},
				{Key: "approved", Value: int32(1)},
				{Key: "rejected", Value: int32(0)},
			}}},
			{Key: "causes", Value: bson.A{
				bson.D{{Key: "_id", Value: "file_too_small"}, {Key: "count", Value: int32(2)}},
				bson.D{{Key: "_id", Value: "suspicious_filename"}, {Key: "count", Value: int32(1)}},
			}},
		}))

		stats, err := repo.GetStats(context.Background(), nil, nil)
		require.NoError(mt, err)
		assert.Equal(mt, &models.VerificationStats{
			Total:    5,
			Valid:    2,
			Invalid:  3,
			Pending:  4,
			Approved: 1,
			Rejected: 0,
			Causes: []models.CauseCount{
				{Cause: verification.CauseFileTooSmall, Count: 2},
				{Cause: verification.CauseSuspiciousFilename, Count: 1},
			},
		}, stats)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "aggregate", started.CommandName)
	})

	mt.Run("empty collection", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "totals", Value: bson.A{}},
			{Key: "causes", Value: bson.A{}},
		}))

		stats, err := repo.GetStats(context.Background(), nil, nil)
		require.NoError(mt, err)
		assert.Equal(mt, &models.VerificationStats{Causes: []models.CauseCount{}}, stats)
	})

	mt.Run("aggregate failure", func(mt *mtest.T) {
		repo := NewVerificationRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 16, Name: "InvalidLength", Message: "bad pipeline"}))

		_, err := repo.GetStats(context.Background(), nil, nil)
		assert.Error(mt, err)
	})
}
