// internal/database/indexes.go
package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	m.logger.Debug("Creating database indexes")

	collection := m.GetCollection(VerificationsCollection)
	names, err := collection.Indexes().CreateMany(ctx, verificationIndexes())
	if err != nil {
		return err
	}

	m.logger.Info("Database indexes created",
		zap.String("collection", VerificationsCollection),
		zap.Strings("indexes", names))
	return nil
}

func verificationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "submission_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "review_status", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
}
