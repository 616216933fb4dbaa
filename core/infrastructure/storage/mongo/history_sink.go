// Package mongo mirrors query history into a MongoDB collection.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
	"github.com/dataask/dataask/core/logger"
)

const (
	DefaultDatabase   = "dataask"
	DefaultCollection = "query_history"
)

// Config selects the target collection.
type Config struct {
	URI        string `yaml:"mongo_uri"`
	Database   string `yaml:"mongo_database"`
	Collection string `yaml:"mongo_collection"`
}

// HistorySink implements interfaces.HistorySink.
type HistorySink struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        logger.Logger
}

var _ interfaces.HistorySink = (*HistorySink)(nil)

// NewHistorySink connects to cfg.URI and pings the primary.
func NewHistorySink(ctx context.Context, cfg Config) (*HistorySink, error) {
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	log := logger.New("history:mongo")
	log.Debugf("Opening MongoDB connection")

	client, err := mongo.Connect(mongoOptions.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(pingCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "executed_at", Value: -1}},
	})
	if err != nil {
		log.Warnf("Failed to create history index: %v", err)
	}

	log.Debugf("MongoDB history sink ready (%s.%s)", cfg.Database, cfg.Collection)
	return &HistorySink{client: client, collection: coll, log: log}, nil
}

// Record inserts a copy of h.
func (s *HistorySink) Record(ctx context.Context, h *domain.QueryHistory) error {
	if _, err := s.collection.InsertOne(ctx, h); err != nil {
		return fmt.Errorf("failed to mirror history %s: %w", h.ID, err)
	}
	return nil
}

// Close disconnects the client.
func (s *HistorySink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
