package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/config"
	"github.com/mcmanager/milkledger/internal/repository/docstore"
)

// Repository stores documents in one MongoDB collection. Revisions live in
// the _rev field and every replace is filtered on the revision it read, so a
// concurrent writer surfaces as docstore.ErrConflict.
type Repository struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

var _ docstore.Store = (*Repository)(nil)

// NewRepository connects to MongoDB and verifies the connection.
func NewRepository(ctx context.Context, cfg config.MongoDBConfig, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(cfg.URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return newRepository(client.Database(cfg.DBName).Collection(cfg.Collection), logger), nil
}

func newRepository(coll *mongo.Collection, logger *zap.Logger) *Repository {
	return &Repository{client: coll.Database().Client(), coll: coll, logger: logger}
}

// Get implements docstore.Store.
func (r *Repository) Get(ctx context.Context, id string, doc docstore.Document) error {
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("get document %s: %w", id, docstore.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get document %s: %w", id, err)
	}
	return nil
}

// Put implements docstore.Store.
func (r *Repository) Put(ctx context.Context, doc docstore.Document) (string, error) {
	meta := doc.Metadata()
	if meta.ID == "" {
		return "", errors.New("put document: id must not be empty")
	}

	prevRev := meta.Rev
	meta.Rev = docstore.NextRev(prevRev)

	if err := r.write(ctx, meta.ID, prevRev, doc); err != nil {
		meta.Rev = prevRev
		return "", err
	}

	r.logger.Debug("document saved", zap.String("id", meta.ID), zap.String("rev", meta.Rev))
	return meta.Rev, nil
}

func (r *Repository) write(ctx context.Context, id, prevRev string, doc docstore.Document) error {
	if prevRev == "" {
		_, err := r.coll.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert document %s: %w", id, docstore.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert document %s: %w", id, err)
		}
		return nil
	}

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id, "_rev": prevRev}, doc)
	if err != nil {
		return fmt.Errorf("replace document %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("replace document %s at rev %q: %w", id, prevRev, docstore.ErrConflict)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
