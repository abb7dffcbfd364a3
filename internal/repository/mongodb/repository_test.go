package mongodb

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/repository/docstore"
)

type sample struct {
	docstore.Meta `bson:",inline"`
	Value         int `bson:"value"`
}

func TestRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("get missing document", func(mt *mtest.T) {
		repo := newRepository(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mcm.documents", mtest.FirstBatch))

		err := repo.Get(ctx, "MCM_CUSTOMERS", &sample{})
		assert.ErrorIs(mt, err, docstore.ErrNotFound)
	})

	mt.Run("get decodes revision", func(mt *mtest.T) {
		repo := newRepository(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mcm.documents", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "MCM_CUSTOMERS"},
			{Key: "_rev", Value: "2-abc"},
			{Key: "value", Value: 7},
		}))

		var got sample
		require.NoError(mt, repo.Get(ctx, "MCM_CUSTOMERS", &got))
		assert.Equal(mt, "2-abc", got.Rev)
		assert.Equal(mt, 7, got.Value)
	})

	mt.Run("insert assigns first revision", func(mt *mtest.T) {
		repo := newRepository(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		doc := &sample{Meta: docstore.Meta{ID: "20250101_LEDGER"}, Value: 1}
		rev, err := repo.Put(ctx, doc)
		require.NoError(mt, err)
		assert.True(mt, strings.HasPrefix(rev, "1-"))
		assert.Equal(mt, rev, doc.Rev)
	})

	mt.Run("duplicate insert conflicts", func(mt *mtest.T) {
		repo := newRepository(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key error",
		}))

		doc := &sample{Meta: docstore.Meta{ID: "20250101_LEDGER"}}
		_, err := repo.Put(ctx, doc)
		assert.ErrorIs(mt, err, docstore.ErrConflict)
		assert.Empty(mt, doc.Rev)
	})

	mt.Run("stale replace conflicts", func(mt *mtest.T) {
		repo := newRepository(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		doc := &sample{Meta: docstore.Meta{ID: "20250101_LEDGER", Rev: "1-old"}}
		_, err := repo.Put(ctx, doc)
		assert.ErrorIs(mt, err, docstore.ErrConflict)
		assert.Equal(mt, "1-old", doc.Rev)
	})

	mt.Run("replace bumps generation", func(mt *mtest.T) {
		repo := newRepository(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		doc := &sample{Meta: docstore.Meta{ID: "20250101_LEDGER", Rev: "1-old"}}
		rev, err := repo.Put(ctx, doc)
		require.NoError(mt, err)
		assert.True(mt, strings.HasPrefix(rev, "2-"))
	})
}
