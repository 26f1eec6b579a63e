package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/punchamoorthee/libraryops/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestMongoStore(t *testing.T) {
	url := os.Getenv("TEST_MONGODB_URL")
	if url == "" {
		t.Skip("TEST_MONGODB_URL not set")
	}

	runContract(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := NewMongo(ctx, MongoConfig{
			ConnectionURL:  url,
			Database:       fmt.Sprintf("libraryops_test_%d", time.Now().UnixNano()),
			ConnectTimeout: 5 * time.Second,
			MaxPoolSize:    20,
			RetryAttempts:  1,
		})
		require.NoError(t, err)
		require.NoError(t, s.EnsureIndexes(ctx))
		t.Cleanup(func() {
			_ = s.books.Database().Drop(ctx)
			_ = s.Close(ctx)
		})
		return s
	})
}

func TestParseObjectIDRejectsMalformedID(t *testing.T) {
	_, err := parseObjectID("not-an-object-id")
	assert.ErrorIs(t, err, domain.ErrValidation)

	oid, err := parseObjectID("65a1f0c2e4b0a1b2c3d4e5f6")
	require.NoError(t, err)
	assert.Equal(t, "65a1f0c2e4b0a1b2c3d4e5f6", oid.Hex())
}

func TestUpsertStageKeepsDollarPrefixedText(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	in := domain.BookInput{
		Title:       "$$REMOVE",
		Author:      "$quantity",
		Category:    "Fiction",
		Description: "$20 gift edition",
		Quantity:    2,
	}

	pipeline := upsertStage(in, now)
	require.Len(t, pipeline, 1)
	require.Equal(t, "$set", pipeline[0][0].Key)
	set, ok := pipeline[0][0].Value.(bson.M)
	require.True(t, ok)

	assert.Equal(t, bson.M{"$literal": "$$REMOVE"}, set["title"])
	assert.Equal(t, bson.M{"$literal": "$quantity"}, set["author"])
	assert.Equal(t, bson.M{"$literal": "$20 gift edition"}, set["description"])
	assert.Equal(t, bson.M{"$literal": "Fiction"}, set["category"])
	assert.Equal(t, 2, set["quantity"])
}
