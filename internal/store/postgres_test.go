package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DB_SOURCE")
	if dsn == "" {
		t.Skip("TEST_DB_SOURCE not set")
	}

	runContract(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := NewPostgres(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close(ctx) })

		require.NoError(t, s.Migrate(ctx))
		_, err = s.Db.Exec(ctx, "TRUNCATE TABLE borrows, books, categories")
		require.NoError(t, err)
		return s
	})
}
