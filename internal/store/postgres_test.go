package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omjikush09/aggroso/internal/store"
)

// newPostgresStore connects to SPECGEN_TEST_POSTGRES_DSN and truncates the
// tables so every subtest starts clean. Skips when the variable is unset.
func newPostgresStore(t *testing.T) store.Store {
	t.Helper()
	dsn := os.Getenv("SPECGEN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SPECGEN_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := store.NewPostgres(ctx, dsn)
	require.NoError(t, err, "NewPostgres")
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Truncate(ctx), "truncate")
	return s
}

func TestPostgresStore_Contract(t *testing.T) {
	if os.Getenv("SPECGEN_TEST_POSTGRES_DSN") == "" {
		t.Skip("SPECGEN_TEST_POSTGRES_DSN not set")
	}
	runStoreContract(t, newPostgresStore)
}

func TestPostgresStore_EnsureSchemaIdempotent(t *testing.T) {
	s := newPostgresStore(t).(*store.PostgresStore)
	for range 2 {
		require.NoError(t, s.EnsureSchema(context.Background()))
	}
}
