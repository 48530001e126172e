package postgres

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rbright/mindwell/internal/analysis"
)

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(Migrations(), "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	raw, err := fs.ReadFile(Migrations(), files[0])
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), "-- +goose Up"))
	require.True(t, strings.Contains(string(raw), "CREATE TABLE IF NOT EXISTS screenings"))
}

func TestOpenRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestStoreAgainstDatabase(t *testing.T) {
	databaseURL := os.Getenv("MINDWELL_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("MINDWELL_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, err := Open(ctx, databaseURL)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(ctx))

	record := analysis.Screening{
		ID:         uuid.NewString(),
		Summary:    "postgres summary",
		Score:      7.5,
		Validation: "moderate",
		Analyzer:   "keyword",
		Source:     analysis.DefaultSource,
		CreatedAt:  time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond),
	}
	require.NoError(t, store.Save(ctx, record))
	require.ErrorIs(t, store.Save(ctx, record), ErrDuplicate)

	listed, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, record.ID, listed[0].ID)
	require.Equal(t, record.Score, listed[0].Score)
}
