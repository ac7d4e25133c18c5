package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) Store {
	t.Helper()

	log, _ := test.NewNullLogger()
	st := NewSQLiteStore(log, filepath.Join(t.TempDir(), "specviewer.db"))

	ctx := context.Background()
	require.NoError(t, st.Start(ctx))
	t.Cleanup(func() { _ = st.Stop() })

	require.NoError(t, st.Migrate(ctx))

	return st
}

func TestSQLiteMigrateIsRepeatable(t *testing.T) {
	st := newTestSQLiteStore(t)

	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

func TestSQLiteDemoCRUD(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, st.UpsertDemo(ctx, &Demo{
		Value: "https://x.io/b.yaml", Label: "B", Position: 1, InConfig: true,
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, st.UpsertDemo(ctx, &Demo{
		Value: "openapi-3-1.yaml", Label: "Petstore", Position: 0, InConfig: true,
		CreatedAt: now, UpdatedAt: now,
	}))

	demos, err := st.ListDemos(ctx)
	require.NoError(t, err)
	require.Len(t, demos, 2)
	assert.Equal(t, "openapi-3-1.yaml", demos[0].Value)
	assert.Equal(t, "https://x.io/b.yaml", demos[1].Value)

	// Upsert replaces the label and keeps a single row.
	require.NoError(t, st.UpsertDemo(ctx, &Demo{
		Value: "https://x.io/b.yaml", Label: "Renamed", Position: 1, InConfig: false,
		CreatedAt: now, UpdatedAt: now,
	}))

	demo, err := st.GetDemo(ctx, "https://x.io/b.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", demo.Label)
	assert.False(t, demo.InConfig)

	require.NoError(t, st.DeleteDemo(ctx, "https://x.io/b.yaml"))

	_, err = st.GetDemo(ctx, "https://x.io/b.yaml")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.DeleteDemo(ctx, "https://x.io/b.yaml"), ErrNotFound)
}

func TestSQLiteDeleteDemosNotIn(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i, d := range []struct {
		value    string
		inConfig bool
	}{
		{"a.yaml", true},
		{"b.yaml", true},
		{"manual.yaml", false},
	} {
		require.NoError(t, st.UpsertDemo(ctx, &Demo{
			Value: d.value, Label: d.value, Position: i, InConfig: d.inConfig,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}))
	}

	n, err := st.DeleteDemosNotIn(ctx, []string{"a.yaml"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	demos, err := st.ListDemos(ctx)
	require.NoError(t, err)
	require.Len(t, demos, 2)
	assert.Equal(t, "a.yaml", demos[0].Value)
	assert.Equal(t, "manual.yaml", demos[1].Value)

	n, err = st.DeleteDemosNotIn(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
