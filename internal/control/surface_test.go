package control

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "control.db") + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	surface, err := New(db, zerolog.Nop(), 5*time.Second)
	require.NoError(t, err)
	return surface
}

func TestGet_DefaultsToTrueWhenAbsent(t *testing.T) {
	surface := newTestSurface(t)
	require.Equal(t, "true", surface.Get(context.Background()))
	require.True(t, surface.IsEnabled(context.Background()))
}

func TestSetThenGet_RoundTrips(t *testing.T) {
	surface := newTestSurface(t)
	ctx := context.Background()

	require.NoError(t, surface.Disable(ctx))
	require.Equal(t, "false", surface.Get(ctx))
	require.False(t, surface.IsEnabled(ctx))

	require.NoError(t, surface.Enable(ctx))
	require.Equal(t, "true", surface.Get(ctx))
	require.True(t, surface.IsEnabled(ctx))
}

func TestGet_FailsOpenOnClosedStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "control.db") + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)

	surface, err := New(db, zerolog.Nop(), 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, db.Close())

	// A read against a closed connection must still fail open, not panic.
	require.Equal(t, "true", surface.Get(context.Background()))
	require.Equal(t, int64(1), surface.FailOpenCount())
}
