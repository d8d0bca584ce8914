// Package control implements ControlSurface: the shared trading-enabled
// kill switch, backed by a tiny KV table in control.db.
package control

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// TradingEnabledKey is the one logical cell every caller reads/writes.
const TradingEnabledKey = "TRADING_ENABLED"

const (
	valueTrue  = "true"
	valueFalse = "false"
)

// Surface is the repository over control.db, following the teacher's
// BaseRepository shape (a *sql.DB plus a scoped logger).
type Surface struct {
	db      *sql.DB
	log     zerolog.Logger
	timeout time.Duration

	// failOpenCount is the metric spec.md §9 asks for: a persistent
	// failure must stay visible even while trading continues fail-open.
	failOpenCount atomic.Int64
}

// New builds a Surface and ensures the schema exists.
func New(db *sql.DB, log zerolog.Logger, timeout time.Duration) (*Surface, error) {
	if err := InitSchema(db); err != nil {
		return nil, fmt.Errorf("control: init schema: %w", err)
	}
	return &Surface{
		db:      db,
		log:     log.With().Str("component", "control_surface").Logger(),
		timeout: timeout,
	}, nil
}

// Get reads TRADING_ENABLED. On any failure, including timeout, it
// fails open: returns "true" and bumps the fail-open counter, per the
// deliberate design note in spec.md §9 — a wedged store must never
// wedge the bot.
func (s *Surface) Get(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var value string
	err := s.queryRowContext(ctx, TradingEnabledKey).Scan(&value)
	switch {
	case err == nil:
		return value
	case errors.Is(err, sql.ErrNoRows):
		// Absent key is defined to mean "true", not a failure.
		return valueTrue
	default:
		s.failOpenCount.Add(1)
		s.log.Warn().Err(err).Int64("fail_open_total", s.failOpenCount.Load()).
			Msg("control surface read failed, failing open")
		return valueTrue
	}
}

func (s *Surface) queryRowContext(ctx context.Context, key string) *sql.Row {
	return s.db.QueryRowContext(ctx, "SELECT value FROM control_flags WHERE key = ?", key)
}

// Set writes a new value for TRADING_ENABLED.
func (s *Surface) Set(ctx context.Context, value string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO control_flags (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, TradingEnabledKey, value)
	if err != nil {
		return fmt.Errorf("control: set %s: %w", TradingEnabledKey, err)
	}
	return nil
}

// Enable sets TRADING_ENABLED to "true".
func (s *Surface) Enable(ctx context.Context) error { return s.Set(ctx, valueTrue) }

// Disable sets TRADING_ENABLED to "false".
func (s *Surface) Disable(ctx context.Context) error { return s.Set(ctx, valueFalse) }

// IsEnabled reports whether trading is currently permitted.
func (s *Surface) IsEnabled(ctx context.Context) bool {
	return s.Get(ctx) != valueFalse
}

// FailOpenCount returns the number of reads that failed open so far,
// for the /health and /api/status endpoints to surface.
func (s *Surface) FailOpenCount() int64 { return s.failOpenCount.Load() }
