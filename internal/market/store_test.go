package market

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/aristath/arduino-trader/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "market.db") + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := New(db, zerolog.Nop())
	require.NoError(t, err)
	return store
}

func sampleBar(openTimeMs int64) domain.Bar {
	return domain.Bar{
		Venue:      "binance",
		Symbol:     "BTC/USDT",
		Timeframe:  "1h",
		OpenTimeMs: openTimeMs,
		Open:       100,
		High:       110,
		Low:        90,
		Close:      105,
		Volume:     12,
	}
}

func TestUpsertBars_Idempotent(t *testing.T) {
	store := newTestStore(t)

	result, err := store.UpsertBars([]domain.Bar{sampleBar(1000), sampleBar(2000)})
	require.NoError(t, err)
	require.Equal(t, UpsertResult{Inserted: 2}, result)

	// Re-ingesting the same rows a second time leaves the table unchanged.
	result, err = store.UpsertBars([]domain.Bar{sampleBar(1000), sampleBar(2000)})
	require.NoError(t, err)
	require.Equal(t, UpsertResult{Duplicate: 2}, result)

	count, err := store.Count("ohlcv_bars")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestUpsertBars_RejectsInvalidBar(t *testing.T) {
	store := newTestStore(t)

	bad := sampleBar(1000)
	bad.High = 50 // low(90) > high(50): violates the OHLCV invariant

	_, err := store.UpsertBars([]domain.Bar{bad})
	require.Error(t, err)

	count, err := store.Count("ohlcv_bars")
	require.NoError(t, err)
	require.Zero(t, count, "a rejected batch must not partially commit")
}

func TestQueryBars_Order(t *testing.T) {
	store := newTestStore(t)
	_, err := store.UpsertBars([]domain.Bar{sampleBar(1000), sampleBar(2000), sampleBar(3000)})
	require.NoError(t, err)

	asc, err := store.QueryBars("BTC/USDT", "1h", Asc, 10)
	require.NoError(t, err)
	require.Len(t, asc, 3)
	require.Equal(t, int64(1000), asc[0].OpenTimeMs)

	desc, err := store.QueryBars("BTC/USDT", "1h", Desc, 2)
	require.NoError(t, err)
	require.Len(t, desc, 2)
	require.Equal(t, int64(3000), desc[0].OpenTimeMs)
}

func TestUpsertNetflow_PreservesDerivedInvariant(t *testing.T) {
	store := newTestStore(t)

	// Netflow is recomputed server-side even if the caller passes a
	// mismatched value, so the derived-field invariant always holds.
	bogus := domain.Netflow{Asset: "BTC", Venue: "binance", TimestampS: 42, Inflow: 10, Outflow: 4, Netflow: 999}
	require.NoError(t, store.UpsertNetflow(bogus))

	rows, err := store.LatestNetflows("BTC", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 6.0, rows[0].Netflow)
}

func TestUpsertChainMetric_Idempotent(t *testing.T) {
	store := newTestStore(t)
	netflow := 3.5
	whales := int64(2)

	m := domain.ChainMetric{
		Asset: "ETH", MetricName: "whale_activity", Source: "glassnode",
		TimestampS: 100, Value: 0.8, ExchangeNetflow: &netflow, WhaleInflowCount: &whales,
	}
	require.NoError(t, store.UpsertChainMetric(m))
	require.NoError(t, store.UpsertChainMetric(m))

	count, err := store.Count("chain_metrics")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
