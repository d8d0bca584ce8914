package notify

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/arduino-trader/internal/control"
	"github.com/aristath/arduino-trader/internal/domain"
)

type recordingPusher struct {
	messages []string
}

func (p *recordingPusher) Send(ctx context.Context, payload string) error {
	p.messages = append(p.messages, payload)
	return nil
}

type fakeStatusSource struct{ counts map[string]int }

func (f fakeStatusSource) Count(table string) (int, error) { return f.counts[table], nil }

type fakePositionCloser struct{ orders []domain.Order }

func (f fakePositionCloser) CloseAllPositions(ctx context.Context) []domain.Order { return f.orders }

func newTestRouterSurface(t *testing.T) *control.Surface {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "control.db") + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := control.New(db, zerolog.Nop(), 5*time.Second)
	require.NoError(t, err)
	return s
}

func TestCommandRouter_StopThenStart(t *testing.T) {
	surface := newTestRouterSurface(t)
	pusher := &recordingPusher{}
	notifier := New(pusher, zerolog.Nop())
	router := NewCommandRouter(surface, fakePositionCloser{}, fakeStatusSource{}, notifier, zerolog.Nop())

	router.Handle(context.Background(), "/stop")
	require.Equal(t, "false", surface.Get(context.Background()))

	router.Handle(context.Background(), "/start")
	require.Equal(t, "true", surface.Get(context.Background()))

	require.Len(t, pusher.messages, 2)
}

func TestCommandRouter_Panic_StopsAndClosesAll(t *testing.T) {
	surface := newTestRouterSurface(t)
	pusher := &recordingPusher{}
	notifier := New(pusher, zerolog.Nop())
	closer := fakePositionCloser{orders: []domain.Order{{Symbol: "BTC/USDT"}, {Symbol: "ETH/USDT"}}}
	router := NewCommandRouter(surface, closer, fakeStatusSource{}, notifier, zerolog.Nop())

	router.Handle(context.Background(), "/panic")

	require.Equal(t, "false", surface.Get(context.Background()))
	require.Len(t, pusher.messages, 1)
	require.Contains(t, pusher.messages[0], "closed 2 position(s)")
}

func TestCommandRouter_Status_ReportsCounts(t *testing.T) {
	surface := newTestRouterSurface(t)
	pusher := &recordingPusher{}
	notifier := New(pusher, zerolog.Nop())
	store := fakeStatusSource{counts: map[string]int{"ohlcv_bars": 42, "chain_metrics": 3, "exchange_netflows": 7}}
	router := NewCommandRouter(surface, fakePositionCloser{}, store, notifier, zerolog.Nop())

	router.Handle(context.Background(), "/status")

	require.Len(t, pusher.messages, 1)
	require.Contains(t, pusher.messages[0], "ohlcv_bars: 42")
}

func TestCommandRouter_UnknownCommand_RepliesWithUsage(t *testing.T) {
	surface := newTestRouterSurface(t)
	pusher := &recordingPusher{}
	notifier := New(pusher, zerolog.Nop())
	router := NewCommandRouter(surface, fakePositionCloser{}, fakeStatusSource{}, notifier, zerolog.Nop())

	router.Handle(context.Background(), "/nonsense")

	require.Len(t, pusher.messages, 1)
	require.Contains(t, pusher.messages[0], "usage:")
}
