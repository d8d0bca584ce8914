package executor

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/arduino-trader/internal/apperrors"
	"github.com/aristath/arduino-trader/internal/control"
	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/internal/mlfilter"
)

// fakeGateway is a minimal in-memory exchange.Gateway double.
type fakeGateway struct {
	balances  map[string]domain.AssetBalance
	positions []domain.Position
	ticker    domain.Ticker
	orders    []domain.Order

	createErr      error
	fetchPositions bool
}

func (f *fakeGateway) FetchBalance(ctx context.Context) (map[string]domain.AssetBalance, error) {
	return f.balances, nil
}

func (f *fakeGateway) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	return f.ticker, nil
}

func (f *fakeGateway) FetchOHLCV(ctx context.Context, symbol, timeframe string, since *int64, limit int) ([]domain.Bar, error) {
	return nil, nil
}

func (f *fakeGateway) CreateOrder(ctx context.Context, symbol string, orderType domain.OrderType, side domain.Side, amount float64, price *float64) (domain.Order, error) {
	if f.createErr != nil {
		return domain.Order{}, f.createErr
	}
	order := domain.Order{Status: domain.OrderStatusClosed, Symbol: symbol, Side: side, Amount: amount, Price: f.ticker.Last, Timestamp: time.Now()}
	f.orders = append(f.orders, order)
	return order, nil
}

func (f *fakeGateway) FetchPositions(ctx context.Context) ([]domain.Position, bool, error) {
	return f.positions, f.fetchPositions, nil
}

func newTestSurface(t *testing.T) *control.Surface {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "control.db") + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := control.New(db, zerolog.Nop(), 5*time.Second)
	require.NoError(t, err)
	return s
}

func testConfig() Config {
	return Config{
		MaxPositionSize: 0.1,
		StopLossPercent: 0.05,
		TakeProfitMin:   0.1,
		TakeProfitMax:   0.3,
		PanicThreshold:  0.7,
		QuoteAsset:      "USDT",
	}
}

func TestPlaceOrder_KillSwitchBlocksBuyAndSell(t *testing.T) {
	surface := newTestSurface(t)
	require.NoError(t, surface.Disable(context.Background()))

	gw := &fakeGateway{}
	filter := mlfilter.New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	ex := New(gw, surface, filter, nil, testConfig(), zerolog.Nop())

	_, err := ex.PlaceOrder(context.Background(), "BTC/USDT", domain.SideBuy, 0.1, nil, domain.OrderTypeMarket, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperrors.ErrTradingSuspended))

	_, err = ex.PlaceOrder(context.Background(), "BTC/USDT", domain.SideSell, 0.1, nil, domain.OrderTypeMarket, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperrors.ErrTradingSuspended))
	require.Empty(t, gw.orders)
}

func TestPlaceOrder_PanicGateBlocksBuyAllowsSell(t *testing.T) {
	surface := newTestSurface(t)
	gw := &fakeGateway{ticker: domain.Ticker{Last: 100, Bid: 99, Ask: 101}}
	filter := mlfilter.New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	ex := New(gw, surface, filter, nil, testConfig(), zerolog.Nop())

	panicScore := 0.9
	_, err := ex.PlaceOrder(context.Background(), "BTC/USDT", domain.SideBuy, 0.1, nil, domain.OrderTypeMarket, &panicScore)
	require.Error(t, err)
	var panicErr *apperrors.PanicTooHighError
	require.True(t, errors.As(err, &panicErr))

	order, err := ex.PlaceOrder(context.Background(), "BTC/USDT", domain.SideSell, 0.1, nil, domain.OrderTypeMarket, &panicScore)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusSuccess, order.Status)
}

func TestPlaceOrder_VenueFailureBecomesErrorRecordNotError(t *testing.T) {
	surface := newTestSurface(t)
	gw := &fakeGateway{createErr: &apperrors.VenueError{Op: "create_order", Err: errors.New("timeout")}}
	filter := mlfilter.New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	ex := New(gw, surface, filter, nil, testConfig(), zerolog.Nop())

	order, err := ex.PlaceOrder(context.Background(), "BTC/USDT", domain.SideBuy, 0.1, nil, domain.OrderTypeMarket, nil)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusError, order.Status)
	require.NotEmpty(t, order.Error)
}

func TestExecuteStrategy_KillSwitchSkipsEntireTick(t *testing.T) {
	surface := newTestSurface(t)
	require.NoError(t, surface.Disable(context.Background()))
	gw := &fakeGateway{ticker: domain.Ticker{Last: 100, Bid: 99, Ask: 101}}
	filter := mlfilter.New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	ex := New(gw, surface, filter, nil, testConfig(), zerolog.Nop())

	signals := []domain.Signal{{Symbol: "BTC/USDT", Side: domain.SideBuy, Amount: 0.1}}
	results := ex.ExecuteStrategy(context.Background(), signals, nil, false, 0.6)
	require.Empty(t, results)
	require.Empty(t, gw.orders)
}

func TestExecuteStrategy_MLFilterRejectsDisabledBuyAtDefaultThreshold(t *testing.T) {
	surface := newTestSurface(t)
	gw := &fakeGateway{ticker: domain.Ticker{Last: 100, Bid: 99, Ask: 101}}
	filter := mlfilter.New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	ex := New(gw, surface, filter, nil, testConfig(), zerolog.Nop())

	signals := []domain.Signal{{
		Symbol: "BTC/USDT", Side: domain.SideBuy, Amount: 0.1,
		Features: map[string]float64{"rsi": 40},
	}}
	results := ex.ExecuteStrategy(context.Background(), signals, nil, true, 0.6)
	require.Len(t, results, 1)
	require.Equal(t, domain.OrderStatusFiltered, results[0].Status)
	require.Equal(t, "ml_filter", results[0].Reason)
	require.Empty(t, gw.orders)
}

func TestMaxPosition_UsesFreeQuoteTimesMaxPositionSize(t *testing.T) {
	surface := newTestSurface(t)
	gw := &fakeGateway{balances: map[string]domain.AssetBalance{"USDT": {Asset: "USDT", Free: 10000, Total: 10000}}}
	filter := mlfilter.New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	ex := New(gw, surface, filter, nil, testConfig(), zerolog.Nop())

	size, err := ex.MaxPosition(context.Background(), "BTC/USDT", 50000)
	require.NoError(t, err)
	require.InDelta(t, 10000*0.1/50000, size, 1e-9)
}
