package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/internal/mlfilter"
)

func TestShouldStopLoss_LiteralScenario(t *testing.T) {
	// spec.md §8 scenario 6: entry=50000, stop_loss_pct=0.05.
	require.True(t, ShouldStopLoss(50000, 47000, 0.05))
	require.False(t, ShouldStopLoss(50000, 49000, 0.05))
}

func TestShouldTakeProfit_CrossesTrigger(t *testing.T) {
	require.True(t, ShouldTakeProfit(50000, 55001, 0.1))
	require.False(t, ShouldTakeProfit(50000, 54000, 0.1))
}

func TestMonitorPositions_TriggersStopLossSell(t *testing.T) {
	surface := newTestSurface(t)
	entry := 50000.0
	gw := &fakeGateway{
		fetchPositions: true,
		positions:      []domain.Position{{Symbol: "BTC/USDT", Contracts: 0.1, EntryPrice: &entry}},
		ticker:         domain.Ticker{Symbol: "BTC/USDT", Last: 47000, Bid: 46900, Ask: 47100},
	}
	filter := mlfilter.New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	ex := New(gw, surface, filter, nil, testConfig(), zerolog.Nop())

	results := ex.MonitorPositions(context.Background())
	require.Len(t, results, 1)
	require.Equal(t, "stop_loss", results[0].Reason)
	require.Len(t, gw.orders, 1)
	require.Equal(t, domain.SideSell, gw.orders[0].Side)
}

func TestMonitorPositions_SkipsPositionWithoutEntryPrice(t *testing.T) {
	surface := newTestSurface(t)
	gw := &fakeGateway{
		fetchPositions: true,
		positions:      []domain.Position{{Symbol: "BTC/USDT", Contracts: 0.1, EntryPrice: nil}},
		ticker:         domain.Ticker{Symbol: "BTC/USDT", Last: 47000},
	}
	filter := mlfilter.New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	ex := New(gw, surface, filter, nil, testConfig(), zerolog.Nop())

	results := ex.MonitorPositions(context.Background())
	require.Len(t, results, 1)
	require.Equal(t, "skipped", results[0].Reason)
	require.Empty(t, gw.orders)
}

func TestMonitorPositions_NoOpWhenGatewayDoesNotSupportPositions(t *testing.T) {
	surface := newTestSurface(t)
	gw := &fakeGateway{fetchPositions: false}
	filter := mlfilter.New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	ex := New(gw, surface, filter, nil, testConfig(), zerolog.Nop())

	require.Empty(t, ex.MonitorPositions(context.Background()))
}

func TestCloseAllPositions_SellsEveryNonQuoteBalance(t *testing.T) {
	surface := newTestSurface(t)
	gw := &fakeGateway{
		balances: map[string]domain.AssetBalance{
			"USDT": {Asset: "USDT", Free: 5000, Total: 5000},
			"BTC":  {Asset: "BTC", Free: 0.1, Total: 0.1},
		},
		ticker: domain.Ticker{Last: 50000, Bid: 49900, Ask: 50100},
	}
	filter := mlfilter.New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	ex := New(gw, surface, filter, nil, testConfig(), zerolog.Nop())

	orders := ex.CloseAllPositions(context.Background())
	require.Len(t, orders, 1)
	require.Equal(t, "BTC/USDT", orders[0].Symbol)
}

func TestCloseAllPositions_NoOpWhenNothingToClose(t *testing.T) {
	surface := newTestSurface(t)
	gw := &fakeGateway{balances: map[string]domain.AssetBalance{"USDT": {Asset: "USDT", Free: 5000, Total: 5000}}}
	filter := mlfilter.New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	ex := New(gw, surface, filter, nil, testConfig(), zerolog.Nop())

	require.Empty(t, ex.CloseAllPositions(context.Background()))
}
