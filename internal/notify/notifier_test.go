package notify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type failingPusher struct{ err error }

func (f failingPusher) Send(ctx context.Context, payload string) error { return f.err }

func TestNotifier_SendMethodsNeverPanicOnPushFailure(t *testing.T) {
	n := New(failingPusher{err: assertErr{}}, zerolog.Nop())
	ctx := context.Background()

	require.NotPanics(t, func() {
		n.SendTradeSignal(ctx, "BTC/USDT", "buy", 0.1, 50000)
		n.SendStopLossAlert(ctx, "BTC/USDT", 50000, 47000)
		n.SendTakeProfitAlert(ctx, "BTC/USDT", 50000, 55000)
		n.SendPanicAlert(ctx, "volatility spike")
	})
}

type assertErr struct{}

func (assertErr) Error() string { return "push failed" }
