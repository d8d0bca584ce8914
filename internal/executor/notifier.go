package executor

import "context"

// Notifier is the subset of internal/notify.Notifier the executor needs
// for trade/stop-loss/take-profit/panic alerts. All sends are
// best-effort: failures are logged by the implementation, never
// propagated here.
type Notifier interface {
	SendTradeSignal(ctx context.Context, symbol, side string, amount, price float64)
	SendStopLossAlert(ctx context.Context, symbol string, entry, current float64)
	SendTakeProfitAlert(ctx context.Context, symbol string, entry, current float64)
	SendPanicAlert(ctx context.Context, reason string)
}

// noopNotifier is used when the caller doesn't wire a real notifier
// (New is passed a nil notifier).
type noopNotifier struct{}

func (noopNotifier) SendTradeSignal(context.Context, string, string, float64, float64) {}
func (noopNotifier) SendStopLossAlert(context.Context, string, float64, float64)       {}
func (noopNotifier) SendTakeProfitAlert(context.Context, string, float64, float64)     {}
func (noopNotifier) SendPanicAlert(context.Context, string)                            {}
