// Package notify implements Notifier and CommandRouter: outbound push
// alerts to the operator and inbound webhook-driven text commands that
// mutate ControlSurface. Grounded on
// original_source/app/core/execution/notifier.py's four push methods,
// translated from a LINE-bot-specific API to a transport-agnostic
// Pusher interface backed by internal/notify/pushtransport.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/notify/pushtransport"
)

// Pusher is the wire-level send capability notify.Notifier sits on top
// of.
type Pusher interface {
	Send(ctx context.Context, payload string) error
}

var _ Pusher = (*pushtransport.Client)(nil)

// Notifier formats and pushes operator alerts. It satisfies
// internal/executor.Notifier. Every method is best-effort: a push
// failure is logged and swallowed, never returned to the caller, per
// spec.md §4.9.
type Notifier struct {
	pusher Pusher
	log    zerolog.Logger
}

// New builds a Notifier over the given Pusher.
func New(pusher Pusher, log zerolog.Logger) *Notifier {
	return &Notifier{pusher: pusher, log: log.With().Str("component", "notifier").Logger()}
}

func (n *Notifier) push(ctx context.Context, payload string) {
	if err := n.pusher.Send(ctx, payload); err != nil {
		n.log.Warn().Err(err).Msg("push failed")
	}
}

// SendTradeSignal pushes a generic buy/sell signal notification.
func (n *Notifier) SendTradeSignal(ctx context.Context, symbol, side string, amount, price float64) {
	n.push(ctx, fmt.Sprintf(
		"TRADE SIGNAL\nside: %s\nsymbol: %s\namount: %.8f\nprice: %.2f\ntime: %s",
		side, symbol, amount, price, time.Now().UTC().Format(time.RFC3339),
	))
}

// SendStopLossAlert pushes a stop-loss trigger notification.
func (n *Notifier) SendStopLossAlert(ctx context.Context, symbol string, entry, current float64) {
	loss := (current - entry) / entry
	n.push(ctx, fmt.Sprintf(
		"STOP LOSS\nsymbol: %s\nentry: %.2f\ncurrent: %.2f\nchange: %.2f%%\ntime: %s",
		symbol, entry, current, loss*100, time.Now().UTC().Format(time.RFC3339),
	))
}

// SendTakeProfitAlert pushes a take-profit trigger notification.
func (n *Notifier) SendTakeProfitAlert(ctx context.Context, symbol string, entry, current float64) {
	gain := (current - entry) / entry
	n.push(ctx, fmt.Sprintf(
		"TAKE PROFIT\nsymbol: %s\nentry: %.2f\ncurrent: %.2f\nchange: %.2f%%\ntime: %s",
		symbol, entry, current, gain*100, time.Now().UTC().Format(time.RFC3339),
	))
}

// SendPanicAlert pushes a panic-score-exceeded notification. All buys
// are suspended by the time this fires; the message says so.
func (n *Notifier) SendPanicAlert(ctx context.Context, reason string) {
	n.push(ctx, fmt.Sprintf(
		"PANIC\nreason: %s\nall buys are suspended\ntime: %s",
		reason, time.Now().UTC().Format(time.RFC3339),
	))
}

// SendText pushes an arbitrary operator-facing message, used by
// CommandRouter replies.
func (n *Notifier) SendText(ctx context.Context, message string) {
	n.push(ctx, message)
}
