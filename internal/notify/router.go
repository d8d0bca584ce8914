package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/control"
	"github.com/aristath/arduino-trader/internal/domain"
)

// PositionCloser is the subset of internal/executor.Executor the
// /panic command needs.
type PositionCloser interface {
	CloseAllPositions(ctx context.Context) []domain.Order
}

// StatusSource reports the store counts /status replies with.
type StatusSource interface {
	Count(table string) (int, error)
}

// CommandRouter implements the `/status /stop /start /panic` table of
// spec.md §4.9. Commands are matched as the whole message after
// trimming surrounding whitespace; anything else gets a usage reply.
type CommandRouter struct {
	control  *control.Surface
	executor PositionCloser
	store    StatusSource
	notifier *Notifier
	log      zerolog.Logger
}

// NewCommandRouter builds a CommandRouter.
func NewCommandRouter(ctrl *control.Surface, executor PositionCloser, store StatusSource, notifier *Notifier, log zerolog.Logger) *CommandRouter {
	return &CommandRouter{
		control:  ctrl,
		executor: executor,
		store:    store,
		notifier: notifier,
		log:      log.With().Str("component", "command_router").Logger(),
	}
}

// Handle dispatches one inbound command, always replying via the
// notifier. It never returns an error: every branch is terminal.
func (r *CommandRouter) Handle(ctx context.Context, text string) {
	cmd := strings.TrimSpace(text)

	switch {
	case cmd == "/status":
		r.handleStatus(ctx)
	case cmd == "/stop":
		r.handleStop(ctx)
	case cmd == "/start":
		r.handleStart(ctx)
	case cmd == "/panic":
		r.handlePanic(ctx)
	default:
		r.notifier.SendText(ctx, "usage: /status | /stop | /start | /panic")
	}
}

func (r *CommandRouter) handleStatus(ctx context.Context) {
	bars, barsErr := r.store.Count("ohlcv_bars")
	metrics, metricsErr := r.store.Count("chain_metrics")
	netflows, netflowsErr := r.store.Count("exchange_netflows")

	cacheStatus := "connected"
	enabled := r.control.Get(ctx)
	if r.control.FailOpenCount() > 0 {
		cacheStatus = "degraded"
	}

	if barsErr != nil || metricsErr != nil || netflowsErr != nil {
		r.log.Warn().Err(barsErr).Err(metricsErr).Err(netflowsErr).Msg("status: store count query failed")
	}

	r.notifier.SendText(ctx, fmt.Sprintf(
		"STATUS\ntrading_enabled: %s\nohlcv_bars: %d\nchain_metrics: %d\nexchange_netflows: %d\ncache: %s",
		enabled, bars, metrics, netflows, cacheStatus,
	))
}

func (r *CommandRouter) handleStop(ctx context.Context) {
	if err := r.control.Disable(ctx); err != nil {
		r.log.Error().Err(err).Msg("/stop: disable failed")
		r.notifier.SendText(ctx, "failed to stop trading, see logs")
		return
	}
	r.notifier.SendText(ctx, "trading stopped")
}

func (r *CommandRouter) handleStart(ctx context.Context) {
	if err := r.control.Enable(ctx); err != nil {
		r.log.Error().Err(err).Msg("/start: enable failed")
		r.notifier.SendText(ctx, "failed to start trading, see logs")
		return
	}
	r.notifier.SendText(ctx, "trading started")
}

func (r *CommandRouter) handlePanic(ctx context.Context) {
	if err := r.control.Disable(ctx); err != nil {
		r.log.Error().Err(err).Msg("/panic: disable failed")
	}
	orders := r.executor.CloseAllPositions(ctx)
	r.notifier.SendText(ctx, fmt.Sprintf("PANIC: trading stopped, closed %d position(s)", len(orders)))
}
