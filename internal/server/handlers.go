package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/arduino-trader/internal/market"
	"github.com/aristath/arduino-trader/internal/notify"
)

// handleHealth reports the two dependency checks spec.md §6 requires:
// database (MarketStore reachability) and cache (ControlSurface
// reachability, following the original's Redis-cache naming even
// though the implementation is now SQLite-backed).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	database := "connected"
	if _, err := s.market.Count("ohlcv_bars"); err != nil {
		database = "error: " + err.Error()
	}

	cache := "connected"
	failOpenBefore := s.control.FailOpenCount()
	s.control.Get(r.Context())
	if s.control.FailOpenCount() > failOpenBefore {
		cache = "error: control surface unreachable, failed open"
	}

	status := http.StatusOK
	healthStatus := "healthy"
	if database != "connected" || cache != "connected" {
		status = http.StatusServiceUnavailable
		healthStatus = "degraded"
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":          healthStatus,
		"database":        database,
		"cache":           cache,
		"uptime_seconds":  time.Since(s.startedAt).Seconds(),
		"memory_used_pct": memoryUsedPercent(),
	})
}

// memoryUsedPercent reports system RAM usage, grounded on the sibling
// dashboard app's getSystemStats (gopsutil's mem.VirtualMemory), kept
// instant/non-blocking for a probe endpoint unlike that app's paired
// cpu.Percent sampling.
func memoryUsedPercent() float64 {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return stat.UsedPercent
}

// handleStatus reports store counts, matching the /status webhook
// command's payload but over plain HTTP for dashboards/monitoring.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	bars, err := s.market.Count("ohlcv_bars")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics, err := s.market.Count("chain_metrics")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	netflows, err := s.market.Count("exchange_netflows")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trading_enabled":   s.control.Get(r.Context()),
		"ohlcv_bars":        bars,
		"chain_metrics":     metrics,
		"exchange_netflows": netflows,
	})
}

// handleMarket returns the most recent bars for a symbol, per spec.md
// §6's GET /api/market/<symbol>?limit=&timeframe=.
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "1h"
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	bars, err := s.market.QueryBars(symbol, timeframe, market.Desc, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, bars)
}

// webhookPayload is the operator platform's inbound command envelope.
type webhookPayload struct {
	Command string `json:"command"`
}

// handleWebhook verifies the request's HMAC signature, decodes a
// single command, and dispatches it through CommandRouter. A signature
// failure yields a 400 with no body, per spec.md §4.9.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Line-Signature")
	if !notify.VerifySignature([]byte(s.webhookSecret), body, signature) {
		s.log.Warn().Msg("webhook: signature verification failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.commands.Handle(r.Context(), payload.Command)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
