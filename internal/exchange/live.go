package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/apperrors"
	"github.com/aristath/arduino-trader/internal/domain"
)

// serviceResponse is the live venue's envelope, same shape as the
// teacher's tradernet.ServiceResponse.
type serviceResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *string         `json:"error"`
	Timestamp string          `json:"timestamp"`
}

// LiveGateway wraps a thin REST capability over the live venue, kept
// deliberately minimal per spec.md §1 (exchange REST clients are
// out-of-scope collaborators, treated only through their interface).
type LiveGateway struct {
	baseURL string
	apiKey  string
	secret  string
	client  *http.Client
	log     zerolog.Logger
}

// NewLiveGateway builds a LiveGateway with the teacher's 30s HTTP
// client timeout convention.
func NewLiveGateway(baseURL, apiKey, secret string, log zerolog.Logger) *LiveGateway {
	return &LiveGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		secret:  secret,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "live_gateway").Logger(),
	}
}

func (g *LiveGateway) post(ctx context.Context, endpoint string, request, out any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("exchange: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("exchange: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return &apperrors.VenueError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	return g.parseResponse(endpoint, resp, out)
}

func (g *LiveGateway) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("exchange: build request: %w", err)
	}
	req.Header.Set("X-API-Key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return &apperrors.VenueError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	return g.parseResponse(endpoint, resp, out)
}

func (g *LiveGateway) parseResponse(endpoint string, resp *http.Response, out any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperrors.VenueError{Op: endpoint, Err: err}
	}

	var envelope serviceResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &apperrors.VenueError{Op: endpoint, Err: err}
	}
	if !envelope.Success {
		msg := "unknown error"
		if envelope.Error != nil {
			msg = *envelope.Error
		}
		return &apperrors.VenueError{Op: endpoint, Err: fmt.Errorf("%s", msg)}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &apperrors.VenueError{Op: endpoint, Err: err}
		}
	}
	return nil
}

func (g *LiveGateway) FetchBalance(ctx context.Context) (map[string]domain.AssetBalance, error) {
	var balances map[string]domain.AssetBalance
	if err := g.get(ctx, "/api/balance", &balances); err != nil {
		return nil, err
	}
	return balances, nil
}

func (g *LiveGateway) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	var ticker domain.Ticker
	if err := g.get(ctx, "/api/ticker?symbol="+symbol, &ticker); err != nil {
		return domain.Ticker{}, err
	}
	return ticker, nil
}

func (g *LiveGateway) FetchOHLCV(ctx context.Context, symbol, timeframe string, since *int64, limit int) ([]domain.Bar, error) {
	req := struct {
		Symbol    string `json:"symbol"`
		Timeframe string `json:"timeframe"`
		Since     *int64 `json:"since,omitempty"`
		Limit     int    `json:"limit"`
	}{symbol, timeframe, since, limit}

	var bars []domain.Bar
	if err := g.post(ctx, "/api/ohlcv", req, &bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func (g *LiveGateway) CreateOrder(ctx context.Context, symbol string, orderType domain.OrderType, side domain.Side, amount float64, price *float64) (domain.Order, error) {
	req := struct {
		Symbol string          `json:"symbol"`
		Type   domain.OrderType `json:"type"`
		Side   domain.Side     `json:"side"`
		Amount float64         `json:"amount"`
		Price  *float64        `json:"price,omitempty"`
	}{symbol, orderType, side, amount, price}

	var order domain.Order
	if err := g.post(ctx, "/api/order", req, &order); err != nil {
		order.Status = domain.OrderStatusError
		order.Error = err.Error()
		order.Symbol = symbol
		order.Side = side
		return order, err
	}
	return order, nil
}

func (g *LiveGateway) FetchPositions(ctx context.Context) ([]domain.Position, bool, error) {
	var positions []domain.Position
	if err := g.get(ctx, "/api/positions", &positions); err != nil {
		// The live venue may simply not support this capability; callers
		// fall back to deriving positions from balances.
		return nil, false, nil
	}
	return positions, true, nil
}
