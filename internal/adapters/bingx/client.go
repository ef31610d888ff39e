package bingx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"positionGuard/internal/domain"
	"positionGuard/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://open-api.bingx.com"
	baseURLTestnet    = "https://open-api-vst.bingx.com"

	pathPositions  = "/openApi/swap/v2/user/positions"
	pathOpenOrders = "/openApi/swap/v2/trade/openOrders"
	pathOrder      = "/openApi/swap/v2/trade/order"

	defaultTimeout = 10 * time.Second
)

// Client implements the ports.ExchangeClient interface over the BingX swap REST API.
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     ports.Logger
	now        func() time.Time
}

// Config holds configuration specific to the BingX client adapter.
type Config struct {
	APIKey            string
	SecretKey         string
	UseTestnet        bool
	BaseURL           string // Overrides the testnet/production choice when set
	Logger            ports.Logger
	HTTPClient        *http.Client
	RequestsPerSecond float64 // Defaults to 5
	Burst             int     // Defaults to 5
}

// New creates a new BingX client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for BingX client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Signed requests will be rejected.")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.UseTestnet {
			baseURL = baseURLTestnet
			cfg.Logger.Info(context.Background(), "BingX client configured for Testnet", map[string]interface{}{"baseURL": baseURL})
		} else {
			baseURL = baseURLProduction
			cfg.Logger.Info(context.Background(), "BingX client configured for Production", map[string]interface{}{"baseURL": baseURL})
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	return &Client{
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		logger:     cfg.Logger,
		now:        time.Now,
	}, nil
}

// handleError translates BingX API and transport errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		// Map specific BingX error codes to custom errors
		var mappedErr error
		switch apiErr.Code {
		case 100001, 100413, 100419: // Signature mismatch, bad API key, IP not whitelisted
			mappedErr = ports.ErrAuthenticationFailed
		case 100410, 100429: // Rate limited
			mappedErr = ports.ErrRateLimited
		case 100421, 109400, 80014: // Timestamp mismatch, invalid parameters
			mappedErr = ports.ErrInvalidRequest
		case 101204, 80020: // Insufficient margin
			mappedErr = ports.ErrInsufficientFunds
		case 80016, 80018: // Order does not exist
			mappedErr = ports.ErrOrderNotFound
		default:
			switch operation {
			case "PlaceOrder":
				mappedErr = ports.ErrOrderPlacementFailed
			case "CancelOrder":
				mappedErr = ports.ErrOrderCancelFailed
			default:
				mappedErr = ports.ErrUnknown
			}
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, decoding)
	var finalErr error
	var netErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case errors.Is(err, ports.ErrMalformedResponse):
		finalErr = fmt.Errorf("%s failed: %w", operation, err)
	default:
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
		} else {
			finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
		}
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// doRequest signs params, performs the call and returns the envelope's data
// field. A non-zero code is returned as *common.APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := signedQuery(c.secretKey, params, c.now())
	reqURL := c.baseURL + path
	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(query)
	} else {
		reqURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("X-BX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: http %d: %v", ports.ErrMalformedResponse, resp.StatusCode, err)
	}
	if env.Code != 0 {
		return nil, &common.APIError{Code: int64(env.Code), Message: env.Msg}
	}
	return env.Data, nil
}

// GetPositions returns every open position with non-zero quantity.
func (c *Client) GetPositions(ctx context.Context) ([]domain.Position, error) {
	op := "GetPositions"
	data, err := c.doRequest(ctx, http.MethodGet, pathPositions, url.Values{})
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	rows, err := decodePositions(data)
	if err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("%w: %v", ports.ErrMalformedResponse, err), op)
	}

	positions := make([]domain.Position, 0, len(rows))
	for _, row := range rows {
		if row.PositionAmt == 0 {
			continue
		}
		positions = append(positions, row.toDomain())
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"count": len(positions)})
	return positions, nil
}

// GetOpenOrders returns the resting orders for symbol.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	op := "GetOpenOrders"
	params := url.Values{}
	params.Set("symbol", symbol)

	data, err := c.doRequest(ctx, http.MethodGet, pathOpenOrders, params)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	rows, err := decodeOrders(data)
	if err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("%w: %v", ports.ErrMalformedResponse, err), op)
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toDomain())
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "count": len(orders)})
	return orders, nil
}

// formatNumber renders a quantity or price without float noise.
func formatNumber(v float64) string {
	return decimal.NewFromFloat(v).Round(8).String()
}

// PlaceOrder submits a new order.
func (c *Client) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	op := "PlaceOrder"
	if req.Symbol == "" || req.Side == "" || req.Type == "" || req.Quantity <= 0 {
		return nil, fmt.Errorf("%s failed: %w: symbol, side, type and positive quantity are required", op, ports.ErrInvalidRequest)
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", formatNumber(req.Quantity))
	params.Set("clientOrderID", uuid.NewString())
	if req.PositionSide != "" {
		params.Set("positionSide", string(req.PositionSide))
	}
	if req.Price > 0 {
		params.Set("price", formatNumber(req.Price))
	}
	if req.StopPrice > 0 {
		params.Set("stopPrice", formatNumber(req.StopPrice))
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", req.TimeInForce)
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	for k, v := range req.Extra {
		params.Set(k, v)
	}

	fields := map[string]interface{}{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"type":     req.Type,
		"quantity": params.Get("quantity"),
	}
	if req.StopPrice > 0 {
		fields["stopPrice"] = params.Get("stopPrice")
	}
	c.logger.Info(ctx, "Placing order", fields)

	data, err := c.doRequest(ctx, http.MethodPost, pathOrder, params)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	o, err := decodeOrder(data)
	if err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("%w: %v", ports.ErrMalformedResponse, err), op)
	}
	if o.ClientOrderID == "" {
		o.ClientOrderID = params.Get("clientOrderID")
	}
	resp := o.toResponse(c.now())
	c.logger.Info(ctx, "Order placed", map[string]interface{}{"symbol": req.Symbol, "orderId": resp.OrderID})
	return resp, nil
}

// CancelOrder cancels an existing open order by its ID.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	op := "CancelOrder"
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	data, err := c.doRequest(ctx, http.MethodDelete, pathOrder, params)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	o, err := decodeOrder(data)
	if err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("%w: %v", ports.ErrMalformedResponse, err), op)
	}
	if o.OrderID == 0 {
		o.OrderID = flexInt(orderID)
	}
	if o.Symbol == "" {
		o.Symbol = symbol
	}
	c.logger.Info(ctx, "Order cancelled", map[string]interface{}{"symbol": symbol, "orderId": orderID})
	return o.toResponse(c.now()), nil
}

var _ ports.ExchangeClient = (*Client)(nil)
