package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/exora/cart-session/internal/config"
	appErrors "github.com/exora/cart-session/internal/errors"
	"github.com/exora/cart-session/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	cartPath   = "/api/cart"
	addPath    = "/api/cart/add"
	updatePath = "/api/cart/update"
	removePath = "/api/cart/remove"
	clearPath  = "/api/cart/clear"

	maxBodyBytes = 1 << 20
)

// Client talks to the remote cart API. Every call issues exactly one request
// bounded by the configured timeout; nothing is retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	validate   *validator.Validate
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(cfg config.API, opts ...Option) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout:  timeout,
		validate: validator.New(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(slog.String("component", "cartclient"))
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](breakerSettings(cfg.Breaker, c.logger))

	return c
}

func breakerSettings(cfg config.Breaker, logger *slog.Logger) gobreaker.Settings {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	return gobreaker.Settings{
		Name:        "cart-api",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// the backend answering "no" is not an outage, and neither is the
		// caller giving up on its own request
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				appErrors.Is(err, appErrors.ErrCodeValidation) ||
				appErrors.Is(err, appErrors.ErrCodeUnauthorized)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	}
}

type cartPayload struct {
	Items       []models.CartItem `json:"items"       validate:"dive"`
	TotalAmount *float64          `json:"totalAmount" validate:"required,gte=0"`
}

func (c *Client) FetchCart(ctx context.Context, token string) (*models.Cart, error) {

	body, err := c.do(ctx, http.MethodGet, cartPath, token, nil)
	if err != nil {
		return nil, err
	}

	var payload cartPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Error("Cart response is not valid JSON", slog.String("error", err.Error()))
		return nil, appErrors.ServerError("Malformed cart response", http.StatusBadGateway).WithError(err)
	}

	if err := c.validate.Struct(payload); err != nil {
		c.logger.Error("Cart response failed validation", slog.String("error", err.Error()))
		return nil, appErrors.ServerError("Malformed cart response", http.StatusBadGateway).WithDetail(err.Error()).WithError(err)
	}

	cart := &models.Cart{
		Items:       payload.Items,
		TotalAmount: *payload.TotalAmount,
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}

	return cart, nil
}

func (c *Client) AddItem(ctx context.Context, token string, req models.AddItemRequest) error {

	if err := c.validateRequest(req); err != nil {
		return err
	}

	_, err := c.do(ctx, http.MethodPost, addPath, token, req)
	return err
}

func (c *Client) UpdateItem(ctx context.Context, token string, req models.UpdateItemRequest) error {

	if err := c.validateRequest(req); err != nil {
		return err
	}

	_, err := c.do(ctx, http.MethodPut, updatePath, token, req)
	return err
}

func (c *Client) RemoveItem(ctx context.Context, token, productID, size string) error {

	if productID == "" {
		return appErrors.ValidationError("Product is required")
	}

	if size == "" {
		return appErrors.ValidationError("Size is required")
	}

	path := fmt.Sprintf("%s/%s/%s", removePath, url.PathEscape(productID), url.PathEscape(size))
	_, err := c.do(ctx, http.MethodDelete, path, token, nil)
	return err
}

func (c *Client) ClearCart(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodDelete, clearPath, token, nil)
	return err
}

// Ping reports whether the API answers HTTP at all; any status counts.
func (c *Client) Ping(ctx context.Context) error {

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+cartPath, nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cart api unreachable: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	return nil
}

func (c *Client) validateRequest(req any) error {

	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		return appErrors.ValidationError(requestMessage(validationErrs[0])).WithError(err)
	}

	return appErrors.ValidationError("Invalid cart request").WithError(err)
}

// labels shown to shoppers instead of Go field names
var fieldLabels = map[string]string{
	"ProductID": "Product",
	"Quantity":  "Quantity",
	"Size":      "Size",
}

func requestMessage(fe validator.FieldError) string {

	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = "Value"
	}

	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Int {
			return label + " must be at least 1"
		}
		return label + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return "Invalid " + strings.ToLower(label)
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, payload any) ([]byte, error) {

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, appErrors.ServerError("Failed to encode request", 0).WithError(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, appErrors.NetworkError("Failed to build request").WithError(err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := c.logger.With(
		slog.String("request_id", requestID),
		slog.String("http_method", method),
		slog.String("http_path", path),
	)

	start := time.Now()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(req)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logger.Warn("Cart API circuit open, failing fast")
		return nil, appErrors.NetworkError("Cart service is temporarily unavailable").WithError(err)
	}

	if err != nil {
		switch appErrors.KindOf(err) {
		case appErrors.ErrCodeServer:
			logger.Error("Cart API request failed", slog.String("error", err.Error()), slog.Duration("duration", time.Since(start)))
		default:
			logger.Warn("Cart API request failed", slog.String("error", err.Error()), slog.Duration("duration", time.Since(start)))
		}
		return nil, err
	}

	logger.Debug("Cart API request completed", slog.Duration("duration", time.Since(start)))
	return body, nil
}

func (c *Client) send(req *http.Request) ([]byte, error) {

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, networkError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	return nil, statusError(resp.StatusCode, serverMessage(body))
}

func networkError(err error) *appErrors.AppError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return appErrors.NetworkError("Request timed out").WithError(err)
	case errors.Is(err, context.Canceled):
		return appErrors.NetworkError("Request cancelled").WithError(err)
	default:
		return appErrors.NetworkError("Unable to reach the cart service").WithError(err)
	}
}

func statusError(status int, message string) *appErrors.AppError {
	switch status {
	case http.StatusUnauthorized:
		if message == "" {
			message = "Session expired"
		}
		return appErrors.UnauthorizedError(message)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		if message == "" {
			message = "Request rejected"
		}
		err := appErrors.ValidationError(message)
		err.StatusCode = status
		return err
	default:
		err := appErrors.ServerError(http.StatusText(status), status)
		if message != "" {
			err = err.WithDetail(message)
		}
		return err
	}
}

type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// serverMessage pulls a human message out of either {"message": "..."},
// {"error": "..."} or {"error": {"message": "..."}}.
func serverMessage(body []byte) string {

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}

	if eb.Message != "" {
		return eb.Message
	}

	if len(eb.Error) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(eb.Error, &text); err == nil {
		return text
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(eb.Error, &nested); err == nil {
		return nested.Message
	}

	return ""
}
