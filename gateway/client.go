// Package gateway talks to the payment collaborator: PayPal order creation, server-side capture
// and order-status lookups.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fpg-order-system/models"
)

const (
	DefaultCreateOrderPath  = "/api/paypal/create-order"
	DefaultCaptureOrderPath = "/api/paypal/capture-order"
	DefaultOrderStatusPath  = "/api/order-status"

	maxErrorBody   = 4 << 10
	maxCaptureBody = 1 << 20
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status from payment service")
	ErrMalformedBody    = errors.New("malformed response from payment service")
)

// Config locates the collaborator endpoints.
type Config struct {
	BaseURL          string
	CreateOrderPath  string
	CaptureOrderPath string
	OrderStatusPath  string
	// CaptureTimeout is the hard deadline applied to each capture call.
	CaptureTimeout time.Duration
	// RequestTimeout applies to create-order and order-status calls.
	RequestTimeout time.Duration
}

// Client calls the payment collaborator over HTTP.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

// NewClient creates a Client. A nil httpClient uses a fresh http.Client; deadlines come from
// cfg and the caller's context, not the transport.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.CreateOrderPath == "" {
		cfg.CreateOrderPath = DefaultCreateOrderPath
	}
	if cfg.CaptureOrderPath == "" {
		cfg.CaptureOrderPath = DefaultCaptureOrderPath
	}
	if cfg.OrderStatusPath == "" {
		cfg.OrderStatusPath = DefaultOrderStatusPath
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{httpClient: httpClient, cfg: cfg}
}

// CaptureTimeout is the deadline applied to each capture call.
func (c *Client) CaptureTimeout() time.Duration {
	return c.cfg.CaptureTimeout
}

// CreateOrder opens a PayPal order for the checkout total.
func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (models.CreateOrderResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	resp, err := c.post(ctx, c.cfg.CreateOrderPath, req)
	if err != nil {
		return models.CreateOrderResponse{}, fmt.Errorf("failed to call create-order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.CreateOrderResponse{}, statusError(resp)
	}

	var out models.CreateOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.CreateOrderResponse{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if out.ID == "" {
		return models.CreateOrderResponse{}, fmt.Errorf("%w: missing order id", ErrMalformedBody)
	}
	return out, nil
}

// Capture finalizes the approved PayPal order and classifies the outcome. It never returns an
// error: anything that leaves the payment state unknown is reported as ambiguous.
func (c *Client) Capture(ctx context.Context, req models.CaptureRequest) models.CaptureResult {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CaptureTimeout)
	defer cancel()

	resp, err := c.post(ctx, c.cfg.CaptureOrderPath, req)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "capture timed out"
		}
		return models.CaptureResult{Outcome: models.CaptureAmbiguous, Message: msg}
	}
	defer resp.Body.Close()

	limit := int64(maxErrorBody)
	if resp.StatusCode == http.StatusOK {
		limit = maxCaptureBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return models.CaptureResult{Outcome: models.CaptureAmbiguous, Message: err.Error(), StatusCode: resp.StatusCode}
	}

	return classifyCapture(resp.StatusCode, body)
}

func classifyCapture(status int, body []byte) models.CaptureResult {
	var parsed models.CaptureResponse
	parseErr := json.Unmarshal(body, &parsed)

	switch {
	case status == http.StatusOK:
		if parseErr != nil {
			// 200 with an unreadable body: the capture may well have gone through
			return models.CaptureResult{Outcome: models.CaptureAmbiguous, Message: "unreadable capture response", StatusCode: status}
		}
		if parsed.Success {
			return models.CaptureResult{Outcome: models.CaptureCaptured, PayPalCaptureID: parsed.PayPalCaptureID, StatusCode: status}
		}
		return models.CaptureResult{Outcome: models.CaptureRejected, Message: parsed.Error, StatusCode: status}

	case status >= 400 && status < 500:
		msg := parsed.Error
		if parseErr != nil || msg == "" {
			msg = http.StatusText(status)
		}
		return models.CaptureResult{Outcome: models.CaptureRejected, Message: msg, StatusCode: status}

	default:
		return models.CaptureResult{
			Outcome:    models.CaptureAmbiguous,
			Message:    fmt.Sprintf("capture returned status %d", status),
			StatusCode: status,
		}
	}
}

// OrderStatus asks the source of truth for the state of an order.
func (c *Client) OrderStatus(ctx context.Context, orderNumber string) (models.OrderStatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	resp, err := c.post(ctx, c.cfg.OrderStatusPath, models.OrderStatusRequest{OrderNumber: orderNumber})
	if err != nil {
		return models.OrderStatusResponse{}, fmt.Errorf("failed to call order-status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.OrderStatusResponse{}, statusError(resp)
	}

	var out models.OrderStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.OrderStatusResponse{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	switch out.Status {
	case models.RemoteOrderProcessing, models.RemoteOrderCompleted, models.RemoteOrderFailed:
		return out, nil
	default:
		return models.OrderStatusResponse{}, fmt.Errorf("%w: unknown status %q", ErrMalformedBody, out.Status)
	}
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%w: status %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
}
