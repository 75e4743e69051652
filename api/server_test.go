package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"fpg-order-system/checkout"
	"fpg-order-system/dispatch"
	"fpg-order-system/models"
	"fpg-order-system/queue"
	"fpg-order-system/session"
	"fpg-order-system/workflows"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentSignal struct {
	orderNumber string
	name        string
	arg         interface{}
}

type fakeCheckouts struct {
	mu       sync.Mutex
	started  []workflows.CheckoutInput
	signals  []sentSignal
	states   map[string]checkout.Session
	startErr error
}

func (f *fakeCheckouts) Start(ctx context.Context, input workflows.CheckoutInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, input)
	f.states[input.OrderNumber] = checkout.NewSession(input.OrderNumber, input.Items, input.Shipping, input.IsDeveloperMode)
	return nil
}

func (f *fakeCheckouts) Signal(ctx context.Context, orderNumber, signal string, arg interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[orderNumber]; !ok {
		return ErrCheckoutNotFound
	}
	f.signals = append(f.signals, sentSignal{orderNumber: orderNumber, name: signal, arg: arg})
	return nil
}

func (f *fakeCheckouts) State(ctx context.Context, orderNumber string) (checkout.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[orderNumber]
	if !ok {
		return checkout.Session{}, ErrCheckoutNotFound
	}
	return s, nil
}

type stubProcessor struct {
	calls int
}

func (p *stubProcessor) ProcessBatch(ctx context.Context) dispatch.BatchResult {
	p.calls++
	return dispatch.BatchResult{Fetched: 2, Delivered: 2}
}

type stubOrders struct {
	got models.CreateOrderRequest
	err error
}

func (o *stubOrders) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (models.CreateOrderResponse, error) {
	o.got = req
	if o.err != nil {
		return models.CreateOrderResponse{}, o.err
	}
	return models.CreateOrderResponse{ID: "PP-ORDER-9"}, nil
}

type fixture struct {
	server    *Server
	checkouts *fakeCheckouts
	sessions  *session.Store
	queue     *queue.Queue
	processor *stubProcessor
	orders    *stubOrders
	mr        *miniredis.Miniredis
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := Config{
		AllowedOrigins: []string{"https://fpg.example"},
		AdminSecret:    "admin-secret",
		CronSecret:     "cron-secret",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{
		checkouts: &fakeCheckouts{states: map[string]checkout.Session{}},
		sessions: session.NewStore(rdb, session.TTLs{
			Cart:       checkout.CartTTL,
			Summary:    checkout.SummaryTTL,
			Completing: checkout.CompletingMarkerTTL,
			Viewing:    checkout.ViewingMarkerTTL,
		}),
		queue:     queue.New(rdb),
		processor: &stubProcessor{},
		orders:    &stubOrders{},
		mr:        mr,
	}
	f.server = New(cfg, Deps{
		Checkouts: f.checkouts,
		Sessions:  f.sessions,
		Queue:     f.queue,
		Processor: f.processor,
		Orders:    f.orders,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var env Envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func cartItems() []models.LineItem {
	return []models.LineItem{
		{ID: "P1", Name: "Fitting", Quantity: 2, Price: decimal.RequireFromString("25"), Type: models.ItemTypeProduct},
		{ID: "T1", Name: "Trac360 build", Quantity: 1, Price: decimal.RequireFromString("50"), Type: models.ItemTypeTrac360},
	}
}

func (f *fixture) startCheckout(t *testing.T) string {
	t.Helper()
	rec, env := f.do(t, http.MethodPost, "/api/checkout", map[string]interface{}{"items": cartItems(), "shipping": "0"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	return data["orderNumber"].(string)
}

func TestCreateCheckout(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodPost, "/api/checkout", map[string]interface{}{"items": cartItems(), "shipping": "0"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	data := env.Data.(map[string]interface{})
	orderNumber := data["orderNumber"].(string)
	assert.Regexp(t, regexp.MustCompile(`^FPG-[0-9A-F]{8}$`), orderNumber)
	assert.Equal(t, "110.00", data["totals"].(map[string]interface{})["total"])

	require.Len(t, f.checkouts.started, 1)
	assert.Equal(t, orderNumber, f.checkouts.started[0].OrderNumber)

	cart, err := f.sessions.Cart(context.Background(), orderNumber)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestCreateCheckoutValidation(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{name: "Empty cart", body: map[string]interface{}{"items": []models.LineItem{}}},
		{name: "Missing items", body: map[string]interface{}{"shipping": "10"}},
		{name: "Zero quantity", body: map[string]interface{}{"items": []models.LineItem{{ID: "1", Quantity: 0, Price: decimal.NewFromInt(1)}}}},
		{name: "Negative shipping", body: map[string]interface{}{"items": cartItems(), "shipping": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec, env := f.do(t, http.MethodPost, "/api/checkout", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
			assert.Empty(t, f.checkouts.started)
		})
	}
}

func TestCreateCheckoutDuplicate(t *testing.T) {
	f := newFixture(t, nil)
	f.checkouts.startErr = ErrCheckoutExists

	rec, _ := f.do(t, http.MethodPost, "/api/checkout", map[string]interface{}{"items": cartItems()}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetCheckout(t *testing.T) {
	f := newFixture(t, nil)
	orderNumber := f.startCheckout(t)

	rec, env := f.do(t, http.MethodGet, "/api/checkout/"+orderNumber, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", env.Data.(map[string]interface{})["status"])

	rec, _ = f.do(t, http.MethodGet, "/api/checkout/FPG-UNKNOWN", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignalRoutes(t *testing.T) {
	details := models.UserDetails{
		FirstName: "Jo", LastName: "Wu", Email: "jo@example.com", Phone: "0412345678",
		AddressLine1: "2 Valve Rd", City: "Brisbane", State: "QLD", Postcode: "4000", Country: "AU",
	}

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
		wantSignal string
	}{
		{name: "Shipping", path: "/shipping", body: details, wantStatus: http.StatusAccepted, wantSignal: workflows.SignalShippingDetails},
		{name: "Edit shipping", path: "/edit-shipping", wantStatus: http.StatusAccepted, wantSignal: workflows.SignalEditShipping},
		{name: "Approve", path: "/paypal/approve", body: map[string]string{"orderID": "PP-1", "payerID": "PAYER"}, wantStatus: http.StatusAccepted, wantSignal: workflows.SignalPayPalApproved},
		{name: "Approve without order id", path: "/paypal/approve", body: map[string]string{"payerID": "PAYER"}, wantStatus: http.StatusBadRequest},
		{name: "Cancel", path: "/paypal/cancel", wantStatus: http.StatusAccepted, wantSignal: workflows.SignalPayPalCancelled},
		{name: "Widget error", path: "/paypal/error", body: map[string]string{"message": "blocked"}, wantStatus: http.StatusAccepted, wantSignal: workflows.SignalPayPalError},
		{name: "Retry", path: "/retry", wantStatus: http.StatusAccepted, wantSignal: workflows.SignalRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			orderNumber := f.startCheckout(t)

			rec, _ := f.do(t, http.MethodPost, "/api/checkout/"+orderNumber+tt.path, tt.body, nil)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantSignal == "" {
				assert.Empty(t, f.checkouts.signals)
				return
			}
			require.Len(t, f.checkouts.signals, 1)
			assert.Equal(t, tt.wantSignal, f.checkouts.signals[0].name)
			assert.Equal(t, orderNumber, f.checkouts.signals[0].orderNumber)
		})
	}
}

func TestSubmitShippingRejectsInvalidPostcode(t *testing.T) {
	f := newFixture(t, nil)
	orderNumber := f.startCheckout(t)

	details := models.UserDetails{
		FirstName: "Jo", LastName: "Wu", Email: "jo@example.com", Phone: "0412345678",
		AddressLine1: "2 Valve Rd", City: "Brisbane", State: "QLD", Postcode: "40A0", Country: "AU",
	}
	rec, env := f.do(t, http.MethodPost, "/api/checkout/"+orderNumber+"/shipping", details, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "postcode")
	assert.Empty(t, f.checkouts.signals)
}

func TestSignalUnknownCheckout(t *testing.T) {
	f := newFixture(t, nil)
	rec, _ := f.do(t, http.MethodPost, "/api/checkout/FPG-NOPE/retry", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePayPalOrder(t *testing.T) {
	f := newFixture(t, nil)
	orderNumber := f.startCheckout(t)

	rec, _ := f.do(t, http.MethodPost, "/api/checkout/"+orderNumber+"/paypal/order", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "shipping step must come first")

	s := f.checkouts.states[orderNumber]
	s.Step = checkout.StepPayment
	f.checkouts.states[orderNumber] = s

	rec, env := f.do(t, http.MethodPost, "/api/checkout/"+orderNumber+"/paypal/order", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PP-ORDER-9", env.Data.(map[string]interface{})["id"])
	assert.Equal(t, "110.00", f.orders.got.Total)
	assert.Equal(t, "AUD", f.orders.got.Currency)

	f.orders.err = errors.New("paypal down")
	rec, _ = f.do(t, http.MethodPost, "/api/checkout/"+orderNumber+"/paypal/order", nil, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetCart(t *testing.T) {
	f := newFixture(t, nil)
	orderNumber := f.startCheckout(t)

	rec, env := f.do(t, http.MethodGet, "/api/cart/"+orderNumber, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.Data.(map[string]interface{})["items"], 2)

	f.mr.FastForward(checkout.CartTTL)
	rec, _ = f.do(t, http.MethodGet, "/api/cart/"+orderNumber, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearCart(t *testing.T) {
	f := newFixture(t, nil)
	orderNumber := f.startCheckout(t)

	rec, _ := f.do(t, http.MethodDelete, "/api/cart/"+orderNumber, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/cart/"+orderNumber, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetConfirmation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec, _ := f.do(t, http.MethodGet, "/api/order-confirmation/FPG-DONE", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, f.sessions.SaveSummary(ctx, models.OrderSummary{
		OrderNumber: "FPG-DONE",
		PWAOrders: []models.LineItem{
			{ID: "A", Quantity: 1, Price: decimal.NewFromInt(10), PDF: &models.PDFAttachment{Filename: "a.pdf", Data: "JVBERi0="}},
		},
	}))
	require.NoError(t, f.sessions.MarkCompleting(ctx, "FPG-DONE"))

	rec, env := f.do(t, http.MethodGet, "/api/order-confirmation/FPG-DONE", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, true, data["completing"])
	assert.Equal(t, false, data["viewing"])
	assert.Empty(t, data["attachments"], "no cart left to read PDFs from")
	assert.NotContains(t, rec.Body.String(), "JVBERi0=")

	require.NoError(t, f.sessions.SaveCart(ctx, "FPG-DONE", []models.LineItem{
		{ID: "A", Quantity: 1, Price: decimal.NewFromInt(10), Type: models.ItemTypePWA, PDF: &models.PDFAttachment{Filename: "a.pdf", Data: "JVBERi0="}},
	}))
	_, env = f.do(t, http.MethodGet, "/api/order-confirmation/FPG-DONE", nil, nil)
	attachments := env.Data.(map[string]interface{})["attachments"].([]interface{})
	require.Len(t, attachments, 1)
	assert.Equal(t, "a.pdf", attachments[0].(map[string]interface{})["filename"])

	viewing, err := f.sessions.Viewing(ctx, "FPG-DONE")
	require.NoError(t, err)
	assert.True(t, viewing)

	_, env = f.do(t, http.MethodGet, "/api/order-confirmation/FPG-DONE", nil, nil)
	assert.Equal(t, true, env.Data.(map[string]interface{})["viewing"])
}

func TestAdminOrderQueue(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.True(t, f.queue.Enqueue(ctx, models.OrderPayload{OrderNumber: "FPG-Q1"}))

	rec, _ := f.do(t, http.MethodGet, "/api/admin/order-queue", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/admin/order-queue?secret=wrong", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := f.do(t, http.MethodGet, "/api/admin/order-queue?secret=admin-secret", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["pending"])
	assert.Equal(t, queue.HealthHealthy, data["health"])
	assert.Len(t, data["recent"], 1)

	f.mr.Close()
	rec, _ = f.do(t, http.MethodGet, "/api/admin/order-queue?secret=admin-secret", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminRejectsWhenSecretUnset(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.AdminSecret = "" })
	rec, _ := f.do(t, http.MethodGet, "/api/admin/order-queue?secret=", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCronProcessOrderQueue(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		auth       string
		wantStatus int
	}{
		{name: "No header", method: http.MethodGet, wantStatus: http.StatusUnauthorized},
		{name: "Wrong token", method: http.MethodPost, auth: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "GET authorized", method: http.MethodGet, auth: "Bearer cron-secret", wantStatus: http.StatusOK},
		{name: "POST authorized", method: http.MethodPost, auth: "Bearer cron-secret", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			headers := map[string]string{}
			if tt.auth != "" {
				headers["Authorization"] = tt.auth
			}
			rec, env := f.do(t, tt.method, "/api/cron/process-order-queue", nil, headers)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, 1, f.processor.calls)
				assert.Equal(t, float64(2), env.Data.(map[string]interface{})["delivered"])
			} else {
				assert.Zero(t, f.processor.calls)
			}
		})
	}
}

func TestCronRateLimited(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.RateLimitEnabled = true
		c.RateLimitPerMinute = 1
		c.RateLimitBurstSize = 2
	})
	headers := map[string]string{"Authorization": "Bearer cron-secret"}

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec, _ := f.do(t, http.MethodPost, "/api/cron/process-order-queue", nil, headers)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestHealthAndCORS(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := f.do(t, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://fpg.example"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), queue.HealthHealthy))
	assert.Equal(t, "https://fpg.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, _ = f.do(t, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
