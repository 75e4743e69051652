package api

import (
	"errors"
	"fmt"
	"net/http"

	"fpg-order-system/checkout"
	"fpg-order-system/models"
	"fpg-order-system/session"
	"fpg-order-system/workflows"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createCheckoutRequest struct {
	Items           []models.LineItem `json:"items" binding:"required,min=1"`
	Shipping        decimal.Decimal   `json:"shipping"`
	IsDeveloperMode bool              `json:"isDeveloperMode"`
}

type approveRequest struct {
	OrderID string `json:"orderID" binding:"required"`
	PayerID string `json:"payerID"`
}

type widgetErrorRequest struct {
	Message string `json:"message"`
}

type confirmationResponse struct {
	Summary     models.OrderSummary    `json:"summary"`
	Attachments []models.PDFAttachment `json:"attachments"`
	Completing  bool                   `json:"completing"`
	Viewing     bool                   `json:"viewing"`
}

func (s *Server) healthCheck(c *gin.Context) {
	stats := s.deps.Queue.Stats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"queue":  stats.Health(),
	})
}

// createCheckout opens a session for the posted cart and starts its workflow.
func (s *Server) createCheckout(c *gin.Context) {
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if err := validateItems(req.Items); err != nil {
		respondValidationError(c, err)
		return
	}
	if req.Shipping.IsNegative() {
		respondValidationError(c, errors.New("shipping must not be negative"))
		return
	}

	ctx := c.Request.Context()
	orderNumber := checkout.NewOrderNumber()

	if err := s.deps.Sessions.SaveCart(ctx, orderNumber, req.Items); err != nil {
		s.logger.Error("Failed to persist cart", "order_number", orderNumber, "error", err)
		respondError(c, http.StatusServiceUnavailable, "failed to save cart", err)
		return
	}

	input := workflows.CheckoutInput{
		OrderNumber:     orderNumber,
		Items:           req.Items,
		Shipping:        req.Shipping,
		IsDeveloperMode: req.IsDeveloperMode,
	}
	if err := s.deps.Checkouts.Start(ctx, input); err != nil {
		s.logger.Error("Failed to start checkout", "order_number", orderNumber, "error", err)
		respondError(c, statusFor(err), "failed to start checkout", err)
		return
	}

	s.logger.Info("Checkout started", "order_number", orderNumber, "items", len(req.Items), "developer_mode", req.IsDeveloperMode)
	respondSuccess(c, http.StatusCreated, "checkout started",
		checkout.NewSession(orderNumber, req.Items, req.Shipping, req.IsDeveloperMode))
}

func validateItems(items []models.LineItem) error {
	for i, item := range items {
		if item.Quantity < 1 {
			return fmt.Errorf("items[%d]: quantity must be at least 1", i)
		}
		if item.Price.IsNegative() {
			return fmt.Errorf("items[%d]: price must not be negative", i)
		}
	}
	return nil
}

func (s *Server) getCheckout(c *gin.Context) {
	state, err := s.deps.Checkouts.State(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		respondError(c, statusFor(err), "failed to read checkout", err)
		return
	}
	respondSuccess(c, http.StatusOK, "", state)
}

func (s *Server) submitShipping(c *gin.Context) {
	var details models.UserDetails
	if err := c.ShouldBindJSON(&details); err != nil {
		respondValidationError(c, err)
		return
	}
	if err := checkout.ValidateShipping(details); err != nil {
		respondValidationError(c, err)
		return
	}
	s.signal(c, workflows.SignalShippingDetails, details)
}

func (s *Server) approvePayment(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	s.signal(c, workflows.SignalPayPalApproved, workflows.ApprovalSignal{PayPalOrderID: req.OrderID, PayerID: req.PayerID})
}

func (s *Server) reportWidgetError(c *gin.Context) {
	var req widgetErrorRequest
	// the widget may not send a body
	_ = c.ShouldBindJSON(&req)
	s.signal(c, workflows.SignalPayPalError, workflows.WidgetErrorSignal{Message: req.Message})
}

func (s *Server) signalOnly(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.signal(c, name, nil)
	}
}

// signal delivers an event to the checkout. The workflow decides whether it applies; callers
// read the outcome back from the state route.
func (s *Server) signal(c *gin.Context, name string, arg interface{}) {
	orderNumber := c.Param("orderNumber")
	if err := s.deps.Checkouts.Signal(c.Request.Context(), orderNumber, name, arg); err != nil {
		s.logger.Warn("Failed to signal checkout", "order_number", orderNumber, "signal", name, "error", err)
		respondError(c, statusFor(err), "failed to update checkout", err)
		return
	}
	respondSuccess(c, http.StatusAccepted, name+" accepted", nil)
}

// createPayPalOrder opens the PayPal order for the session total.
func (s *Server) createPayPalOrder(c *gin.Context) {
	ctx := c.Request.Context()
	orderNumber := c.Param("orderNumber")

	state, err := s.deps.Checkouts.State(ctx, orderNumber)
	if err != nil {
		respondError(c, statusFor(err), "failed to read checkout", err)
		return
	}
	if state.Status != checkout.StatusIdle || state.Step != checkout.StepPayment {
		respondError(c, http.StatusConflict, "checkout is not awaiting payment", nil)
		return
	}

	resp, err := s.deps.Orders.CreateOrder(ctx, models.CreateOrderRequest{
		OrderNumber:     orderNumber,
		Total:           state.Totals.Total.StringFixed(2),
		Currency:        checkout.Currency,
		IsDeveloperMode: state.IsDeveloperMode,
	})
	if err != nil {
		s.logger.Error("Failed to create PayPal order", "order_number", orderNumber, "error", err)
		respondError(c, http.StatusBadGateway, "failed to create PayPal order", err)
		return
	}
	respondSuccess(c, http.StatusOK, "", resp)
}

func (s *Server) getCart(c *gin.Context) {
	rec, err := s.deps.Sessions.Cart(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		respondError(c, statusFor(err), "cart not available", err)
		return
	}
	respondSuccess(c, http.StatusOK, "", rec)
}

// clearCart is called by the confirmation page once it no longer needs the PDFs.
func (s *Server) clearCart(c *gin.Context) {
	if err := s.deps.Sessions.DeleteCart(c.Request.Context(), c.Param("orderNumber")); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to clear cart", err)
		return
	}
	respondSuccess(c, http.StatusOK, "cart cleared", nil)
}

// getConfirmation returns the stored summary, the PDFs still held by the cart, and records that
// the customer reached the page.
func (s *Server) getConfirmation(c *gin.Context) {
	ctx := c.Request.Context()
	orderNumber := c.Param("orderNumber")

	summary, err := s.deps.Sessions.Summary(ctx, orderNumber)
	if err != nil {
		respondError(c, statusFor(err), "order summary not available", err)
		return
	}

	completing, err := s.deps.Sessions.Completing(ctx, orderNumber)
	if err != nil {
		s.logger.Warn("Failed to read completing marker", "order_number", orderNumber, "error", err)
	}
	viewing, err := s.deps.Sessions.Viewing(ctx, orderNumber)
	if err != nil {
		s.logger.Warn("Failed to read viewing marker", "order_number", orderNumber, "error", err)
	}
	if !viewing {
		if err := s.deps.Sessions.MarkViewing(ctx, orderNumber); err != nil {
			s.logger.Warn("Failed to set viewing marker", "order_number", orderNumber, "error", err)
		}
	}

	attachments := []models.PDFAttachment{}
	if rec, err := s.deps.Sessions.Cart(ctx, orderNumber); err == nil {
		for _, item := range rec.Items {
			if item.PDF != nil {
				attachments = append(attachments, *item.PDF)
			}
		}
	} else if !errors.Is(err, session.ErrNotFound) {
		s.logger.Warn("Failed to read cart attachments", "order_number", orderNumber, "error", err)
	}

	respondSuccess(c, http.StatusOK, "", confirmationResponse{
		Summary:     summary,
		Attachments: attachments,
		Completing:  completing,
		Viewing:     viewing,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrCheckoutNotFound), errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrCheckoutExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
