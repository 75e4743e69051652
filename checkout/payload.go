package checkout

import (
	"fmt"
	"strings"

	"fpg-order-system/models"

	"github.com/google/uuid"
)

// OrderNumberPrefix starts every customer-facing order number.
const OrderNumberPrefix = "FPG-"

// NewOrderNumber returns a fresh order number of the form FPG-XXXXXXXX.
func NewOrderNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return OrderNumberPrefix + id[:8]
}

// BuildCaptureRequest builds the capture-order payload for an approved session.
func BuildCaptureRequest(s Session) (models.CaptureRequest, error) {
	if s.ShippingDetails == nil {
		return models.CaptureRequest{}, fmt.Errorf("%w: no shipping details for %s", ErrInvalidTransition, s.OrderNumber)
	}
	if s.PayPalOrderID == "" {
		return models.CaptureRequest{}, fmt.Errorf("%w: no PayPal order for %s", ErrInvalidTransition, s.OrderNumber)
	}
	return models.CaptureRequest{
		OrderID:         s.PayPalOrderID,
		PayerID:         s.PayerID,
		OrderNumber:     s.OrderNumber,
		IsDeveloperMode: s.IsDeveloperMode,
		UserDetails:     *s.ShippingDetails,
		WebsiteProducts: nonNil(s.Cart.WebsiteProducts),
		PWAOrders:       nonNil(s.Cart.PWAOrders),
		Trac360Orders:   nonNil(s.Cart.Trac360Orders),
		Totals:          s.Totals,
	}, nil
}

// BuildOrderPayload builds the queue payload for a captured order. It must be called before
// the completing transition clears the cart.
func BuildOrderPayload(s Session, captureID string) models.OrderPayload {
	var details models.UserDetails
	if s.ShippingDetails != nil {
		details = *s.ShippingDetails
	}
	return models.OrderPayload{
		OrderNumber:     s.OrderNumber,
		PayPalOrderID:   s.PayPalOrderID,
		PayPalCaptureID: captureID,
		UserDetails:     details,
		WebsiteProducts: nonNil(s.Cart.WebsiteProducts),
		PWAOrders:       nonNil(s.Cart.PWAOrders),
		Trac360Orders:   nonNil(s.Cart.Trac360Orders),
		Totals:          s.Totals,
		TestingMode:     s.IsDeveloperMode,
	}
}

// BuildSummary builds the confirmation-page summary with PDF payloads stripped.
func BuildSummary(p models.OrderPayload) models.OrderSummary {
	return models.OrderSummary{
		OrderNumber:     p.OrderNumber,
		PayPalCaptureID: p.PayPalCaptureID,
		UserDetails:     p.UserDetails,
		WebsiteProducts: models.StripAttachments(p.WebsiteProducts),
		PWAOrders:       models.StripAttachments(p.PWAOrders),
		Trac360Orders:   models.StripAttachments(p.Trac360Orders),
		Totals:          p.Totals,
		TestingMode:     p.TestingMode,
	}
}

func nonNil(items []models.LineItem) []models.LineItem {
	if items == nil {
		return []models.LineItem{}
	}
	return items
}
