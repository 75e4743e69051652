package checkout

import (
	"fpg-order-system/models"

	"github.com/shopspring/decimal"
)

// GSTRate is the flat goods and services tax applied to the subtotal.
var GSTRate = decimal.New(10, -2)

// Cart is a cart split by item origin.
type Cart struct {
	WebsiteProducts []models.LineItem `json:"websiteProducts"`
	PWAOrders       []models.LineItem `json:"pwaOrders"`
	Trac360Orders   []models.LineItem `json:"trac360Orders"`
}

// Empty reports whether the cart holds no items.
func (c Cart) Empty() bool {
	return len(c.WebsiteProducts)+len(c.PWAOrders)+len(c.Trac360Orders) == 0
}

// Items returns every line in the cart, website products first.
func (c Cart) Items() []models.LineItem {
	items := make([]models.LineItem, 0, len(c.WebsiteProducts)+len(c.PWAOrders)+len(c.Trac360Orders))
	items = append(items, c.WebsiteProducts...)
	items = append(items, c.PWAOrders...)
	items = append(items, c.Trac360Orders...)
	return items
}

// Partition splits items by their type discriminator. Items with no or an unknown type are
// standard catalog products. Order within each partition is preserved.
func Partition(items []models.LineItem) Cart {
	cart := Cart{
		WebsiteProducts: []models.LineItem{},
		PWAOrders:       []models.LineItem{},
		Trac360Orders:   []models.LineItem{},
	}
	for _, item := range items {
		switch item.Type {
		case models.ItemTypePWA:
			cart.PWAOrders = append(cart.PWAOrders, item)
		case models.ItemTypeTrac360:
			cart.Trac360Orders = append(cart.Trac360Orders, item)
		default:
			cart.WebsiteProducts = append(cart.WebsiteProducts, item)
		}
	}
	return cart
}

// ComputeTotals sums the cart and adds GST and shipping. Every amount is rounded to cents.
func ComputeTotals(items []models.LineItem, shipping decimal.Decimal) models.Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	subtotal = subtotal.Round(2)
	shipping = shipping.Round(2)
	gst := subtotal.Mul(GSTRate).Round(2)

	return models.Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		GST:      gst,
		Total:    subtotal.Add(shipping).Add(gst).Round(2),
	}
}
