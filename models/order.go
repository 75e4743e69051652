package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ItemType discriminates cart line items by the tool that produced them
type ItemType string

const (
	ItemTypeProduct ItemType = "product"
	ItemTypePWA     ItemType = "pwa_order"
	ItemTypeTrac360 ItemType = "trac360_order"
)

// LineItem represents a single cart or order line
type LineItem struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Type          ItemType        `json:"type,omitempty"`
	SKU           string          `json:"sku,omitempty"`
	PDF           *PDFAttachment  `json:"pdf,omitempty"`
	Configuration json.RawMessage `json:"configuration,omitempty"`
}

// LineTotal returns price multiplied by quantity
func (i LineItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PDFAttachment is a generated PDF carried by custom-assembly orders
type PDFAttachment struct {
	Filename string `json:"filename"`
	Data     string `json:"data"` // base64
}

// UserDetails represents the shipping and contact details captured at checkout
type UserDetails struct {
	FirstName    string `json:"firstName" validate:"required,max=80"`
	LastName     string `json:"lastName" validate:"required,max=80"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,min=8,max=20"`
	Company      string `json:"company,omitempty" validate:"max=120"`
	AddressLine1 string `json:"address" validate:"required,max=200"`
	AddressLine2 string `json:"address2,omitempty" validate:"max=200"`
	City         string `json:"city" validate:"required,max=80"`
	State        string `json:"state" validate:"required,max=40"`
	Postcode     string `json:"postcode" validate:"required,numeric,len=4"`
	Country      string `json:"country" validate:"required"`
}

// FullName joins first and last name
func (u UserDetails) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Totals holds the computed order amounts
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	GST      decimal.Decimal `json:"gst"`
	Total    decimal.Decimal `json:"total"`
}

// MarshalJSON renders every amount with exactly two fraction digits
func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Subtotal string `json:"subtotal"`
		Shipping string `json:"shipping"`
		GST      string `json:"gst"`
		Total    string `json:"total"`
	}{
		Subtotal: t.Subtotal.StringFixed(2),
		Shipping: t.Shipping.StringFixed(2),
		GST:      t.GST.StringFixed(2),
		Total:    t.Total.StringFixed(2),
	})
}

// OrderSummary is the lightweight, attachment-free record shown on the confirmation page
type OrderSummary struct {
	OrderNumber     string      `json:"orderNumber"`
	PayPalCaptureID string      `json:"paypalCaptureID,omitempty"`
	UserDetails     UserDetails `json:"userDetails"`
	WebsiteProducts []LineItem  `json:"websiteProducts"`
	PWAOrders       []LineItem  `json:"pwaOrders"`
	Trac360Orders   []LineItem  `json:"trac360Orders"`
	Totals          Totals      `json:"totals"`
	TestingMode     bool        `json:"testingMode"`
}

// StripAttachments returns copies of items with PDF payloads removed
func StripAttachments(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		item.PDF = nil
		out[i] = item
	}
	return out
}
