package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"fpg-order-system/models"
)

const testSubjectPrefix = "[TEST] "

// ComposerConfig holds addresses and branding for order emails.
type ComposerConfig struct {
	StoreName          string
	InternalRecipients []string
	// TestInbox receives every email for orders placed in developer mode.
	TestInbox string
	ReplyTo   string
}

// Composer renders the customer confirmation and the internal order notification.
type Composer struct {
	cfg  ComposerConfig
	html *htmltemplate.Template
	text *texttemplate.Template
}

func NewComposer(cfg ComposerConfig) (*Composer, error) {
	if cfg.StoreName == "" {
		cfg.StoreName = "FPG Hydraulics"
	}
	html, err := htmltemplate.New("email").Parse(htmlTemplates)
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.New("email").Parse(textTemplates)
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Composer{cfg: cfg, html: html, text: text}, nil
}

type lineView struct {
	Category  string
	Name      string
	SKU       string
	Quantity  int
	Price     string
	LineTotal string
	HasPDF    bool
}

type orderView struct {
	StoreName     string
	OrderNumber   string
	CustomerName  string
	Customer      models.UserDetails
	Lines         []lineView
	Subtotal      string
	Shipping      string
	GST           string
	Total         string
	PayPalOrderID string
	CaptureID     string
	TestingMode   bool
	PlacedAt      string
}

func (c *Composer) view(item models.QueueItem) orderView {
	v := orderView{
		StoreName:     c.cfg.StoreName,
		OrderNumber:   item.OrderNumber,
		CustomerName:  item.UserDetails.FullName(),
		Customer:      item.UserDetails,
		Subtotal:      item.Totals.Subtotal.StringFixed(2),
		Shipping:      item.Totals.Shipping.StringFixed(2),
		GST:           item.Totals.GST.StringFixed(2),
		Total:         item.Totals.Total.StringFixed(2),
		PayPalOrderID: item.PayPalOrderID,
		CaptureID:     item.PayPalCaptureID,
		TestingMode:   item.TestingMode,
		PlacedAt:      item.AddedAt.Format("02 Jan 2006 15:04 MST"),
	}
	add := func(category string, items []models.LineItem) {
		for _, li := range items {
			v.Lines = append(v.Lines, lineView{
				Category:  category,
				Name:      li.Name,
				SKU:       li.SKU,
				Quantity:  li.Quantity,
				Price:     li.Price.StringFixed(2),
				LineTotal: li.LineTotal().StringFixed(2),
				HasPDF:    li.PDF != nil,
			})
		}
	}
	add("Product", item.WebsiteProducts)
	add("Custom hose assembly", item.PWAOrders)
	add("Tractor configuration", item.Trac360Orders)
	return v
}

// CustomerConfirmation renders the email sent to the buyer.
func (c *Composer) CustomerConfirmation(item models.QueueItem) (Message, error) {
	to := []string{item.UserDetails.Email}
	if item.UserDetails.Email == "" {
		to = nil
	}
	subject := fmt.Sprintf("Your %s order %s", c.cfg.StoreName, item.OrderNumber)
	return c.render(item, "customer", to, subject, item.TestingMode)
}

// InternalNotification renders the email sent to the store team.
func (c *Composer) InternalNotification(item models.QueueItem) (Message, error) {
	subject := fmt.Sprintf("New order %s from %s (%s AUD)", item.OrderNumber, item.UserDetails.FullName(), item.Totals.Total.StringFixed(2))
	msg, err := c.render(item, "internal", c.cfg.InternalRecipients, subject, item.TestingMode)
	if err != nil {
		return Message{}, err
	}
	if item.UserDetails.Email != "" {
		msg.ReplyTo = item.UserDetails.Email
	}
	return msg, nil
}

func (c *Composer) render(item models.QueueItem, name string, to []string, subject string, testing bool) (Message, error) {
	if testing {
		if c.cfg.TestInbox == "" {
			return Message{}, fmt.Errorf("%w: developer-mode order without a test inbox", ErrNoRecipients)
		}
		to = []string{c.cfg.TestInbox}
		subject = testSubjectPrefix + subject
	}
	if len(to) == 0 {
		return Message{}, ErrNoRecipients
	}

	v := c.view(item)
	var html, text bytes.Buffer
	if err := c.html.ExecuteTemplate(&html, name, v); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", name, err)
	}
	if err := c.text.ExecuteTemplate(&text, name, v); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", name, err)
	}

	return Message{
		To:          to,
		ReplyTo:     c.cfg.ReplyTo,
		Subject:     subject,
		HTML:        html.String(),
		Text:        text.String(),
		Attachments: PDFAttachments(item),
	}, nil
}

// PDFAttachments decodes the PDFs carried by custom orders. Undecodable payloads are skipped.
func PDFAttachments(item models.QueueItem) []Attachment {
	var out []Attachment
	for _, group := range [][]models.LineItem{item.PWAOrders, item.Trac360Orders} {
		for _, li := range group {
			if li.PDF == nil || li.PDF.Data == "" {
				continue
			}
			data, err := decodePDF(li.PDF.Data)
			if err != nil {
				continue
			}
			filename := li.PDF.Filename
			if filename == "" {
				filename = fmt.Sprintf("%s-%s.pdf", item.OrderNumber, li.ID)
			}
			out = append(out, Attachment{Filename: filename, ContentType: "application/pdf", Data: data})
		}
	}
	return out
}

func decodePDF(s string) ([]byte, error) {
	// browsers hand over data URLs
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
