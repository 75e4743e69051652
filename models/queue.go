package models

import "time"

// QueueStatus represents the status of an item in the order email queue
type QueueStatus string

const (
	QueueStatusPending  QueueStatus = "pending"
	QueueStatusRetrying QueueStatus = "retrying"
	QueueStatusFailed   QueueStatus = "failed"
)

// OrderPayload is what the checkout flow hands to the queue on capture success
type OrderPayload struct {
	OrderNumber     string      `json:"orderNumber"`
	PayPalOrderID   string      `json:"paypalOrderID"`
	PayPalCaptureID string      `json:"paypalCaptureID"`
	UserDetails     UserDetails `json:"userDetails"`
	WebsiteProducts []LineItem  `json:"websiteProducts"`
	PWAOrders       []LineItem  `json:"pwaOrders"`
	Trac360Orders   []LineItem  `json:"trac360Orders,omitempty"`
	Totals          Totals      `json:"totals"`
	TestingMode     bool        `json:"testingMode"`
}

// QueueItem represents one pending unit of order email work
type QueueItem struct {
	ID              string      `json:"id"`
	OrderNumber     string      `json:"orderNumber"`
	PayPalOrderID   string      `json:"paypalOrderID"`
	PayPalCaptureID string      `json:"paypalCaptureID"`
	UserDetails     UserDetails `json:"userDetails"`
	WebsiteProducts []LineItem  `json:"websiteProducts"`
	PWAOrders       []LineItem  `json:"pwaOrders"`
	Trac360Orders   []LineItem  `json:"trac360Orders,omitempty"`
	Totals          Totals      `json:"totals"`
	TestingMode     bool        `json:"testingMode"`
	AddedAt         time.Time   `json:"addedAt"`
	Retries         int         `json:"retries"`
	Status          QueueStatus `json:"status"`
	LastRetryAt     *time.Time  `json:"lastRetryAt,omitempty"`
}

// DeadLetterItem is a queue item that exhausted its retry budget
type DeadLetterItem struct {
	QueueItem
	FailedAt time.Time `json:"failedAt"`
	Reason   string    `json:"reason"`
}
