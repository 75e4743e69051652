package models

// CaptureRequest is the payload sent to the capture-order endpoint
type CaptureRequest struct {
	OrderID         string      `json:"orderID"`
	PayerID         string      `json:"payerID"`
	OrderNumber     string      `json:"orderNumber"`
	IsDeveloperMode bool        `json:"isDeveloperMode"`
	UserDetails     UserDetails `json:"userDetails"`
	WebsiteProducts []LineItem  `json:"websiteProducts"`
	PWAOrders       []LineItem  `json:"pwaOrders"`
	Trac360Orders   []LineItem  `json:"trac360Orders"`
	Totals          Totals      `json:"totals"`
}

// CaptureResponse is the body returned by the capture-order endpoint
type CaptureResponse struct {
	Success         bool   `json:"success"`
	PayPalCaptureID string `json:"paypalCaptureID,omitempty"`
	Error           string `json:"error,omitempty"`
}

// CaptureOutcome classifies the result of a capture call
type CaptureOutcome string

const (
	CaptureCaptured  CaptureOutcome = "captured"
	CaptureRejected  CaptureOutcome = "rejected"
	CaptureAmbiguous CaptureOutcome = "ambiguous"
)

// CaptureResult is the classified result of a capture call
type CaptureResult struct {
	Outcome         CaptureOutcome `json:"outcome"`
	PayPalCaptureID string         `json:"paypalCaptureID,omitempty"`
	Message         string         `json:"message,omitempty"`
	StatusCode      int            `json:"statusCode,omitempty"`
}

// OrderStatusRequest is the payload sent to the order-status endpoint
type OrderStatusRequest struct {
	OrderNumber string `json:"orderNumber"`
}

// RemoteOrderStatus is the order state reported by the order-status endpoint
type RemoteOrderStatus string

const (
	RemoteOrderProcessing RemoteOrderStatus = "processing"
	RemoteOrderCompleted  RemoteOrderStatus = "completed"
	RemoteOrderFailed     RemoteOrderStatus = "failed"
)

// OrderStatusResponse is the body returned by the order-status endpoint
type OrderStatusResponse struct {
	Status          RemoteOrderStatus `json:"status"`
	PayPalCaptureID string            `json:"paypalCaptureID,omitempty"`
}

// CreateOrderRequest asks the payment collaborator to open a PayPal order
type CreateOrderRequest struct {
	OrderNumber     string `json:"orderNumber"`
	Total           string `json:"total"`
	Currency        string `json:"currency"`
	IsDeveloperMode bool   `json:"isDeveloperMode"`
}

// CreateOrderResponse carries the PayPal order id
type CreateOrderResponse struct {
	ID string `json:"id"`
}
