package model

// CheckoutItem is one line item of a subscription checkout.
type CheckoutItem struct {
	Title    string  `json:"title" binding:"required,max=200"`
	Price    float64 `json:"price" binding:"required,gt=0"`
	Quantity int64   `json:"quantity" binding:"required,min=1"`
}

// CheckoutRequest is the payload for creating a checkout session.
type CheckoutRequest struct {
	Items []CheckoutItem `json:"items" binding:"required,min=1,dive"`
}

// CheckoutResponse carries the provider's checkout session id.
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
}
