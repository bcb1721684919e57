package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicOrderCreated               = "order.created"
	TopicOrderPaid                  = "order.paid"
	TopicOrderCanceled              = "order.canceled"
	TopicDiscountRedeemed           = "discount.redeemed"
	TopicDiscountRedemptionDeferred = "discount.redemption_deferred"
)

// OrderPayload is the payload carried by order.* events.
type OrderPayload struct {
	OrderID      string `json:"orderId"`
	Email        string `json:"email"`
	Currency     string `json:"currency"`
	GrandTotal   string `json:"grandTotal"`
	DiscountCode string `json:"discountCode,omitempty"`
}

// DiscountPayload is the payload carried by discount.* events.
type DiscountPayload struct {
	OrderID        string `json:"orderId"`
	Code           string `json:"code"`
	DiscountAmount string `json:"discountAmount"`
	Reason         string `json:"reason,omitempty"`
}
