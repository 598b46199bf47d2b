package domain

// Lifecycle events written to the outbox alongside the status change and
// relayed to Kafka for downstream fulfillment and notification consumers.

type OrderPaid struct {
	OrderID    string `json:"order_id"`
	AccountID  string `json:"account_id"`
	TotalCents int64  `json:"total_cents"`
	Currency   string `json:"currency"`
}

type OrderFailed struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type OrderCancelled struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}
