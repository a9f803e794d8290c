package orders

import (
	"encoding/json"
	"time"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced   = "OrderPlaced"
	EventOrderPaid     = "OrderPaid"
	EventPaymentFailed = "PaymentFailed"
	EventStatusChanged = "OrderStatusChanged"
)

const eventVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order number
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        *int64          `json:"user_id,omitempty"`
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
}

type OrderPaidPayload struct {
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        time.Time       `json:"paid_at"`
}

type PaymentFailedPayload struct {
	OrderID       int64  `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason"`
}

type StatusChangedPayload struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      Status `json:"status"`
}

// Events publishes order lifecycle events, one producer per topic.
type Events struct {
	Placed        kafkax.Publisher
	Paid          kafkax.Publisher
	Failed        kafkax.Publisher
	StatusChanged kafkax.Publisher
	Service       string
}

func (e *Events) publish(p kafkax.Publisher, eventType, trace string, o *Order, payload any) {
	if p == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		TraceID:       trace,
		CorrelationID: o.Number,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev), kafkax.EventHeaders(eventType, eventVersion)...)
}

func (e *Events) OrderPlaced(trace string, o *Order) {
	e.publish(e.Placed, EventOrderPlaced, trace, o, OrderPlacedPayload{
		OrderID: o.ID, OrderNumber: o.Number, UserID: o.UserID,
		Items: o.Items, Total: o.Total, PaymentMethod: o.PaymentMethod,
	})
}

func (e *Events) OrderPaid(trace string, o *Order, txID string, at time.Time) {
	e.publish(e.Paid, EventOrderPaid, trace, o, OrderPaidPayload{
		OrderID: o.ID, OrderNumber: o.Number, TransactionID: txID, Amount: o.Total, PaidAt: at,
	})
}

func (e *Events) PaymentFailed(trace string, o *Order, txID, reason string) {
	e.publish(e.Failed, EventPaymentFailed, trace, o, PaymentFailedPayload{
		OrderID: o.ID, OrderNumber: o.Number, TransactionID: txID, Reason: reason,
	})
}

func (e *Events) StatusChange(trace string, o *Order) {
	e.publish(e.StatusChanged, EventStatusChanged, trace, o, StatusChangedPayload{
		OrderID: o.ID, OrderNumber: o.Number, Status: o.Status,
	})
}
