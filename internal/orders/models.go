package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is a snapshot of one cart entry at checkout time.
type LineItem struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
	Zipcode string `json:"zipcode"`
}

type Order struct {
	ID               int64           `json:"id"`
	Number           string          `json:"order_number"`
	UserID           *int64          `json:"user_id,omitempty"`
	Items            []LineItem      `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ShippingCost     decimal.Decimal `json:"shipping_cost"`
	Total            decimal.Decimal `json:"total"`
	Customer         Customer        `json:"customer"`
	Notes            string          `json:"notes,omitempty"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Status           Status          `json:"order_status"`
	CreatedAt        time.Time       `json:"created_at"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
}

func (o *Order) ItemsCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// UserStats summarises a customer's order history for the profile page.
type UserStats struct {
	TotalOrders int             `json:"total_orders"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
}
