package engagement

import (
	"time"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/shopspring/decimal"
)

type Favorite struct {
	ProductID int64     `json:"product_id"`
	AddedAt   time.Time `json:"added_at"`
}

// FavoriteView is a favorite with its product resolved.
type FavoriteView struct {
	AddedAt time.Time           `json:"added_at"`
	Product catalog.ProductView `json:"product"`
}

type Review struct {
	ID                 int64     `json:"id"`
	ProductID          int64     `json:"product_id"`
	UserID             int64     `json:"user_id"`
	Username           string    `json:"username"`
	Rating             int       `json:"rating"`
	Comment            string    `json:"comment"`
	IsVerifiedPurchase bool      `json:"is_verified_purchase"`
	CreatedAt          time.Time `json:"created_at"`
}

type ReviewSummary struct {
	Count   int             `json:"count"`
	Average decimal.Decimal `json:"average"`
}

// summarize rounds the mean rating to one decimal. No reviews averages to zero.
func summarize(count, sum int64) ReviewSummary {
	if count <= 0 {
		return ReviewSummary{Average: decimal.Zero}
	}
	avg := decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(count), 4).Round(1)
	return ReviewSummary{Count: int(count), Average: avg}
}

type Subscriber struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	IsActive     bool      `json:"is_active"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

type ContactMessage struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Subject string    `json:"subject"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}
