package catalog

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	categoryPlaceholder = "https://via.placeholder.com/300x200?text=No+Image"
	productPlaceholder  = "https://via.placeholder.com/400x400?text=No+Image"
)

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c Category) Image() string {
	if c.ImageURL != "" {
		return c.ImageURL
	}
	return categoryPlaceholder
}

type Product struct {
	ID           int64            `json:"id"`
	Title        string           `json:"title"`
	Slug         string           `json:"slug"`
	Price        decimal.Decimal  `json:"price"`
	OldPrice     *decimal.Decimal `json:"old_price,omitempty"`
	Description  string           `json:"description"`
	CategoryID   int64            `json:"category_id"`
	CategoryName string           `json:"category_name"`
	ImageURL     string           `json:"image_url"`
	Stock        int              `json:"stock"`
	IsNew        bool             `json:"is_new"`
	IsActive     bool             `json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// DiscountPercent is derived from the old price and truncated to a whole percent.
func (p Product) DiscountPercent() int {
	if p.OldPrice == nil || !p.OldPrice.GreaterThan(p.Price) {
		return 0
	}
	old := *p.OldPrice
	return int(old.Sub(p.Price).Div(old).Mul(decimal.NewFromInt(100)).IntPart())
}

func (p Product) InStock() bool { return p.Stock > 0 }

func (p Product) Image() string {
	if p.ImageURL != "" {
		return p.ImageURL
	}
	return productPlaceholder
}

// Slugify strips accents, lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ProductView is a product as served on listing pages.
type ProductView struct {
	Product
	DiscountPercent int    `json:"discount_percent"`
	InStock         bool   `json:"in_stock"`
	Image           string `json:"image"`
	IsFavorite      bool   `json:"is_favorite"`
}

func NewView(p Product) ProductView {
	return ProductView{Product: p, DiscountPercent: p.DiscountPercent(), InStock: p.InStock(), Image: p.Image()}
}
