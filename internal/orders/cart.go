package orders

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/shopspring/decimal"
)

// Cart is the canonical form of a client-submitted basket.
type Cart struct {
	Items    []LineItem
	Subtotal decimal.Decimal
}

// rawItem is the shape clients send. Numeric fields arrive as JSON numbers or strings.
type rawItem struct {
	ID       json.RawMessage `json:"id"`
	Name     string          `json:"name"`
	Quantity json.RawMessage `json:"quantity"`
	Price    json.RawMessage `json:"price"`
	Total    json.RawMessage `json:"total"`
}

// NormalizeCart converts raw descriptors into line items. Descriptors that are not
// objects, lack an id, or carry an unusable price or total are dropped. The
// subtotal is the sum of the client-reported line totals.
func NormalizeCart(raw []json.RawMessage) (Cart, error) {
	cart := Cart{Items: make([]LineItem, 0, len(raw)), Subtotal: decimal.Zero}
	for _, r := range raw {
		it, ok := normalizeItem(r)
		if !ok {
			continue
		}
		cart.Items = append(cart.Items, it)
		cart.Subtotal = cart.Subtotal.Add(it.Total)
	}
	if len(cart.Items) == 0 {
		return Cart{}, apperr.Validation("cart is empty")
	}
	return cart, nil
}

func normalizeItem(r json.RawMessage) (LineItem, bool) {
	if !isObject(r) {
		return LineItem{}, false
	}
	var in rawItem
	if err := json.Unmarshal(r, &in); err != nil {
		return LineItem{}, false
	}

	id, ok := scalarString(in.ID)
	if !ok || id == "" {
		return LineItem{}, false
	}
	price, ok := nonNegative(in.Price)
	if !ok {
		return LineItem{}, false
	}
	qty := quantity(in.Quantity)

	total := price.Mul(decimal.NewFromInt(int64(qty)))
	if present(in.Total) {
		if total, ok = nonNegative(in.Total); !ok {
			return LineItem{}, false
		}
	}

	return LineItem{
		ProductID: id,
		Name:      strings.TrimSpace(in.Name),
		Quantity:  qty,
		UnitPrice: price,
		Total:     total,
	}, true
}

// quantity falls back to 1 for anything that is not a positive whole number.
func quantity(r json.RawMessage) int {
	s, ok := scalarString(r)
	if !ok {
		return 1
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() || !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(1_000_000)) {
		return 1
	}
	return int(d.IntPart())
}

func nonNegative(r json.RawMessage) (decimal.Decimal, bool) {
	s, ok := scalarString(r)
	if !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// scalarString accepts a JSON string or number and returns its trimmed text.
func scalarString(r json.RawMessage) (string, bool) {
	if !present(r) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(r, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	if err := json.Unmarshal(r, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func present(r json.RawMessage) bool {
	t := bytes.TrimSpace(r)
	return len(t) > 0 && !bytes.Equal(t, []byte("null"))
}

func isObject(r json.RawMessage) bool {
	t := bytes.TrimSpace(r)
	return len(t) > 0 && t[0] == '{'
}
