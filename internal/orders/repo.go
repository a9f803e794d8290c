package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, order_number, user_id, items, subtotal, shipping_cost, total,
	customer_name, email, phone, address, city, country, zipcode, notes,
	payment_method, payment_status, payment_reference, order_status,
	created_at, paid_at, delivered_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.Items, &o.Subtotal, &o.ShippingCost, &o.Total,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &o.Customer.Address,
		&o.Customer.City, &o.Customer.Country, &o.Customer.Zipcode, &o.Notes,
		&o.PaymentMethod, &o.PaymentStatus, &o.PaymentReference, &o.Status,
		&o.CreatedAt, &o.PaidAt, &o.DeliveredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) Insert(ctx context.Context, o *Order) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders(order_number, user_id, items, subtotal, shipping_cost, total,
			customer_name, email, phone, address, city, country, zipcode, notes,
			payment_method, payment_status, order_status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING id`,
		o.Number, o.UserID, o.Items, o.Subtotal, o.ShippingCost, o.Total,
		o.Customer.Name, o.Customer.Email, o.Customer.Phone, o.Customer.Address,
		o.Customer.City, o.Customer.Country, o.Customer.Zipcode, o.Notes,
		o.PaymentMethod, o.PaymentStatus, o.Status, o.CreatedAt,
	).Scan(&o.ID)
	if postgres.IsUniqueViolation(err, "orders_order_number_key") {
		return ErrDuplicateNumber
	}
	return err
}

func (r *Repo) Get(ctx context.Context, id int64) (*Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

// GetForUser hides other customers' orders behind NotFound.
func (r *Repo) GetForUser(ctx context.Context, id, userID int64) (*Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 AND user_id=$2`, id, userID))
}

func (r *Repo) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number=$1`, number))
}

func (r *Repo) ListForUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// MarkPaid moves a pending order to paid. applied=false means the order was no
// longer pending, so a replayed callback changes nothing.
func (r *Repo) MarkPaid(ctx context.Context, id int64, reference string, at time.Time) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status='paid', payment_reference=$2, paid_at=$3
		WHERE id=$1 AND payment_status='pending'`, id, reference, at)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) MarkFailed(ctx context.Context, id int64, reference string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status='failed', payment_reference=$2
		WHERE id=$1 AND payment_status='pending'`, id, reference)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// UpdateStatus applies a back-office status change under a row lock.
func (r *Repo) UpdateStatus(ctx context.Context, id int64, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, apperr.InvalidArgument("unknown order status: " + string(to))
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from Status
	if err := tx.QueryRow(ctx, `SELECT order_status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&from); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}
	if !CanTransition(from, to) {
		return nil, apperr.Conflict(fmt.Sprintf("cannot move order from %s to %s", from, to))
	}

	o, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET order_status=$2::text,
			delivered_at = CASE WHEN $2::text = 'delivered' THEN now() ELSE delivered_at END
		WHERE id=$1
		RETURNING `+orderColumns, id, to))
	if err != nil {
		return nil, err
	}
	return o, tx.Commit(ctx)
}

func (r *Repo) UserStats(ctx context.Context, userID int64) (UserStats, error) {
	var s UserStats
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total) FILTER (WHERE payment_status='paid'), 0)
		FROM orders WHERE user_id=$1`, userID).Scan(&s.TotalOrders, &s.TotalSpent)
	if err != nil {
		return UserStats{}, err
	}
	return s, nil
}

// ConfirmPaid confirms a paid, still-pending order and draws stock down for the
// catalog products it references, all in one transaction. Stock never goes below
// zero. confirmed=false means there was nothing to do.
func (r *Repo) ConfirmPaid(ctx context.Context, id int64) (confirmed bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var items []LineItem
	err = tx.QueryRow(ctx, `
		UPDATE orders SET order_status='confirmed'
		WHERE id=$1 AND order_status='pending' AND payment_status='paid'
		RETURNING items`, id).Scan(&items)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for _, it := range items {
		pid, perr := strconv.ParseInt(it.ProductID, 10, 64)
		if perr != nil {
			continue
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = GREATEST(stock - $2, 0), updated_at = now()
			WHERE id=$1`, pid, it.Quantity); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
