package engagement

import (
	"context"
	"errors"
	"strconv"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) productExists(ctx context.Context, productID int64) error {
	var ok bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("product not found")
	}
	return nil
}

// AddFavorite is idempotent. added=false means it was already a favorite.
func (r *Repo) AddFavorite(ctx context.Context, userID, productID int64) (added bool, err error) {
	if err := r.productExists(ctx, productID); err != nil {
		return false, err
	}
	ct, err := r.DB.Exec(ctx, `INSERT INTO favorites(user_id, product_id) VALUES ($1,$2)
		ON CONFLICT (user_id, product_id) DO NOTHING`, userID, productID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) RemoveFavorite(ctx context.Context, userID, productID int64) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM favorites WHERE user_id=$1 AND product_id=$2`, userID, productID)
	return err
}

func (r *Repo) ListFavorites(ctx context.Context, userID int64) ([]Favorite, error) {
	rows, err := r.DB.Query(ctx, `SELECT product_id, created_at FROM favorites
		WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Favorite{}
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ProductID, &f.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Repo) IsFavorite(ctx context.Context, userID, productID int64) (bool, error) {
	var ok bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id=$1 AND product_id=$2)`,
		userID, productID).Scan(&ok)
	return ok, err
}

// UpsertReview keeps one review per user and product. A review counts as a
// verified purchase when the user has a paid order containing the product.
func (r *Repo) UpsertReview(ctx context.Context, rv *Review) error {
	if err := r.productExists(ctx, rv.ProductID); err != nil {
		return err
	}
	contains := `[{"id":"` + strconv.FormatInt(rv.ProductID, 10) + `"}]`
	err := r.DB.QueryRow(ctx, `
		INSERT INTO product_reviews(product_id, user_id, rating, comment, is_verified_purchase)
		VALUES ($1, $2, $3, $4, EXISTS(
			SELECT 1 FROM orders WHERE user_id=$2 AND payment_status='paid' AND items @> $5::jsonb))
		ON CONFLICT ON CONSTRAINT product_reviews_product_user_key
		DO UPDATE SET rating=EXCLUDED.rating, comment=EXCLUDED.comment,
			is_verified_purchase=EXCLUDED.is_verified_purchase
		RETURNING id, is_verified_purchase, created_at`,
		rv.ProductID, rv.UserID, rv.Rating, rv.Comment, contains,
	).Scan(&rv.ID, &rv.IsVerifiedPurchase, &rv.CreatedAt)
	return err
}

func (r *Repo) ListReviews(ctx context.Context, productID int64) ([]Review, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT rv.id, rv.product_id, rv.user_id, u.username, rv.rating, rv.comment,
			rv.is_verified_purchase, rv.created_at
		FROM product_reviews rv JOIN users u ON u.id = rv.user_id
		WHERE rv.product_id=$1 ORDER BY rv.created_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Review{}
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Username, &rv.Rating,
			&rv.Comment, &rv.IsVerifiedPurchase, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) ReviewSummary(ctx context.Context, productID int64) (ReviewSummary, error) {
	var count, sum int64
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(rating), 0) FROM product_reviews
		WHERE product_id=$1`, productID).Scan(&count, &sum)
	if err != nil {
		return ReviewSummary{}, err
	}
	return summarize(count, sum), nil
}

// Subscribe adds email or reactivates it. created=false means it already existed.
func (r *Repo) Subscribe(ctx context.Context, email, name string) (s Subscriber, created bool, err error) {
	err = r.DB.QueryRow(ctx, `
		INSERT INTO newsletter_subscribers(email, name) VALUES ($1,$2)
		ON CONFLICT (email) DO UPDATE SET is_active=true,
			name=COALESCE(NULLIF(EXCLUDED.name, ''), newsletter_subscribers.name)
		RETURNING id, email, name, is_active, subscribed_at, (xmax = 0)`,
		email, name).Scan(&s.ID, &s.Email, &s.Name, &s.IsActive, &s.SubscribedAt, &created)
	return s, created, err
}

func (r *Repo) Unsubscribe(ctx context.Context, email string) error {
	var id int64
	err := r.DB.QueryRow(ctx, `UPDATE newsletter_subscribers SET is_active=false
		WHERE email=$1 RETURNING id`, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("email is not subscribed")
	}
	return err
}

func (r *Repo) CreateContact(ctx context.Context, m *ContactMessage) error {
	return r.DB.QueryRow(ctx, `
		INSERT INTO contact_messages(name, email, subject, message) VALUES ($1,$2,$3,$4)
		RETURNING id, sent_at`, m.Name, m.Email, m.Subject, m.Message).Scan(&m.ID, &m.SentAt)
}
