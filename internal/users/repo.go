package users

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func uniqueToConflict(err error) error {
	switch {
	case postgres.IsUniqueViolation(err, "users_username_key"):
		return apperr.Conflict("username already taken")
	case postgres.IsUniqueViolation(err, "users_email_key"):
		return apperr.Conflict("email already registered")
	}
	return err
}

// CreateUser inserts the account and an empty profile row together.
func (r *Repo) CreateUser(ctx context.Context, u *User, passwordHash string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO users(username, email, password_hash, first_name, last_name)
		VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`,
		u.Username, u.Email, passwordHash, u.FirstName, u.LastName).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return uniqueToConflict(err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO user_profiles(user_id) VALUES ($1)`, u.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetProfile(ctx context.Context, userID int64) (Profile, error) {
	var p Profile
	err := r.DB.QueryRow(ctx, `
		SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.created_at,
			COALESCE(p.phone, ''), COALESCE(p.address, ''), COALESCE(p.city, ''),
			COALESCE(p.country, 'Côte d''Ivoire'), COALESCE(p.zipcode, ''), p.birth_date,
			COALESCE(p.newsletter, false), COALESCE(p.notifications_email, true),
			COALESCE(p.notifications_sms, false)
		FROM users u LEFT JOIN user_profiles p ON p.user_id = u.id
		WHERE u.id=$1`, userID).Scan(
		&p.ID, &p.Username, &p.Email, &p.FirstName, &p.LastName, &p.CreatedAt,
		&p.Phone, &p.Address, &p.City, &p.Country, &p.Zipcode, &p.BirthDate,
		&p.Newsletter, &p.NotificationsEmail, &p.NotificationsSMS)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, apperr.NotFound("user not found")
	}
	return p, err
}

func (r *Repo) UpdateProfile(ctx context.Context, userID int64, u ProfileUpdate, birth *time.Time) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `UPDATE users SET first_name=$2, last_name=$3, email=$4 WHERE id=$1`,
		userID, u.FirstName, u.LastName, u.Email)
	if err != nil {
		return uniqueToConflict(err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO user_profiles(user_id, phone, address, city, country, zipcode, birth_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (user_id) DO UPDATE SET phone=EXCLUDED.phone, address=EXCLUDED.address,
			city=EXCLUDED.city, country=EXCLUDED.country, zipcode=EXCLUDED.zipcode,
			birth_date=EXCLUDED.birth_date`,
		userID, u.Phone, u.Address, u.City, u.Country, u.Zipcode, birth); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) UpdatePreferences(ctx context.Context, userID int64, p Preferences) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO user_profiles(user_id, newsletter, notifications_email, notifications_sms)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id) DO UPDATE SET newsletter=EXCLUDED.newsletter,
			notifications_email=EXCLUDED.notifications_email,
			notifications_sms=EXCLUDED.notifications_sms`,
		userID, p.Newsletter, p.NotificationsEmail, p.NotificationsSMS)
	if postgres.IsForeignKeyViolation(err) {
		return apperr.NotFound("user not found")
	}
	return err
}

const addressColumns = `id, user_id, full_name, phone, address, city, country, zipcode,
	address_type, is_default, created_at`

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Address, &a.City,
		&a.Country, &a.Zipcode, &a.Type, &a.IsDefault, &a.CreatedAt)
	return a, err
}

// ListAddresses returns the default address first, then newest first.
func (r *Repo) ListAddresses(ctx context.Context, userID int64) ([]Address, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+addressColumns+` FROM shipping_addresses
		WHERE user_id=$1 ORDER BY is_default DESC, created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddAddress inserts a, clearing the current default first when a is the new default.
func (r *Repo) AddAddress(ctx context.Context, a *Address) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if a.IsDefault {
		if _, err := lockAddresses(ctx, tx, a.UserID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE shipping_addresses SET is_default=false
			WHERE user_id=$1 AND is_default`, a.UserID); err != nil {
			return err
		}
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO shipping_addresses(user_id, full_name, phone, address, city, country,
			zipcode, address_type, is_default)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		a.UserID, a.FullName, a.Phone, a.Address, a.City, a.Country, a.Zipcode, a.Type, a.IsDefault,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "shipping_addresses_one_default") {
			return apperr.Conflict("another default address was set concurrently")
		}
		if postgres.IsForeignKeyViolation(err) {
			return apperr.NotFound("user not found")
		}
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) DeleteAddress(ctx context.Context, userID, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM shipping_addresses WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("address not found")
	}
	return nil
}

// lockAddresses row-locks every address of the user so default changes for one
// user serialise. It returns the locked ids.
func lockAddresses(ctx context.Context, tx pgx.Tx, userID int64) (map[int64]bool, error) {
	rows, err := tx.Query(ctx, `SELECT id FROM shipping_addresses WHERE user_id=$1 ORDER BY id FOR UPDATE`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// SetDefault makes id the user's only default address. The user's addresses are
// locked and the target owner-checked; other users' addresses are never touched.
func (r *Repo) SetDefault(ctx context.Context, userID, id int64) (Address, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Address{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	owned, err := lockAddresses(ctx, tx, userID)
	if err != nil {
		return Address{}, err
	}
	if !owned[id] {
		return Address{}, apperr.NotFound("address not found")
	}

	if _, err := tx.Exec(ctx, `UPDATE shipping_addresses SET is_default=false
		WHERE user_id=$1 AND is_default AND id<>$2`, userID, id); err != nil {
		return Address{}, err
	}
	a, err := scanAddress(tx.QueryRow(ctx, `UPDATE shipping_addresses SET is_default=true
		WHERE id=$1 AND user_id=$2 RETURNING `+addressColumns, id, userID))
	if err != nil {
		return Address{}, err
	}
	return a, tx.Commit(ctx)
}
