package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const productColumns = `p.id, p.title, p.slug, p.price, p.old_price, p.description,
	p.category_id, c.name, p.image_url, p.stock, p.is_new, p.is_active, p.created_at, p.updated_at`

const productFrom = ` FROM products p JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Price, &p.OldPrice, &p.Description,
		&p.CategoryID, &p.CategoryName, &p.ImageURL, &p.Stock, &p.IsNew, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collectProducts(rows pgx.Rows) ([]ProductView, error) {
	defer rows.Close()
	out := []ProductView{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, NewView(p))
	}
	return out, rows.Err()
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, description, image_url, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListProducts returns one page of active products. A page past the end is
// clamped to the last page.
func (r *Repo) ListProducts(ctx context.Context, q ListQuery) (Page, error) {
	q = q.Normalize()
	where, args := q.where()

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*)`+productFrom+` WHERE `+where, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count products: %w", err)
	}
	if last := (total + q.PageSize - 1) / q.PageSize; last > 0 && q.Page > last {
		q.Page = last
	}

	n := len(args)
	sql := fmt.Sprintf(`SELECT %s%s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, productFrom, where, orderBy[q.Sort], n+1, n+2)
	rows, err := r.DB.Query(ctx, sql, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return Page{}, fmt.Errorf("list products: %w", err)
	}
	items, err := collectProducts(rows)
	if err != nil {
		return Page{}, err
	}
	return newPage(items, q, total), nil
}

// GetProduct returns a product regardless of its active flag.
func (r *Repo) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.NotFound("product not found")
	}
	return p, err
}

func (r *Repo) RelatedProducts(ctx context.Context, p Product, limit int) ([]ProductView, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+productFrom+`
		WHERE p.category_id=$1 AND p.is_active AND p.id <> $2
		ORDER BY p.created_at DESC LIMIT $3`, p.CategoryID, p.ID, limit)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (r *Repo) CreateCategory(ctx context.Context, c *Category) error {
	return r.DB.QueryRow(ctx, `
		INSERT INTO categories(name, description, image_url) VALUES ($1,$2,$3)
		RETURNING id, created_at`, c.Name, c.Description, c.ImageURL).Scan(&c.ID, &c.CreatedAt)
}

// CreateProduct derives the slug from the title when none is given.
func (r *Repo) CreateProduct(ctx context.Context, p *Product) error {
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if p.Price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(title, slug, price, old_price, description, category_id,
			image_url, stock, is_new, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at, updated_at`,
		p.Title, p.Slug, p.Price, p.OldPrice, p.Description, p.CategoryID,
		p.ImageURL, p.Stock, p.IsNew, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if postgres.IsUniqueViolation(err, "") {
		return apperr.Conflict("product slug already exists: " + p.Slug)
	}
	return err
}
