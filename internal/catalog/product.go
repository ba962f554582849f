package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("product not found")

// Product is a catalog entry. The checkout never mutates it; prices are whole
// TRY units.
type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	BasePrice       int       `json:"base_price"`
	OriginalPrice   int       `json:"original_price"`
	DiscountPercent int       `json:"discount_percent"`
	Features        []string  `json:"features"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Get(ctx context.Context, id string) (*Product, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT id, name, description, base_price, original_price, discount_percent,
		       features, created_at, updated_at
		FROM products WHERE id=$1`, id)
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.BasePrice, &p.OriginalPrice,
		&p.DiscountPercent, &p.Features, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, description, base_price, original_price, discount_percent,
		       features, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.BasePrice, &p.OriginalPrice,
			&p.DiscountPercent, &p.Features, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
