// README: Service category store backed by PostgreSQL. Read-only for the core.
package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("service category not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// GetActive returns the category only when it exists and is active.
func (s *Store) GetActive(ctx context.Context, id int64) (ServiceCategory, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, service_type, base_price_cents, price_per_mile_cents, active
		FROM service_categories
		WHERE id = $1 AND active`, id,
	)

	var c ServiceCategory
	err := row.Scan(&c.ID, &c.Name, &c.ServiceType, &c.BasePrice.Amount, &c.PricePerMile.Amount, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return ServiceCategory{}, ErrNotFound
	}
	if err != nil {
		return ServiceCategory{}, err
	}
	c.BasePrice.Currency = "USD"
	c.PricePerMile.Currency = "USD"
	return c, nil
}
