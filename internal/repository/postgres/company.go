package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/cdpcore/internal/models"
)

type CompanyStore struct {
	pool *pgxpool.Pool
}

func NewCompanyStore(pool *pgxpool.Pool) *CompanyStore {
	return &CompanyStore{pool: pool}
}

func (s *CompanyStore) Create(ctx context.Context, name string) (*models.Company, error) {
	query := `
		INSERT INTO companies (name, created_at)
		VALUES ($1, now())
		RETURNING id, name, created_at`

	var c models.Company
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&c.ID,
		&c.Name,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert company: %w", err)
	}
	return &c, nil
}
