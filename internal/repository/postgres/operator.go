package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/repository"
)

type OperatorStore struct {
	pool *pgxpool.Pool
}

func NewOperatorStore(pool *pgxpool.Pool) *OperatorStore {
	return &OperatorStore{pool: pool}
}

const operatorColumns = `id, company_id, email, display_name, password_hash, created_at`

func scanOperator(row pgx.Row) (*models.Operator, error) {
	var o models.Operator
	if err := row.Scan(
		&o.ID,
		&o.CompanyID,
		&o.Email,
		&o.DisplayName,
		&o.PasswordHash,
		&o.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OperatorStore) Create(ctx context.Context, companyID uuid.UUID, email, displayName, passwordHash string) (*models.Operator, error) {
	query := `
		INSERT INTO operators (company_id, email, display_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING ` + operatorColumns

	o, err := scanOperator(s.pool.QueryRow(ctx, query, companyID, email, displayName, passwordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("insert operator: %w", err)
	}
	return o, nil
}

func (s *OperatorStore) GetByID(ctx context.Context, companyID uuid.UUID, operatorID uuid.UUID) (*models.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE id = $1 AND company_id = $2`

	o, err := scanOperator(s.pool.QueryRow(ctx, query, operatorID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get operator: %w", err)
	}
	return o, nil
}

func (s *OperatorStore) GetByEmail(ctx context.Context, email string) (*models.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE email = $1`

	o, err := scanOperator(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get operator by email: %w", err)
	}
	return o, nil
}
