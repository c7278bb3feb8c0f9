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

type TagStore struct {
	pool *pgxpool.Pool
}

func NewTagStore(pool *pgxpool.Pool) *TagStore {
	return &TagStore{pool: pool}
}

const tagColumns = `id, company_id, name, color, description, profile_count, created_at`

func scanTag(row pgx.Row) (*models.Tag, error) {
	var t models.Tag
	if err := row.Scan(
		&t.ID,
		&t.CompanyID,
		&t.Name,
		&t.Color,
		&t.Description,
		&t.ProfileCount,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TagStore) Create(ctx context.Context, in *models.Tag) (*models.Tag, error) {
	query := `
		INSERT INTO tags (company_id, name, color, description, profile_count, created_at)
		VALUES ($1, $2, $3, $4, 0, now())
		RETURNING ` + tagColumns

	t, err := scanTag(s.pool.QueryRow(ctx, query, in.CompanyID, in.Name, in.Color, in.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	return t, nil
}

func (s *TagStore) GetByID(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID) (*models.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags WHERE id = $1 AND company_id = $2`

	t, err := scanTag(s.pool.QueryRow(ctx, query, tagID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return t, nil
}

func (s *TagStore) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Tag, error) {
	query := `
		SELECT ` + tagColumns + `
		FROM tags
		WHERE company_id = $1
		ORDER BY name`

	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]models.Tag, 0)
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

func (s *TagStore) Update(ctx context.Context, in *models.Tag) (*models.Tag, error) {
	query := `
		UPDATE tags SET name = $3, color = $4, description = $5
		WHERE id = $1 AND company_id = $2
		RETURNING ` + tagColumns

	t, err := scanTag(s.pool.QueryRow(ctx, query, in.ID, in.CompanyID, in.Name, in.Color, in.Description))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("update tag: %w", err)
	}
	return t, nil
}

func (s *TagStore) Delete(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1 AND company_id = $2`, tagID, companyID)
	if err != nil {
		return false, fmt.Errorf("delete tag: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *TagStore) SetProfileCount(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID, count int64) error {
	query := `UPDATE tags SET profile_count = $3 WHERE id = $1 AND company_id = $2`

	if _, err := s.pool.Exec(ctx, query, tagID, companyID, count); err != nil {
		return fmt.Errorf("set tag profile count: %w", err)
	}
	return nil
}
