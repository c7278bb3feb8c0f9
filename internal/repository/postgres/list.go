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

type ListStore struct {
	pool *pgxpool.Pool
}

func NewListStore(pool *pgxpool.Pool) *ListStore {
	return &ListStore{pool: pool}
}

const listColumns = `id, list_id, company_id, name, description, tag_ids, tag_logic, profile_count, status, created_at, updated_at`

func scanList(row pgx.Row) (*models.List, error) {
	var l models.List
	if err := row.Scan(
		&l.ID,
		&l.ListID,
		&l.CompanyID,
		&l.Name,
		&l.Description,
		&l.TagIDs,
		&l.TagLogic,
		&l.ProfileCount,
		&l.Status,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if l.TagIDs == nil {
		l.TagIDs = []uuid.UUID{}
	}
	return &l, nil
}

func collectLists(rows pgx.Rows) ([]models.List, error) {
	defer rows.Close()

	lists := make([]models.List, 0)
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lists: %w", err)
	}
	return lists, nil
}

func nonNilTags(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func (s *ListStore) Create(ctx context.Context, in *models.List) (*models.List, error) {
	query := `
		INSERT INTO lists (list_id, company_id, name, description, tag_ids, tag_logic, profile_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, now(), now())
		RETURNING ` + listColumns

	l, err := scanList(s.pool.QueryRow(ctx, query,
		in.ListID, in.CompanyID, in.Name, in.Description, nonNilTags(in.TagIDs), in.TagLogic, in.Status,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("insert list: %w", err)
	}
	return l, nil
}

func (s *ListStore) GetByID(ctx context.Context, companyID uuid.UUID, id uuid.UUID) (*models.List, error) {
	query := `SELECT ` + listColumns + ` FROM lists WHERE id = $1 AND company_id = $2`

	l, err := scanList(s.pool.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

func (s *ListStore) GetByListID(ctx context.Context, companyID uuid.UUID, listID string) (*models.List, error) {
	query := `SELECT ` + listColumns + ` FROM lists WHERE list_id = $1 AND company_id = $2`

	l, err := scanList(s.pool.QueryRow(ctx, query, listID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get list by short id: %w", err)
	}
	return l, nil
}

func (s *ListStore) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.List, error) {
	query := `
		SELECT ` + listColumns + `
		FROM lists
		WHERE company_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	return collectLists(rows)
}

func (s *ListStore) Update(ctx context.Context, in *models.List) (*models.List, error) {
	query := `
		UPDATE lists
		SET name = $3, description = $4, tag_ids = $5, tag_logic = $6, status = $7, updated_at = now()
		WHERE id = $1 AND company_id = $2
		RETURNING ` + listColumns

	l, err := scanList(s.pool.QueryRow(ctx, query,
		in.ID, in.CompanyID, in.Name, in.Description, nonNilTags(in.TagIDs), in.TagLogic, in.Status,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update list: %w", err)
	}
	return l, nil
}

func (s *ListStore) Delete(ctx context.Context, companyID uuid.UUID, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lists WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return false, fmt.Errorf("delete list: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ListStore) SetProfileCount(ctx context.Context, companyID uuid.UUID, id uuid.UUID, count int64) error {
	query := `UPDATE lists SET profile_count = $3, updated_at = now() WHERE id = $1 AND company_id = $2`

	if _, err := s.pool.Exec(ctx, query, id, companyID, count); err != nil {
		return fmt.Errorf("set list profile count: %w", err)
	}
	return nil
}

func (s *ListStore) ListReferencingTags(ctx context.Context, companyID uuid.UUID, tagIDs []uuid.UUID) ([]models.List, error) {
	if len(tagIDs) == 0 {
		return []models.List{}, nil
	}

	query := `
		SELECT ` + listColumns + `
		FROM lists
		WHERE company_id = $1 AND tag_ids && $2::uuid[]`

	rows, err := s.pool.Query(ctx, query, companyID, tagIDs)
	if err != nil {
		return nil, fmt.Errorf("list lists by tag: %w", err)
	}
	return collectLists(rows)
}

func (s *ListStore) RemoveTagReference(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		UPDATE lists SET tag_ids = array_remove(tag_ids, $2), updated_at = now()
		WHERE company_id = $1 AND $2 = ANY(tag_ids)
		RETURNING id`

	rows, err := s.pool.Query(ctx, query, companyID, tagID)
	if err != nil {
		return nil, fmt.Errorf("remove tag reference: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect updated lists: %w", err)
	}
	return ids, nil
}
