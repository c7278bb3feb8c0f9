package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/cdpcore/internal/models"
)

type RuleStore struct {
	pool *pgxpool.Pool
}

func NewRuleStore(pool *pgxpool.Pool) *RuleStore {
	return &RuleStore{pool: pool}
}

const ruleColumns = `id, company_id, tag_id, name, expression, enabled, created_at`

func scanRule(row pgx.Row) (*models.TagRule, error) {
	var r models.TagRule
	if err := row.Scan(&r.ID, &r.CompanyID, &r.TagID, &r.Name, &r.Expression, &r.Enabled, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RuleStore) Create(ctx context.Context, in *models.TagRule) (*models.TagRule, error) {
	query := `
		INSERT INTO tag_rules (company_id, tag_id, name, expression, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING ` + ruleColumns

	r, err := scanRule(s.pool.QueryRow(ctx, query, in.CompanyID, in.TagID, in.Name, in.Expression, in.Enabled))
	if err != nil {
		return nil, fmt.Errorf("insert tag rule: %w", err)
	}
	return r, nil
}

func (s *RuleStore) list(ctx context.Context, query string, args ...any) ([]models.TagRule, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tag rules: %w", err)
	}
	defer rows.Close()

	rules := make([]models.TagRule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag rule: %w", err)
		}
		rules = append(rules, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag rules: %w", err)
	}
	return rules, nil
}

func (s *RuleStore) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.TagRule, error) {
	return s.list(ctx, `
		SELECT `+ruleColumns+` FROM tag_rules
		WHERE company_id = $1
		ORDER BY created_at`, companyID)
}

func (s *RuleStore) ListEnabled(ctx context.Context, companyID uuid.UUID) ([]models.TagRule, error) {
	return s.list(ctx, `
		SELECT `+ruleColumns+` FROM tag_rules
		WHERE company_id = $1 AND enabled
		ORDER BY created_at`, companyID)
}

func (s *RuleStore) Delete(ctx context.Context, companyID uuid.UUID, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tag_rules WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return false, fmt.Errorf("delete tag rule: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *RuleStore) DeleteByTag(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tag_rules WHERE company_id = $1 AND tag_id = $2`, companyID, tagID)
	if err != nil {
		return 0, fmt.Errorf("delete tag rules by tag: %w", err)
	}
	return tag.RowsAffected(), nil
}
