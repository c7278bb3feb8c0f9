package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/cdpcore/internal/models"
)

type ProfileTagStore struct {
	pool *pgxpool.Pool
}

func NewProfileTagStore(pool *pgxpool.Pool) *ProfileTagStore {
	return &ProfileTagStore{pool: pool}
}

const profileTagColumns = `profile_id, tag_id, company_id, added_by, metadata, created_at`

func scanProfileTag(row pgx.Row) (*models.ProfileTag, error) {
	var pt models.ProfileTag
	if err := row.Scan(
		&pt.ProfileID,
		&pt.TagID,
		&pt.CompanyID,
		&pt.AddedBy,
		&pt.Metadata,
		&pt.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &pt, nil
}

func (s *ProfileTagStore) Add(ctx context.Context, in models.ProfileTag) (*models.ProfileTag, bool, error) {
	// ON CONFLICT DO NOTHING makes the insert idempotent. RETURNING yields
	// no row on the conflict path, so we fall back to reading the row that
	// won; the caller gets the first association's identity either way.
	insert := `
		INSERT INTO profile_tags (profile_id, tag_id, company_id, added_by, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (profile_id, tag_id, company_id) DO NOTHING
		RETURNING ` + profileTagColumns

	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	pt, err := scanProfileTag(s.pool.QueryRow(ctx, insert, in.ProfileID, in.TagID, in.CompanyID, in.AddedBy, metadata))
	if err == nil {
		return pt, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("add profile tag: %w", err)
	}

	existing, err := s.get(ctx, in.CompanyID, in.ProfileID, in.TagID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *ProfileTagStore) get(ctx context.Context, companyID, profileID, tagID uuid.UUID) (*models.ProfileTag, error) {
	query := `
		SELECT ` + profileTagColumns + `
		FROM profile_tags
		WHERE profile_id = $1 AND tag_id = $2 AND company_id = $3`

	pt, err := scanProfileTag(s.pool.QueryRow(ctx, query, profileID, tagID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile tag: %w", err)
	}
	return pt, nil
}

func (s *ProfileTagStore) Remove(ctx context.Context, companyID, profileID, tagID uuid.UUID) (*models.ProfileTag, error) {
	query := `
		DELETE FROM profile_tags
		WHERE profile_id = $1 AND tag_id = $2 AND company_id = $3
		RETURNING ` + profileTagColumns

	pt, err := scanProfileTag(s.pool.QueryRow(ctx, query, profileID, tagID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("remove profile tag: %w", err)
	}
	return pt, nil
}

func (s *ProfileTagStore) BulkAdd(ctx context.Context, companyID uuid.UUID, profileIDs, tagIDs []uuid.UUID, addedBy models.AddedBy) (int64, error) {
	if len(profileIDs) == 0 || len(tagIDs) == 0 {
		return 0, nil
	}

	// The cross product is built from the company's own rows, so ids
	// belonging to another tenant simply drop out instead of failing the
	// whole statement. Existing pairs are skipped row by row.
	query := `
		INSERT INTO profile_tags (profile_id, tag_id, company_id, added_by, metadata, created_at)
		SELECT p.id, t.id, $1, $4, '{}'::jsonb, now()
		FROM profiles p
		CROSS JOIN tags t
		WHERE p.company_id = $1 AND p.id = ANY($2)
		  AND t.company_id = $1 AND t.id = ANY($3)
		ON CONFLICT (profile_id, tag_id, company_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, companyID, profileIDs, tagIDs, addedBy)
	if err != nil {
		return 0, fmt.Errorf("bulk add profile tags: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *ProfileTagStore) ListByProfile(ctx context.Context, companyID uuid.UUID, profileID uuid.UUID) ([]models.ProfileTag, error) {
	query := `
		SELECT ` + profileTagColumns + `
		FROM profile_tags
		WHERE company_id = $1 AND profile_id = $2
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, companyID, profileID)
	if err != nil {
		return nil, fmt.Errorf("list profile tags: %w", err)
	}
	defer rows.Close()

	out := make([]models.ProfileTag, 0)
	for rows.Next() {
		pt, err := scanProfileTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile tag: %w", err)
		}
		out = append(out, *pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile tags: %w", err)
	}
	return out, nil
}

func (s *ProfileTagStore) DeleteByTag(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profile_tags WHERE company_id = $1 AND tag_id = $2`, companyID, tagID)
	if err != nil {
		return 0, fmt.Errorf("delete tag associations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *ProfileTagStore) CountWithTag(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM profile_tags WHERE company_id = $1 AND tag_id = $2`,
		companyID, tagID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tag profiles: %w", err)
	}
	return n, nil
}

// matchSubquery selects matching profile ids. For "all" the HAVING clause
// compares distinct matched tags against the distinct size of the list's
// tag set; $2 is the tag id array.
func matchSubquery(logic models.TagLogic) string {
	if logic == models.TagLogicAll {
		return `
			SELECT profile_id FROM profile_tags
			WHERE company_id = $1 AND tag_id = ANY($2)
			GROUP BY profile_id
			HAVING COUNT(DISTINCT tag_id) = (SELECT COUNT(DISTINCT x) FROM unnest($2::uuid[]) AS x)`
	}
	return `
		SELECT DISTINCT profile_id FROM profile_tags
		WHERE company_id = $1 AND tag_id = ANY($2)`
}

func (s *ProfileTagStore) MatchProfiles(ctx context.Context, companyID uuid.UUID, tagIDs []uuid.UUID, logic models.TagLogic, limit, skip int) ([]models.Profile, error) {
	if len(tagIDs) == 0 {
		return []models.Profile{}, nil
	}
	if skip < 0 {
		skip = 0
	}

	query := `
		SELECT ` + profileColumns + `
		FROM profiles p
		JOIN (` + matchSubquery(logic) + `) m ON m.profile_id = p.id
		WHERE p.company_id = $1
		ORDER BY p.last_active DESC, p.id
		OFFSET $3`
	args := []any{companyID, tagIDs, skip}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("match profiles: %w", err)
	}
	return collectProfiles(rows)
}

func (s *ProfileTagStore) CountMatching(ctx context.Context, companyID uuid.UUID, tagIDs []uuid.UUID, logic models.TagLogic) (int64, error) {
	if len(tagIDs) == 0 {
		return 0, nil
	}

	query := `
		SELECT COUNT(*)
		FROM profiles p
		JOIN (` + matchSubquery(logic) + `) m ON m.profile_id = p.id
		WHERE p.company_id = $1`

	var n int64
	if err := s.pool.QueryRow(ctx, query, companyID, tagIDs).Scan(&n); err != nil {
		return 0, fmt.Errorf("count matching profiles: %w", err)
	}
	return n, nil
}
