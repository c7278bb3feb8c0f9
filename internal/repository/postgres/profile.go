package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/cdpcore/internal/models"
)

type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

const profileColumns = `p.id, p.company_id, p.name, p.email, p.phone, p.source, p.list_ids, p.last_active, p.created_at`

func scanProfile(row pgx.Row, extra ...any) (*models.Profile, error) {
	var p models.Profile
	dest := []any{
		&p.ID,
		&p.CompanyID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.Source,
		&p.ListIDs,
		&p.LastActive,
		&p.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if p.ListIDs == nil {
		p.ListIDs = []string{}
	}
	return &p, nil
}

func collectProfiles(rows pgx.Rows) ([]models.Profile, error) {
	defer rows.Close()

	profiles := make([]models.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

func (s *ProfileStore) Upsert(ctx context.Context, in *models.Profile) (*models.Profile, bool, error) {
	// xmax = 0 only on a freshly inserted tuple, which tells the two
	// ON CONFLICT branches apart without a second round trip.
	query := `
		INSERT INTO profiles AS p (company_id, name, email, phone, source, list_ids, last_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (company_id, email) DO UPDATE SET
			name        = COALESCE(NULLIF(EXCLUDED.name, ''), p.name),
			phone       = COALESCE(NULLIF(EXCLUDED.phone, ''), p.phone),
			list_ids    = ARRAY(SELECT DISTINCT x FROM unnest(p.list_ids || EXCLUDED.list_ids) AS x),
			last_active = GREATEST(p.last_active, now())
		RETURNING ` + profileColumns + `, (xmax = 0) AS created`

	listIDs := in.ListIDs
	if listIDs == nil {
		listIDs = []string{}
	}

	var created bool
	p, err := scanProfile(s.pool.QueryRow(ctx, query,
		in.CompanyID, in.Name, in.Email, in.Phone, in.Source, listIDs,
	), &created)
	if err != nil {
		return nil, false, fmt.Errorf("upsert profile: %w", err)
	}
	return p, created, nil
}

func (s *ProfileStore) GetByID(ctx context.Context, companyID uuid.UUID, profileID uuid.UUID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles p WHERE p.id = $1 AND p.company_id = $2`

	p, err := scanProfile(s.pool.QueryRow(ctx, query, profileID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) List(ctx context.Context, companyID uuid.UUID, limit, skip int) ([]models.Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles p
		WHERE p.company_id = $1
		ORDER BY p.last_active DESC, p.id
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, companyID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return collectProfiles(rows)
}

func (s *ProfileStore) IDsWithListMarker(ctx context.Context, companyID uuid.UUID, listID string) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM profiles
		WHERE company_id = $1 AND $2 = ANY(list_ids)`

	rows, err := s.pool.Query(ctx, query, companyID, listID)
	if err != nil {
		return nil, fmt.Errorf("list marked profiles: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect marked profiles: %w", err)
	}
	return ids, nil
}

func (s *ProfileStore) Touch(ctx context.Context, companyID uuid.UUID, profileID uuid.UUID, at time.Time) error {
	query := `
		UPDATE profiles SET last_active = GREATEST(last_active, $3)
		WHERE id = $1 AND company_id = $2`

	if _, err := s.pool.Exec(ctx, query, profileID, companyID, at); err != nil {
		return fmt.Errorf("touch profile: %w", err)
	}
	return nil
}
