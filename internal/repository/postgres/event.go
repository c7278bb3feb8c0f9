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

type EventStore struct {
	pool *pgxpool.Pool
}

func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const sessionEventColumns = `id, company_id, session_id, user_id, list_id, events, created_at`

func scanSessionEvents(row pgx.Row) (*models.SessionEvents, error) {
	var rec models.SessionEvents
	if err := row.Scan(
		&rec.ID,
		&rec.CompanyID,
		&rec.SessionID,
		&rec.UserID,
		&rec.ListID,
		&rec.Events,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	if rec.Events == nil {
		rec.Events = []models.Event{}
	}
	return &rec, nil
}

func collectSessionEvents(rows pgx.Rows) ([]models.SessionEvents, error) {
	defer rows.Close()

	out := make([]models.SessionEvents, 0)
	for rows.Next() {
		rec, err := scanSessionEvents(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session events: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}
	return out, nil
}

// Append stores a new anonymous document. user_id is always written as
// null here; only BindSession ever sets it.
func (s *EventStore) Append(ctx context.Context, rec *models.SessionEvents) (*models.SessionEvents, error) {
	query := `
		INSERT INTO session_events (company_id, session_id, user_id, list_id, events, created_at)
		VALUES ($1, $2, NULL, $3, $4, now())
		RETURNING ` + sessionEventColumns

	events := rec.Events
	if events == nil {
		events = []models.Event{}
	}

	out, err := scanSessionEvents(s.pool.QueryRow(ctx, query, rec.CompanyID, rec.SessionID, rec.ListID, events))
	if err != nil {
		return nil, fmt.Errorf("insert session events: %w", err)
	}
	return out, nil
}

func (s *EventStore) BindSession(ctx context.Context, companyID uuid.UUID, sessionID string, profileID uuid.UUID) (int64, error) {
	// The user_id IS NULL predicate is the whole non-interference rule:
	// records another profile already claimed are never reassigned. The
	// owner row is written even when no records match yet.
	query := `
		WITH claim AS (
			INSERT INTO session_owners (company_id, session_id, profile_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (company_id, session_id) DO NOTHING
		)
		UPDATE session_events SET user_id = $3
		WHERE company_id = $1 AND session_id = $2 AND user_id IS NULL`

	tag, err := s.pool.Exec(ctx, query, companyID, sessionID, profileID)
	if err != nil {
		return 0, fmt.Errorf("bind session: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *EventStore) BoundProfile(ctx context.Context, companyID uuid.UUID, sessionID string) (*uuid.UUID, error) {
	query := `
		SELECT profile_id FROM session_owners
		WHERE company_id = $1 AND session_id = $2`

	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query, companyID, sessionID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bound profile: %w", err)
	}
	return &id, nil
}

func (s *EventStore) ListBySession(ctx context.Context, companyID uuid.UUID, sessionID string) ([]models.SessionEvents, error) {
	query := `
		SELECT ` + sessionEventColumns + `
		FROM session_events
		WHERE company_id = $1 AND session_id = $2
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, companyID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session events: %w", err)
	}
	return collectSessionEvents(rows)
}

func (s *EventStore) ListByProfile(ctx context.Context, companyID uuid.UUID, profileID uuid.UUID, limit int) ([]models.SessionEvents, error) {
	query := `
		SELECT ` + sessionEventColumns + `
		FROM session_events
		WHERE company_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, companyID, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list profile events: %w", err)
	}
	return collectSessionEvents(rows)
}
