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
	"github.com/lalith-99/cdpcore/internal/repository"
)

type CampaignStore struct {
	pool *pgxpool.Pool
}

func NewCampaignStore(pool *pgxpool.Pool) *CampaignStore {
	return &CampaignStore{pool: pool}
}

const campaignColumns = `
	id, company_id, list_id, name,
	subject, html_body, text_body, from_name, from_email, reply_to,
	status, scheduled_at, sent_at, last_error,
	total_recipients, sent_count, delivered_count, opened_count, clicked_count, bounced_count, failed_count,
	created_by, created_at, updated_at`

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var c models.Campaign
	if err := row.Scan(
		&c.ID,
		&c.CompanyID,
		&c.ListID,
		&c.Name,
		&c.Content.Subject,
		&c.Content.HTMLBody,
		&c.Content.TextBody,
		&c.Content.FromName,
		&c.Content.FromEmail,
		&c.Content.ReplyTo,
		&c.Status,
		&c.ScheduledAt,
		&c.SentAt,
		&c.LastError,
		&c.Stats.TotalRecipients,
		&c.Stats.Sent,
		&c.Stats.Delivered,
		&c.Stats.Opened,
		&c.Stats.Clicked,
		&c.Stats.Bounced,
		&c.Stats.Failed,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCampaigns(rows pgx.Rows) ([]models.Campaign, error) {
	defer rows.Close()

	out := make([]models.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	return out, nil
}

func (s *CampaignStore) Create(ctx context.Context, in *models.Campaign) (*models.Campaign, error) {
	query := `
		INSERT INTO campaigns (
			company_id, list_id, name,
			subject, html_body, text_body, from_name, from_email, reply_to,
			status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'draft', $10, now(), now())
		RETURNING ` + campaignColumns

	c, err := scanCampaign(s.pool.QueryRow(ctx, query,
		in.CompanyID, in.ListID, in.Name,
		in.Content.Subject, in.Content.HTMLBody, in.Content.TextBody,
		in.Content.FromName, in.Content.FromEmail, in.Content.ReplyTo,
		in.CreatedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("insert campaign: %w", err)
	}
	return c, nil
}

func (s *CampaignStore) GetByID(ctx context.Context, companyID uuid.UUID, id uuid.UUID) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 AND company_id = $2`

	c, err := scanCampaign(s.pool.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (s *CampaignStore) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE company_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return collectCampaigns(rows)
}

func (s *CampaignStore) UpdateContent(ctx context.Context, in *models.Campaign) (bool, error) {
	query := `
		UPDATE campaigns
		SET name = $3, subject = $4, html_body = $5, text_body = $6,
		    from_name = $7, from_email = $8, reply_to = $9, updated_at = now()
		WHERE id = $1 AND company_id = $2 AND status = 'draft'`

	tag, err := s.pool.Exec(ctx, query,
		in.ID, in.CompanyID, in.Name,
		in.Content.Subject, in.Content.HTMLBody, in.Content.TextBody,
		in.Content.FromName, in.Content.FromEmail, in.Content.ReplyTo,
	)
	if err != nil {
		return false, fmt.Errorf("update campaign: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *CampaignStore) DeleteDraft(ctx context.Context, companyID uuid.UUID, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND company_id = $2 AND status = 'draft'`,
		id, companyID,
	)
	if err != nil {
		return false, fmt.Errorf("delete campaign: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *CampaignStore) Transition(
	ctx context.Context,
	companyID uuid.UUID,
	id uuid.UUID,
	from []models.CampaignStatus,
	to models.CampaignStatus,
	patch repository.TransitionPatch,
) (bool, error) {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}

	// COALESCE keeps columns the patch does not mention. The status guard in
	// the WHERE clause is evaluated under the row lock, so two concurrent
	// transitions out of the same state cannot both succeed.
	query := `
		UPDATE campaigns
		SET status       = $4,
		    scheduled_at = COALESCE($5, scheduled_at),
		    sent_at      = COALESCE($6, sent_at),
		    last_error   = COALESCE($7, last_error),
		    updated_at   = now()
		WHERE id = $1 AND company_id = $2 AND status = ANY($3)`

	tag, err := s.pool.Exec(ctx, query, id, companyID, allowed, to, patch.ScheduledAt, patch.SentAt, patch.LastError)
	if err != nil {
		return false, fmt.Errorf("transition campaign to %s: %w", to, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *CampaignStore) SetTotalRecipients(ctx context.Context, companyID uuid.UUID, id uuid.UUID, total int64) error {
	query := `UPDATE campaigns SET total_recipients = $3, updated_at = now() WHERE id = $1 AND company_id = $2`

	if _, err := s.pool.Exec(ctx, query, id, companyID, total); err != nil {
		return fmt.Errorf("set total recipients: %w", err)
	}
	return nil
}

func (s *CampaignStore) IncrementStats(ctx context.Context, companyID uuid.UUID, id uuid.UUID, d models.CampaignStats) error {
	query := `
		UPDATE campaigns
		SET sent_count      = sent_count + $3,
		    delivered_count = delivered_count + $4,
		    opened_count    = opened_count + $5,
		    clicked_count   = clicked_count + $6,
		    bounced_count   = bounced_count + $7,
		    failed_count    = failed_count + $8,
		    updated_at      = now()
		WHERE id = $1 AND company_id = $2`

	_, err := s.pool.Exec(ctx, query, id, companyID, d.Sent, d.Delivered, d.Opened, d.Clicked, d.Bounced, d.Failed)
	if err != nil {
		return fmt.Errorf("increment campaign stats: %w", err)
	}
	return nil
}

func (s *CampaignStore) ListDue(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at`

	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}
	return collectCampaigns(rows)
}
