package db

import (
	"context"
	"fmt"
)

// schema is applied on every start. Each statement is idempotent.
const schema = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

CREATE TABLE IF NOT EXISTS companies (
	id         UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS operators (
	id            UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	company_id    UUID NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	email         TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
	id          UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	company_id  UUID NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL,
	phone       TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	list_ids    TEXT[] NOT NULL DEFAULT '{}',
	last_active TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, email)
);
CREATE INDEX IF NOT EXISTS idx_profiles_company_active ON profiles (company_id, last_active DESC);
CREATE INDEX IF NOT EXISTS idx_profiles_list_ids ON profiles USING GIN (list_ids);

CREATE TABLE IF NOT EXISTS session_events (
	id         UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	company_id UUID NOT NULL,
	session_id TEXT NOT NULL,
	user_id    UUID REFERENCES profiles(id) ON DELETE SET NULL,
	list_id    TEXT NOT NULL DEFAULT '',
	events     JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_session_events_unbound ON session_events (company_id, session_id) WHERE user_id IS NULL;
CREATE INDEX IF NOT EXISTS idx_session_events_user ON session_events (company_id, user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS session_owners (
	company_id UUID NOT NULL,
	session_id TEXT NOT NULL,
	profile_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	bound_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (company_id, session_id)
);
INSERT INTO session_owners (company_id, session_id, profile_id)
SELECT DISTINCT ON (company_id, session_id) company_id, session_id, user_id
FROM session_events
WHERE user_id IS NOT NULL
ORDER BY company_id, session_id, created_at
ON CONFLICT (company_id, session_id) DO NOTHING;

CREATE TABLE IF NOT EXISTS tags (
	id            UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	company_id    UUID NOT NULL,
	name          TEXT NOT NULL,
	color         TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	profile_count BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, name)
);

CREATE TABLE IF NOT EXISTS profile_tags (
	profile_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	tag_id     UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	company_id UUID NOT NULL,
	added_by   TEXT NOT NULL DEFAULT 'manual',
	metadata   JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (profile_id, tag_id, company_id)
);
CREATE INDEX IF NOT EXISTS idx_profile_tags_tag ON profile_tags (company_id, tag_id);

CREATE TABLE IF NOT EXISTS lists (
	id            UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	list_id       TEXT NOT NULL UNIQUE,
	company_id    UUID NOT NULL,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	tag_ids       UUID[] NOT NULL DEFAULT '{}',
	tag_logic     TEXT NOT NULL DEFAULT 'any',
	profile_count BIGINT NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'active',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_lists_tag_ids ON lists USING GIN (tag_ids);

CREATE TABLE IF NOT EXISTS campaigns (
	id               UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	company_id       UUID NOT NULL,
	list_id          UUID NOT NULL,
	name             TEXT NOT NULL,
	subject          TEXT NOT NULL DEFAULT '',
	html_body        TEXT NOT NULL DEFAULT '',
	text_body        TEXT NOT NULL DEFAULT '',
	from_name        TEXT NOT NULL DEFAULT '',
	from_email       TEXT NOT NULL DEFAULT '',
	reply_to         TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'draft',
	scheduled_at     TIMESTAMPTZ,
	sent_at          TIMESTAMPTZ,
	last_error       TEXT NOT NULL DEFAULT '',
	total_recipients BIGINT NOT NULL DEFAULT 0,
	sent_count       BIGINT NOT NULL DEFAULT 0,
	delivered_count  BIGINT NOT NULL DEFAULT 0,
	opened_count     BIGINT NOT NULL DEFAULT 0,
	clicked_count    BIGINT NOT NULL DEFAULT 0,
	bounced_count    BIGINT NOT NULL DEFAULT 0,
	failed_count     BIGINT NOT NULL DEFAULT 0,
	created_by       UUID NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_campaigns_due ON campaigns (scheduled_at) WHERE status = 'scheduled';

CREATE TABLE IF NOT EXISTS tag_rules (
	id         UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	company_id UUID NOT NULL,
	tag_id     UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	expression TEXT NOT NULL,
	enabled    BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates any missing tables and indexes.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	db.logger.Info("database schema ensured")
	return nil
}
