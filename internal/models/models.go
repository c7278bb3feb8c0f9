package models

import (
	"time"

	"github.com/google/uuid"
)

// Company is the tenant boundary. Every profile, tag, list and campaign
// belongs to exactly one company and every query is scoped by its ID.
type Company struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Operator is a dashboard user acting on behalf of a company.
type Operator struct {
	ID           uuid.UUID `json:"id"`
	CompanyID    uuid.UUID `json:"company_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is an identified end user, created the first time a session
// submits an identification form.
//
// ListIDs holds legacy short list markers that arrived with tracking
// payloads. They predate tag-based lists and are what SyncListTags repairs.
type Profile struct {
	ID         uuid.UUID `json:"id"`
	CompanyID  uuid.UUID `json:"company_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Source     string    `json:"source"`
	ListIDs    []string  `json:"list_ids"`
	LastActive time.Time `json:"last_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProductInfo is the product payload the tracking snippet attaches to
// commerce events.
type ProductInfo struct {
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	ProductID   string  `json:"productId"`
}

// Event is a single tracked client-side action. EventData is freeform; the
// snippet conventionally sends "address" and "productInfos" keys.
type Event struct {
	EventType string         `json:"eventType"`
	EventData map[string]any `json:"eventData"`
	Timestamp time.Time      `json:"timestamp"`
}

// SessionEvents is one append-only document of events for a browsing
// session. UserID stays nil until the binder attaches the session to a
// profile and is never reset afterwards. Several documents may share a
// SessionID.
type SessionEvents struct {
	ID        uuid.UUID  `json:"id"`
	CompanyID uuid.UUID  `json:"company_id"`
	SessionID string     `json:"session_id"`
	UserID    *uuid.UUID `json:"user_id"`
	ListID    string     `json:"list_id,omitempty"`
	Events    []Event    `json:"events"`
	CreatedAt time.Time  `json:"created_at"`
}

// Tag is a company-scoped label. ProfileCount is a cache written after
// association changes; it is never read back as ground truth.
type Tag struct {
	ID           uuid.UUID `json:"id"`
	CompanyID    uuid.UUID `json:"company_id"`
	Name         string    `json:"name"`
	Color        string    `json:"color"`
	Description  string    `json:"description"`
	ProfileCount int64     `json:"profile_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// AddedBy records who created a profile-tag association.
type AddedBy string

const (
	AddedByManual     AddedBy = "manual"
	AddedByAutomation AddedBy = "automation"
	AddedByAPI        AddedBy = "api"
	AddedByEvent      AddedBy = "event"
)

func (a AddedBy) Valid() bool {
	switch a {
	case AddedByManual, AddedByAutomation, AddedByAPI, AddedByEvent:
		return true
	}
	return false
}

// ProfileTag is the join row between profiles and tags, unique on
// (ProfileID, TagID, CompanyID).
type ProfileTag struct {
	ProfileID uuid.UUID      `json:"profile_id"`
	TagID     uuid.UUID      `json:"tag_id"`
	CompanyID uuid.UUID      `json:"company_id"`
	AddedBy   AddedBy        `json:"added_by"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TagLogic selects how a list combines its tags.
type TagLogic string

const (
	TagLogicAny TagLogic = "any"
	TagLogicAll TagLogic = "all"
)

func (l TagLogic) Valid() bool {
	return l == TagLogicAny || l == TagLogicAll
}

type ListStatus string

const (
	ListStatusActive   ListStatus = "active"
	ListStatusArchived ListStatus = "archived"
)

// List is a dynamic segment. Membership is never stored: it is the set of
// profiles whose associations satisfy TagLogic over TagIDs. ProfileCount
// caches the size of that set as of the last refresh.
//
// ListID is the short public identifier used by the tracking snippet.
type List struct {
	ID           uuid.UUID   `json:"id"`
	ListID       string      `json:"list_id"`
	CompanyID    uuid.UUID   `json:"company_id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	TagIDs       []uuid.UUID `json:"tags"`
	TagLogic     TagLogic    `json:"tag_logic"`
	ProfileCount int64       `json:"profile_count"`
	Status       ListStatus  `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignFailed    CampaignStatus = "failed"
	CampaignPaused    CampaignStatus = "paused"
)

// CampaignStats are monotonically increasing delivery counters. Sent plus
// Failed never exceeds TotalRecipients once sending begins.
type CampaignStats struct {
	TotalRecipients int64 `json:"total_recipients"`
	Sent            int64 `json:"sent_count"`
	Delivered       int64 `json:"delivered_count"`
	Opened          int64 `json:"opened_count"`
	Clicked         int64 `json:"clicked_count"`
	Bounced         int64 `json:"bounced_count"`
	Failed          int64 `json:"failed_count"`
}

// Content is the personalizable part of a campaign.
type Content struct {
	Subject   string `json:"subject"`
	HTMLBody  string `json:"html_body"`
	TextBody  string `json:"text_body"`
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`
	ReplyTo   string `json:"reply_to"`
}

// Campaign is a broadcast bound to one list at creation time.
type Campaign struct {
	ID          uuid.UUID      `json:"id"`
	CompanyID   uuid.UUID      `json:"company_id"`
	ListID      uuid.UUID      `json:"list_id"`
	Name        string         `json:"name"`
	Content     Content        `json:"content"`
	Status      CampaignStatus `json:"status"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	Stats       CampaignStats  `json:"stats"`
	CreatedBy   uuid.UUID      `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TagRule tags a bound session's profile whenever one of its events
// satisfies Expression.
type TagRule struct {
	ID         uuid.UUID `json:"id"`
	CompanyID  uuid.UUID `json:"company_id"`
	TagID      uuid.UUID `json:"tag_id"`
	Name       string    `json:"name"`
	Expression string    `json:"expression"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}
