package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/repository"
	"github.com/lalith-99/cdpcore/internal/rules"
)

// RuleService manages tag automation rules and applies them to the events
// of sessions that are bound to a profile.
type RuleService struct {
	rules     repository.RuleRepository
	tags      repository.TagRepository
	assocs    repository.ProfileTagRepository
	engine    *rules.Engine
	refresher *Refresher
	logger    *zap.Logger
}

func NewRuleService(
	ruleRepo repository.RuleRepository,
	tags repository.TagRepository,
	assocs repository.ProfileTagRepository,
	engine *rules.Engine,
	refresher *Refresher,
	logger *zap.Logger,
) *RuleService {
	return &RuleService{
		rules:     ruleRepo,
		tags:      tags,
		assocs:    assocs,
		engine:    engine,
		refresher: refresher,
		logger:    logger,
	}
}

type RuleInput struct {
	TagID      uuid.UUID
	Name       string
	Expression string
	Enabled    bool
}

func (s *RuleService) Create(ctx context.Context, companyID uuid.UUID, in RuleInput) (*models.TagRule, error) {
	const op = "rules.create"

	in.Name = strings.TrimSpace(in.Name)
	in.Expression = strings.TrimSpace(in.Expression)
	if in.Name == "" {
		return nil, invalid(op, "name is required")
	}
	if err := s.engine.Compile(in.Expression); err != nil {
		return nil, invalid(op, "invalid expression: %v", err)
	}

	tag, err := s.tags.GetByID(ctx, companyID, in.TagID)
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	if tag == nil {
		return nil, notFound(op, "tag")
	}

	return s.rules.Create(ctx, &models.TagRule{
		CompanyID:  companyID,
		TagID:      in.TagID,
		Name:       in.Name,
		Expression: in.Expression,
		Enabled:    in.Enabled,
	})
}

func (s *RuleService) List(ctx context.Context, companyID uuid.UUID) ([]models.TagRule, error) {
	return s.rules.ListByCompany(ctx, companyID)
}

func (s *RuleService) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	ok, err := s.rules.Delete(ctx, companyID, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if !ok {
		return notFound("rules.delete", "rule")
	}
	return nil
}

// Apply evaluates every enabled rule against events and tags the profile
// for each match. A rule that fails to evaluate is logged and skipped.
// Returns the tags that gained the profile.
func (s *RuleService) Apply(ctx context.Context, companyID, profileID uuid.UUID, sessionID string, events []models.Event) ([]uuid.UUID, error) {
	if len(events) == 0 {
		return nil, nil
	}
	enabled, err := s.rules.ListEnabled(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	var added []uuid.UUID
	for _, rule := range enabled {
		for _, ev := range events {
			ok, err := s.engine.Match(rule.Expression, sessionID, ev)
			if err != nil {
				s.logger.Warn("rule evaluation failed",
					zap.String("rule_id", rule.ID.String()),
					zap.Error(err),
				)
				break
			}
			if !ok {
				continue
			}
			_, created, err := s.assocs.Add(ctx, models.ProfileTag{
				ProfileID: profileID,
				TagID:     rule.TagID,
				CompanyID: companyID,
				AddedBy:   models.AddedByAutomation,
				Metadata: map[string]any{
					"rule_id":    rule.ID.String(),
					"event_type": ev.EventType,
				},
			})
			if err != nil {
				return added, fmt.Errorf("apply rule %s: %w", rule.ID, err)
			}
			if created {
				added = append(added, rule.TagID)
			}
			break
		}
	}

	if len(added) > 0 {
		s.refresher.refreshQuietly(ctx, companyID, added)
	}
	return added, nil
}
