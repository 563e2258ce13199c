package service

import (
	"context"
	"log"
	"time"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
	"comercio/backend/internal/suggest"
	"comercio/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo             store.Repository
	suggester        *suggest.Engine
	defaultCompanyID string
}

func New(repo store.Repository, suggester *suggest.Engine, defaultCompanyID string) *Service {
	if defaultCompanyID == "" {
		defaultCompanyID = "main-co"
	}

	return &Service{
		repo:             repo,
		suggester:        suggester,
		defaultCompanyID: defaultCompanyID,
	}
}

func (s *Service) companyOrDefault(companyID string) string {
	if companyID == "" {
		return s.defaultCompanyID
	}
	return companyID
}

func (s *Service) logAudit(ctx context.Context, companyID string, action string, entityType string, entityID string, detail string) {
	if companyID == "" {
		companyID = s.defaultCompanyID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		CompanyID:     companyID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, companyID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, s.companyOrDefault(companyID), from, to, limit)
}
