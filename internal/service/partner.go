package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

// CreatePartner registers a contact. When no rule is given the company default
// rule is assigned, if one exists. CustomerType always mirrors the assigned
// rule's type and falls back to the untyped tag when no rule is assigned.
func (s *Service) CreatePartner(ctx context.Context, req domain.PartnerCreateRequest) (domain.Partner, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Partner{}, store.ErrValidation
	}
	companyID := s.companyOrDefault(req.CompanyID)

	partner := domain.Partner{
		Name:         req.Name,
		CompanyID:    companyID,
		CustomerType: domain.CustomerTypeNone,
	}

	ruleID := req.DiscountRuleID
	if ruleID == "" {
		if def, err := s.repo.FindDefaultDiscountRule(ctx, companyID); err == nil {
			ruleID = def.ID
		} else if !errors.Is(err, store.ErrNotFound) {
			return domain.Partner{}, err
		}
	}
	if ruleID != "" {
		rule, err := s.repo.GetDiscountRule(ctx, ruleID)
		if err != nil {
			return domain.Partner{}, err
		}
		partner.DiscountRuleID = rule.ID
		partner.CustomerType = rule.CustomerType
	}

	created, err := s.repo.CreatePartner(ctx, partner)
	if err != nil {
		return domain.Partner{}, err
	}

	s.logAudit(ctx, created.CompanyID, "partner_create", "partner", created.ID,
		fmt.Sprintf("name=%s,type=%s", created.Name, created.CustomerType))
	return *created, nil
}

// AssignDiscountRule re-links a partner to a rule (or clears the link with an
// empty ruleID) and recomputes the mirrored customer type.
func (s *Service) AssignDiscountRule(ctx context.Context, partnerID string, ruleID string) (domain.Partner, error) {
	partner, err := s.repo.GetPartner(ctx, partnerID)
	if err != nil {
		return domain.Partner{}, err
	}

	updated := *partner
	if ruleID == "" {
		updated.DiscountRuleID = ""
		updated.CustomerType = domain.CustomerTypeNone
	} else {
		rule, err := s.repo.GetDiscountRule(ctx, ruleID)
		if err != nil {
			return domain.Partner{}, err
		}
		updated.DiscountRuleID = rule.ID
		updated.CustomerType = rule.CustomerType
	}

	saved, err := s.repo.UpdatePartner(ctx, updated)
	if err != nil {
		return domain.Partner{}, err
	}

	s.logAudit(ctx, saved.CompanyID, "partner_assign_rule", "partner", saved.ID,
		fmt.Sprintf("rule=%s,type=%s", ruleID, saved.CustomerType))
	return *saved, nil
}

func (s *Service) GetPartner(ctx context.Context, id string) (domain.Partner, error) {
	partner, err := s.repo.GetPartner(ctx, id)
	if err != nil {
		return domain.Partner{}, err
	}
	return *partner, nil
}

func (s *Service) ListPartners(ctx context.Context, companyID string) ([]domain.Partner, error) {
	return s.repo.ListPartners(ctx, s.companyOrDefault(companyID))
}

func (s *Service) LoyaltyHistory(ctx context.Context, partnerID string, limit int) ([]domain.LoyaltyEntry, error) {
	if _, err := s.repo.GetPartner(ctx, partnerID); err != nil {
		return nil, err
	}
	return s.repo.ListLoyaltyEntries(ctx, partnerID, limit)
}

func (s *Service) LoyaltyTotals(ctx context.Context, partnerID string) (domain.LoyaltyTotals, error) {
	partner, err := s.repo.GetPartner(ctx, partnerID)
	if err != nil {
		return domain.LoyaltyTotals{}, err
	}

	entries, err := s.repo.ListLoyaltyEntries(ctx, partnerID, 10000)
	if err != nil {
		return domain.LoyaltyTotals{}, err
	}

	totals := domain.LoyaltyTotals{Balance: partner.LoyaltyPoints, EntryCount: len(entries)}
	for _, entry := range entries {
		switch entry.Type {
		case domain.LoyaltyEntryEarned:
			totals.TotalEarned += entry.Points
		case domain.LoyaltyEntryRedeemed:
			totals.TotalRedeemed += -entry.Points
		}
	}
	return totals, nil
}
