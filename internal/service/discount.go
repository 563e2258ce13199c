package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

func (s *Service) CreateDiscountRule(ctx context.Context, req domain.DiscountRuleCreateRequest) (domain.DiscountRule, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.DiscountRule{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.CustomerType = strings.TrimSpace(req.CustomerType)
	if req.Name == "" {
		return domain.DiscountRule{}, store.ErrValidation
	}
	if req.CustomerType == "" {
		req.CustomerType = domain.CustomerTypeNone
	}
	if !isCustomerType(req.CustomerType) {
		return domain.DiscountRule{}, store.ErrValidation
	}
	if req.Percentage < 0 || req.Percentage > 100 {
		return domain.DiscountRule{}, store.ErrValidation
	}

	rule := domain.DiscountRule{
		Name:         req.Name,
		CustomerType: req.CustomerType,
		Percentage:   req.Percentage,
		Active:       true,
		IsDefault:    req.IsDefault,
		CompanyID:    s.companyOrDefault(req.CompanyID),
	}

	created, err := s.repo.CreateDiscountRule(ctx, rule)
	if err != nil {
		return domain.DiscountRule{}, err
	}

	s.logAudit(ctx, created.CompanyID, "discount_rule_create", "discount_rule", created.ID,
		fmt.Sprintf("type=%s,pct=%.2f", created.CustomerType, created.Percentage))
	return *created, nil
}

func (s *Service) UpdateDiscountRule(ctx context.Context, id string, req domain.DiscountRuleUpdateRequest) (domain.DiscountRule, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.DiscountRule{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetDiscountRule(ctx, id)
	if err != nil {
		return domain.DiscountRule{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.DiscountRule{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Percentage != nil {
		if *req.Percentage < 0 || *req.Percentage > 100 {
			return domain.DiscountRule{}, store.ErrValidation
		}
		updated.Percentage = *req.Percentage
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if req.IsDefault != nil {
		updated.IsDefault = *req.IsDefault
	}

	saved, err := s.repo.UpdateDiscountRule(ctx, updated)
	if err != nil {
		return domain.DiscountRule{}, err
	}

	s.logAudit(ctx, saved.CompanyID, "discount_rule_update", "discount_rule", saved.ID,
		fmt.Sprintf("active=%t,pct=%.2f", saved.Active, saved.Percentage))
	return *saved, nil
}

// DeactivateDiscountRule releases the rule's (type, company) slot so another
// rule for the same customer type can become active.
func (s *Service) DeactivateDiscountRule(ctx context.Context, id string) (domain.DiscountRule, error) {
	inactive := false
	return s.UpdateDiscountRule(ctx, id, domain.DiscountRuleUpdateRequest{Active: &inactive})
}

func (s *Service) GetDiscountRule(ctx context.Context, id string) (domain.DiscountRule, error) {
	rule, err := s.repo.GetDiscountRule(ctx, id)
	if err != nil {
		return domain.DiscountRule{}, err
	}
	return *rule, nil
}

func (s *Service) ListDiscountRules(ctx context.Context, companyID string) ([]domain.DiscountRule, error) {
	return s.repo.ListDiscountRules(ctx, s.companyOrDefault(companyID))
}

// ResolveDiscount returns the percentage to apply for a customer type. The
// untyped tag short-circuits to zero without a lookup, and a type with no
// active rule resolves to zero rather than an error.
func (s *Service) ResolveDiscount(ctx context.Context, customerType string, companyID string) (float64, error) {
	if customerType == "" || customerType == domain.CustomerTypeNone {
		return 0, nil
	}
	if !isCustomerType(customerType) {
		return 0, store.ErrValidation
	}

	rule, err := s.repo.FindActiveDiscountRule(ctx, customerType, s.companyOrDefault(companyID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return rule.Percentage, nil
}

func isCustomerType(value string) bool {
	for _, t := range domain.CustomerTypes {
		if t == value {
			return true
		}
	}
	return false
}
