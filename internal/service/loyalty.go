package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

func (s *Service) SaveLoyaltyConfig(ctx context.Context, req domain.LoyaltyConfigRequest) (domain.LoyaltyConfig, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.LoyaltyConfig{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.LoyaltyConfig{}, store.ErrValidation
	}
	if req.Rounding == "" {
		req.Rounding = domain.RoundingFloor
	}
	switch req.Rounding {
	case domain.RoundingFloor, domain.RoundingCeiling, domain.RoundingNearest:
	default:
		return domain.LoyaltyConfig{}, store.ErrValidation
	}
	if req.PointsPerAmount < 0 || req.AmountPerPointsCents < 0 {
		return domain.LoyaltyConfig{}, store.ErrValidation
	}

	saved, err := s.repo.SaveLoyaltyConfig(ctx, domain.LoyaltyConfig{
		ID:                   req.ID,
		Name:                 req.Name,
		Enabled:              req.Enabled,
		PointsPerAmount:      req.PointsPerAmount,
		AmountPerPointsCents: req.AmountPerPointsCents,
		Rounding:             req.Rounding,
	})
	if err != nil {
		return domain.LoyaltyConfig{}, err
	}

	s.logAudit(ctx, "", "loyalty_config_save", "loyalty_config", saved.ID,
		fmt.Sprintf("enabled=%t,rounding=%s", saved.Enabled, saved.Rounding))
	return *saved, nil
}

func (s *Service) GetLoyaltyConfig(ctx context.Context, id string) (domain.LoyaltyConfig, error) {
	config, err := s.repo.GetLoyaltyConfig(ctx, id)
	if err != nil {
		return domain.LoyaltyConfig{}, err
	}
	return *config, nil
}

func (s *Service) CreatePosOrder(ctx context.Context, req domain.PosOrderCreateRequest) (domain.PosOrder, error) {
	if req.AmountTotalCents < 0 {
		return domain.PosOrder{}, store.ErrValidation
	}
	if _, err := s.repo.GetLoyaltyConfig(ctx, req.ConfigID); err != nil {
		return domain.PosOrder{}, err
	}
	if req.PartnerID != "" {
		if _, err := s.repo.GetPartner(ctx, req.PartnerID); err != nil {
			return domain.PosOrder{}, err
		}
	}

	created, err := s.repo.CreatePosOrder(ctx, domain.PosOrder{
		ConfigID:         req.ConfigID,
		PartnerID:        req.PartnerID,
		AmountTotalCents: req.AmountTotalCents,
		State:            domain.PosOrderStateDraft,
	})
	if err != nil {
		return domain.PosOrder{}, err
	}
	return *created, nil
}

func (s *Service) GetPosOrder(ctx context.Context, id string) (domain.PosOrder, error) {
	order, err := s.repo.GetPosOrder(ctx, id)
	if err != nil {
		return domain.PosOrder{}, err
	}
	return *order, nil
}

// PayPosOrder marks the order paid and credits loyalty points once. The draft
// state check stops repeated pay calls, and the ledger's earned-entry-per-order
// uniqueness backs that up if two calls race. Retrying the pay of an order
// whose credit never landed (the ledger append failed after the state flip)
// writes the missing entry instead of rejecting the call.
func (s *Service) PayPosOrder(ctx context.Context, orderID string) (domain.PosOrder, error) {
	order, err := s.repo.GetPosOrder(ctx, orderID)
	if err != nil {
		return domain.PosOrder{}, err
	}
	if order.State != domain.PosOrderStateDraft {
		if order.State == domain.PosOrderStatePaid && order.PartnerID != "" && order.PointsEarned > 0 {
			if _, err := s.repo.FindEarnedEntryByOrder(ctx, order.ID); errors.Is(err, store.ErrNotFound) {
				if _, err := s.creditLoyalty(ctx, domain.LoyaltyEntry{
					PartnerID:        order.PartnerID,
					OrderID:          order.ID,
					Type:             domain.LoyaltyEntryEarned,
					Points:           order.PointsEarned,
					OrderAmountCents: order.AmountTotalCents,
					Description:      "points for order " + order.Ref,
				}); err != nil {
					return domain.PosOrder{}, err
				}
				log.Printf("[service] WARN: order %s was paid without its credit, recovered", order.ID)
				s.logAudit(ctx, "", "pos_order_pay", "pos_order", order.ID,
					fmt.Sprintf("amount=%d,points=%.2f,recovered=true", order.AmountTotalCents, order.PointsEarned))
				return *order, nil
			}
		}
		return domain.PosOrder{}, store.ErrValidation
	}

	config, err := s.repo.GetLoyaltyConfig(ctx, order.ConfigID)
	if err != nil {
		return domain.PosOrder{}, err
	}

	points := float64(0)
	if order.PartnerID != "" {
		points = calculatePoints(*config, order.AmountTotalCents)
	}

	now := time.Now().UTC()
	order.State = domain.PosOrderStatePaid
	order.PaidAt = &now
	order.PointsEarned = points

	saved, err := s.repo.UpdatePosOrder(ctx, *order)
	if err != nil {
		return domain.PosOrder{}, err
	}

	if points > 0 {
		_, err := s.creditLoyalty(ctx, domain.LoyaltyEntry{
			PartnerID:        order.PartnerID,
			OrderID:          order.ID,
			Type:             domain.LoyaltyEntryEarned,
			Points:           points,
			OrderAmountCents: order.AmountTotalCents,
			Description:      "points for order " + order.Ref,
		})
		if errors.Is(err, store.ErrDuplicate) {
			log.Printf("[service] WARN: order %s already credited, skipping", order.ID)
		} else if err != nil {
			return domain.PosOrder{}, err
		}
	}

	s.logAudit(ctx, "", "pos_order_pay", "pos_order", saved.ID,
		fmt.Sprintf("amount=%d,points=%.2f", saved.AmountTotalCents, points))
	return *saved, nil
}

// AddLoyaltyPoints appends a manual ledger movement. Negative points are
// allowed for redemptions and corrections but the balance may not go negative.
func (s *Service) AddLoyaltyPoints(ctx context.Context, partnerID string, req domain.LoyaltyAdjustRequest) (domain.LoyaltyEntry, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.LoyaltyEntry{}, fmt.Errorf("admin role required")
	}

	switch req.Type {
	case domain.LoyaltyEntryRedeemed, domain.LoyaltyEntryAdjustment:
	default:
		return domain.LoyaltyEntry{}, store.ErrValidation
	}
	if req.Type == domain.LoyaltyEntryRedeemed && req.Points > 0 {
		req.Points = -req.Points
	}

	entry, err := s.creditLoyalty(ctx, domain.LoyaltyEntry{
		PartnerID:   partnerID,
		Type:        req.Type,
		Points:      req.Points,
		Description: req.Description,
	})
	if err != nil {
		return domain.LoyaltyEntry{}, err
	}

	s.logAudit(ctx, "", "loyalty_adjust", "partner", partnerID,
		fmt.Sprintf("type=%s,points=%.2f", req.Type, req.Points))
	return *entry, nil
}

// creditLoyalty appends a ledger movement. The store computes BalanceAfter and
// moves the partner balance atomically, rejecting overdrafts.
func (s *Service) creditLoyalty(ctx context.Context, entry domain.LoyaltyEntry) (*domain.LoyaltyEntry, error) {
	entry.Date = time.Now().UTC()
	return s.repo.AppendLoyaltyEntry(ctx, entry)
}

// calculatePoints converts an order total into points. Disabled programs and a
// non-positive conversion base yield zero, and the result never goes negative.
func calculatePoints(config domain.LoyaltyConfig, amountCents int64) float64 {
	if !config.Enabled {
		return 0
	}
	if config.AmountPerPointsCents <= 0 {
		return 0
	}

	raw := float64(amountCents) / float64(config.AmountPerPointsCents) * config.PointsPerAmount

	var points float64
	switch config.Rounding {
	case domain.RoundingCeiling:
		points = math.Ceil(raw)
	case domain.RoundingNearest:
		points = math.Round(raw)
	default:
		points = math.Floor(raw)
	}

	return math.Max(0, points)
}
