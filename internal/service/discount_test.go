package service

import (
	"errors"
	"testing"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

func TestCreateDiscountRuleRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateDiscountRule(clerkCtx(), domain.DiscountRuleCreateRequest{
		Name:         "Clerk Rule",
		CustomerType: domain.CustomerTypeRetail,
		Percentage:   5,
	})
	if err == nil {
		t.Fatalf("expected non-admin create rule to fail")
	}
}

func TestCreateDiscountRuleRejectsSecondActivePerType(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateDiscountRule(adminCtx(), domain.DiscountRuleCreateRequest{
		Name:         "Segundo Mayorista",
		CustomerType: domain.CustomerTypeWholesale,
		Percentage:   20,
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second active wholesale rule, got %v", err)
	}
}

func TestCreateDiscountRuleRejectsSecondDefault(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateDiscountRule(adminCtx(), domain.DiscountRuleCreateRequest{
		Name:      "Otro Default",
		IsDefault: true,
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second default rule, got %v", err)
	}
}

func TestCreateDiscountRuleRejectsOutOfRangePercentage(t *testing.T) {
	svc := newTestService()

	for _, pct := range []float64{-1, 101} {
		_, err := svc.CreateDiscountRule(adminCtx(), domain.DiscountRuleCreateRequest{
			Name:         "Fuera de Rango",
			CustomerType: domain.CustomerTypeRetail,
			Percentage:   pct,
		})
		if !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected ErrValidation for pct %.0f, got %v", pct, err)
		}
	}
}

func TestResolveDiscountUntypedIsZero(t *testing.T) {
	svc := newTestService()

	for _, customerType := range []string{"", domain.CustomerTypeNone} {
		pct, err := svc.ResolveDiscount(adminCtx(), customerType, "main-co")
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if pct != 0 {
			t.Fatalf("expected 0%% for untyped customer, got %.2f", pct)
		}
	}
}

func TestResolveDiscountAfterDeactivation(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	pct, err := svc.ResolveDiscount(ctx, domain.CustomerTypeWholesale, "main-co")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if pct != 10 {
		t.Fatalf("expected 10%% for wholesale, got %.2f", pct)
	}

	if _, err := svc.DeactivateDiscountRule(ctx, "rule-wholesale"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	pct, err = svc.ResolveDiscount(ctx, domain.CustomerTypeWholesale, "main-co")
	if err != nil {
		t.Fatalf("resolve after deactivate failed: %v", err)
	}
	if pct != 0 {
		t.Fatalf("expected 0%% after deactivation, got %.2f", pct)
	}
}

func TestDeactivationFreesTypeSlot(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if _, err := svc.DeactivateDiscountRule(ctx, "rule-vip"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	created, err := svc.CreateDiscountRule(ctx, domain.DiscountRuleCreateRequest{
		Name:         "VIP Nuevo 20%",
		CustomerType: domain.CustomerTypeVIP,
		Percentage:   20,
	})
	if err != nil {
		t.Fatalf("create after deactivate failed: %v", err)
	}

	pct, err := svc.ResolveDiscount(ctx, domain.CustomerTypeVIP, "main-co")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if pct != created.Percentage {
		t.Fatalf("expected %.2f%% for vip, got %.2f", created.Percentage, pct)
	}
}

func TestCreatePartnerPicksDefaultRule(t *testing.T) {
	svc := newTestService()

	partner, err := svc.CreatePartner(adminCtx(), domain.PartnerCreateRequest{
		Name: "Comercial Andina",
	})
	if err != nil {
		t.Fatalf("create partner failed: %v", err)
	}
	if partner.DiscountRuleID != "rule-default" {
		t.Fatalf("expected default rule assignment, got %q", partner.DiscountRuleID)
	}
	if partner.CustomerType != domain.CustomerTypeNone {
		t.Fatalf("expected untyped customer from default rule, got %q", partner.CustomerType)
	}
}

func TestAssignDiscountRuleMirrorsCustomerType(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	partner, err := svc.CreatePartner(ctx, domain.PartnerCreateRequest{
		Name:           "Distribuidora Sur",
		DiscountRuleID: "rule-wholesale",
	})
	if err != nil {
		t.Fatalf("create partner failed: %v", err)
	}
	if partner.CustomerType != domain.CustomerTypeWholesale {
		t.Fatalf("expected wholesale type, got %q", partner.CustomerType)
	}

	updated, err := svc.AssignDiscountRule(ctx, partner.ID, "rule-vip")
	if err != nil {
		t.Fatalf("assign rule failed: %v", err)
	}
	if updated.CustomerType != domain.CustomerTypeVIP {
		t.Fatalf("expected vip type after reassignment, got %q", updated.CustomerType)
	}

	cleared, err := svc.AssignDiscountRule(ctx, partner.ID, "")
	if err != nil {
		t.Fatalf("clear rule failed: %v", err)
	}
	if cleared.DiscountRuleID != "" || cleared.CustomerType != domain.CustomerTypeNone {
		t.Fatalf("expected cleared assignment, got rule=%q type=%q", cleared.DiscountRuleID, cleared.CustomerType)
	}
}
