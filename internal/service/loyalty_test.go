package service

import (
	"errors"
	"testing"
	"time"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

func TestCalculatePointsRounding(t *testing.T) {
	base := domain.LoyaltyConfig{
		Enabled:              true,
		PointsPerAmount:      1,
		AmountPerPointsCents: 1000,
	}

	cases := []struct {
		rounding string
		amount   int64
		want     float64
	}{
		{domain.RoundingFloor, 9100, 9},
		{domain.RoundingCeiling, 9100, 10},
		{domain.RoundingNearest, 9400, 9},
		{domain.RoundingNearest, 9500, 10},
		{domain.RoundingFloor, 999, 0},
		{domain.RoundingFloor, 0, 0},
	}
	for _, tc := range cases {
		config := base
		config.Rounding = tc.rounding
		got := calculatePoints(config, tc.amount)
		if got != tc.want {
			t.Fatalf("%s of %d: expected %.0f points, got %.2f", tc.rounding, tc.amount, tc.want, got)
		}
	}
}

func TestCalculatePointsDisabledOrMisconfigured(t *testing.T) {
	disabled := domain.LoyaltyConfig{Enabled: false, PointsPerAmount: 1, AmountPerPointsCents: 1000, Rounding: domain.RoundingFloor}
	if got := calculatePoints(disabled, 5000); got != 0 {
		t.Fatalf("expected 0 points when disabled, got %.2f", got)
	}

	zeroBase := domain.LoyaltyConfig{Enabled: true, PointsPerAmount: 1, AmountPerPointsCents: 0, Rounding: domain.RoundingFloor}
	if got := calculatePoints(zeroBase, 5000); got != 0 {
		t.Fatalf("expected 0 points with zero conversion base, got %.2f", got)
	}
}

func TestPayPosOrderCreditsPointsOnce(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	partner, err := svc.CreatePartner(ctx, domain.PartnerCreateRequest{Name: "Cliente Fiel"})
	if err != nil {
		t.Fatalf("create partner failed: %v", err)
	}

	order, err := svc.CreatePosOrder(ctx, domain.PosOrderCreateRequest{
		ConfigID:         "pos-main",
		PartnerID:        partner.ID,
		AmountTotalCents: 9100,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	paid, err := svc.PayPosOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("pay failed: %v", err)
	}
	if paid.State != domain.PosOrderStatePaid || paid.PaidAt == nil {
		t.Fatalf("expected paid order, got state=%s", paid.State)
	}
	if paid.PointsEarned != 9 {
		t.Fatalf("expected 9 points earned, got %.2f", paid.PointsEarned)
	}

	refreshed, err := svc.GetPartner(ctx, partner.ID)
	if err != nil {
		t.Fatalf("get partner failed: %v", err)
	}
	if refreshed.LoyaltyPoints != 9 {
		t.Fatalf("expected balance 9, got %.2f", refreshed.LoyaltyPoints)
	}

	if _, err := svc.PayPosOrder(ctx, order.ID); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected second pay to fail with ErrValidation, got %v", err)
	}

	again, err := svc.GetPartner(ctx, partner.ID)
	if err != nil {
		t.Fatalf("get partner failed: %v", err)
	}
	if again.LoyaltyPoints != 9 {
		t.Fatalf("expected balance to stay 9, got %.2f", again.LoyaltyPoints)
	}
}

func TestPayPosOrderBackfillsMissingCredit(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	partner, err := svc.CreatePartner(ctx, domain.PartnerCreateRequest{Name: "Cliente Recupero"})
	if err != nil {
		t.Fatalf("create partner failed: %v", err)
	}
	order, err := svc.CreatePosOrder(ctx, domain.PosOrderCreateRequest{
		ConfigID:         "pos-main",
		PartnerID:        partner.ID,
		AmountTotalCents: 9100,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	// An order marked paid whose ledger write never landed.
	stored, err := svc.repo.GetPosOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	now := time.Now().UTC()
	stored.State = domain.PosOrderStatePaid
	stored.PaidAt = &now
	stored.PointsEarned = 9
	if _, err := svc.repo.UpdatePosOrder(ctx, *stored); err != nil {
		t.Fatalf("update order failed: %v", err)
	}

	recovered, err := svc.PayPosOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("expected retry to backfill the credit, got %v", err)
	}
	if recovered.State != domain.PosOrderStatePaid {
		t.Fatalf("expected paid order, got state=%s", recovered.State)
	}

	refreshed, err := svc.GetPartner(ctx, partner.ID)
	if err != nil {
		t.Fatalf("get partner failed: %v", err)
	}
	if refreshed.LoyaltyPoints != 9 {
		t.Fatalf("expected balance 9 after backfill, got %.2f", refreshed.LoyaltyPoints)
	}

	if _, err := svc.PayPosOrder(ctx, order.ID); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected third pay to fail with ErrValidation, got %v", err)
	}
	entries, err := svc.LoyaltyHistory(ctx, partner.ID, 0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single earned entry, got %d", len(entries))
	}
}

func TestPayPosOrderWithoutPartnerEarnsNothing(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	order, err := svc.CreatePosOrder(ctx, domain.PosOrderCreateRequest{
		ConfigID:         "pos-main",
		AmountTotalCents: 5000,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	paid, err := svc.PayPosOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("pay failed: %v", err)
	}
	if paid.PointsEarned != 0 {
		t.Fatalf("expected 0 points without partner, got %.2f", paid.PointsEarned)
	}
}

func TestLedgerRunningBalance(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	partner, err := svc.CreatePartner(ctx, domain.PartnerCreateRequest{Name: "Cliente Saldo"})
	if err != nil {
		t.Fatalf("create partner failed: %v", err)
	}

	first, err := svc.AddLoyaltyPoints(ctx, partner.ID, domain.LoyaltyAdjustRequest{
		Points: 10, Type: domain.LoyaltyEntryAdjustment, Description: "alta inicial",
	})
	if err != nil {
		t.Fatalf("first adjustment failed: %v", err)
	}
	if first.BalanceAfter != 10 {
		t.Fatalf("expected balance 10 after first entry, got %.2f", first.BalanceAfter)
	}

	second, err := svc.AddLoyaltyPoints(ctx, partner.ID, domain.LoyaltyAdjustRequest{
		Points: 5, Type: domain.LoyaltyEntryAdjustment,
	})
	if err != nil {
		t.Fatalf("second adjustment failed: %v", err)
	}
	if second.BalanceAfter != 15 {
		t.Fatalf("expected balance 15 after second entry, got %.2f", second.BalanceAfter)
	}

	totals, err := svc.LoyaltyTotals(ctx, partner.ID)
	if err != nil {
		t.Fatalf("totals failed: %v", err)
	}
	if totals.Balance != 15 || totals.EntryCount != 2 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestStoreDerivesBalanceAfter(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	partner, err := svc.CreatePartner(ctx, domain.PartnerCreateRequest{Name: "Cliente Atomico"})
	if err != nil {
		t.Fatalf("create partner failed: %v", err)
	}

	// A stale BalanceAfter from the caller must be ignored.
	entry, err := svc.repo.AppendLoyaltyEntry(ctx, domain.LoyaltyEntry{
		PartnerID:    partner.ID,
		Type:         domain.LoyaltyEntryAdjustment,
		Points:       5,
		BalanceAfter: 999,
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if entry.BalanceAfter != 5 {
		t.Fatalf("expected computed balance 5, got %.2f", entry.BalanceAfter)
	}

	refreshed, err := svc.GetPartner(ctx, partner.ID)
	if err != nil {
		t.Fatalf("get partner failed: %v", err)
	}
	if refreshed.LoyaltyPoints != 5 {
		t.Fatalf("expected partner balance 5, got %.2f", refreshed.LoyaltyPoints)
	}
}

func TestRedemptionCannotOverdraw(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	partner, err := svc.CreatePartner(ctx, domain.PartnerCreateRequest{Name: "Cliente Canje"})
	if err != nil {
		t.Fatalf("create partner failed: %v", err)
	}
	if _, err := svc.AddLoyaltyPoints(ctx, partner.ID, domain.LoyaltyAdjustRequest{
		Points: 8, Type: domain.LoyaltyEntryAdjustment,
	}); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	// Redemptions are stored negative even when sent positive.
	entry, err := svc.AddLoyaltyPoints(ctx, partner.ID, domain.LoyaltyAdjustRequest{
		Points: 3, Type: domain.LoyaltyEntryRedeemed, Description: "canje taza",
	})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if entry.Points != -3 || entry.BalanceAfter != 5 {
		t.Fatalf("expected -3 points and balance 5, got %.2f / %.2f", entry.Points, entry.BalanceAfter)
	}

	_, err = svc.AddLoyaltyPoints(ctx, partner.ID, domain.LoyaltyAdjustRequest{
		Points: 6, Type: domain.LoyaltyEntryRedeemed,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected overdraw to fail with ErrValidation, got %v", err)
	}

	totals, err := svc.LoyaltyTotals(ctx, partner.ID)
	if err != nil {
		t.Fatalf("totals failed: %v", err)
	}
	if totals.Balance != 5 || totals.TotalRedeemed != 3 {
		t.Fatalf("unexpected totals after failed overdraw: %+v", totals)
	}
}

func TestAddLoyaltyPointsRejectsEarnedType(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	partner, err := svc.CreatePartner(ctx, domain.PartnerCreateRequest{Name: "Cliente Manual"})
	if err != nil {
		t.Fatalf("create partner failed: %v", err)
	}

	_, err = svc.AddLoyaltyPoints(ctx, partner.ID, domain.LoyaltyAdjustRequest{
		Points: 10, Type: domain.LoyaltyEntryEarned,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected manual earned entry to be rejected, got %v", err)
	}
}

func TestSaveLoyaltyConfigDefaultsToFloor(t *testing.T) {
	svc := newTestService()

	config, err := svc.SaveLoyaltyConfig(adminCtx(), domain.LoyaltyConfigRequest{
		Name:                 "Caja Secundaria",
		Enabled:              true,
		PointsPerAmount:      2,
		AmountPerPointsCents: 500,
	})
	if err != nil {
		t.Fatalf("save config failed: %v", err)
	}
	if config.Rounding != domain.RoundingFloor {
		t.Fatalf("expected floor rounding default, got %s", config.Rounding)
	}
}
