package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

func TestLoyaltyEntryCreditedOncePerOrder(t *testing.T) {
	databaseURL := os.Getenv("COMERCIO_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set COMERCIO_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	partnerID := fmt.Sprintf("ptn-loy-it-%d", stamp)
	orderID := fmt.Sprintf("pos-loy-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM loyalty_ledger WHERE partner_id = $1`, partnerID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM partners WHERE id = $1`, partnerID)
	})

	if _, err := s.CreatePartner(ctx, domain.Partner{
		ID:           partnerID,
		Name:         "Cliente Integracion",
		CompanyID:    "main-co",
		CustomerType: domain.CustomerTypeNone,
	}); err != nil {
		t.Fatalf("create partner: %v", err)
	}

	entry := domain.LoyaltyEntry{
		PartnerID:        partnerID,
		OrderID:          orderID,
		Type:             domain.LoyaltyEntryEarned,
		Points:           9,
		OrderAmountCents: 9100,
		Date:             time.Now().UTC(),
	}

	first, err := s.AppendLoyaltyEntry(ctx, entry)
	if err != nil {
		t.Fatalf("first credit: %v", err)
	}
	if first.BalanceAfter != 9 {
		t.Fatalf("expected computed balance 9, got %.2f", first.BalanceAfter)
	}

	_, err = s.AppendLoyaltyEntry(ctx, entry)
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second credit on same order, got %v", err)
	}

	partner, err := s.GetPartner(ctx, partnerID)
	if err != nil {
		t.Fatalf("get partner: %v", err)
	}
	if partner.LoyaltyPoints != 9 {
		t.Fatalf("expected balance 9 after rejected duplicate, got %.2f", partner.LoyaltyPoints)
	}
}
