package service

import (
	"errors"
	"testing"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

func suggestionIDs(resp domain.SuggestionResponse) []string {
	ids := make([]string, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		ids = append(ids, s.ProductID)
	}
	return ids
}

func containsID(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

func TestCrossSellForwardEdge(t *testing.T) {
	svc := newTestService()

	resp, err := svc.CrossSellProducts(adminCtx(), "main-co", []string{"prod-cafe"})
	if err != nil {
		t.Fatalf("suggestions failed: %v", err)
	}

	ids := suggestionIDs(resp)
	if !containsID(ids, "prod-filtros") {
		t.Fatalf("expected filtros suggested for cafe, got %v", ids)
	}
	if !containsID(ids, "prod-taza") {
		t.Fatalf("expected taza suggested for cafe, got %v", ids)
	}
	if containsID(ids, "prod-cafe") {
		t.Fatalf("basket product must not be suggested, got %v", ids)
	}
}

func TestCrossSellDirectedEdgeHasNoReverse(t *testing.T) {
	svc := newTestService()

	resp, err := svc.CrossSellProducts(adminCtx(), "main-co", []string{"prod-filtros"})
	if err != nil {
		t.Fatalf("suggestions failed: %v", err)
	}
	if len(resp.Suggestions) != 0 {
		t.Fatalf("expected no suggestions for directed reverse, got %v", suggestionIDs(resp))
	}
}

func TestCrossSellBidirectionalReverse(t *testing.T) {
	svc := newTestService()

	resp, err := svc.CrossSellProducts(adminCtx(), "main-co", []string{"prod-taza"})
	if err != nil {
		t.Fatalf("suggestions failed: %v", err)
	}
	ids := suggestionIDs(resp)
	if !containsID(ids, "prod-cafe") {
		t.Fatalf("expected cafe via bidirectional edge, got %v", ids)
	}
}

func TestCrossSellSkipsInactiveProducts(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	// Two active edges point away from cafe; retire one target product.
	filtros, err := svc.GetProduct(ctx, "prod-filtros")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	filtros.Active = false
	if _, err := svc.repo.UpdateProduct(ctx, filtros); err != nil {
		t.Fatalf("deactivate product failed: %v", err)
	}

	resp, err := svc.CrossSellProducts(ctx, "main-co", []string{"prod-cafe"})
	if err != nil {
		t.Fatalf("suggestions failed: %v", err)
	}
	ids := suggestionIDs(resp)
	if containsID(ids, "prod-filtros") {
		t.Fatalf("inactive product must not be suggested, got %v", ids)
	}
	if !containsID(ids, "prod-taza") {
		t.Fatalf("expected taza to survive, got %v", ids)
	}
}

func TestCrossSellEmptyBasketRejected(t *testing.T) {
	svc := newTestService()

	_, err := svc.CrossSellProducts(adminCtx(), "main-co", nil)
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty basket, got %v", err)
	}
}

func TestCreateCrossSellRuleRejectsSelfReference(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateCrossSellRule(adminCtx(), domain.CrossSellRuleCreateRequest{
		SourceProductID:    "prod-cafe",
		SuggestedProductID: "prod-cafe",
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for self reference, got %v", err)
	}
}

func TestCreateCrossSellRuleRejectsDuplicateActiveEdge(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateCrossSellRule(adminCtx(), domain.CrossSellRuleCreateRequest{
		SourceProductID:    "prod-cafe",
		SuggestedProductID: "prod-filtros",
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for existing edge, got %v", err)
	}
}

func TestDeactivatedEdgeStopsSuggesting(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if _, err := svc.DeactivateCrossSellRule(ctx, "xsell-cafe-filtros"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	resp, err := svc.CrossSellProducts(ctx, "main-co", []string{"prod-cafe"})
	if err != nil {
		t.Fatalf("suggestions failed: %v", err)
	}
	if containsID(suggestionIDs(resp), "prod-filtros") {
		t.Fatalf("deactivated edge must not suggest, got %v", suggestionIDs(resp))
	}
}

func TestSaleOrderSuggestionsAndAdd(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	order, err := svc.CreateSaleOrder(ctx, domain.SaleOrderCreateRequest{
		Lines: []domain.SaleOrderLine{{ProductID: "prod-cafe", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	resp, err := svc.SaleOrderSuggestions(ctx, order.ID)
	if err != nil {
		t.Fatalf("suggestions failed: %v", err)
	}
	if resp.OrderID != order.ID {
		t.Fatalf("expected order id %s on response, got %s", order.ID, resp.OrderID)
	}
	if len(resp.Suggestions) == 0 {
		t.Fatalf("expected suggestions for cafe order")
	}

	added, err := svc.AddSuggestedProducts(ctx, order.ID, domain.AddSuggestionsRequest{
		Items: []domain.SaleOrderLine{
			{ProductID: "prod-filtros", Quantity: 1},
			{ProductID: "prod-cafe", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("add suggestions failed: %v", err)
	}
	if len(added.Added) != 2 {
		t.Fatalf("expected 2 added products, got %d", len(added.Added))
	}
	if len(added.Order.Lines) != 2 {
		t.Fatalf("expected merge onto existing cafe line, got %d lines", len(added.Order.Lines))
	}
	for _, line := range added.Order.Lines {
		if line.ProductID == "prod-cafe" && line.Quantity != 3 {
			t.Fatalf("expected cafe quantity 3 after merge, got %.2f", line.Quantity)
		}
	}
}

func TestAddSuggestionsBlockedAfterConfirmation(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	order, err := svc.CreateSaleOrder(ctx, domain.SaleOrderCreateRequest{
		Lines: []domain.SaleOrderLine{{ProductID: "prod-cafe", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	order.State = domain.SaleOrderStateConfirmed
	if _, err := svc.repo.UpdateSaleOrder(ctx, order); err != nil {
		t.Fatalf("confirm order failed: %v", err)
	}

	_, err = svc.AddSuggestedProducts(ctx, order.ID, domain.AddSuggestionsRequest{
		Items: []domain.SaleOrderLine{{ProductID: "prod-filtros", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected confirmed order to reject additions, got %v", err)
	}
}

func TestSaleOrderSuggestionsRequiresLines(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	order, err := svc.CreateSaleOrder(ctx, domain.SaleOrderCreateRequest{})
	if err != nil {
		t.Fatalf("create empty order failed: %v", err)
	}

	_, err = svc.SaleOrderSuggestions(ctx, order.ID)
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty order, got %v", err)
	}
}
