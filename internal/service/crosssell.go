package service

import (
	"context"
	"fmt"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

func (s *Service) CreateCrossSellRule(ctx context.Context, req domain.CrossSellRuleCreateRequest) (domain.CrossSellRule, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.CrossSellRule{}, fmt.Errorf("admin role required")
	}

	if req.SourceProductID == "" || req.SuggestedProductID == "" {
		return domain.CrossSellRule{}, store.ErrValidation
	}
	if req.SourceProductID == req.SuggestedProductID {
		return domain.CrossSellRule{}, store.ErrValidation
	}
	if _, err := s.repo.GetProduct(ctx, req.SourceProductID); err != nil {
		return domain.CrossSellRule{}, err
	}
	if _, err := s.repo.GetProduct(ctx, req.SuggestedProductID); err != nil {
		return domain.CrossSellRule{}, err
	}
	if req.Sequence == 0 {
		req.Sequence = 10
	}

	created, err := s.repo.CreateCrossSellRule(ctx, domain.CrossSellRule{
		Sequence:           req.Sequence,
		SourceProductID:    req.SourceProductID,
		SuggestedProductID: req.SuggestedProductID,
		Bidirectional:      req.Bidirectional,
		Active:             true,
		CompanyID:          s.companyOrDefault(req.CompanyID),
		Description:        req.Description,
	})
	if err != nil {
		return domain.CrossSellRule{}, err
	}

	s.logAudit(ctx, created.CompanyID, "cross_sell_rule_create", "cross_sell_rule", created.ID,
		fmt.Sprintf("source=%s,suggested=%s,bidi=%t", created.SourceProductID, created.SuggestedProductID, created.Bidirectional))
	return *created, nil
}

func (s *Service) DeactivateCrossSellRule(ctx context.Context, id string) (domain.CrossSellRule, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.CrossSellRule{}, fmt.Errorf("admin role required")
	}

	rule, err := s.repo.GetCrossSellRule(ctx, id)
	if err != nil {
		return domain.CrossSellRule{}, err
	}
	rule.Active = false

	saved, err := s.repo.UpdateCrossSellRule(ctx, *rule)
	if err != nil {
		return domain.CrossSellRule{}, err
	}

	s.logAudit(ctx, saved.CompanyID, "cross_sell_rule_deactivate", "cross_sell_rule", saved.ID, "")
	return *saved, nil
}

func (s *Service) ListCrossSellRules(ctx context.Context, companyID string) ([]domain.CrossSellRule, error) {
	return s.repo.ListCrossSellRules(ctx, s.companyOrDefault(companyID))
}

// CrossSellProducts computes suggestions for an ad-hoc product set.
func (s *Service) CrossSellProducts(ctx context.Context, companyID string, productIDs []string) (domain.SuggestionResponse, error) {
	if len(productIDs) == 0 {
		return domain.SuggestionResponse{}, store.ErrValidation
	}
	companyID = s.companyOrDefault(companyID)

	edges, err := s.repo.FindCrossSellEdges(ctx, productIDs, companyID)
	if err != nil {
		return domain.SuggestionResponse{}, err
	}

	candidates := make([]string, 0, len(edges)*2)
	for _, edge := range edges {
		candidates = append(candidates, edge.SourceProductID, edge.SuggestedProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, candidates)
	if err != nil {
		return domain.SuggestionResponse{}, err
	}

	return s.suggester.Suggest(ctx, companyID, productIDs, edges, products), nil
}

func (s *Service) CreateSaleOrder(ctx context.Context, req domain.SaleOrderCreateRequest) (domain.SaleOrder, error) {
	if req.PartnerID != "" {
		if _, err := s.repo.GetPartner(ctx, req.PartnerID); err != nil {
			return domain.SaleOrder{}, err
		}
	}
	for _, line := range req.Lines {
		if line.ProductID == "" || line.Quantity <= 0 {
			return domain.SaleOrder{}, store.ErrValidation
		}
		if _, err := s.repo.GetProduct(ctx, line.ProductID); err != nil {
			return domain.SaleOrder{}, err
		}
	}

	created, err := s.repo.CreateSaleOrder(ctx, domain.SaleOrder{
		CompanyID: s.companyOrDefault(req.CompanyID),
		PartnerID: req.PartnerID,
		State:     domain.SaleOrderStateDraft,
		Lines:     req.Lines,
	})
	if err != nil {
		return domain.SaleOrder{}, err
	}
	return *created, nil
}

func (s *Service) GetSaleOrder(ctx context.Context, id string) (domain.SaleOrder, error) {
	order, err := s.repo.GetSaleOrder(ctx, id)
	if err != nil {
		return domain.SaleOrder{}, err
	}
	return *order, nil
}

// SaleOrderSuggestions computes cross-sell suggestions for an order's current
// lines. An order without lines is a user error, not an empty result.
func (s *Service) SaleOrderSuggestions(ctx context.Context, orderID string) (domain.SuggestionResponse, error) {
	order, err := s.repo.GetSaleOrder(ctx, orderID)
	if err != nil {
		return domain.SuggestionResponse{}, err
	}
	if len(order.Lines) == 0 {
		return domain.SuggestionResponse{}, store.ErrValidation
	}

	resp, err := s.CrossSellProducts(ctx, order.CompanyID, orderProductIDs(*order))
	if err != nil {
		return domain.SuggestionResponse{}, err
	}
	resp.OrderID = order.ID
	return resp, nil
}

// AddSuggestedProducts appends the picked suggestions as new order lines.
// Lines for products already on the order get their quantity bumped instead.
func (s *Service) AddSuggestedProducts(ctx context.Context, orderID string, req domain.AddSuggestionsRequest) (domain.AddSuggestionsResponse, error) {
	if len(req.Items) == 0 {
		return domain.AddSuggestionsResponse{}, store.ErrValidation
	}

	order, err := s.repo.GetSaleOrder(ctx, orderID)
	if err != nil {
		return domain.AddSuggestionsResponse{}, err
	}
	if order.State != domain.SaleOrderStateDraft && order.State != domain.SaleOrderStateSent {
		return domain.AddSuggestionsResponse{}, store.ErrValidation
	}

	added := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID == "" {
			return domain.AddSuggestionsResponse{}, store.ErrValidation
		}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		if _, err := s.repo.GetProduct(ctx, item.ProductID); err != nil {
			return domain.AddSuggestionsResponse{}, err
		}

		merged := false
		for i := range order.Lines {
			if order.Lines[i].ProductID == item.ProductID {
				order.Lines[i].Quantity += item.Quantity
				merged = true
				break
			}
		}
		if !merged {
			order.Lines = append(order.Lines, item)
		}
		added = append(added, item.ProductID)
	}

	saved, err := s.repo.UpdateSaleOrder(ctx, *order)
	if err != nil {
		return domain.AddSuggestionsResponse{}, err
	}

	s.logAudit(ctx, saved.CompanyID, "sale_order_add_suggestions", "sale_order", saved.ID,
		fmt.Sprintf("added=%d", len(added)))
	return domain.AddSuggestionsResponse{Added: added, Order: *saved}, nil
}

func orderProductIDs(order domain.SaleOrder) []string {
	ids := make([]string, 0, len(order.Lines))
	seen := make(map[string]struct{}, len(order.Lines))
	for _, line := range order.Lines {
		if line.ProductID == "" {
			continue
		}
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}
