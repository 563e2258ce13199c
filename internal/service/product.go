package service

import (
	"context"
	"fmt"
	"strings"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.Category == "" {
		return domain.Product{}, store.ErrValidation
	}
	if req.PriceCents < 0 || req.StockMinimum < 0 || req.InitialStock < 0 {
		return domain.Product{}, store.ErrValidation
	}
	if !req.Storable && (req.StockMinimum > 0 || req.InitialStock > 0) {
		return domain.Product{}, store.ErrValidation
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:         req.Name,
		Category:     req.Category,
		PriceCents:   req.PriceCents,
		StockMinimum: req.StockMinimum,
		Storable:     req.Storable,
		Active:       true,
	})
	if err != nil {
		return domain.Product{}, err
	}

	if req.Storable && req.InitialStock > 0 {
		if err := s.repo.SetStock(ctx, created.ID, req.InitialStock); err != nil {
			return domain.Product{}, err
		}
	}

	s.logAudit(ctx, "", "product_create", "product", created.ID,
		fmt.Sprintf("name=%s,price=%d,stock=%.2f", created.Name, created.PriceCents, req.InitialStock))
	return *created, nil
}
