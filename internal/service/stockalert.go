package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

func (s *Service) SetStock(ctx context.Context, productID string, qty float64) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	if err := s.repo.SetStock(ctx, productID, qty); err != nil {
		return err
	}

	s.logAudit(ctx, "", "stock_set", "product", productID, fmt.Sprintf("qty=%.2f", qty))
	return nil
}

func (s *Service) GetStock(ctx context.Context, productID string) (float64, error) {
	return s.repo.GetStock(ctx, productID)
}

func (s *Service) SetProductStockMinimum(ctx context.Context, productID string, minimum float64) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}
	if minimum < 0 {
		return domain.Product{}, store.ErrValidation
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	product.StockMinimum = minimum

	saved, err := s.repo.UpdateProduct(ctx, *product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "", "stock_minimum_set", "product", productID, fmt.Sprintf("minimum=%.2f", minimum))
	return *saved, nil
}

// RunStockSweep opens alerts for storable products below their minimum, then
// resolves every open alert whose product is back at or above it. The resolve
// pass walks the open alerts themselves, so an alert outlives changes to the
// product (minimum cleared, product retired) and still closes on recovery.
func (s *Service) RunStockSweep(ctx context.Context) (domain.SweepResult, error) {
	products, err := s.repo.ListStorableProductsWithMinimum(ctx)
	if err != nil {
		return domain.SweepResult{}, err
	}

	result := domain.SweepResult{RanAt: time.Now().UTC().Format(time.RFC3339)}
	for _, product := range products {
		available, err := s.repo.GetStock(ctx, product.ID)
		if err != nil {
			log.Printf("[service] WARN: sweep skipping product %s: %v", product.ID, err)
			continue
		}
		if available >= product.StockMinimum {
			continue
		}

		_, err = s.repo.CreateStockAlert(ctx, domain.StockAlert{
			ProductID:  product.ID,
			State:      domain.AlertStateOpen,
			QtyAtAlert: available,
		})
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return domain.SweepResult{}, err
		}
		result.AlertsCreated++
	}

	open, err := s.repo.ListStockAlerts(ctx, domain.AlertStateOpen, 0)
	if err != nil {
		return domain.SweepResult{}, err
	}
	for _, alert := range open {
		product, err := s.repo.GetProduct(ctx, alert.ProductID)
		if err != nil {
			log.Printf("[service] WARN: sweep skipping alert %s: %v", alert.ID, err)
			continue
		}
		available, err := s.repo.GetStock(ctx, alert.ProductID)
		if err != nil {
			log.Printf("[service] WARN: sweep skipping alert %s: %v", alert.ID, err)
			continue
		}
		if available < product.StockMinimum {
			continue
		}

		now := time.Now().UTC()
		alert.State = domain.AlertStateResolved
		alert.ResolutionDate = &now
		alert.ResolutionNotes = "stock recovered"
		if _, err := s.repo.UpdateStockAlert(ctx, alert); err != nil {
			return domain.SweepResult{}, err
		}
		result.AlertsResolved++
	}

	if result.AlertsCreated > 0 || result.AlertsResolved > 0 {
		log.Printf("[service] stock sweep: %d alert(s) created, %d resolved", result.AlertsCreated, result.AlertsResolved)
	}
	s.logAudit(ctx, "", "stock_sweep", "stock_alert", "",
		fmt.Sprintf("created=%d,resolved=%d", result.AlertsCreated, result.AlertsResolved))
	return result, nil
}

func (s *Service) ResolveStockAlert(ctx context.Context, alertID string, notes string) (domain.StockAlert, error) {
	alert, err := s.repo.GetStockAlert(ctx, alertID)
	if err != nil {
		return domain.StockAlert{}, err
	}
	if alert.State != domain.AlertStateOpen {
		return domain.StockAlert{}, store.ErrValidation
	}

	now := time.Now().UTC()
	alert.State = domain.AlertStateResolved
	alert.ResolutionDate = &now
	alert.ResolutionNotes = notes

	saved, err := s.repo.UpdateStockAlert(ctx, *alert)
	if err != nil {
		return domain.StockAlert{}, err
	}

	s.logAudit(ctx, "", "stock_alert_resolve", "stock_alert", saved.ID, notes)
	return *saved, nil
}

func (s *Service) CancelStockAlert(ctx context.Context, alertID string) (domain.StockAlert, error) {
	alert, err := s.repo.GetStockAlert(ctx, alertID)
	if err != nil {
		return domain.StockAlert{}, err
	}
	if alert.State != domain.AlertStateOpen {
		return domain.StockAlert{}, store.ErrValidation
	}

	alert.State = domain.AlertStateCancelled

	saved, err := s.repo.UpdateStockAlert(ctx, *alert)
	if err != nil {
		return domain.StockAlert{}, err
	}

	s.logAudit(ctx, "", "stock_alert_cancel", "stock_alert", saved.ID, "")
	return *saved, nil
}

// ReopenStockAlert moves a resolved alert back to open and clears the
// resolution fields. Cancelled alerts stay cancelled.
func (s *Service) ReopenStockAlert(ctx context.Context, alertID string) (domain.StockAlert, error) {
	alert, err := s.repo.GetStockAlert(ctx, alertID)
	if err != nil {
		return domain.StockAlert{}, err
	}
	if alert.State != domain.AlertStateResolved {
		return domain.StockAlert{}, store.ErrValidation
	}

	alert.State = domain.AlertStateOpen
	alert.ResolutionDate = nil
	alert.ResolutionNotes = ""

	saved, err := s.repo.UpdateStockAlert(ctx, *alert)
	if err != nil {
		return domain.StockAlert{}, err
	}

	s.logAudit(ctx, "", "stock_alert_reopen", "stock_alert", saved.ID, "")
	return *saved, nil
}

func (s *Service) ListStockAlerts(ctx context.Context, state string, limit int) ([]domain.StockAlert, error) {
	return s.repo.ListStockAlerts(ctx, state, limit)
}

// CriticalStockDashboard groups open alerts by product category with the
// current shortfall against the configured minimum.
func (s *Service) CriticalStockDashboard(ctx context.Context) (domain.CriticalDashboard, error) {
	alerts, err := s.repo.ListStockAlerts(ctx, domain.AlertStateOpen, 0)
	if err != nil {
		return domain.CriticalDashboard{}, err
	}

	dashboard := domain.CriticalDashboard{Categories: make(map[string][]domain.CriticalProduct)}
	for _, alert := range alerts {
		product, err := s.repo.GetProduct(ctx, alert.ProductID)
		if err != nil {
			log.Printf("[service] WARN: dashboard skipping alert %s: %v", alert.ID, err)
			continue
		}
		available, err := s.repo.GetStock(ctx, product.ID)
		if err != nil {
			log.Printf("[service] WARN: dashboard skipping alert %s: %v", alert.ID, err)
			continue
		}

		deficit := product.StockMinimum - available
		if deficit < 0 {
			deficit = 0
		}
		dashboard.Categories[product.Category] = append(dashboard.Categories[product.Category], domain.CriticalProduct{
			AlertID:      alert.ID,
			ProductID:    product.ID,
			Product:      product.Name,
			CurrentStock: available,
			MinimumStock: product.StockMinimum,
			Deficit:      deficit,
		})
	}
	return dashboard, nil
}
