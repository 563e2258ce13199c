package store

import (
	"context"
	"errors"
	"time"

	"comercio/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrValidation marks a write rejected by a bounded-field or format check.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate marks a write rejected by a uniqueness invariant
	// (active rule per type+company, default rule per company, open alert
	// per product, earned ledger entry per order, active cross-sell edge).
	ErrDuplicate = errors.New("duplicate record")
)

type Repository interface {
	CreateDiscountRule(ctx context.Context, rule domain.DiscountRule) (*domain.DiscountRule, error)
	UpdateDiscountRule(ctx context.Context, rule domain.DiscountRule) (*domain.DiscountRule, error)
	GetDiscountRule(ctx context.Context, id string) (*domain.DiscountRule, error)
	ListDiscountRules(ctx context.Context, companyID string) ([]domain.DiscountRule, error)
	FindActiveDiscountRule(ctx context.Context, customerType string, companyID string) (*domain.DiscountRule, error)
	FindDefaultDiscountRule(ctx context.Context, companyID string) (*domain.DiscountRule, error)

	CreatePartner(ctx context.Context, partner domain.Partner) (*domain.Partner, error)
	UpdatePartner(ctx context.Context, partner domain.Partner) (*domain.Partner, error)
	GetPartner(ctx context.Context, id string) (*domain.Partner, error)
	ListPartners(ctx context.Context, companyID string) ([]domain.Partner, error)

	CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, companyID string, state string, limit int) ([]domain.Invoice, error)

	SaveLoyaltyConfig(ctx context.Context, config domain.LoyaltyConfig) (*domain.LoyaltyConfig, error)
	GetLoyaltyConfig(ctx context.Context, id string) (*domain.LoyaltyConfig, error)
	CreatePosOrder(ctx context.Context, order domain.PosOrder) (*domain.PosOrder, error)
	UpdatePosOrder(ctx context.Context, order domain.PosOrder) (*domain.PosOrder, error)
	GetPosOrder(ctx context.Context, id string) (*domain.PosOrder, error)
	// AppendLoyaltyEntry atomically derives the entry's BalanceAfter from the
	// current partner balance, writes the ledger row and moves the balance.
	// A movement that would drive the balance negative fails with
	// ErrValidation. At most one "earned" entry may exist per order; a second
	// one fails with ErrDuplicate.
	AppendLoyaltyEntry(ctx context.Context, entry domain.LoyaltyEntry) (*domain.LoyaltyEntry, error)
	ListLoyaltyEntries(ctx context.Context, partnerID string, limit int) ([]domain.LoyaltyEntry, error)
	FindEarnedEntryByOrder(ctx context.Context, orderID string) (*domain.LoyaltyEntry, error)

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	GetStock(ctx context.Context, productID string) (float64, error)
	SetStock(ctx context.Context, productID string, qty float64) error
	ListStorableProductsWithMinimum(ctx context.Context) ([]domain.Product, error)

	CreateCrossSellRule(ctx context.Context, rule domain.CrossSellRule) (*domain.CrossSellRule, error)
	UpdateCrossSellRule(ctx context.Context, rule domain.CrossSellRule) (*domain.CrossSellRule, error)
	GetCrossSellRule(ctx context.Context, id string) (*domain.CrossSellRule, error)
	ListCrossSellRules(ctx context.Context, companyID string) ([]domain.CrossSellRule, error)
	// FindCrossSellEdges returns active edges whose source is in the set, plus
	// active bidirectional edges whose suggested product is in the set.
	FindCrossSellEdges(ctx context.Context, productIDs []string, companyID string) ([]domain.CrossSellRule, error)

	CreateSaleOrder(ctx context.Context, order domain.SaleOrder) (*domain.SaleOrder, error)
	UpdateSaleOrder(ctx context.Context, order domain.SaleOrder) (*domain.SaleOrder, error)
	GetSaleOrder(ctx context.Context, id string) (*domain.SaleOrder, error)

	// CreateStockAlert enforces at most one open alert per product and fails
	// with ErrDuplicate when one already exists.
	CreateStockAlert(ctx context.Context, alert domain.StockAlert) (*domain.StockAlert, error)
	UpdateStockAlert(ctx context.Context, alert domain.StockAlert) (*domain.StockAlert, error)
	GetStockAlert(ctx context.Context, id string) (*domain.StockAlert, error)
	ListStockAlerts(ctx context.Context, state string, limit int) ([]domain.StockAlert, error)
	FindOpenAlertByProduct(ctx context.Context, productID string) (*domain.StockAlert, error)

	CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)
	GetEmployee(ctx context.Context, id string) (*domain.Employee, error)
	ListEmployees(ctx context.Context) ([]domain.Employee, error)
	CreatePerformanceReview(ctx context.Context, review domain.PerformanceReview) (*domain.PerformanceReview, error)
	UpdatePerformanceReview(ctx context.Context, review domain.PerformanceReview) (*domain.PerformanceReview, error)
	GetPerformanceReview(ctx context.Context, id string) (*domain.PerformanceReview, error)
	ListReviewsByEmployee(ctx context.Context, employeeID string) ([]domain.PerformanceReview, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, companyID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
