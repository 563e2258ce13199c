package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
	"comercio/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	discountRules   map[string]domain.DiscountRule
	partners        map[string]domain.Partner
	invoices        map[string]domain.Invoice
	loyaltyConfigs  map[string]domain.LoyaltyConfig
	posOrders       map[string]domain.PosOrder
	loyaltyLedger   []domain.LoyaltyEntry
	products        map[string]domain.Product
	stock           map[string]float64
	crossSellRules  map[string]domain.CrossSellRule
	saleOrders      map[string]domain.SaleOrder
	stockAlerts     map[string]domain.StockAlert
	employees       map[string]domain.Employee
	reviews         map[string]domain.PerformanceReview
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		discountRules:   make(map[string]domain.DiscountRule),
		partners:        make(map[string]domain.Partner),
		invoices:        make(map[string]domain.Invoice),
		loyaltyConfigs:  make(map[string]domain.LoyaltyConfig),
		posOrders:       make(map[string]domain.PosOrder),
		loyaltyLedger:   make([]domain.LoyaltyEntry, 0, 128),
		products:        make(map[string]domain.Product),
		stock:           make(map[string]float64),
		crossSellRules:  make(map[string]domain.CrossSellRule),
		saleOrders:      make(map[string]domain.SaleOrder),
		stockAlerts:     make(map[string]domain.StockAlert),
		employees:       make(map[string]domain.Employee),
		reviews:         make(map[string]domain.PerformanceReview),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store preloaded with demo fixtures for dev mode.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []domain.Product{
		{ID: "prod-cafe", Name: "Cafe Molido 500g", Category: "beverage", PriceCents: 8900, StockMinimum: 10, Storable: true, Active: true, CreatedAt: now},
		{ID: "prod-filtros", Name: "Filtros de Papel x100", Category: "beverage", PriceCents: 2400, StockMinimum: 5, Storable: true, Active: true, CreatedAt: now},
		{ID: "prod-azucar", Name: "Azucar 1kg", Category: "grocery", PriceCents: 1800, StockMinimum: 8, Storable: true, Active: true, CreatedAt: now},
		{ID: "prod-taza", Name: "Taza Ceramica", Category: "household", PriceCents: 5600, Storable: true, Active: true, CreatedAt: now},
		{ID: "prod-servicio", Name: "Servicio de Instalacion", Category: "service", PriceCents: 25000, Storable: false, Active: true, CreatedAt: now},
	}
	for _, p := range products {
		s.products[p.ID] = p
		if p.Storable {
			s.stock[p.ID] = 50
		}
	}

	rules := []domain.DiscountRule{
		{ID: "rule-retail", Name: "Descuento Minorista 5%", CustomerType: domain.CustomerTypeRetail, Percentage: 5, Active: true, CompanyID: "main-co", CreatedAt: now},
		{ID: "rule-wholesale", Name: "Descuento Mayorista 10%", CustomerType: domain.CustomerTypeWholesale, Percentage: 10, Active: true, CompanyID: "main-co", CreatedAt: now},
		{ID: "rule-vip", Name: "Descuento VIP 15%", CustomerType: domain.CustomerTypeVIP, Percentage: 15, Active: true, CompanyID: "main-co", CreatedAt: now},
		{ID: "rule-default", Name: "Sin Tipo", CustomerType: domain.CustomerTypeNone, Percentage: 0, Active: true, IsDefault: true, CompanyID: "main-co", CreatedAt: now},
	}
	for _, r := range rules {
		s.discountRules[r.ID] = r
	}

	s.loyaltyConfigs["pos-main"] = domain.LoyaltyConfig{
		ID:                   "pos-main",
		Name:                 "Caja Principal",
		Enabled:              true,
		PointsPerAmount:      1,
		AmountPerPointsCents: 1000,
		Rounding:             domain.RoundingFloor,
	}

	edges := []domain.CrossSellRule{
		{ID: "xsell-cafe-filtros", Sequence: 10, SourceProductID: "prod-cafe", SuggestedProductID: "prod-filtros", Bidirectional: false, Active: true, CompanyID: "main-co", CreatedAt: now},
		{ID: "xsell-cafe-taza", Sequence: 20, SourceProductID: "prod-cafe", SuggestedProductID: "prod-taza", Bidirectional: true, Active: true, CompanyID: "main-co", CreatedAt: now},
	}
	for _, e := range edges {
		s.crossSellRules[e.ID] = e
	}

	employees := []domain.Employee{
		{ID: "emp-ana", Name: "Ana Morales", Department: "Ventas", Job: "Vendedora", Active: true, CreatedAt: now},
		{ID: "emp-luis", Name: "Luis Ferrer", Department: "Ventas", Job: "Gerente de Ventas", Active: true, CreatedAt: now},
	}
	for _, e := range employees {
		s.employees[e.ID] = e
	}

	s.usersByUsername = seedUsers()
	return s
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD; hardcoded
// dev defaults are used with a warning when unset.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	clerkPwd := envOr("SEED_CLERK_PASSWORD", "clerk123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CLERK_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"clerk", clerkPwd, "clerk"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ---- discount rules ----

func (s *Store) CreateDiscountRule(_ context.Context, rule domain.DiscountRule) (*domain.DiscountRule, error) {
	if rule.Name == "" || !isCustomerType(rule.CustomerType) {
		return nil, store.ErrValidation
	}
	if rule.Percentage < 0 || rule.Percentage > 100 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == "" {
		rule.ID = xid.New("rule")
	}
	if _, exists := s.discountRules[rule.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	if err := s.checkRuleUniquenessLocked(rule); err != nil {
		return nil, err
	}

	s.discountRules[rule.ID] = rule
	created := rule
	return &created, nil
}

func (s *Store) UpdateDiscountRule(_ context.Context, rule domain.DiscountRule) (*domain.DiscountRule, error) {
	if rule.Name == "" || !isCustomerType(rule.CustomerType) {
		return nil, store.ErrValidation
	}
	if rule.Percentage < 0 || rule.Percentage > 100 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.discountRules[rule.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if err := s.checkRuleUniquenessLocked(rule); err != nil {
		return nil, err
	}

	s.discountRules[rule.ID] = rule
	updated := rule
	return &updated, nil
}

// checkRuleUniquenessLocked is the query-before-write guard: one active rule
// per (type, company) for typed rules, one default rule per company.
func (s *Store) checkRuleUniquenessLocked(rule domain.DiscountRule) error {
	for _, other := range s.discountRules {
		if other.ID == rule.ID {
			continue
		}
		if rule.Active && rule.CustomerType != domain.CustomerTypeNone &&
			other.Active && other.CustomerType == rule.CustomerType && other.CompanyID == rule.CompanyID {
			return store.ErrDuplicate
		}
		if rule.IsDefault && other.IsDefault && other.CompanyID == rule.CompanyID {
			return store.ErrDuplicate
		}
	}
	return nil
}

func (s *Store) GetDiscountRule(_ context.Context, id string) (*domain.DiscountRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.discountRules[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := rule
	return &found, nil
}

func (s *Store) ListDiscountRules(_ context.Context, companyID string) ([]domain.DiscountRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]domain.DiscountRule, 0, len(s.discountRules))
	for _, rule := range s.discountRules {
		if companyID != "" && rule.CompanyID != companyID {
			continue
		}
		rules = append(rules, rule)
	}
	slices.SortFunc(rules, func(a, b domain.DiscountRule) int {
		if a.CustomerType == b.CustomerType {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.CustomerType, b.CustomerType)
	})
	return rules, nil
}

func (s *Store) FindActiveDiscountRule(_ context.Context, customerType string, companyID string) (*domain.DiscountRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.discountRules {
		if rule.Active && rule.CustomerType == customerType && rule.CompanyID == companyID {
			found := rule
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindDefaultDiscountRule(_ context.Context, companyID string) (*domain.DiscountRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.discountRules {
		if rule.IsDefault && rule.CompanyID == companyID {
			found := rule
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

// ---- partners ----

func (s *Store) CreatePartner(_ context.Context, partner domain.Partner) (*domain.Partner, error) {
	if partner.Name == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if partner.ID == "" {
		partner.ID = xid.New("ptr")
	}
	if _, exists := s.partners[partner.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if partner.CustomerType == "" {
		partner.CustomerType = domain.CustomerTypeNone
	}
	if partner.CreatedAt.IsZero() {
		partner.CreatedAt = time.Now().UTC()
	}

	s.partners[partner.ID] = partner
	created := partner
	return &created, nil
}

func (s *Store) UpdatePartner(_ context.Context, partner domain.Partner) (*domain.Partner, error) {
	if partner.Name == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.partners[partner.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.partners[partner.ID] = partner
	updated := partner
	return &updated, nil
}

func (s *Store) GetPartner(_ context.Context, id string) (*domain.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	partner, exists := s.partners[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := partner
	return &found, nil
}

func (s *Store) ListPartners(_ context.Context, companyID string) ([]domain.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	partners := make([]domain.Partner, 0, len(s.partners))
	for _, partner := range s.partners {
		if companyID != "" && partner.CompanyID != companyID {
			continue
		}
		partners = append(partners, partner)
	}
	slices.SortFunc(partners, func(a, b domain.Partner) int {
		return strings.Compare(a.Name, b.Name)
	})
	return partners, nil
}

// ---- invoices ----

func (s *Store) CreateInvoice(_ context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if !isMoveType(invoice.MoveType) {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if invoice.ID == "" {
		invoice.ID = xid.New("inv")
	}
	if _, exists := s.invoices[invoice.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if invoice.State == "" {
		invoice.State = domain.InvoiceStateDraft
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	for i := range invoice.Lines {
		if invoice.Lines[i].ID == "" {
			invoice.Lines[i].ID = xid.New("line")
		}
		if invoice.Lines[i].LineType == "" {
			invoice.Lines[i].LineType = domain.LineTypeProduct
		}
	}

	s.invoices[invoice.ID] = cloneInvoice(invoice)
	created := cloneInvoice(invoice)
	return &created, nil
}

func (s *Store) UpdateInvoice(_ context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[invoice.ID]; !exists {
		return nil, store.ErrNotFound
	}
	for i := range invoice.Lines {
		if invoice.Lines[i].ID == "" {
			invoice.Lines[i].ID = xid.New("line")
		}
		if invoice.Lines[i].LineType == "" {
			invoice.Lines[i].LineType = domain.LineTypeProduct
		}
	}
	s.invoices[invoice.ID] = cloneInvoice(invoice)
	updated := cloneInvoice(invoice)
	return &updated, nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoice, exists := s.invoices[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := cloneInvoice(invoice)
	return &found, nil
}

func (s *Store) ListInvoices(_ context.Context, companyID string, state string, limit int) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	invoices := make([]domain.Invoice, 0, limit)
	for _, invoice := range s.invoices {
		if companyID != "" && invoice.CompanyID != companyID {
			continue
		}
		if state != "" && invoice.State != state {
			continue
		}
		invoices = append(invoices, cloneInvoice(invoice))
	}
	slices.SortFunc(invoices, func(a, b domain.Invoice) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(invoices) > limit {
		invoices = invoices[:limit]
	}
	return invoices, nil
}

// ---- loyalty ----

func (s *Store) SaveLoyaltyConfig(_ context.Context, config domain.LoyaltyConfig) (*domain.LoyaltyConfig, error) {
	if config.Name == "" || !isRounding(config.Rounding) {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if config.ID == "" {
		config.ID = xid.New("poscfg")
	}
	s.loyaltyConfigs[config.ID] = config
	saved := config
	return &saved, nil
}

func (s *Store) GetLoyaltyConfig(_ context.Context, id string) (*domain.LoyaltyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config, exists := s.loyaltyConfigs[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := config
	return &found, nil
}

func (s *Store) CreatePosOrder(_ context.Context, order domain.PosOrder) (*domain.PosOrder, error) {
	if order.ConfigID == "" || order.AmountTotalCents < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = xid.New("order")
	}
	if _, exists := s.posOrders[order.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if order.Ref == "" {
		order.Ref = "POS-" + order.ID
	}
	if order.State == "" {
		order.State = domain.PosOrderStateDraft
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	s.posOrders[order.ID] = order
	created := order
	return &created, nil
}

func (s *Store) UpdatePosOrder(_ context.Context, order domain.PosOrder) (*domain.PosOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posOrders[order.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.posOrders[order.ID] = order
	updated := order
	return &updated, nil
}

func (s *Store) GetPosOrder(_ context.Context, id string) (*domain.PosOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.posOrders[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := order
	return &found, nil
}

func (s *Store) AppendLoyaltyEntry(_ context.Context, entry domain.LoyaltyEntry) (*domain.LoyaltyEntry, error) {
	if entry.PartnerID == "" || !isLoyaltyEntryType(entry.Type) {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	partner, exists := s.partners[entry.PartnerID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if entry.Type == domain.LoyaltyEntryEarned && entry.OrderID != "" {
		for _, existing := range s.loyaltyLedger {
			if existing.Type == domain.LoyaltyEntryEarned && existing.OrderID == entry.OrderID {
				return nil, store.ErrDuplicate
			}
		}
	}
	if entry.ID == "" {
		entry.ID = xid.New("loy")
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}

	// Balance is derived here, under the lock, never trusted from the caller.
	balance := partner.LoyaltyPoints + entry.Points
	if balance < 0 {
		return nil, store.ErrValidation
	}
	entry.BalanceAfter = balance

	s.loyaltyLedger = append(s.loyaltyLedger, entry)
	partner.LoyaltyPoints = balance
	s.partners[partner.ID] = partner

	created := entry
	return &created, nil
}

func (s *Store) ListLoyaltyEntries(_ context.Context, partnerID string, limit int) ([]domain.LoyaltyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	entries := make([]domain.LoyaltyEntry, 0, limit)
	for _, entry := range s.loyaltyLedger {
		if entry.PartnerID == partnerID {
			entries = append(entries, entry)
		}
	}
	slices.SortFunc(entries, func(a, b domain.LoyaltyEntry) int {
		return b.Date.Compare(a.Date)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) FindEarnedEntryByOrder(_ context.Context, orderID string) (*domain.LoyaltyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.loyaltyLedger {
		if entry.Type == domain.LoyaltyEntryEarned && entry.OrderID == orderID {
			found := entry
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

// ---- products & stock ----

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 0 || product.StockMinimum < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 0 || product.StockMinimum < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := product
	return &found, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		if !product.Active {
			continue
		}
		products = append(products, product)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.Active {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) GetStock(_ context.Context, productID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.products[productID]; !exists {
		return 0, store.ErrNotFound
	}
	return s.stock[productID], nil
}

func (s *Store) SetStock(_ context.Context, productID string, qty float64) error {
	if qty < 0 {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[productID]; !exists {
		return store.ErrNotFound
	}
	s.stock[productID] = qty
	return nil
}

func (s *Store) ListStorableProductsWithMinimum(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		if product.Active && product.Storable && product.StockMinimum > 0 {
			products = append(products, product)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.ID, b.ID)
	})
	return products, nil
}

// ---- cross-sell ----

func (s *Store) CreateCrossSellRule(_ context.Context, rule domain.CrossSellRule) (*domain.CrossSellRule, error) {
	if rule.SourceProductID == "" || rule.SuggestedProductID == "" {
		return nil, store.ErrValidation
	}
	if rule.SourceProductID == rule.SuggestedProductID {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == "" {
		rule.ID = xid.New("xsell")
	}
	if _, exists := s.crossSellRules[rule.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	if err := s.checkEdgeUniquenessLocked(rule); err != nil {
		return nil, err
	}

	s.crossSellRules[rule.ID] = rule
	created := rule
	return &created, nil
}

func (s *Store) UpdateCrossSellRule(_ context.Context, rule domain.CrossSellRule) (*domain.CrossSellRule, error) {
	if rule.SourceProductID == "" || rule.SuggestedProductID == "" || rule.SourceProductID == rule.SuggestedProductID {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.crossSellRules[rule.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if err := s.checkEdgeUniquenessLocked(rule); err != nil {
		return nil, err
	}
	s.crossSellRules[rule.ID] = rule
	updated := rule
	return &updated, nil
}

func (s *Store) checkEdgeUniquenessLocked(rule domain.CrossSellRule) error {
	if !rule.Active {
		return nil
	}
	for _, other := range s.crossSellRules {
		if other.ID == rule.ID || !other.Active {
			continue
		}
		if other.SourceProductID == rule.SourceProductID &&
			other.SuggestedProductID == rule.SuggestedProductID &&
			other.CompanyID == rule.CompanyID {
			return store.ErrDuplicate
		}
	}
	return nil
}

func (s *Store) GetCrossSellRule(_ context.Context, id string) (*domain.CrossSellRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.crossSellRules[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := rule
	return &found, nil
}

func (s *Store) ListCrossSellRules(_ context.Context, companyID string) ([]domain.CrossSellRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]domain.CrossSellRule, 0, len(s.crossSellRules))
	for _, rule := range s.crossSellRules {
		if companyID != "" && rule.CompanyID != companyID {
			continue
		}
		rules = append(rules, rule)
	}
	slices.SortFunc(rules, func(a, b domain.CrossSellRule) int {
		if a.Sequence == b.Sequence {
			return strings.Compare(a.ID, b.ID)
		}
		return a.Sequence - b.Sequence
	})
	return rules, nil
}

func (s *Store) FindCrossSellEdges(_ context.Context, productIDs []string, companyID string) ([]domain.CrossSellRule, error) {
	inSet := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		inSet[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]domain.CrossSellRule, 0, 8)
	for _, rule := range s.crossSellRules {
		if !rule.Active || rule.CompanyID != companyID {
			continue
		}
		if _, ok := inSet[rule.SourceProductID]; ok {
			edges = append(edges, rule)
			continue
		}
		if rule.Bidirectional {
			if _, ok := inSet[rule.SuggestedProductID]; ok {
				edges = append(edges, rule)
			}
		}
	}
	slices.SortFunc(edges, func(a, b domain.CrossSellRule) int {
		if a.Sequence == b.Sequence {
			return strings.Compare(a.ID, b.ID)
		}
		return a.Sequence - b.Sequence
	})
	return edges, nil
}

// ---- sale orders ----

func (s *Store) CreateSaleOrder(_ context.Context, order domain.SaleOrder) (*domain.SaleOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = xid.New("so")
	}
	if _, exists := s.saleOrders[order.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if order.Ref == "" {
		order.Ref = "SO-" + order.ID
	}
	if order.State == "" {
		order.State = domain.SaleOrderStateDraft
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	s.saleOrders[order.ID] = cloneSaleOrder(order)
	created := cloneSaleOrder(order)
	return &created, nil
}

func (s *Store) UpdateSaleOrder(_ context.Context, order domain.SaleOrder) (*domain.SaleOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.saleOrders[order.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.saleOrders[order.ID] = cloneSaleOrder(order)
	updated := cloneSaleOrder(order)
	return &updated, nil
}

func (s *Store) GetSaleOrder(_ context.Context, id string) (*domain.SaleOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.saleOrders[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := cloneSaleOrder(order)
	return &found, nil
}

// ---- stock alerts ----

func (s *Store) CreateStockAlert(_ context.Context, alert domain.StockAlert) (*domain.StockAlert, error) {
	if alert.ProductID == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[alert.ProductID]; !exists {
		return nil, store.ErrNotFound
	}
	for _, other := range s.stockAlerts {
		if other.ProductID == alert.ProductID && other.State == domain.AlertStateOpen {
			return nil, store.ErrDuplicate
		}
	}
	if alert.ID == "" {
		alert.ID = xid.New("alert")
	}
	if alert.State == "" {
		alert.State = domain.AlertStateOpen
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	s.stockAlerts[alert.ID] = alert
	created := alert
	return &created, nil
}

func (s *Store) UpdateStockAlert(_ context.Context, alert domain.StockAlert) (*domain.StockAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stockAlerts[alert.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if alert.State == domain.AlertStateOpen {
		for _, other := range s.stockAlerts {
			if other.ID != alert.ID && other.ProductID == alert.ProductID && other.State == domain.AlertStateOpen {
				return nil, store.ErrDuplicate
			}
		}
	}
	s.stockAlerts[alert.ID] = alert
	updated := alert
	return &updated, nil
}

func (s *Store) GetStockAlert(_ context.Context, id string) (*domain.StockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, exists := s.stockAlerts[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := alert
	return &found, nil
}

func (s *Store) ListStockAlerts(_ context.Context, state string, limit int) ([]domain.StockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	alerts := make([]domain.StockAlert, 0, limit)
	for _, alert := range s.stockAlerts {
		if state != "" && alert.State != state {
			continue
		}
		alerts = append(alerts, alert)
	}
	slices.SortFunc(alerts, func(a, b domain.StockAlert) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

func (s *Store) FindOpenAlertByProduct(_ context.Context, productID string) (*domain.StockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, alert := range s.stockAlerts {
		if alert.ProductID == productID && alert.State == domain.AlertStateOpen {
			found := alert
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

// ---- employees & reviews ----

func (s *Store) CreateEmployee(_ context.Context, employee domain.Employee) (*domain.Employee, error) {
	if employee.Name == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if employee.ID == "" {
		employee.ID = xid.New("emp")
	}
	if _, exists := s.employees[employee.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = time.Now().UTC()
	}
	employee.Active = true

	s.employees[employee.ID] = employee
	created := employee
	return &created, nil
}

func (s *Store) GetEmployee(_ context.Context, id string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employee, exists := s.employees[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := employee
	return &found, nil
}

func (s *Store) ListEmployees(_ context.Context) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := make([]domain.Employee, 0, len(s.employees))
	for _, employee := range s.employees {
		employees = append(employees, employee)
	}
	slices.SortFunc(employees, func(a, b domain.Employee) int {
		return strings.Compare(a.Name, b.Name)
	})
	return employees, nil
}

func (s *Store) CreatePerformanceReview(_ context.Context, review domain.PerformanceReview) (*domain.PerformanceReview, error) {
	if review.EmployeeID == "" || review.ReviewerID == "" {
		return nil, store.ErrValidation
	}
	if review.EmployeeID == review.ReviewerID {
		return nil, store.ErrValidation
	}
	if review.Score < 0 || review.Score > 10 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.employees[review.EmployeeID]; !exists {
		return nil, store.ErrNotFound
	}
	if _, exists := s.employees[review.ReviewerID]; !exists {
		return nil, store.ErrNotFound
	}
	if review.ID == "" {
		review.ID = xid.New("rev")
	}
	if review.Ref == "" {
		review.Ref = "REV-" + review.ID
	}
	if review.State == "" {
		review.State = domain.ReviewStateDraft
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}

	s.reviews[review.ID] = review
	created := review
	return &created, nil
}

func (s *Store) UpdatePerformanceReview(_ context.Context, review domain.PerformanceReview) (*domain.PerformanceReview, error) {
	if review.EmployeeID == review.ReviewerID {
		return nil, store.ErrValidation
	}
	if review.Score < 0 || review.Score > 10 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reviews[review.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.reviews[review.ID] = review
	updated := review
	return &updated, nil
}

func (s *Store) GetPerformanceReview(_ context.Context, id string) (*domain.PerformanceReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	review, exists := s.reviews[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := review
	return &found, nil
}

func (s *Store) ListReviewsByEmployee(_ context.Context, employeeID string) ([]domain.PerformanceReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reviews := make([]domain.PerformanceReview, 0, 8)
	for _, review := range s.reviews {
		if review.EmployeeID == employeeID {
			reviews = append(reviews, review)
		}
	}
	slices.SortFunc(reviews, func(a, b domain.PerformanceReview) int {
		return b.ReviewDate.Compare(a.ReviewDate)
	})
	return reviews, nil
}

// ---- audit & users ----

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, companyID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	logs := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if companyID != "" && entry.CompanyID != companyID {
			continue
		}
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrDuplicate
	}
	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// ---- helpers ----

func cloneInvoice(invoice domain.Invoice) domain.Invoice {
	out := invoice
	out.Lines = make([]domain.InvoiceLine, len(invoice.Lines))
	copy(out.Lines, invoice.Lines)
	return out
}

func cloneSaleOrder(order domain.SaleOrder) domain.SaleOrder {
	out := order
	out.Lines = make([]domain.SaleOrderLine, len(order.Lines))
	copy(out.Lines, order.Lines)
	return out
}

func isCustomerType(value string) bool {
	return slices.Contains(domain.CustomerTypes, value)
}

func isMoveType(value string) bool {
	switch value {
	case domain.MoveTypeCustomerInvoice, domain.MoveTypeCustomerRefund,
		domain.MoveTypeVendorBill, domain.MoveTypeVendorRefund:
		return true
	}
	return false
}

func isRounding(value string) bool {
	switch value {
	case domain.RoundingFloor, domain.RoundingCeiling, domain.RoundingNearest:
		return true
	}
	return false
}

func isLoyaltyEntryType(value string) bool {
	switch value {
	case domain.LoyaltyEntryEarned, domain.LoyaltyEntryRedeemed, domain.LoyaltyEntryAdjustment:
		return true
	}
	return false
}
