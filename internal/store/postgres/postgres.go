package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
	"comercio/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ensureSchema creates the tables and the partial unique indexes that back the
// store-level uniqueness guarantees. Safe to run on every startup.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS discount_rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			customer_type TEXT NOT NULL,
			percentage DOUBLE PRECISION NOT NULL,
			active BOOLEAN NOT NULL,
			is_default BOOLEAN NOT NULL,
			company_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_discount_rules_active_type
			ON discount_rules (customer_type, company_id)
			WHERE active AND customer_type <> 'none'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_discount_rules_default
			ON discount_rules (company_id)
			WHERE is_default`,
		`CREATE TABLE IF NOT EXISTS partners (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			company_id TEXT NOT NULL,
			discount_rule_id TEXT,
			customer_type TEXT NOT NULL,
			loyalty_points DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			partner_id TEXT,
			move_type TEXT NOT NULL,
			state TEXT NOT NULL,
			lines JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL,
			posted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS loyalty_configs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			enabled BOOLEAN NOT NULL,
			points_per_amount DOUBLE PRECISION NOT NULL,
			amount_per_points_cents BIGINT NOT NULL,
			rounding TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pos_orders (
			id TEXT PRIMARY KEY,
			ref TEXT NOT NULL,
			config_id TEXT NOT NULL,
			partner_id TEXT,
			amount_total_cents BIGINT NOT NULL,
			state TEXT NOT NULL,
			points_earned DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			paid_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS loyalty_ledger (
			id TEXT PRIMARY KEY,
			partner_id TEXT NOT NULL,
			order_id TEXT,
			entry_date TIMESTAMPTZ NOT NULL,
			entry_type TEXT NOT NULL,
			points DOUBLE PRECISION NOT NULL,
			balance_after DOUBLE PRECISION NOT NULL,
			order_amount_cents BIGINT NOT NULL DEFAULT 0,
			description TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_loyalty_ledger_earned_order
			ON loyalty_ledger (order_id)
			WHERE entry_type = 'earned' AND order_id IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			stock_minimum DOUBLE PRECISION NOT NULL DEFAULT 0,
			storable BOOLEAN NOT NULL,
			active BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stock_levels (
			product_id TEXT PRIMARY KEY REFERENCES products(id),
			qty DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cross_sell_rules (
			id TEXT PRIMARY KEY,
			sequence INT NOT NULL DEFAULT 10,
			source_product_id TEXT NOT NULL,
			suggested_product_id TEXT NOT NULL,
			bidirectional BOOLEAN NOT NULL,
			active BOOLEAN NOT NULL,
			company_id TEXT NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			CHECK (source_product_id <> suggested_product_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_cross_sell_rules_edge
			ON cross_sell_rules (source_product_id, suggested_product_id, company_id)
			WHERE active`,
		`CREATE TABLE IF NOT EXISTS sale_orders (
			id TEXT PRIMARY KEY,
			ref TEXT NOT NULL,
			company_id TEXT NOT NULL,
			partner_id TEXT,
			state TEXT NOT NULL,
			lines JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stock_alerts (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			state TEXT NOT NULL,
			qty_at_alert DOUBLE PRECISION NOT NULL,
			resolution_date TIMESTAMPTZ,
			resolution_notes TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_stock_alerts_open
			ON stock_alerts (product_id)
			WHERE state = 'open'`,
		`CREATE TABLE IF NOT EXISTS employees (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			department TEXT,
			job TEXT,
			active BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS performance_reviews (
			id TEXT PRIMARY KEY,
			ref TEXT NOT NULL,
			employee_id TEXT NOT NULL REFERENCES employees(id),
			reviewer_id TEXT NOT NULL REFERENCES employees(id),
			review_date TIMESTAMPTZ NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			score_percentage DOUBLE PRECISION NOT NULL,
			comments TEXT,
			goals_next_period TEXT,
			strengths TEXT,
			weaknesses TEXT,
			state TEXT NOT NULL,
			company_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			CHECK (employee_id <> reviewer_id),
			CHECK (score >= 0 AND score <= 10)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			actor_username TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// ---- discount rules ----

func (s *Store) CreateDiscountRule(ctx context.Context, rule domain.DiscountRule) (*domain.DiscountRule, error) {
	if rule.Name == "" || rule.Percentage < 0 || rule.Percentage > 100 {
		return nil, store.ErrValidation
	}
	if rule.ID == "" {
		rule.ID = xid.New("rule")
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discount_rules (id, name, customer_type, percentage, active, is_default, company_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rule.ID, rule.Name, rule.CustomerType, rule.Percentage, rule.Active, rule.IsDefault, rule.CompanyID, rule.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := rule
	return &created, nil
}

func (s *Store) UpdateDiscountRule(ctx context.Context, rule domain.DiscountRule) (*domain.DiscountRule, error) {
	if rule.Name == "" || rule.Percentage < 0 || rule.Percentage > 100 {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE discount_rules
		SET name = $2, customer_type = $3, percentage = $4, active = $5, is_default = $6
		WHERE id = $1
	`, rule.ID, rule.Name, rule.CustomerType, rule.Percentage, rule.Active, rule.IsDefault)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := rule
	return &updated, nil
}

func (s *Store) GetDiscountRule(ctx context.Context, id string) (*domain.DiscountRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, customer_type, percentage, active, is_default, company_id, created_at
		FROM discount_rules
		WHERE id = $1
	`, id)
	return scanDiscountRule(row)
}

func (s *Store) ListDiscountRules(ctx context.Context, companyID string) ([]domain.DiscountRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, customer_type, percentage, active, is_default, company_id, created_at
		FROM discount_rules
		WHERE ($1 = '' OR company_id = $1)
		ORDER BY customer_type, name
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.DiscountRule, 0, 16)
	for rows.Next() {
		var r domain.DiscountRule
		if err := rows.Scan(&r.ID, &r.Name, &r.CustomerType, &r.Percentage, &r.Active, &r.IsDefault, &r.CompanyID, &r.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) FindActiveDiscountRule(ctx context.Context, customerType string, companyID string) (*domain.DiscountRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, customer_type, percentage, active, is_default, company_id, created_at
		FROM discount_rules
		WHERE active = true AND customer_type = $1 AND company_id = $2
		LIMIT 1
	`, customerType, companyID)
	return scanDiscountRule(row)
}

func (s *Store) FindDefaultDiscountRule(ctx context.Context, companyID string) (*domain.DiscountRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, customer_type, percentage, active, is_default, company_id, created_at
		FROM discount_rules
		WHERE is_default = true AND company_id = $1
		LIMIT 1
	`, companyID)
	return scanDiscountRule(row)
}

func scanDiscountRule(row *sql.Row) (*domain.DiscountRule, error) {
	var r domain.DiscountRule
	err := row.Scan(&r.ID, &r.Name, &r.CustomerType, &r.Percentage, &r.Active, &r.IsDefault, &r.CompanyID, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// ---- partners ----

func (s *Store) CreatePartner(ctx context.Context, partner domain.Partner) (*domain.Partner, error) {
	if partner.Name == "" {
		return nil, store.ErrValidation
	}
	if partner.ID == "" {
		partner.ID = xid.New("ptr")
	}
	if partner.CustomerType == "" {
		partner.CustomerType = domain.CustomerTypeNone
	}
	if partner.CreatedAt.IsZero() {
		partner.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO partners (id, name, company_id, discount_rule_id, customer_type, loyalty_points, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, partner.ID, partner.Name, partner.CompanyID, nullIfEmpty(partner.DiscountRuleID), partner.CustomerType, partner.LoyaltyPoints, partner.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := partner
	return &created, nil
}

func (s *Store) UpdatePartner(ctx context.Context, partner domain.Partner) (*domain.Partner, error) {
	if partner.Name == "" {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE partners
		SET name = $2, company_id = $3, discount_rule_id = $4, customer_type = $5, loyalty_points = $6
		WHERE id = $1
	`, partner.ID, partner.Name, partner.CompanyID, nullIfEmpty(partner.DiscountRuleID), partner.CustomerType, partner.LoyaltyPoints)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := partner
	return &updated, nil
}

func (s *Store) GetPartner(ctx context.Context, id string) (*domain.Partner, error) {
	var p domain.Partner
	var ruleID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, company_id, discount_rule_id, customer_type, loyalty_points, created_at
		FROM partners
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.CompanyID, &ruleID, &p.CustomerType, &p.LoyaltyPoints, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if ruleID.Valid {
		p.DiscountRuleID = ruleID.String
	}
	return &p, nil
}

func (s *Store) ListPartners(ctx context.Context, companyID string) ([]domain.Partner, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, company_id, discount_rule_id, customer_type, loyalty_points, created_at
		FROM partners
		WHERE ($1 = '' OR company_id = $1)
		ORDER BY name
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	partners := make([]domain.Partner, 0, 64)
	for rows.Next() {
		var p domain.Partner
		var ruleID sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.CompanyID, &ruleID, &p.CustomerType, &p.LoyaltyPoints, &p.CreatedAt); err != nil {
			return nil, err
		}
		if ruleID.Valid {
			p.DiscountRuleID = ruleID.String
		}
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return partners, nil
}

// ---- invoices ----

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if invoice.MoveType == "" {
		return nil, store.ErrValidation
	}
	if invoice.ID == "" {
		invoice.ID = xid.New("inv")
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

	linesJSON, err := json.Marshal(invoice.Lines)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, company_id, partner_id, move_type, state, lines, created_at, posted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, invoice.ID, invoice.CompanyID, nullIfEmpty(invoice.PartnerID), invoice.MoveType, invoice.State, linesJSON, invoice.CreatedAt, nullTime(invoice.PostedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := invoice
	return &created, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	for i := range invoice.Lines {
		if invoice.Lines[i].ID == "" {
			invoice.Lines[i].ID = xid.New("line")
		}
		if invoice.Lines[i].LineType == "" {
			invoice.Lines[i].LineType = domain.LineTypeProduct
		}
	}
	linesJSON, err := json.Marshal(invoice.Lines)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET company_id = $2, partner_id = $3, move_type = $4, state = $5, lines = $6, posted_at = $7
		WHERE id = $1
	`, invoice.ID, invoice.CompanyID, nullIfEmpty(invoice.PartnerID), invoice.MoveType, invoice.State, linesJSON, nullTime(invoice.PostedAt))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := invoice
	return &updated, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	var inv domain.Invoice
	var partnerID sql.NullString
	var postedAt sql.NullTime
	var linesRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, partner_id, move_type, state, lines, created_at, posted_at
		FROM invoices
		WHERE id = $1
	`, id).Scan(&inv.ID, &inv.CompanyID, &partnerID, &inv.MoveType, &inv.State, &linesRaw, &inv.CreatedAt, &postedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if partnerID.Valid {
		inv.PartnerID = partnerID.String
	}
	if postedAt.Valid {
		at := postedAt.Time.UTC()
		inv.PostedAt = &at
	}
	if len(linesRaw) > 0 {
		if err := json.Unmarshal(linesRaw, &inv.Lines); err != nil {
			return nil, err
		}
	}
	return &inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, companyID string, state string, limit int) ([]domain.Invoice, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, partner_id, move_type, state, lines, created_at, posted_at
		FROM invoices
		WHERE ($1 = '' OR company_id = $1) AND ($2 = '' OR state = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, companyID, state, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, limit)
	for rows.Next() {
		var inv domain.Invoice
		var partnerID sql.NullString
		var postedAt sql.NullTime
		var linesRaw []byte
		if err := rows.Scan(&inv.ID, &inv.CompanyID, &partnerID, &inv.MoveType, &inv.State, &linesRaw, &inv.CreatedAt, &postedAt); err != nil {
			return nil, err
		}
		if partnerID.Valid {
			inv.PartnerID = partnerID.String
		}
		if postedAt.Valid {
			at := postedAt.Time.UTC()
			inv.PostedAt = &at
		}
		if len(linesRaw) > 0 {
			if err := json.Unmarshal(linesRaw, &inv.Lines); err != nil {
				return nil, err
			}
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

// ---- loyalty ----

func (s *Store) SaveLoyaltyConfig(ctx context.Context, config domain.LoyaltyConfig) (*domain.LoyaltyConfig, error) {
	if config.Name == "" {
		return nil, store.ErrValidation
	}
	if config.ID == "" {
		config.ID = xid.New("poscfg")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loyalty_configs (id, name, enabled, points_per_amount, amount_per_points_cents, rounding)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET name = $2, enabled = $3, points_per_amount = $4, amount_per_points_cents = $5, rounding = $6
	`, config.ID, config.Name, config.Enabled, config.PointsPerAmount, config.AmountPerPointsCents, config.Rounding)
	if err != nil {
		return nil, err
	}

	saved := config
	return &saved, nil
}

func (s *Store) GetLoyaltyConfig(ctx context.Context, id string) (*domain.LoyaltyConfig, error) {
	var c domain.LoyaltyConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, enabled, points_per_amount, amount_per_points_cents, rounding
		FROM loyalty_configs
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Enabled, &c.PointsPerAmount, &c.AmountPerPointsCents, &c.Rounding)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreatePosOrder(ctx context.Context, order domain.PosOrder) (*domain.PosOrder, error) {
	if order.ConfigID == "" || order.AmountTotalCents < 0 {
		return nil, store.ErrValidation
	}
	if order.ID == "" {
		order.ID = xid.New("order")
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pos_orders (id, ref, config_id, partner_id, amount_total_cents, state, points_earned, created_at, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, order.ID, order.Ref, order.ConfigID, nullIfEmpty(order.PartnerID), order.AmountTotalCents, order.State, order.PointsEarned, order.CreatedAt, nullTime(order.PaidAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) UpdatePosOrder(ctx context.Context, order domain.PosOrder) (*domain.PosOrder, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pos_orders
		SET ref = $2, config_id = $3, partner_id = $4, amount_total_cents = $5, state = $6, points_earned = $7, paid_at = $8
		WHERE id = $1
	`, order.ID, order.Ref, order.ConfigID, nullIfEmpty(order.PartnerID), order.AmountTotalCents, order.State, order.PointsEarned, nullTime(order.PaidAt))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := order
	return &updated, nil
}

func (s *Store) GetPosOrder(ctx context.Context, id string) (*domain.PosOrder, error) {
	var o domain.PosOrder
	var partnerID sql.NullString
	var paidAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ref, config_id, partner_id, amount_total_cents, state, points_earned, created_at, paid_at
		FROM pos_orders
		WHERE id = $1
	`, id).Scan(&o.ID, &o.Ref, &o.ConfigID, &partnerID, &o.AmountTotalCents, &o.State, &o.PointsEarned, &o.CreatedAt, &paidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if partnerID.Valid {
		o.PartnerID = partnerID.String
	}
	if paidAt.Valid {
		at := paidAt.Time.UTC()
		o.PaidAt = &at
	}
	return &o, nil
}

// AppendLoyaltyEntry computes the new balance under a partner row lock, writes
// the ledger row and moves the partner balance inside one serializable
// transaction. The partial unique index on (order_id) rejects a second earned
// entry for the same order, and an overdraft fails validation.
func (s *Store) AppendLoyaltyEntry(ctx context.Context, entry domain.LoyaltyEntry) (*domain.LoyaltyEntry, error) {
	if entry.PartnerID == "" || entry.Type == "" {
		return nil, store.ErrValidation
	}
	if entry.ID == "" {
		entry.ID = xid.New("loy")
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current float64
	err = tx.QueryRowContext(ctx, `
		SELECT loyalty_points FROM partners WHERE id = $1 FOR UPDATE
	`, entry.PartnerID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	balance := current + entry.Points
	if balance < 0 {
		return nil, store.ErrValidation
	}
	entry.BalanceAfter = balance

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loyalty_ledger (id, partner_id, order_id, entry_date, entry_type, points, balance_after, order_amount_cents, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.PartnerID, nullIfEmpty(entry.OrderID), entry.Date, entry.Type, entry.Points, entry.BalanceAfter, entry.OrderAmountCents, nullIfEmpty(entry.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE partners SET loyalty_points = $2 WHERE id = $1
	`, entry.PartnerID, balance); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := entry
	return &created, nil
}

func (s *Store) ListLoyaltyEntries(ctx context.Context, partnerID string, limit int) ([]domain.LoyaltyEntry, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, partner_id, order_id, entry_date, entry_type, points, balance_after, order_amount_cents, description
		FROM loyalty_ledger
		WHERE partner_id = $1
		ORDER BY entry_date DESC
		LIMIT $2
	`, partnerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LoyaltyEntry, 0, limit)
	for rows.Next() {
		entry, err := scanLoyaltyEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) FindEarnedEntryByOrder(ctx context.Context, orderID string) (*domain.LoyaltyEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, partner_id, order_id, entry_date, entry_type, points, balance_after, order_amount_cents, description
		FROM loyalty_ledger
		WHERE entry_type = 'earned' AND order_id = $1
		LIMIT 1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, store.ErrNotFound
	}
	return scanLoyaltyEntry(rows)
}

func scanLoyaltyEntry(rows *sql.Rows) (*domain.LoyaltyEntry, error) {
	var entry domain.LoyaltyEntry
	var orderID sql.NullString
	var description sql.NullString
	if err := rows.Scan(&entry.ID, &entry.PartnerID, &orderID, &entry.Date, &entry.Type, &entry.Points, &entry.BalanceAfter, &entry.OrderAmountCents, &description); err != nil {
		return nil, err
	}
	if orderID.Valid {
		entry.OrderID = orderID.String
	}
	if description.Valid {
		entry.Description = description.String
	}
	return &entry, nil
}

// ---- products & stock ----

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 0 || product.StockMinimum < 0 {
		return nil, store.ErrValidation
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, stock_minimum, storable, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, product.ID, product.Name, product.Category, product.PriceCents, product.StockMinimum, product.Storable, product.Active, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	if product.Storable {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stock_levels (product_id, qty, updated_at)
			VALUES ($1, 0, now())
			ON CONFLICT (product_id) DO NOTHING
		`, product.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 0 || product.StockMinimum < 0 {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, stock_minimum = $5, storable = $6, active = $7
		WHERE id = $1
	`, product.ID, product.Name, product.Category, product.PriceCents, product.StockMinimum, product.Storable, product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, stock_minimum, storable, active, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.StockMinimum, &p.Storable, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, stock_minimum, storable, active, created_at
		FROM products
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.StockMinimum, &p.Storable, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, stock_minimum, storable, active, created_at
		FROM products
		WHERE active = true AND id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.StockMinimum, &p.Storable, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetStock(ctx context.Context, productID string) (float64, error) {
	var qty float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(sl.qty, 0)
		FROM products p
		LEFT JOIN stock_levels sl ON sl.product_id = p.id
		WHERE p.id = $1
	`, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return qty, nil
}

func (s *Store) SetStock(ctx context.Context, productID string, qty float64) error {
	if qty < 0 {
		return store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_levels (product_id, qty, updated_at)
		SELECT id, $2, now() FROM products WHERE id = $1
		ON CONFLICT (product_id) DO UPDATE SET qty = $2, updated_at = now()
	`, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListStorableProductsWithMinimum(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, stock_minimum, storable, active, created_at
		FROM products
		WHERE active = true AND storable = true AND stock_minimum > 0
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.StockMinimum, &p.Storable, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// ---- cross-sell ----

func (s *Store) CreateCrossSellRule(ctx context.Context, rule domain.CrossSellRule) (*domain.CrossSellRule, error) {
	if rule.SourceProductID == "" || rule.SuggestedProductID == "" || rule.SourceProductID == rule.SuggestedProductID {
		return nil, store.ErrValidation
	}
	if rule.ID == "" {
		rule.ID = xid.New("xsell")
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cross_sell_rules (id, sequence, source_product_id, suggested_product_id, bidirectional, active, company_id, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rule.ID, rule.Sequence, rule.SourceProductID, rule.SuggestedProductID, rule.Bidirectional, rule.Active, rule.CompanyID, nullIfEmpty(rule.Description), rule.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := rule
	return &created, nil
}

func (s *Store) UpdateCrossSellRule(ctx context.Context, rule domain.CrossSellRule) (*domain.CrossSellRule, error) {
	if rule.SourceProductID == "" || rule.SuggestedProductID == "" || rule.SourceProductID == rule.SuggestedProductID {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE cross_sell_rules
		SET sequence = $2, source_product_id = $3, suggested_product_id = $4, bidirectional = $5, active = $6, company_id = $7, description = $8
		WHERE id = $1
	`, rule.ID, rule.Sequence, rule.SourceProductID, rule.SuggestedProductID, rule.Bidirectional, rule.Active, rule.CompanyID, nullIfEmpty(rule.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := rule
	return &updated, nil
}

func (s *Store) GetCrossSellRule(ctx context.Context, id string) (*domain.CrossSellRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sequence, source_product_id, suggested_product_id, bidirectional, active, company_id, description, created_at
		FROM cross_sell_rules
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, store.ErrNotFound
	}
	return scanCrossSellRule(rows)
}

func (s *Store) ListCrossSellRules(ctx context.Context, companyID string) ([]domain.CrossSellRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sequence, source_product_id, suggested_product_id, bidirectional, active, company_id, description, created_at
		FROM cross_sell_rules
		WHERE ($1 = '' OR company_id = $1)
		ORDER BY sequence, id
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.CrossSellRule, 0, 32)
	for rows.Next() {
		rule, err := scanCrossSellRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) FindCrossSellEdges(ctx context.Context, productIDs []string, companyID string) ([]domain.CrossSellRule, error) {
	edges := make([]domain.CrossSellRule, 0, 8)
	if len(productIDs) == 0 {
		return edges, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sequence, source_product_id, suggested_product_id, bidirectional, active, company_id, description, created_at
		FROM cross_sell_rules
		WHERE active = true AND company_id = $2
		  AND (source_product_id = ANY($1) OR (bidirectional AND suggested_product_id = ANY($1)))
		ORDER BY sequence, id
	`, productIDs, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rule, err := scanCrossSellRule(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return edges, nil
}

func scanCrossSellRule(rows *sql.Rows) (*domain.CrossSellRule, error) {
	var r domain.CrossSellRule
	var description sql.NullString
	if err := rows.Scan(&r.ID, &r.Sequence, &r.SourceProductID, &r.SuggestedProductID, &r.Bidirectional, &r.Active, &r.CompanyID, &description, &r.CreatedAt); err != nil {
		return nil, err
	}
	if description.Valid {
		r.Description = description.String
	}
	return &r, nil
}

// ---- sale orders ----

func (s *Store) CreateSaleOrder(ctx context.Context, order domain.SaleOrder) (*domain.SaleOrder, error) {
	if order.ID == "" {
		order.ID = xid.New("so")
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

	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sale_orders (id, ref, company_id, partner_id, state, lines, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, order.ID, order.Ref, order.CompanyID, nullIfEmpty(order.PartnerID), order.State, linesJSON, order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) UpdateSaleOrder(ctx context.Context, order domain.SaleOrder) (*domain.SaleOrder, error) {
	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sale_orders
		SET ref = $2, company_id = $3, partner_id = $4, state = $5, lines = $6
		WHERE id = $1
	`, order.ID, order.Ref, order.CompanyID, nullIfEmpty(order.PartnerID), order.State, linesJSON)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := order
	return &updated, nil
}

func (s *Store) GetSaleOrder(ctx context.Context, id string) (*domain.SaleOrder, error) {
	var o domain.SaleOrder
	var partnerID sql.NullString
	var linesRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ref, company_id, partner_id, state, lines, created_at
		FROM sale_orders
		WHERE id = $1
	`, id).Scan(&o.ID, &o.Ref, &o.CompanyID, &partnerID, &o.State, &linesRaw, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if partnerID.Valid {
		o.PartnerID = partnerID.String
	}
	if len(linesRaw) > 0 {
		if err := json.Unmarshal(linesRaw, &o.Lines); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

// ---- stock alerts ----

func (s *Store) CreateStockAlert(ctx context.Context, alert domain.StockAlert) (*domain.StockAlert, error) {
	if alert.ProductID == "" {
		return nil, store.ErrValidation
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_alerts (id, product_id, state, qty_at_alert, resolution_date, resolution_notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, alert.ID, alert.ProductID, alert.State, alert.QtyAtAlert, nullTime(alert.ResolutionDate), nullIfEmpty(alert.ResolutionNotes), alert.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := alert
	return &created, nil
}

func (s *Store) UpdateStockAlert(ctx context.Context, alert domain.StockAlert) (*domain.StockAlert, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE stock_alerts
		SET state = $2, qty_at_alert = $3, resolution_date = $4, resolution_notes = $5
		WHERE id = $1
	`, alert.ID, alert.State, alert.QtyAtAlert, nullTime(alert.ResolutionDate), nullIfEmpty(alert.ResolutionNotes))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := alert
	return &updated, nil
}

func (s *Store) GetStockAlert(ctx context.Context, id string) (*domain.StockAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, state, qty_at_alert, resolution_date, resolution_notes, created_at
		FROM stock_alerts
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, store.ErrNotFound
	}
	return scanStockAlert(rows)
}

func (s *Store) ListStockAlerts(ctx context.Context, state string, limit int) ([]domain.StockAlert, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, state, qty_at_alert, resolution_date, resolution_notes, created_at
		FROM stock_alerts
		WHERE ($1 = '' OR state = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, state, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]domain.StockAlert, 0, limit)
	for rows.Next() {
		alert, err := scanStockAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *Store) FindOpenAlertByProduct(ctx context.Context, productID string) (*domain.StockAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, state, qty_at_alert, resolution_date, resolution_notes, created_at
		FROM stock_alerts
		WHERE product_id = $1 AND state = 'open'
		LIMIT 1
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, store.ErrNotFound
	}
	return scanStockAlert(rows)
}

func scanStockAlert(rows *sql.Rows) (*domain.StockAlert, error) {
	var a domain.StockAlert
	var resolutionDate sql.NullTime
	var resolutionNotes sql.NullString
	if err := rows.Scan(&a.ID, &a.ProductID, &a.State, &a.QtyAtAlert, &resolutionDate, &resolutionNotes, &a.CreatedAt); err != nil {
		return nil, err
	}
	if resolutionDate.Valid {
		at := resolutionDate.Time.UTC()
		a.ResolutionDate = &at
	}
	if resolutionNotes.Valid {
		a.ResolutionNotes = resolutionNotes.String
	}
	return &a, nil
}

// ---- employees & reviews ----

func (s *Store) CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	if employee.Name == "" {
		return nil, store.ErrValidation
	}
	if employee.ID == "" {
		employee.ID = xid.New("emp")
	}
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = time.Now().UTC()
	}
	employee.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, department, job, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, employee.ID, employee.Name, nullIfEmpty(employee.Department), nullIfEmpty(employee.Job), employee.Active, employee.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := employee
	return &created, nil
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*domain.Employee, error) {
	var e domain.Employee
	var department sql.NullString
	var job sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, department, job, active, created_at
		FROM employees
		WHERE id = $1
	`, id).Scan(&e.ID, &e.Name, &department, &job, &e.Active, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if department.Valid {
		e.Department = department.String
	}
	if job.Valid {
		e.Job = job.String
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, department, job, active, created_at
		FROM employees
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := make([]domain.Employee, 0, 32)
	for rows.Next() {
		var e domain.Employee
		var department sql.NullString
		var job sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &department, &job, &e.Active, &e.CreatedAt); err != nil {
			return nil, err
		}
		if department.Valid {
			e.Department = department.String
		}
		if job.Valid {
			e.Job = job.String
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return employees, nil
}

func (s *Store) CreatePerformanceReview(ctx context.Context, review domain.PerformanceReview) (*domain.PerformanceReview, error) {
	if review.EmployeeID == "" || review.ReviewerID == "" || review.EmployeeID == review.ReviewerID {
		return nil, store.ErrValidation
	}
	if review.Score < 0 || review.Score > 10 {
		return nil, store.ErrValidation
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO performance_reviews (
			id, ref, employee_id, reviewer_id, review_date, score, score_percentage,
			comments, goals_next_period, strengths, weaknesses, state, company_id, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, review.ID, review.Ref, review.EmployeeID, review.ReviewerID, review.ReviewDate, review.Score, review.ScorePercentage,
		nullIfEmpty(review.Comments), nullIfEmpty(review.GoalsNextPeriod), nullIfEmpty(review.Strengths), nullIfEmpty(review.Weaknesses),
		review.State, review.CompanyID, review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := review
	return &created, nil
}

func (s *Store) UpdatePerformanceReview(ctx context.Context, review domain.PerformanceReview) (*domain.PerformanceReview, error) {
	if review.EmployeeID == review.ReviewerID {
		return nil, store.ErrValidation
	}
	if review.Score < 0 || review.Score > 10 {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE performance_reviews
		SET employee_id = $2, reviewer_id = $3, review_date = $4, score = $5, score_percentage = $6,
			comments = $7, goals_next_period = $8, strengths = $9, weaknesses = $10, state = $11
		WHERE id = $1
	`, review.ID, review.EmployeeID, review.ReviewerID, review.ReviewDate, review.Score, review.ScorePercentage,
		nullIfEmpty(review.Comments), nullIfEmpty(review.GoalsNextPeriod), nullIfEmpty(review.Strengths), nullIfEmpty(review.Weaknesses),
		review.State)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := review
	return &updated, nil
}

func (s *Store) GetPerformanceReview(ctx context.Context, id string) (*domain.PerformanceReview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ref, employee_id, reviewer_id, review_date, score, score_percentage,
			comments, goals_next_period, strengths, weaknesses, state, company_id, created_at
		FROM performance_reviews
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, store.ErrNotFound
	}
	return scanReview(rows)
}

func (s *Store) ListReviewsByEmployee(ctx context.Context, employeeID string) ([]domain.PerformanceReview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ref, employee_id, reviewer_id, review_date, score, score_percentage,
			comments, goals_next_period, strengths, weaknesses, state, company_id, created_at
		FROM performance_reviews
		WHERE employee_id = $1
		ORDER BY review_date DESC
	`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]domain.PerformanceReview, 0, 8)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}

func scanReview(rows *sql.Rows) (*domain.PerformanceReview, error) {
	var r domain.PerformanceReview
	var comments, goals, strengths, weaknesses sql.NullString
	if err := rows.Scan(&r.ID, &r.Ref, &r.EmployeeID, &r.ReviewerID, &r.ReviewDate, &r.Score, &r.ScorePercentage,
		&comments, &goals, &strengths, &weaknesses, &r.State, &r.CompanyID, &r.CreatedAt); err != nil {
		return nil, err
	}
	if comments.Valid {
		r.Comments = comments.String
	}
	if goals.Valid {
		r.GoalsNextPeriod = goals.String
	}
	if strengths.Valid {
		r.Strengths = strengths.String
	}
	if weaknesses.Valid {
		r.Weaknesses = weaknesses.String
	}
	return &r, nil
}

// ---- audit & users ----

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, company_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.CompanyID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, nullIfEmpty(entry.Detail), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, companyID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR company_id = $1) AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at DESC
		LIMIT $4
	`, companyID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		var detail sql.NullString
		if err := rows.Scan(&entry.ID, &entry.CompanyID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if detail.Valid {
			entry.Detail = detail.String
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrValidation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- helpers ----

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
