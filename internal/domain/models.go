package domain

import "time"

const (
	CustomerTypeRetail    = "retail"
	CustomerTypeWholesale = "wholesale"
	CustomerTypeVIP       = "vip"
	CustomerTypeNone      = "none"
)

// CustomerTypes lists the accepted customer-type tags.
var CustomerTypes = []string{CustomerTypeRetail, CustomerTypeWholesale, CustomerTypeVIP, CustomerTypeNone}

type DiscountRule struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CustomerType string    `json:"customer_type"`
	Percentage   float64   `json:"percentage"`
	Active       bool      `json:"active"`
	IsDefault    bool      `json:"is_default"`
	CompanyID    string    `json:"company_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type DiscountRuleCreateRequest struct {
	Name         string  `json:"name"`
	CustomerType string  `json:"customer_type"`
	Percentage   float64 `json:"percentage"`
	IsDefault    bool    `json:"is_default"`
	CompanyID    string  `json:"company_id"`
}

type DiscountRuleUpdateRequest struct {
	Name       *string  `json:"name,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Active     *bool    `json:"active,omitempty"`
	IsDefault  *bool    `json:"is_default,omitempty"`
}

type Partner struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CompanyID      string `json:"company_id"`
	DiscountRuleID string `json:"discount_rule_id,omitempty"`
	// CustomerType mirrors the linked rule's type. It is recomputed whenever
	// the rule assignment changes and is never settable on its own.
	CustomerType  string    `json:"customer_type"`
	LoyaltyPoints float64   `json:"loyalty_points"`
	CreatedAt     time.Time `json:"created_at"`
}

type PartnerCreateRequest struct {
	Name           string `json:"name"`
	CompanyID      string `json:"company_id"`
	DiscountRuleID string `json:"discount_rule_id,omitempty"`
}

const (
	MoveTypeCustomerInvoice = "customer_invoice"
	MoveTypeCustomerRefund  = "customer_refund"
	MoveTypeVendorBill      = "vendor_bill"
	MoveTypeVendorRefund    = "vendor_refund"
)

const (
	InvoiceStateDraft     = "draft"
	InvoiceStatePosted    = "posted"
	InvoiceStateCancelled = "cancelled"
)

const (
	LineTypeProduct = "product"
	LineTypeSection = "section"
	LineTypeNote    = "note"
)

type InvoiceLine struct {
	ID              string  `json:"id"`
	LineType        string  `json:"line_type"`
	ProductID       string  `json:"product_id,omitempty"`
	Description     string  `json:"description,omitempty"`
	Quantity        float64 `json:"quantity"`
	UnitPriceCents  int64   `json:"unit_price_cents"`
	DiscountPercent float64 `json:"discount_percent"`
}

type Invoice struct {
	ID        string        `json:"id"`
	CompanyID string        `json:"company_id"`
	PartnerID string        `json:"partner_id,omitempty"`
	MoveType  string        `json:"move_type"`
	State     string        `json:"state"`
	Lines     []InvoiceLine `json:"lines"`
	CreatedAt time.Time     `json:"created_at"`
	PostedAt  *time.Time    `json:"posted_at,omitempty"`
}

type InvoiceLineInput struct {
	LineType        string  `json:"line_type,omitempty"`
	ProductID       string  `json:"product_id,omitempty"`
	Description     string  `json:"description,omitempty"`
	Quantity        float64 `json:"quantity"`
	UnitPriceCents  int64   `json:"unit_price_cents"`
	DiscountPercent float64 `json:"discount_percent"`
}

type InvoiceCreateRequest struct {
	CompanyID string             `json:"company_id"`
	PartnerID string             `json:"partner_id,omitempty"`
	MoveType  string             `json:"move_type"`
	Lines     []InvoiceLineInput `json:"lines"`
}

const (
	RoundingFloor   = "floor"
	RoundingCeiling = "ceiling"
	RoundingNearest = "nearest"
)

type LoyaltyConfig struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	Enabled              bool    `json:"enabled"`
	PointsPerAmount      float64 `json:"points_per_amount"`
	AmountPerPointsCents int64   `json:"amount_per_points_cents"`
	Rounding             string  `json:"rounding"`
}

type LoyaltyConfigRequest struct {
	ID                   string  `json:"id,omitempty"`
	Name                 string  `json:"name"`
	Enabled              bool    `json:"enabled"`
	PointsPerAmount      float64 `json:"points_per_amount"`
	AmountPerPointsCents int64   `json:"amount_per_points_cents"`
	Rounding             string  `json:"rounding"`
}

const (
	PosOrderStateDraft = "draft"
	PosOrderStatePaid  = "paid"
)

type PosOrder struct {
	ID               string     `json:"id"`
	Ref              string     `json:"ref"`
	ConfigID         string     `json:"config_id"`
	PartnerID        string     `json:"partner_id,omitempty"`
	AmountTotalCents int64      `json:"amount_total_cents"`
	State            string     `json:"state"`
	PointsEarned     float64    `json:"points_earned"`
	CreatedAt        time.Time  `json:"created_at"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

type PosOrderCreateRequest struct {
	ConfigID         string `json:"config_id"`
	PartnerID        string `json:"partner_id,omitempty"`
	AmountTotalCents int64  `json:"amount_total_cents"`
}

const (
	LoyaltyEntryEarned     = "earned"
	LoyaltyEntryRedeemed   = "redeemed"
	LoyaltyEntryAdjustment = "adjustment"
)

// LoyaltyEntry is one row of the append-only loyalty ledger.
type LoyaltyEntry struct {
	ID               string    `json:"id"`
	PartnerID        string    `json:"partner_id"`
	OrderID          string    `json:"order_id,omitempty"`
	Date             time.Time `json:"date"`
	Type             string    `json:"type"`
	Points           float64   `json:"points"`
	BalanceAfter     float64   `json:"balance_after"`
	OrderAmountCents int64     `json:"order_amount_cents"`
	Description      string    `json:"description,omitempty"`
}

type LoyaltyAdjustRequest struct {
	Points      float64 `json:"points"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
}

type LoyaltyTotals struct {
	Balance       float64 `json:"balance"`
	TotalEarned   float64 `json:"total_earned"`
	TotalRedeemed float64 `json:"total_redeemed"`
	EntryCount    int     `json:"entry_count"`
}

type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	PriceCents   int64     `json:"price_cents"`
	StockMinimum float64   `json:"stock_minimum"`
	Storable     bool      `json:"storable"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	PriceCents   int64   `json:"price_cents"`
	StockMinimum float64 `json:"stock_minimum"`
	Storable     bool    `json:"storable"`
	InitialStock float64 `json:"initial_stock"`
}

type CrossSellRule struct {
	ID                 string    `json:"id"`
	Sequence           int       `json:"sequence"`
	SourceProductID    string    `json:"source_product_id"`
	SuggestedProductID string    `json:"suggested_product_id"`
	Bidirectional      bool      `json:"bidirectional"`
	Active             bool      `json:"active"`
	CompanyID          string    `json:"company_id"`
	Description        string    `json:"description,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type CrossSellRuleCreateRequest struct {
	Sequence           int    `json:"sequence"`
	SourceProductID    string `json:"source_product_id"`
	SuggestedProductID string `json:"suggested_product_id"`
	Bidirectional      bool   `json:"bidirectional"`
	CompanyID          string `json:"company_id"`
	Description        string `json:"description,omitempty"`
}

const (
	SaleOrderStateDraft     = "draft"
	SaleOrderStateSent      = "sent"
	SaleOrderStateConfirmed = "confirmed"
)

type SaleOrderLine struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
}

type SaleOrder struct {
	ID        string          `json:"id"`
	Ref       string          `json:"ref"`
	CompanyID string          `json:"company_id"`
	PartnerID string          `json:"partner_id,omitempty"`
	State     string          `json:"state"`
	Lines     []SaleOrderLine `json:"lines"`
	CreatedAt time.Time       `json:"created_at"`
}

type SaleOrderCreateRequest struct {
	CompanyID string          `json:"company_id"`
	PartnerID string          `json:"partner_id,omitempty"`
	Lines     []SaleOrderLine `json:"lines"`
}

type Suggestion struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
}

type SuggestionResponse struct {
	OrderID     string       `json:"order_id,omitempty"`
	Suggestions []Suggestion `json:"suggestions"`
}

type AddSuggestionsRequest struct {
	Items []SaleOrderLine `json:"items"`
}

type AddSuggestionsResponse struct {
	Added []string  `json:"added"`
	Order SaleOrder `json:"order"`
}

const (
	AlertStateOpen      = "open"
	AlertStateResolved  = "resolved"
	AlertStateCancelled = "cancelled"
)

type StockAlert struct {
	ID              string     `json:"id"`
	ProductID       string     `json:"product_id"`
	State           string     `json:"state"`
	QtyAtAlert      float64    `json:"qty_at_alert"`
	ResolutionDate  *time.Time `json:"resolution_date,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type SweepResult struct {
	AlertsCreated  int    `json:"alerts_created"`
	AlertsResolved int    `json:"alerts_resolved"`
	RanAt          string `json:"ran_at"`
}

type CriticalProduct struct {
	AlertID      string  `json:"alert_id"`
	ProductID    string  `json:"product_id"`
	Product      string  `json:"product"`
	CurrentStock float64 `json:"current_stock"`
	MinimumStock float64 `json:"minimum_stock"`
	Deficit      float64 `json:"deficit"`
}

type CriticalDashboard struct {
	Categories map[string][]CriticalProduct `json:"categories"`
}

type Employee struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department,omitempty"`
	Job        string    `json:"job,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type EmployeeCreateRequest struct {
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	Job        string `json:"job,omitempty"`
}

const (
	ReviewStateDraft      = "draft"
	ReviewStateInProgress = "in_progress"
	ReviewStateDone       = "done"
	ReviewStateCancelled  = "cancelled"
)

type PerformanceReview struct {
	ID              string    `json:"id"`
	Ref             string    `json:"ref"`
	EmployeeID      string    `json:"employee_id"`
	ReviewerID      string    `json:"reviewer_id"`
	ReviewDate      time.Time `json:"review_date"`
	Score           float64   `json:"score"`
	ScorePercentage float64   `json:"score_percentage"`
	Comments        string    `json:"comments,omitempty"`
	GoalsNextPeriod string    `json:"goals_next_period,omitempty"`
	Strengths       string    `json:"strengths,omitempty"`
	Weaknesses      string    `json:"weaknesses,omitempty"`
	State           string    `json:"state"`
	CompanyID       string    `json:"company_id"`
	CreatedAt       time.Time `json:"created_at"`
}

type PerformanceReviewCreateRequest struct {
	EmployeeID string  `json:"employee_id"`
	ReviewerID string  `json:"reviewer_id"`
	ReviewDate string  `json:"review_date,omitempty"`
	Score      float64 `json:"score"`
	Comments   string  `json:"comments,omitempty"`
	CompanyID  string  `json:"company_id"`
}

type ReviewScoreRequest struct {
	Score           float64 `json:"score"`
	Comments        string  `json:"comments,omitempty"`
	GoalsNextPeriod string  `json:"goals_next_period,omitempty"`
	Strengths       string  `json:"strengths,omitempty"`
	Weaknesses      string  `json:"weaknesses,omitempty"`
}

type EmployeePerformance struct {
	EmployeeID             string     `json:"employee_id"`
	ReviewCount            int        `json:"review_count"`
	LastReviewDate         *time.Time `json:"last_review_date,omitempty"`
	LastReviewScore        float64    `json:"last_review_score"`
	AverageScore           float64    `json:"average_score"`
	AverageScorePercentage float64    `json:"average_score_percentage"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type ClerkCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ClerkUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
