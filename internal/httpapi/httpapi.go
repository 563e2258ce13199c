package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/service"
	"comercio/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/discount-rules", a.requireAuth(a.handleDiscountRules, "clerk", "admin"))
	mux.HandleFunc("/api/v1/discount-rules/", a.requireAuth(a.handleDiscountRuleActions, "admin"))
	mux.HandleFunc("/api/v1/partners", a.requireAuth(a.handlePartners, "clerk", "admin"))
	mux.HandleFunc("/api/v1/partners/", a.requireAuth(a.handlePartnerActions, "clerk", "admin"))
	mux.HandleFunc("/api/v1/invoices", a.requireAuth(a.handleInvoices, "clerk", "admin"))
	mux.HandleFunc("/api/v1/invoices/", a.requireAuth(a.handleInvoiceActions, "clerk", "admin"))

	mux.HandleFunc("/api/v1/loyalty/configs", a.requireAuth(a.handleLoyaltyConfigs, "admin"))
	mux.HandleFunc("/api/v1/loyalty/configs/", a.requireAuth(a.handleLoyaltyConfigGet, "clerk", "admin"))
	mux.HandleFunc("/api/v1/pos-orders", a.requireAuth(a.handlePosOrders, "clerk", "admin"))
	mux.HandleFunc("/api/v1/pos-orders/", a.requireAuth(a.handlePosOrderActions, "clerk", "admin"))

	mux.HandleFunc("/api/v1/cross-sell-rules", a.requireAuth(a.handleCrossSellRules, "clerk", "admin"))
	mux.HandleFunc("/api/v1/cross-sell-rules/", a.requireAuth(a.handleCrossSellRuleActions, "admin"))
	mux.HandleFunc("/api/v1/cross-sell/suggestions", a.requireAuth(a.handleCrossSellSuggestions, "clerk", "admin"))
	mux.HandleFunc("/api/v1/sale-orders", a.requireAuth(a.handleSaleOrders, "clerk", "admin"))
	mux.HandleFunc("/api/v1/sale-orders/", a.requireAuth(a.handleSaleOrderActions, "clerk", "admin"))

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, "clerk", "admin"))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions, "clerk", "admin"))
	mux.HandleFunc("/api/v1/stock-alerts", a.requireAuth(a.handleStockAlerts, "clerk", "admin"))
	mux.HandleFunc("/api/v1/stock-alerts/sweep", a.requireAuth(a.handleStockSweep, "admin"))
	mux.HandleFunc("/api/v1/stock-alerts/dashboard", a.requireAuth(a.handleStockDashboard, "clerk", "admin"))
	mux.HandleFunc("/api/v1/stock-alerts/", a.requireAuth(a.handleStockAlertActions, "clerk", "admin"))

	mux.HandleFunc("/api/v1/employees", a.requireAuth(a.handleEmployees, "admin"))
	mux.HandleFunc("/api/v1/employees/", a.requireAuth(a.handleEmployeeActions, "admin"))
	mux.HandleFunc("/api/v1/reviews", a.requireAuth(a.handleReviews, "admin"))
	mux.HandleFunc("/api/v1/reviews/", a.requireAuth(a.handleReviewActions, "admin"))

	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, "admin"))
	mux.HandleFunc("/api/v1/users/clerks", a.requireAuth(a.handleClerks, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths that are exempt from CSRF validation. Login is
// excluded because it is called without a prior CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods (POST/PUT/PATCH).
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

// ---- discount rules ----

func (a *API) handleDiscountRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rules, err := a.service.ListDiscountRules(r.Context(), r.URL.Query().Get("company_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
	case http.MethodPost:
		var req domain.DiscountRuleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rule, err := a.service.CreateDiscountRule(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"rule": rule})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDiscountRuleActions(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDAction(w, r, "/api/v1/discount-rules/")
	if !ok {
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		rule, err := a.service.GetDiscountRule(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rule": rule})
	case action == "" && r.Method == http.MethodPatch:
		var req domain.DiscountRuleUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rule, err := a.service.UpdateDiscountRule(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rule": rule})
	case action == "deactivate" && r.Method == http.MethodPost:
		rule, err := a.service.DeactivateDiscountRule(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rule": rule})
	default:
		writeMethodNotAllowed(w)
	}
}

// ---- partners ----

func (a *API) handlePartners(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		partners, err := a.service.ListPartners(r.Context(), r.URL.Query().Get("company_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"partners": partners})
	case http.MethodPost:
		var req domain.PartnerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		partner, err := a.service.CreatePartner(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"partner": partner})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePartnerActions(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDAction(w, r, "/api/v1/partners/")
	if !ok {
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		partner, err := a.service.GetPartner(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"partner": partner})
	case action == "assign-rule" && r.Method == http.MethodPost:
		var req struct {
			RuleID string `json:"rule_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		partner, err := a.service.AssignDiscountRule(r.Context(), id, req.RuleID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"partner": partner})
	case action == "loyalty" && r.Method == http.MethodGet:
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
		entries, err := a.service.LoyaltyHistory(r.Context(), id, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	case action == "loyalty/totals" && r.Method == http.MethodGet:
		totals, err := a.service.LoyaltyTotals(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, totals)
	case action == "loyalty/adjust" && r.Method == http.MethodPost:
		var req domain.LoyaltyAdjustRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		entry, err := a.service.AddLoyaltyPoints(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
	default:
		writeMethodNotAllowed(w)
	}
}

// ---- invoices ----

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
		invoices, err := a.service.ListInvoices(r.Context(), r.URL.Query().Get("company_id"), r.URL.Query().Get("state"), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
	case http.MethodPost:
		var req domain.InvoiceCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		invoice, err := a.service.CreateInvoice(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"invoice": invoice})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleInvoiceActions(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDAction(w, r, "/api/v1/invoices/")
	if !ok {
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		invoice, err := a.service.GetInvoice(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
	case action == "lines" && r.Method == http.MethodPost:
		var req domain.InvoiceLineInput
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		invoice, err := a.service.AddInvoiceLine(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
	case action == "set-partner" && r.Method == http.MethodPost:
		var req struct {
			PartnerID string `json:"partner_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		invoice, err := a.service.SetInvoicePartner(r.Context(), id, req.PartnerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
	case action == "post" && r.Method == http.MethodPost:
		invoice, err := a.service.PostInvoice(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
	default:
		writeMethodNotAllowed(w)
	}
}

// ---- loyalty ----

func (a *API) handleLoyaltyConfigs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.LoyaltyConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	config, err := a.service.SaveLoyaltyConfig(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"config": config})
}

func (a *API) handleLoyaltyConfigGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	id, _, ok := splitIDAction(w, r, "/api/v1/loyalty/configs/")
	if !ok {
		return
	}
	config, err := a.service.GetLoyaltyConfig(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"config": config})
}

func (a *API) handlePosOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.PosOrderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.CreatePosOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (a *API) handlePosOrderActions(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDAction(w, r, "/api/v1/pos-orders/")
	if !ok {
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		order, err := a.service.GetPosOrder(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"order": order})
	case action == "pay" && r.Method == http.MethodPost:
		order, err := a.service.PayPosOrder(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"order": order})
	default:
		writeMethodNotAllowed(w)
	}
}

// ---- cross-sell ----

func (a *API) handleCrossSellRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rules, err := a.service.ListCrossSellRules(r.Context(), r.URL.Query().Get("company_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
	case http.MethodPost:
		var req domain.CrossSellRuleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rule, err := a.service.CreateCrossSellRule(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"rule": rule})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCrossSellRuleActions(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDAction(w, r, "/api/v1/cross-sell-rules/")
	if !ok {
		return
	}
	if action != "deactivate" || r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	rule, err := a.service.DeactivateCrossSellRule(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rule": rule})
}

func (a *API) handleCrossSellSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		CompanyID  string   `json:"company_id"`
		ProductIDs []string `json:"product_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.CrossSellProducts(r.Context(), req.CompanyID, req.ProductIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSaleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SaleOrderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.CreateSaleOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (a *API) handleSaleOrderActions(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDAction(w, r, "/api/v1/sale-orders/")
	if !ok {
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		order, err := a.service.GetSaleOrder(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"order": order})
	case action == "suggestions" && r.Method == http.MethodGet:
		resp, err := a.service.SaleOrderSuggestions(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case action == "add-suggestions" && r.Method == http.MethodPost:
		var req domain.AddSuggestionsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.AddSuggestedProducts(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

// ---- products & stock ----

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDAction(w, r, "/api/v1/products/")
	if !ok {
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case action == "stock" && r.Method == http.MethodGet:
		qty, err := a.service.GetStock(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product_id": id, "qty": qty})
	case action == "stock" && r.Method == http.MethodPost:
		var req struct {
			Qty float64 `json:"qty"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.service.SetStock(r.Context(), id, req.Qty); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case action == "stock-minimum" && r.Method == http.MethodPost:
		var req struct {
			Minimum float64 `json:"minimum"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.SetProductStockMinimum(r.Context(), id, req.Minimum)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

// ---- stock alerts ----

func (a *API) handleStockAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 200, 500)
	alerts, err := a.service.ListStockAlerts(r.Context(), r.URL.Query().Get("state"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (a *API) handleStockSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	result, err := a.service.RunStockSweep(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleStockDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	dashboard, err := a.service.CriticalStockDashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (a *API) handleStockAlertActions(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDAction(w, r, "/api/v1/stock-alerts/")
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var alert domain.StockAlert
	var err error
	switch action {
	case "resolve":
		var req struct {
			Notes string `json:"notes"`
		}
		if decodeErr := decodeJSON(r, &req); decodeErr != nil {
			writeError(w, http.StatusBadRequest, decodeErr)
			return
		}
		alert, err = a.service.ResolveStockAlert(r.Context(), id, req.Notes)
	case "cancel":
		alert, err = a.service.CancelStockAlert(r.Context(), id)
	case "reopen":
		alert, err = a.service.ReopenStockAlert(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown stock alert action"))
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alert": alert})
}

// ---- employees & reviews ----

func (a *API) handleEmployees(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		employees, err := a.service.ListEmployees(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"employees": employees})
	case http.MethodPost:
		var req domain.EmployeeCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		employee, err := a.service.CreateEmployee(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"employee": employee})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleEmployeeActions(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDAction(w, r, "/api/v1/employees/")
	if !ok {
		return
	}
	if action != "performance" || r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	stats, err := a.service.EmployeePerformance(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleReviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.PerformanceReviewCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	review, err := a.service.CreatePerformanceReview(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"review": review})
}

func (a *API) handleReviewActions(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDAction(w, r, "/api/v1/reviews/")
	if !ok {
		return
	}

	if action == "" && r.Method == http.MethodGet {
		review, err := a.service.GetPerformanceReview(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"review": review})
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var review domain.PerformanceReview
	var err error
	switch action {
	case "score":
		var req domain.ReviewScoreRequest
		if decodeErr := decodeJSON(r, &req); decodeErr != nil {
			writeError(w, http.StatusBadRequest, decodeErr)
			return
		}
		review, err = a.service.SetReviewScore(r.Context(), id, req)
	case "start":
		review, err = a.service.StartReview(r.Context(), id)
	case "complete":
		review, err = a.service.CompleteReview(r.Context(), id)
	case "cancel":
		review, err = a.service.CancelReview(r.Context(), id)
	case "reset":
		review, err = a.service.ResetReview(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown review action"))
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"review": review})
}

// ---- audit & users ----

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	companyID := r.URL.Query().Get("company_id")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	var from, to time.Time
	if date := strings.TrimSpace(r.URL.Query().Get("date")); date != "" {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("date must be YYYY-MM-DD"))
			return
		}
		from = day
		to = day.Add(24 * time.Hour)
	}

	logs, err := a.service.ListAuditLogs(r.Context(), companyID, from, to, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleClerks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		clerks := a.auth.ListClerks()
		writeJSON(w, http.StatusOK, map[string]any{"clerks": clerks})
	case http.MethodPost:
		var req domain.ClerkCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		clerk, err := a.auth.CreateClerk(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"clerk": clerk})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// splitIDAction parses "/{prefix}{id}" and "/{prefix}{id}/{action}" paths.
// Multi-segment actions like "loyalty/totals" are returned as-is.
func splitIDAction(w http.ResponseWriter, r *http.Request, prefix string) (string, string, bool) {
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusBadRequest, errors.New("invalid path"))
		return "", "", false
	}
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("id required"))
		return "", "", false
	}
	id, action, _ := strings.Cut(tail, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id required"))
		return "", "", false
	}
	return id, action, true
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeServiceError maps the store sentinels and role errors onto HTTP codes.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	case strings.Contains(strings.ToLower(err.Error()), "admin role required"):
		status = http.StatusForbidden
	}
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
