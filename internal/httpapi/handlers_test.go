package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"comercio/backend/internal/cache"
	"comercio/backend/internal/domain"
	"comercio/backend/internal/service"
	"comercio/backend/internal/store/memory"
	"comercio/backend/internal/suggest"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	engine := suggest.NewEngine(cache.NoopSuggestionCache{}, time.Second)
	svc := service.New(repo, engine, "main-co")
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleDiscountRules_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/discount-rules", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleDiscountRules_ListWithToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "clerk", "clerk123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/discount-rules", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["rules"] == nil {
		t.Fatalf("expected rules key in response, got %v", body)
	}
}

func TestClerkCannotCreateDiscountRule(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "clerk", "clerk123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.DiscountRuleCreateRequest{
		Name:         "Regla Nueva",
		CustomerType: domain.CustomerTypeRetail,
		Percentage:   8,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/discount-rules", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for clerk create, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestDiscountRuleCreateConflictMapsTo409(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.DiscountRuleCreateRequest{
		Name:         "Mayorista Duplicado",
		CustomerType: domain.CustomerTypeWholesale,
		Percentage:   12,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/discount-rules", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate rule, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestUnknownResourceMapsTo404(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "clerk", "clerk123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/partners/ptn-missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestPosOrderPayFlow(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	do := func(method, path string, payload any) *httptest.ResponseRecorder {
		t.Helper()
		var body bytes.Buffer
		if payload != nil {
			if err := json.NewEncoder(&body).Encode(payload); err != nil {
				t.Fatalf("encode payload: %v", err)
			}
		}
		req := httptest.NewRequest(method, path, &body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-CSRF-Token", csrf)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	partnerRec := do(http.MethodPost, "/api/v1/partners", domain.PartnerCreateRequest{Name: "Cliente API"})
	if partnerRec.Code != http.StatusCreated {
		t.Fatalf("create partner failed: %d %s", partnerRec.Code, partnerRec.Body.String())
	}
	var partnerBody struct {
		Partner domain.Partner `json:"partner"`
	}
	if err := json.NewDecoder(partnerRec.Body).Decode(&partnerBody); err != nil {
		t.Fatalf("decode partner: %v", err)
	}

	orderRec := do(http.MethodPost, "/api/v1/pos-orders", domain.PosOrderCreateRequest{
		ConfigID:         "pos-main",
		PartnerID:        partnerBody.Partner.ID,
		AmountTotalCents: 4500,
	})
	if orderRec.Code != http.StatusCreated {
		t.Fatalf("create order failed: %d %s", orderRec.Code, orderRec.Body.String())
	}
	var orderBody struct {
		Order domain.PosOrder `json:"order"`
	}
	if err := json.NewDecoder(orderRec.Body).Decode(&orderBody); err != nil {
		t.Fatalf("decode order: %v", err)
	}

	payRec := do(http.MethodPost, "/api/v1/pos-orders/"+orderBody.Order.ID+"/pay", nil)
	if payRec.Code != http.StatusOK {
		t.Fatalf("pay failed: %d %s", payRec.Code, payRec.Body.String())
	}
	var payBody struct {
		Order domain.PosOrder `json:"order"`
	}
	if err := json.NewDecoder(payRec.Body).Decode(&payBody); err != nil {
		t.Fatalf("decode pay response: %v", err)
	}
	if payBody.Order.State != domain.PosOrderStatePaid {
		t.Fatalf("expected paid order, got %s", payBody.Order.State)
	}
	if payBody.Order.PointsEarned != 4 {
		t.Fatalf("expected 4 points for 4500 cents, got %.2f", payBody.Order.PointsEarned)
	}

	// Second pay must fail the draft-state guard.
	repay := do(http.MethodPost, "/api/v1/pos-orders/"+orderBody.Order.ID+"/pay", nil)
	if repay.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for double pay, got %d", repay.Code)
	}
}

func TestStockSweepRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "clerk", "clerk123")
	csrf := fetchCSRFToken(t, api)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stock-alerts/sweep", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for clerk sweep, got %d", rec.Code)
	}
}
