package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/commitment-planner/internal/config"
	"github.com/commitment-planner/internal/controller"
	"github.com/commitment-planner/internal/domain"
	"github.com/commitment-planner/internal/optimizer"
)

var fixedTime = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Optimizer.DeterministicIDs = true
	cfg.Server.RateLimitPerMinute = 0
	cfg.Logging.Level = "error"
	cfg.Logging.EnableColor = false

	s, err := NewServer(cfg, controller.WithClock(func() time.Time { return fixedTime }))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func planBody(grantID string) controller.PlanRequest {
	return controller.PlanRequest{
		PlanRequest: optimizer.PlanRequest{
			Name: "lab",
			Workloads: []domain.WorkloadPattern{
				{
					ID: "genomics", AvgDurationHours: 8, RunsPerDay: 2, DaysPerWeek: 5,
					Resources: domain.ResourceRequirement{VCPU: 16, MemoryGiB: 64}, Interruptible: true,
				},
				{
					ID: "always-on", AvgDurationHours: 1, RunsPerDay: 24, DaysPerWeek: 7,
					Resources: domain.ResourceRequirement{VCPU: 4, MemoryGiB: 16}, Priority: domain.PriorityCritical,
				},
			},
		},
		GrantID: grantID,
	}
}

func labGrant() domain.Grant {
	return domain.Grant{
		ID:                    "grant-lab",
		Name:                  "Lab compute",
		StartDate:             time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ProjectDurationMonths: 12,
		BudgetPeriodType:      domain.MonthlyPeriods,
		CloudComputeBudget:    12000,
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	rr := do(t, server.Handler(), http.MethodGet, "/api/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Status = %v, want healthy", resp.Status)
	}
	if resp.Version != Version {
		t.Errorf("Version = %v, want %v", resp.Version, Version)
	}
	if resp.Checks["pricing"] != "static list prices" {
		t.Errorf("pricing check = %q", resp.Checks["pricing"])
	}
}

func TestPlanEndpoint(t *testing.T) {
	server := newTestServer(t)
	h := server.Handler()

	rr := do(t, h, http.MethodPost, "/api/plan", planBody(""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp controller.PlanResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success || resp.Plan == nil {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Plan.ID != "plan-1" {
		t.Errorf("plan ID = %s, want plan-1", resp.Plan.ID)
	}
	if len(resp.Plan.Workloads) != 2 {
		t.Errorf("got %d workloads, want 2", len(resp.Plan.Workloads))
	}

	metrics := do(t, h, http.MethodGet, "/metrics", nil)
	if metrics.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", metrics.Code)
	}
	if !strings.Contains(metrics.Body.String(), `planner_plans_generated_total{horizon="1yr"} 1`) {
		t.Error("/metrics does not report the generated plan")
	}
}

func TestPlanEndpointErrors(t *testing.T) {
	server := newTestServer(t)
	h := server.Handler()

	tests := []struct {
		name       string
		method     string
		body       interface{}
		wantStatus int
	}{
		{"Wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed},
		{"Invalid JSON", http.MethodPost, "invalid json", http.StatusBadRequest},
		{"Unknown field", http.MethodPost, `{"workloadz":[]}`, http.StatusBadRequest},
		{"No workloads", http.MethodPost, controller.PlanRequest{}, http.StatusBadRequest},
		{"Unknown grant", http.MethodPost, planBody("missing"), http.StatusNotFound},
		{"Preflight", http.MethodOptions, nil, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, "/api/plan", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantStatus == http.StatusNoContent {
				return
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode error: %v", err)
			}
			if resp.Success || resp.Error == "" {
				t.Errorf("error response = %+v", resp)
			}
		})
	}
}

func TestGrantEndpoints(t *testing.T) {
	server := newTestServer(t)
	h := server.Handler()

	rr := do(t, h, http.MethodPost, "/api/grants", labGrant())
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var created controller.GrantResponse
	json.NewDecoder(rr.Body).Decode(&created)
	if len(created.Grant.Periods) != 12 {
		t.Errorf("got %d periods, want 12", len(created.Grant.Periods))
	}

	rr = do(t, h, http.MethodGet, "/api/grants", nil)
	var list GrantListResponse
	json.NewDecoder(rr.Body).Decode(&list)
	if len(list.Grants) != 1 || list.Grants[0] != "grant-lab" {
		t.Errorf("grants = %v", list.Grants)
	}

	for _, path := range []string{"/api/grants/grant-lab", "/api/grants?id=grant-lab"} {
		if rr := do(t, h, http.MethodGet, path, nil); rr.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, rr.Code)
		}
	}
	if rr := do(t, h, http.MethodGet, "/api/grants/nope", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown grant status = %d, want 404", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/api/budget/spend", controller.SpendRequest{GrantID: "grant-lab", Amount: 850})
	if rr.Code != http.StatusOK {
		t.Fatalf("spend status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var spend controller.SpendResponse
	json.NewDecoder(rr.Body).Decode(&spend)
	if spend.Period == nil || spend.Period.Status != domain.PeriodWarning {
		t.Errorf("period after 85%% spend = %+v", spend.Period)
	}
	if len(spend.Alerts) == 0 || spend.Alerts[0].Severity != domain.SeverityWarning {
		t.Errorf("alerts = %+v", spend.Alerts)
	}

	rr = do(t, h, http.MethodPost, "/api/budget/spend", controller.SpendRequest{GrantID: "grant-lab", Amount: 1, Kind: "refund"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d, want 400", rr.Code)
	}

	forecast := controller.ForecastRequest{ForecastInput: domain.ForecastInput{
		GrantID: "grant-lab",
		History: []domain.MonthlySpend{{Month: "2025-01", TotalSpent: 800}, {Month: "2025-02", TotalSpent: 900}},
	}}
	rr = do(t, h, http.MethodPost, "/api/budget/forecast", forecast)
	if rr.Code != http.StatusOK {
		t.Fatalf("forecast status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var fr controller.ForecastResponse
	json.NewDecoder(rr.Body).Decode(&fr)
	if fr.Forecast == nil || fr.Forecast.AvgMonthlySpend != 850 || len(fr.Forecast.Scenarios) != 3 {
		t.Errorf("forecast = %+v", fr.Forecast)
	}

	forecast.History = nil
	if rr := do(t, h, http.MethodPost, "/api/budget/forecast", forecast); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty history status = %d, want 422", rr.Code)
	}

	// Plans against the grant carry budget impact
	rr = do(t, h, http.MethodPost, "/api/plan", planBody("grant-lab"))
	var plan controller.PlanResponse
	json.NewDecoder(rr.Body).Decode(&plan)
	if plan.Plan == nil || plan.Plan.BudgetImpact == nil || plan.Plan.BudgetImpact.GrantID != "grant-lab" {
		t.Errorf("plan budget impact missing: %+v", plan.Plan)
	}
}

func TestFamiliesAndCacheEndpoints(t *testing.T) {
	server := newTestServer(t)
	h := server.Handler()

	rr := do(t, h, http.MethodGet, "/api/families", nil)
	var families []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&families); err != nil {
		t.Fatalf("Failed to decode families: %v", err)
	}
	if len(families) == 0 {
		t.Error("families should not be empty")
	}

	rr = do(t, h, http.MethodGet, "/api/cache/status", nil)
	var cache CacheStatusResponse
	json.NewDecoder(rr.Body).Decode(&cache)
	if rr.Code != http.StatusOK || cache.LiveSpotRates {
		t.Errorf("cache status = %d %+v", rr.Code, cache)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("x", "bad"), http.StatusBadRequest},
		{domain.NewNotFoundError("grant", "g"), http.StatusNotFound},
		{domain.NewInsufficientDataError("forecast", "empty"), http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", domain.ErrConstraintConflict), http.StatusUnprocessableEntity},
		{domain.ErrPricingUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		if !rl.Allow("192.168.1.1") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}
	if rl.Allow("192.168.1.1") {
		t.Error("6th request should be denied")
	}
	if !rl.Allow("192.168.1.2") {
		t.Error("Request from different IP should be allowed")
	}

	unlimited := NewRateLimiter(0, time.Minute)
	defer unlimited.Stop()
	for i := 0; i < 100; i++ {
		if !unlimited.Allow("10.0.0.1") {
			t.Fatal("zero rate should disable limiting")
		}
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	wrapped := rl.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "192.168.1.1:1234"
		rr := httptest.NewRecorder()
		wrapped(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("Request %d should return 200, got %d", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	rr := httptest.NewRecorder()
	wrapped(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request should return 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Error("missing Retry-After header")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name          string
		xForwardedFor string
		xRealIP       string
		remoteAddr    string
		expectedIP    string
	}{
		{
			name:          "X-Forwarded-For header",
			xForwardedFor: "10.0.0.1, 192.168.1.1",
			remoteAddr:    "127.0.0.1:8080",
			expectedIP:    "10.0.0.1",
		},
		{
			name:       "X-Real-IP header",
			xRealIP:    "10.0.0.2",
			remoteAddr: "127.0.0.1:8080",
			expectedIP: "10.0.0.2",
		},
		{
			name:       "RemoteAddr fallback",
			remoteAddr: "192.168.1.100:54321",
			expectedIP: "192.168.1.100",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.168.1.100",
			expectedIP: "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}
			req.RemoteAddr = tt.remoteAddr

			if ip := getClientIP(req); ip != tt.expectedIP {
				t.Errorf("getClientIP() = %v, want %v", ip, tt.expectedIP)
			}
		})
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	rl.now = func() time.Time { return now }

	if !rl.Allow("10.0.0.9") {
		t.Fatal("first request should be allowed")
	}
	now = now.Add(20 * time.Second)
	if left, wait, ok := rl.take("10.0.0.9"); ok || left != 0 || wait != 40*time.Second {
		t.Errorf("take() = %d, %v, %v, want 0, 40s, false", left, wait, ok)
	}
	now = now.Add(3 * time.Minute)
	if !rl.Allow("10.0.0.9") {
		t.Error("allowance should reset after the window")
	}
}

func TestRateLimiterHeaders(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()

	wrapped := rl.Middleware(func(w http.ResponseWriter, r *http.Request) {})
	req := httptest.NewRequest(http.MethodGet, "/api/families", nil)
	rr := httptest.NewRecorder()
	wrapped(rr, req)

	if rr.Header().Get("X-RateLimit-Limit") != "3" || rr.Header().Get("X-RateLimit-Remaining") != "2" {
		t.Errorf("headers = %v", rr.Header())
	}
}
