package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/commitment-planner/internal/config"
	"github.com/commitment-planner/internal/controller"
	"github.com/commitment-planner/internal/domain"
	"github.com/commitment-planner/internal/logging"
)

func newTestHandler(t *testing.T) *handler {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Optimizer.DeterministicIDs = true

	logger, err := logging.New(logging.Config{Level: logging.ERROR, Output: io.Discard})
	if err != nil {
		t.Fatalf("logging.New() error = %v", err)
	}
	clock := func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	h := newHandler(cfg, controller.WithLogger(logger), controller.WithClock(clock))
	h.logger = logger
	return h
}

func request(method, path, body string) events.LambdaFunctionURLRequest {
	req := events.LambdaFunctionURLRequest{RawPath: path, Body: body}
	req.RequestContext.HTTP.Method = method
	return req
}

func TestHandlerRouting(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	grant := `{"id":"grant-lab","start_date":"2025-01-01T00:00:00Z","project_duration_months":12,"budget_period_type":"quarterly","cloud_compute_budget":40000}`
	plan := `{"workloads":[{"id":"api","avg_duration_hours":1,"runs_per_day":24,"days_per_week":7,"priority":"critical","resources":{"vcpu":4,"memory_gib":16}}],"grant_id":"grant-lab"}`

	tests := []struct {
		name       string
		req        events.LambdaFunctionURLRequest
		wantStatus int
	}{
		{"Health", request(http.MethodGet, "/api/health", ""), http.StatusOK},
		{"Preflight", request(http.MethodOptions, "/api/plan", ""), http.StatusNoContent},
		{"Create grant", request(http.MethodPost, "/api/grants", grant), http.StatusCreated},
		{"Get grant", request(http.MethodGet, "/api/grants/grant-lab", ""), http.StatusOK},
		{"Unknown grant", request(http.MethodGet, "/api/grants/nope", ""), http.StatusNotFound},
		{"Plan against grant", request(http.MethodPost, "/api/plan", plan), http.StatusOK},
		{"Invalid plan body", request(http.MethodPost, "/api/plan", "{"), http.StatusBadRequest},
		{"Spend", request(http.MethodPost, "/api/budget/spend", `{"grant_id":"grant-lab","amount":2500}`), http.StatusOK},
		{"Forecast without history", request(http.MethodPost, "/api/budget/forecast", `{"grant_id":"grant-lab"}`), http.StatusUnprocessableEntity},
		{"Families", request(http.MethodGet, "/api/families", ""), http.StatusOK},
		{"Not found", request(http.MethodGet, "/index.html", ""), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.Handle(ctx, tt.req)
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, resp.Body)
			}
			if resp.Headers["Access-Control-Allow-Origin"] != "*" {
				t.Error("missing CORS header")
			}
		})
	}
}

func TestHandlerBase64Body(t *testing.T) {
	h := newTestHandler(t)

	body := `{"history":[{"month":"2025-01","total_spent":100}],"remaining_months":2,"allocation":1000}`
	req := request(http.MethodPost, "/api/budget/forecast", base64.StdEncoding.EncodeToString([]byte(body)))
	req.IsBase64Encoded = true

	resp, err := h.Handle(context.Background(), req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("Handle() = %d, %v (body %s)", resp.StatusCode, err, resp.Body)
	}

	var fr controller.ForecastResponse
	if err := json.Unmarshal([]byte(resp.Body), &fr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fr.Forecast.ProjectedTotal != 200 {
		t.Errorf("ProjectedTotal = %v, want 200", fr.Forecast.ProjectedTotal)
	}

	req.Body = "%%%"
	resp, _ = h.Handle(context.Background(), req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad base64 status = %d, want 400", resp.StatusCode)
	}
}

func TestHandlerSpendAlerts(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	grant := `{"id":"g1","start_date":"2025-01-01T00:00:00Z","project_duration_months":3,"cloud_compute_budget":3000}`
	if resp, _ := h.Handle(ctx, request(http.MethodPost, "/api/grants", grant)); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", resp.StatusCode, resp.Body)
	}

	resp, _ := h.Handle(ctx, request(http.MethodPost, "/api/budget/spend", `{"grant_id":"g1","amount":1000}`))
	var spend controller.SpendResponse
	if err := json.Unmarshal([]byte(resp.Body), &spend); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if spend.Period.Status != domain.PeriodExceeded {
		t.Errorf("status = %s, want exceeded", spend.Period.Status)
	}
	if len(spend.Alerts) == 0 || spend.Alerts[0].Severity != domain.SeverityCritical {
		t.Errorf("alerts = %+v", spend.Alerts)
	}
}
