// Package main provides the Lambda handler for the commitment planner.
// This is the entry point for AWS Lambda Function URL deployment.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/commitment-planner/internal/config"
	"github.com/commitment-planner/internal/controller"
	"github.com/commitment-planner/internal/domain"
	"github.com/commitment-planner/internal/logging"
	"github.com/commitment-planner/internal/web"
)

// handler routes Function URL requests to a controller. Grants live in the
// controller's memory and survive only as long as the warm container.
type handler struct {
	ctrl   *controller.Controller
	cfg    *config.Config
	logger *logging.Logger
}

func newHandler(cfg *config.Config, opts ...controller.Option) *handler {
	logger := controller.NewLogger(cfg, "lambda")
	opts = append([]controller.Option{controller.WithLogger(logger)}, opts...)
	return &handler{ctrl: controller.New(cfg, opts...), cfg: cfg, logger: logger}
}

// Handle processes Lambda Function URL requests
func (h *handler) Handle(ctx context.Context, request events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	path := strings.TrimSuffix(request.RawPath, "/")
	method := request.RequestContext.HTTP.Method
	h.logger.Info("%s %s", method, path)

	if method == http.MethodOptions {
		return events.LambdaFunctionURLResponse{StatusCode: http.StatusNoContent, Headers: corsHeaders()}, nil
	}

	body := request.Body
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errorResponse(domain.NewValidationError("body", "invalid base64 body"))
		}
		body = string(decoded)
	}

	switch {
	case path == "/api/health" && method == http.MethodGet:
		return jsonResponse(http.StatusOK, web.HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   web.Version,
			Checks: map[string]string{
				"region": h.cfg.Pricing.Region,
				"grants": strings.Join(h.ctrl.ListGrants(), ","),
			},
		})
	case path == "/api/plan" && method == http.MethodPost:
		var req controller.PlanRequest
		if err := decode(body, &req); err != nil {
			return errorResponse(err)
		}
		ctx, cancel := context.WithTimeout(ctx, 55*time.Second)
		defer cancel()
		return respond(h.ctrl.Plan(ctx, req))
	case path == "/api/grants" && method == http.MethodPost:
		var grant domain.Grant
		if err := decode(body, &grant); err != nil {
			return errorResponse(err)
		}
		resp, err := h.ctrl.CreateGrant(ctx, &grant)
		if err != nil {
			return errorResponse(err)
		}
		return jsonResponse(http.StatusCreated, resp)
	case path == "/api/grants" && method == http.MethodGet:
		if id := request.QueryStringParameters["id"]; id != "" {
			return respond(h.ctrl.GetGrant(ctx, id))
		}
		return jsonResponse(http.StatusOK, web.GrantListResponse{Success: true, Grants: h.ctrl.ListGrants()})
	case strings.HasPrefix(path, "/api/grants/") && method == http.MethodGet:
		return respond(h.ctrl.GetGrant(ctx, strings.TrimPrefix(path, "/api/grants/")))
	case path == "/api/budget/spend" && method == http.MethodPost:
		var req controller.SpendRequest
		if err := decode(body, &req); err != nil {
			return errorResponse(err)
		}
		return respond(h.ctrl.RecordSpend(ctx, req))
	case path == "/api/budget/forecast" && method == http.MethodPost:
		var req controller.ForecastRequest
		if err := decode(body, &req); err != nil {
			return errorResponse(err)
		}
		return respond(h.ctrl.Forecast(ctx, req))
	case path == "/api/families" && method == http.MethodGet:
		return jsonResponse(http.StatusOK, h.ctrl.Families())
	case path == "/api/cache/status" && method == http.MethodGet:
		return jsonResponse(http.StatusOK, h.ctrl.CacheStatus())
	default:
		return jsonResponse(http.StatusNotFound, web.ErrorResponse{Error: "Not found"})
	}
}

func decode(body string, v interface{}) error {
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return domain.NewValidationError("body", "invalid request body: "+err.Error())
	}
	return nil
}

func respond[T any](resp T, err error) (events.LambdaFunctionURLResponse, error) {
	if err != nil {
		return errorResponse(err)
	}
	return jsonResponse(http.StatusOK, resp)
}

func errorResponse(err error) (events.LambdaFunctionURLResponse, error) {
	return jsonResponse(web.StatusFor(err), web.ErrorResponse{Error: err.Error()})
}

func corsHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, Authorization",
	}
}

func jsonResponse(statusCode int, body interface{}) (events.LambdaFunctionURLResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return events.LambdaFunctionURLResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"success":false,"error":"Failed to serialize response"}`,
		}, nil
	}

	return events.LambdaFunctionURLResponse{
		StatusCode: statusCode,
		Headers:    corsHeaders(),
		Body:       string(jsonBody),
	}, nil
}

func main() {
	lambda.Start(newHandler(config.Get()).Handle)
}
