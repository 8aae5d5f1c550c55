package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/baymax-health/internal/conversation"
	"github.com/wolfman30/baymax-health/internal/healthlog"
	"github.com/wolfman30/baymax-health/internal/observability/metrics"
	"github.com/wolfman30/baymax-health/internal/prescription"
	"github.com/wolfman30/baymax-health/pkg/logging"
)

type cannedGenerator struct{}

func (cannedGenerator) Generate(context.Context, conversation.Prompt) (string, error) {
	return "Rest and drink plenty of fluids.", nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.NewWithWriter("error", io.Discard)
	reg := prometheus.NewRegistry()
	chatMetrics := metrics.NewChatMetrics(reg)

	turns := conversation.NewInMemoryTurnStore()
	assembler := conversation.NewAssembler(turns, prescription.NewInMemoryRepository(), conversation.DefaultWindow, logger, chatMetrics)
	svc := conversation.NewService(turns, assembler, cannedGenerator{},
		conversation.WithLogger(logger),
		conversation.WithMetrics(chatMetrics),
	)

	return New(&Config{
		Logger:             logger,
		ChatHandler:        conversation.NewHandler(svc, logger),
		HealthLogHandler:   healthlog.NewHandler(healthlog.NewService(healthlog.NewInMemoryRepository(), logger), logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: []string{"https://app.example.com"},
	})
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	rr := serve(newTestRouter(t), http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp["status"])
	}
}

func TestRouterChatEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rr := serve(router, http.MethodPost, "/api/chat", `{"message":"I have a mild headache","user_id":"router-user"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if resp["response"] != "Rest and drink plenty of fluids." {
		t.Errorf("unexpected response %v", resp["response"])
	}
	if resp["anonymized"] != true {
		t.Errorf("expected anonymized true")
	}

	rr = serve(router, http.MethodPost, "/api/chat", `{"user_id":"router-user"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing message, got %d", rr.Code)
	}

	rr = serve(router, http.MethodGet, "/api/chat", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET /api/chat, got %d", rr.Code)
	}
}

func TestRouterHealthLogEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rr := serve(router, http.MethodPost, "/api/logs", `{"date":"2030-01-02","sleepHours":7}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(router, http.MethodGet, "/api/logs/one?date=2030-01-02", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var entry map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&entry); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if entry["sleepHours"] != float64(7) {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestRouterHealthLogRange(t *testing.T) {
	router := newTestRouter(t)
	for _, day := range []string{"2025-11-05", "2025-11-01"} {
		rr := serve(router, http.MethodPost, "/api/logs", `{"user_id":"graph-user","date":"`+day+`","mood":4}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("seed %s: expected 200, got %d", day, rr.Code)
		}
	}

	rr := serve(router, http.MethodGet, "/api/health-logs?start=2025-11-01&end=2025-11-10&user_id=graph-user", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var items []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("decode range: %v", err)
	}
	if len(items) != 2 || items[0]["date"] != "2025-11-01" {
		t.Fatalf("unexpected range %v", items)
	}

	rr = serve(router, http.MethodGet, "/api/health-logs?start=2025-11-10&end=2025-11-01", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", rr.Code)
	}
}

func TestRouterUnknownRouteReturnsJSON(t *testing.T) {
	router := newTestRouter(t)
	for _, target := range []string{"/definitely-no-such-route-xyz", "/api/nope"} {
		rr := serve(router, http.MethodGet, target, "")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", target, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("%s: expected json content type, got %q", target, ct)
		}
		var body map[string]string
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode 404 body: %v", target, err)
		}
		if body["error"] == "" {
			t.Fatalf("%s: expected error message", target)
		}
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	serve(router, http.MethodPost, "/api/chat", `{"message":"what is a normal heart rate"}`)

	rr := serve(router, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "baymax_chat_turns_total") {
		t.Fatalf("expected chat metrics in exposition")
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("missing allow origin header")
	}
}
