package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/order-relay/internal/infrastructure/config"
	"github.com/nerrad567/order-relay/internal/infrastructure/logging"
	"github.com/nerrad567/order-relay/internal/order"
	"github.com/nerrad567/order-relay/internal/ratelimit"
)

const testAPIKey = "test-api-key-0123456789abcdef"

// fakeTrigger records fired notifications and fails on demand.
type fakeTrigger struct {
	mu    sync.Mutex
	fired []*order.Notification
	err   error
	delay time.Duration
}

func (f *fakeTrigger) Name() string { return "fake" }

func (f *fakeTrigger) Fire(ctx context.Context, n *order.Notification) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.fired = append(f.fired, n)
	f.mu.Unlock()
	return f.err
}

func (f *fakeTrigger) firedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fired)
}

// testServer creates a Server wired with a fake trigger and a small rate limit.
func testServer(t *testing.T, trig *fakeTrigger) *Server {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			APIKey: testAPIKey,
		},
		Service: config.ServiceConfig{
			Name:        "order-relay",
			Environment: "test",
		},
		Logger:      log,
		Trigger:     trig,
		Limiter:     ratelimit.New(3, time.Minute),
		TriggerTime: 2 * time.Second,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub and start time for tests (normally done in Start)
	srv.hub = NewHub(srv.wsCfg, log)
	srv.startTime = time.Now()
	go srv.hub.Run(context.Background())

	return srv
}

// doRequest executes a request against the server's router.
func doRequest(t *testing.T, srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAPIKey}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v (body: %s)", err, rec.Body.String())
	}
	return body
}

const validOrderBody = `{
	"userId": "user-42",
	"orders": [
		{"name": "espresso", "quantity": 2},
		{"name": "flat white", "quantity": 1}
	],
	"orderCount": 3,
	"totalValue": 11.50
}`

func TestHealth_NoAuthRequired(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})

	rec := doRequest(t, srv, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["service"] != "order-relay" {
		t.Errorf("service = %v, want order-relay", body["service"])
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["environment"] != "test" {
		t.Errorf("environment = %v, want test", body["environment"])
	}
}

func TestHealth_NeverRateLimited(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})

	// Well past the 3-request budget.
	for i := 0; i < 10; i++ {
		rec := doRequest(t, srv, http.MethodGet, "/health", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestAuth_MissingKey(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})

	rec := doRequest(t, srv, http.MethodPost, "/test", "{}", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != ErrCodeUnauthorized {
		t.Errorf("code = %v, want %s", body["code"], ErrCodeUnauthorized)
	}
}

func TestAuth_InvalidKey(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"wrong bearer", map[string]string{"Authorization": "Bearer wrong-key-wrong-key"}},
		{"wrong x-api-key", map[string]string{"X-API-Key": "wrong-key-wrong-key"}},
		{"truncated key", map[string]string{"Authorization": "Bearer " + testAPIKey[:len(testAPIKey)-1]}},
		{"malformed scheme", map[string]string{"Authorization": "Basic " + testAPIKey}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/test", "{}", tt.headers)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAuth_AcceptedSchemes(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"bearer", map[string]string{"Authorization": "Bearer " + testAPIKey}},
		{"x-api-key", map[string]string{"X-API-Key": testAPIKey}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, &fakeTrigger{})
			rec := doRequest(t, srv, http.MethodPost, "/test", "{}", tt.headers)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestOrderNotification_Success(t *testing.T) {
	trig := &fakeTrigger{}
	srv := testServer(t, trig)

	rec := doRequest(t, srv, http.MethodPost, "/order-notification", validOrderBody, authHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["status"] != "success" {
		t.Errorf("status = %v, want success", body["status"])
	}
	if body["event_id"] == "" || body["event_id"] == nil {
		t.Error("event_id should be set")
	}
	if body["order_count"] != float64(3) {
		t.Errorf("order_count = %v, want 3", body["order_count"])
	}
	if body["total_value"] != 11.50 {
		t.Errorf("total_value = %v, want 11.50", body["total_value"])
	}

	if trig.firedCount() != 1 {
		t.Fatalf("trigger fired %d times, want 1", trig.firedCount())
	}
	if got := trig.fired[0].UserID; got != "user-42" {
		t.Errorf("trigger received user %q, want user-42", got)
	}
}

func TestOrderNotification_InvalidJSON(t *testing.T) {
	trig := &fakeTrigger{}
	srv := testServer(t, trig)

	rec := doRequest(t, srv, http.MethodPost, "/order-notification", "{not json", authHeaders())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != ErrCodeValidation {
		t.Errorf("code = %v, want %s", body["code"], ErrCodeValidation)
	}
	if trig.firedCount() != 0 {
		t.Error("trigger must not fire for rejected payloads")
	}
}

func TestOrderNotification_ValidationError(t *testing.T) {
	trig := &fakeTrigger{}
	srv := testServer(t, trig)

	tests := []struct {
		name string
		body string
	}{
		{"no items", `{"userId":"u1","orders":[]}`},
		{"missing orders", `{"userId":"u1"}`},
		{"item without name", `{"userId":"u1","orders":[{"quantity":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/order-notification", tt.body, authHeaders())
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body: %s)", rec.Code, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if body["code"] != ErrCodeValidation {
				t.Errorf("code = %v, want %s", body["code"], ErrCodeValidation)
			}
		})
	}

	if trig.firedCount() != 0 {
		t.Error("trigger must not fire for rejected payloads")
	}
}

func TestOrderNotification_TriggerFailure(t *testing.T) {
	trig := &fakeTrigger{err: errors.New("script exited 1")}
	srv := testServer(t, trig)

	rec := doRequest(t, srv, http.MethodPost, "/order-notification", validOrderBody, authHeaders())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 (body: %s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["code"] != ErrCodeTriggerFailed {
		t.Errorf("code = %v, want %s", body["code"], ErrCodeTriggerFailed)
	}
	if srv.triggerFailures.Load() != 1 {
		t.Errorf("triggerFailures = %d, want 1", srv.triggerFailures.Load())
	}
}

func TestTest_EchoesPayload(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})

	rec := doRequest(t, srv, http.MethodPost, "/test", `{"ping":"pong"}`, authHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	received, ok := body["received_data"].(map[string]any)
	if !ok {
		t.Fatalf("received_data = %v, want object", body["received_data"])
	}
	if received["ping"] != "pong" {
		t.Errorf("received_data.ping = %v, want pong", received["ping"])
	}
}

func TestTest_EmptyBodyAccepted(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})

	rec := doRequest(t, srv, http.MethodPost, "/test", "", authHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRateLimit_Enforced(t *testing.T) {
	srv := testServer(t, &fakeTrigger{}) // limit is 3 per minute

	for i := 0; i < 3; i++ {
		rec := doRequest(t, srv, http.MethodPost, "/test", "{}", authHeaders())
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "3" {
			t.Errorf("X-RateLimit-Limit = %q, want 3", got)
		}
	}

	rec := doRequest(t, srv, http.MethodPost, "/test", "{}", authHeaders())
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != ErrCodeRateLimited {
		t.Errorf("code = %v, want %s", body["code"], ErrCodeRateLimited)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set on 429")
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
}

func TestRateLimit_PerClientIP(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})

	// Exhaust the budget for one client.
	headers := authHeaders()
	headers["X-Forwarded-For"] = "198.51.100.7"
	for i := 0; i < 4; i++ {
		doRequest(t, srv, http.MethodPost, "/test", "{}", headers)
	}
	rec := doRequest(t, srv, http.MethodPost, "/test", "{}", headers)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted client: status = %d, want 429", rec.Code)
	}

	// A different client still has budget.
	other := authHeaders()
	other["X-Forwarded-For"] = "198.51.100.8"
	rec = doRequest(t, srv, http.MethodPost, "/test", "{}", other)
	if rec.Code != http.StatusOK {
		t.Errorf("fresh client: status = %d, want 200", rec.Code)
	}
}

func TestRateLimit_SharedBudgetAcrossOrderEndpoints(t *testing.T) {
	trig := &fakeTrigger{}
	srv := testServer(t, trig)

	// Two tests + one order = 3 requests, exhausting the budget.
	doRequest(t, srv, http.MethodPost, "/test", "{}", authHeaders())
	doRequest(t, srv, http.MethodPost, "/test", "{}", authHeaders())
	rec := doRequest(t, srv, http.MethodPost, "/order-notification", validOrderBody, authHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("third request: status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/order-notification", validOrderBody, authHeaders())
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("fourth request: status = %d, want 429", rec.Code)
	}
	if trig.firedCount() != 1 {
		t.Errorf("trigger fired %d times, want 1", trig.firedCount())
	}
}

func TestWSTicket_RequiresAuth(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})

	rec := doRequest(t, srv, http.MethodPost, "/auth/ws-ticket", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWSTicket_SingleUse(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})

	rec := doRequest(t, srv, http.MethodPost, "/auth/ws-ticket", "", authHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	ticket, _ := body["ticket"].(string)
	if ticket == "" {
		t.Fatal("ticket should be returned")
	}

	if !srv.tickets.validate(ticket) {
		t.Error("fresh ticket should validate")
	}
	if srv.tickets.validate(ticket) {
		t.Error("ticket must be single-use")
	}
}

func TestWebSocket_TicketAuthWithoutAPIKey(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	// Issue a ticket with the API key over plain HTTP.
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/auth/ws-ticket", nil)
	if err != nil {
		t.Fatalf("build ticket request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("ticket request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ticket status = %d, want 200", resp.StatusCode)
	}
	var issued struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&issued); err != nil {
		t.Fatalf("decode ticket response: %v", err)
	}
	if issued.Ticket == "" {
		t.Fatal("ticket should be returned")
	}

	// Upgrade with no auth headers, the way a browser has to.
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?ticket=" + issued.Ticket
	conn, upResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		status := 0
		if upResp != nil {
			status = upResp.StatusCode
		}
		t.Fatalf("dial with valid ticket failed (status %d): %v", status, err)
	}
	conn.Close()
}

func TestWebSocket_RejectsMissingTicket(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})

	rec := doRequest(t, srv, http.MethodGet, "/ws", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != ErrCodeUnauthorized {
		t.Errorf("code = %v, want %s", body["code"], ErrCodeUnauthorized)
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "ticket") {
		t.Errorf("message = %q, should point the client at the ticket flow", msg)
	}
}

func TestMetrics_ReportsRelayCounters(t *testing.T) {
	trig := &fakeTrigger{}
	srv := testServer(t, trig)

	doRequest(t, srv, http.MethodPost, "/order-notification", validOrderBody, authHeaders())

	rec := doRequest(t, srv, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var metrics SystemMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("metrics response is not valid JSON: %v", err)
	}
	if metrics.Relay.OrdersAccepted != 1 {
		t.Errorf("orders_accepted = %d, want 1", metrics.Relay.OrdersAccepted)
	}
	if metrics.Relay.TriggerBackend != "fake" {
		t.Errorf("trigger_backend = %q, want fake", metrics.Relay.TriggerBackend)
	}
	if metrics.Runtime.Goroutines <= 0 {
		t.Error("runtime goroutine count should be positive")
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})

	huge := fmt.Sprintf(`{"userId":"u1","orders":[{"name":"%s","quantity":1}]}`,
		strings.Repeat("x", maxRequestBodySize+1))
	rec := doRequest(t, srv, http.MethodPost, "/order-notification", huge, authHeaders())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for oversized body", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != ErrCodeBadRequest {
		t.Errorf("code = %v, want %s", body["code"], ErrCodeBadRequest)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	srv := testServer(t, &fakeTrigger{})

	rec := doRequest(t, srv, http.MethodGet, "/health", "", map[string]string{"X-Request-ID": "abc-123"})
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}

	rec = doRequest(t, srv, http.MethodGet, "/health", "", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("server should generate a request ID when none is sent")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"socket address", "10.0.0.5:1234", nil, "10.0.0.5"},
		{"x-forwarded-for", "10.0.0.5:1234", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "203.0.113.9"},
		{"x-forwarded-for chain", "10.0.0.5:1234", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"x-real-ip", "10.0.0.5:1234", map[string]string{"X-Real-IP": "203.0.113.10"}, "203.0.113.10"},
		{"forwarded-for wins over real-ip", "10.0.0.5:1234", map[string]string{
			"X-Forwarded-For": "203.0.113.9",
			"X-Real-IP":       "203.0.113.10",
		}, "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
