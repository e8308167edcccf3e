package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nexex18/Restorical-Wisconsin/api"
	"github.com/nexex18/Restorical-Wisconsin/cache"
	"github.com/nexex18/Restorical-Wisconsin/config"
	"github.com/nexex18/Restorical-Wisconsin/models"
)

// stubRelayer answers with a canned outcome and records the last request.
type stubRelayer struct {
	resp    *models.RelayResponse
	err     error
	lastDSN string
	calls   int
}

func (s *stubRelayer) Relay(_ context.Context, req *models.RelayRequest) (*models.RelayResponse, error) {
	s.calls++
	s.lastDSN = req.DSN
	return s.resp, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
}

func successResponse(dsn string) *models.RelayResponse {
	return &models.RelayResponse{
		Success:      true,
		DSN:          dsn,
		Status:       200,
		CookiesFound: 2,
		Endpoints: map[string]*models.EndpointResult{
			models.EndpointSiteFiles: {Body: "<div>a</div>", Status: 200},
			models.EndpointAddtlDocs: {Body: "<div>b</div>", Status: 200},
			models.EndpointActions:   {Body: "<div>c</div>", Status: 200},
		},
	}
}

func doRequest(stub *stubRelayer, cfg *config.Config, cc *cache.Cache, target string) *httptest.ResponseRecorder {
	router := api.NewRouter(stub, cfg, cc, time.Now())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func decodeRelay(t *testing.T, w *httptest.ResponseRecorder) models.RelayResponse {
	t.Helper()
	var resp models.RelayResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v\n%s", err, w.Body.String())
	}
	return resp
}

func TestRelayEndpointSuccess(t *testing.T) {
	stub := &stubRelayer{resp: successResponse("20001")}
	w := doRequest(stub, testConfig(), nil, "/?dsn=20001")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", w.Code, w.Body.String())
	}
	resp := decodeRelay(t, w)
	if !resp.Success || resp.DSN != "20001" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Endpoints) != 3 {
		t.Errorf("endpoints = %d, want 3", len(resp.Endpoints))
	}
	if stub.lastDSN != "20001" {
		t.Errorf("relayer saw dsn %q", stub.lastDSN)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q, want *", got)
	}
}

func TestRelayEndpointInfoWithoutDSN(t *testing.T) {
	stub := &stubRelayer{}
	w := doRequest(stub, testConfig(), nil, "/")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var info models.InfoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Service != "brrts-session-relay" {
		t.Errorf("Service = %q", info.Service)
	}
	if stub.calls != 0 {
		t.Errorf("relayer was called %d times for an info request", stub.calls)
	}
}

func TestRelayEndpointInvalidDSN(t *testing.T) {
	stub := &stubRelayer{err: models.NewRelayError(models.ErrCodeInvalidInput, "dsn must contain only digits", nil)}
	w := doRequest(stub, testConfig(), nil, "/?dsn=12a")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400\n%s", w.Code, w.Body.String())
	}
	resp := decodeRelay(t, w)
	if resp.Success {
		t.Error("Success = true on validation error")
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidInput {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestRelayEndpointUpstreamFailure(t *testing.T) {
	stub := &stubRelayer{err: models.NewRelayError(models.ErrCodeUpstream, "connection refused", nil)}
	w := doRequest(stub, testConfig(), nil, "/?dsn=20001")

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	resp := decodeRelay(t, w)
	if resp.Error == nil || resp.Error.Code != models.ErrCodeUpstream {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestRelayEndpointTimeoutMapsTo502(t *testing.T) {
	stub := &stubRelayer{err: models.NewRelayError(models.ErrCodeTimeout, "deadline exceeded", nil)}
	w := doRequest(stub, testConfig(), nil, "/?dsn=20001")

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	resp := decodeRelay(t, w)
	if resp.Error == nil || resp.Error.Code != models.ErrCodeTimeout {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestRelayEndpointPrimaryErrorStatus(t *testing.T) {
	stub := &stubRelayer{resp: &models.RelayResponse{
		Success: false,
		DSN:     "404404",
		Status:  404,
		Error:   &models.ErrorDetail{Code: models.ErrCodeUpstream, Message: "detail page returned HTTP 404"},
	}}
	w := doRequest(stub, testConfig(), nil, "/?dsn=404404")

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	resp := decodeRelay(t, w)
	if resp.Status != 404 {
		t.Errorf("payload Status = %d, want the upstream 404", resp.Status)
	}
}

func TestRelayEndpointVersionedPath(t *testing.T) {
	stub := &stubRelayer{resp: successResponse("7")}
	w := doRequest(stub, testConfig(), nil, "/api/v1/relay?dsn=7")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRelayEndpointCache(t *testing.T) {
	stub := &stubRelayer{resp: successResponse("20001")}
	cc := cache.New(10)
	cfg := testConfig()
	router := api.NewRouter(stub, cfg, cc, time.Now())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?dsn=20001&max_age=60000", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
		resp := models.RelayResponse{}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if i == 1 && resp.CacheStatus != "hit" {
			t.Errorf("second request CacheStatus = %q, want hit", resp.CacheStatus)
		}
	}

	if stub.calls != 1 {
		t.Errorf("relayer called %d times, want 1 (second served from cache)", stub.calls)
	}
}

func TestHealthEndpoint(t *testing.T) {
	w := doRequest(&stubRelayer{}, testConfig(), nil, "/api/v1/health")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var health models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("Status = %q", health.Status)
	}
}

func TestAuthRequiredWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"secret-key"}}
	stub := &stubRelayer{resp: successResponse("1")}
	router := api.NewRouter(stub, cfg, nil, time.Now())

	// No key: rejected.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?dsn=1", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	// Valid key: accepted.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?dsn=1", nil)
	req.Header.Set("X-API-Key", "secret-key")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status with key = %d, want 200\n%s", w.Code, w.Body.String())
	}

	// Health stays open.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", w.Code)
	}
}

func TestRateLimitRejectsBurst(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2}
	stub := &stubRelayer{resp: successResponse("1")}
	router := api.NewRouter(stub, cfg, nil, time.Now())

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?dsn=1", nil))
		codes = append(codes, w.Code)
	}

	limited := 0
	for _, code := range codes {
		if code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited == 0 {
		t.Errorf("no request was rate limited: %v", codes)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := api.NewRouter(&stubRelayer{}, testConfig(), nil, time.Now())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q, want *", got)
	}
}
