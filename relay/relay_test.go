package relay_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexex18/Restorical-Wisconsin/config"
	"github.com/nexex18/Restorical-Wisconsin/models"
	"github.com/nexex18/Restorical-Wisconsin/relay"
)

const (
	detailPath    = "/rrbotw/botw-activity-detail"
	siteFilesPath = "/rrbotw/botw-activity-detail/WizSiteFiles"
	addtlDocsPath = "/rrbotw/botw-activity-detail/WizAddtionalURLsDocs"
	actionsPath   = "/rrbotw/botw-activity-detail/WizActions"
)

func testTarget(baseURL string) config.TargetConfig {
	return config.TargetConfig{
		BaseURL:       baseURL,
		DetailPath:    detailPath,
		SiteFilesPath: siteFilesPath,
		AddtlDocsPath: addtlDocsPath,
		ActionsPath:   actionsPath,
	}
}

func newRelayer(ts *httptest.Server, timeout time.Duration) *relay.Relayer {
	return relay.New(testTarget(ts.URL), config.RelayConfig{Timeout: timeout})
}

func relayCode(t *testing.T, err error) string {
	t.Helper()
	var relayErr *models.RelayError
	if !errors.As(err, &relayErr) {
		t.Fatalf("expected *models.RelayError, got %T: %v", err, err)
	}
	return relayErr.Code
}

func TestRelayRoundTrip(t *testing.T) {
	var detailQuery atomic.Value

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case detailPath:
			detailQuery.Store(r.URL.RawQuery)
			w.Header().Add("Set-Cookie", "JSESSIONID=abc123; Path=/; HttpOnly")
			w.Header().Add("Set-Cookie", "dtCookie=v_4; Path=/")
			w.Write([]byte(`<html><head><title>BOTW Activity Detail</title></head><body>ok</body></html>`))
		case siteFilesPath, addtlDocsPath, actionsPath:
			w.Write([]byte(`<table><tr><td>fragment for ` + r.URL.Path + `</td></tr></table>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	resp, err := newRelayer(ts, 10*time.Second).Relay(context.Background(), &models.RelayRequest{DSN: "20001"})
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}

	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp.Error)
	}
	if resp.DSN != "20001" {
		t.Errorf("DSN = %q, want 20001", resp.DSN)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
	if resp.CookiesFound != 2 {
		t.Errorf("CookiesFound = %d, want 2", resp.CookiesFound)
	}
	if resp.Title != "BOTW Activity Detail" {
		t.Errorf("Title = %q", resp.Title)
	}
	if got := detailQuery.Load(); got != "dsn=20001" {
		t.Errorf("detail query = %v, want dsn=20001", got)
	}

	if len(resp.Endpoints) != 3 {
		t.Fatalf("got %d endpoints, want 3", len(resp.Endpoints))
	}
	for _, name := range models.EndpointNames {
		ep := resp.Endpoints[name]
		if ep == nil {
			t.Fatalf("missing endpoint %q", name)
		}
		if ep.Status != http.StatusOK {
			t.Errorf("%s status = %d, want 200", name, ep.Status)
		}
		if !strings.Contains(ep.Body, "fragment for") {
			t.Errorf("%s body = %q, want fragment content", name, ep.Body)
		}
	}
}

func TestRelayValidationBlocksNetwork(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer ts.Close()

	rl := newRelayer(ts, time.Second)

	for _, dsn := range []string{"12a", "-5", "20001; DROP TABLE", "１２３", " 20001"} {
		_, err := rl.Relay(context.Background(), &models.RelayRequest{DSN: dsn})
		if err == nil {
			t.Fatalf("dsn %q: expected validation error", dsn)
		}
		if code := relayCode(t, err); code != models.ErrCodeInvalidInput {
			t.Errorf("dsn %q: code = %s, want %s", dsn, code, models.ErrCodeInvalidInput)
		}
	}

	if n := hits.Load(); n != 0 {
		t.Errorf("upstream saw %d requests, want 0", n)
	}
}

func TestRelayCookieHarvestHeader(t *testing.T) {
	var got atomic.Value

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case detailPath:
			w.Header().Add("Set-Cookie", "a=1; Path=/")
			w.Header().Add("Set-Cookie", "b=2; HttpOnly")
			w.Write([]byte("<html></html>"))
		default:
			got.Store(r.Header.Get("Cookie"))
			w.Write([]byte("<div>x</div>"))
		}
	}))
	defer ts.Close()

	resp, err := newRelayer(ts, time.Second).Relay(context.Background(), &models.RelayRequest{DSN: "7"})
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if resp.CookiesFound != 2 {
		t.Errorf("CookiesFound = %d, want 2", resp.CookiesFound)
	}
	if cookie := got.Load(); cookie != "a=1; b=2" {
		t.Errorf("follow-up Cookie header = %q, want %q", cookie, "a=1; b=2")
	}
}

func TestRelayFollowUpHeaders(t *testing.T) {
	type captured struct {
		ajax    string
		referer string
	}
	var got atomic.Value

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case detailPath:
			w.Write([]byte("<html></html>"))
		default:
			got.Store(captured{
				ajax:    r.Header.Get("X-Requested-With"),
				referer: r.Header.Get("Referer"),
			})
			w.Write([]byte("<div>x</div>"))
		}
	}))
	defer ts.Close()

	rl := newRelayer(ts, time.Second)
	if _, err := rl.Relay(context.Background(), &models.RelayRequest{DSN: "42"}); err != nil {
		t.Fatalf("Relay: %v", err)
	}

	c := got.Load().(captured)
	if c.ajax != "XMLHttpRequest" {
		t.Errorf("X-Requested-With = %q", c.ajax)
	}
	if want := rl.DetailURL("42"); c.referer != want {
		t.Errorf("Referer = %q, want %q", c.referer, want)
	}
}

func TestRelayZeroCookiesProceeds(t *testing.T) {
	var followUps atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case detailPath:
			w.Write([]byte("<html></html>"))
		default:
			followUps.Add(1)
			if cookie := r.Header.Get("Cookie"); cookie != "" {
				t.Errorf("Cookie header = %q, want empty", cookie)
			}
			w.Write([]byte("<div>x</div>"))
		}
	}))
	defer ts.Close()

	resp, err := newRelayer(ts, time.Second).Relay(context.Background(), &models.RelayRequest{DSN: "1"})
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if resp.CookiesFound != 0 {
		t.Errorf("CookiesFound = %d, want 0", resp.CookiesFound)
	}
	if n := followUps.Load(); n != 3 {
		t.Errorf("follow-up count = %d, want 3", n)
	}
}

// TestRelayFanOutConcurrency holds every follow-up request at a barrier
// until all three have arrived. A sequential implementation deadlocks
// here and fails via the relay timeout.
func TestRelayFanOutConcurrency(t *testing.T) {
	var mu sync.Mutex
	arrived := 0
	release := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == detailPath {
			w.Write([]byte("<html></html>"))
			return
		}

		mu.Lock()
		arrived++
		if arrived == 3 {
			close(release)
		}
		mu.Unlock()

		select {
		case <-release:
		case <-time.After(3 * time.Second):
			t.Error("barrier never released: follow-ups are not concurrent")
		}
		w.Write([]byte("<div>x</div>"))
	}))
	defer ts.Close()

	resp, err := newRelayer(ts, 5*time.Second).Relay(context.Background(), &models.RelayRequest{DSN: "9"})
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp.Error)
	}
}

func TestRelayFollowUpFailureAbortsAll(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case detailPath, siteFilesPath, addtlDocsPath:
			w.Write([]byte("<html></html>"))
		case actionsPath:
			// Simulate a transport fault: kill the connection mid-response.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("response writer does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			conn.Close()
		}
	}))
	defer ts.Close()

	resp, err := newRelayer(ts, 5*time.Second).Relay(context.Background(), &models.RelayRequest{DSN: "77"})
	if err == nil {
		t.Fatalf("expected error, got %+v", resp)
	}
	if resp != nil {
		t.Errorf("expected no partial result, got %+v", resp)
	}
	if code := relayCode(t, err); code != models.ErrCodeUpstream {
		t.Errorf("code = %s, want %s", code, models.ErrCodeUpstream)
	}
}

func TestRelayDoesNotFollowRedirects(t *testing.T) {
	var followed atomic.Bool

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case detailPath:
			w.Header().Add("Set-Cookie", "session=first-hop; Path=/")
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
		case "/elsewhere":
			followed.Store(true)
		default:
			w.Write([]byte("<div>x</div>"))
		}
	}))
	defer ts.Close()

	resp, err := newRelayer(ts, time.Second).Relay(context.Background(), &models.RelayRequest{DSN: "5"})
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if followed.Load() {
		t.Error("redirect was followed; first-hop cookies would be lost")
	}
	if resp.Status != http.StatusFound {
		t.Errorf("Status = %d, want 302", resp.Status)
	}
	if resp.CookiesFound != 1 {
		t.Errorf("CookiesFound = %d, want 1", resp.CookiesFound)
	}
}

func TestRelayPrimaryErrorStatusSkipsFanOut(t *testing.T) {
	var followUps atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == detailPath {
			http.NotFound(w, r)
			return
		}
		followUps.Add(1)
	}))
	defer ts.Close()

	resp, err := newRelayer(ts, time.Second).Relay(context.Background(), &models.RelayRequest{DSN: "404404"})
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if resp.Success {
		t.Error("expected Success=false")
	}
	if resp.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", resp.Status)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeUpstream {
		t.Errorf("Error = %+v, want %s", resp.Error, models.ErrCodeUpstream)
	}
	if n := followUps.Load(); n != 0 {
		t.Errorf("follow-up count = %d, want 0", n)
	}
}

func TestRelayTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer ts.Close()

	_, err := newRelayer(ts, 100*time.Millisecond).Relay(context.Background(), &models.RelayRequest{DSN: "1"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if code := relayCode(t, err); code != models.ErrCodeTimeout {
		t.Errorf("code = %s, want %s", code, models.ErrCodeTimeout)
	}
}

func TestRelayMarkdownFormat(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == detailPath {
			w.Write([]byte("<html></html>"))
			return
		}
		w.Write([]byte(`<table><tr><td><a href="/rrbotw/download-document?docSeqNo=1">file</a></td><td>Closure Report</td></tr></table>`))
	}))
	defer ts.Close()

	resp, err := newRelayer(ts, time.Second).Relay(context.Background(),
		&models.RelayRequest{DSN: "3", Format: models.FormatMarkdown})
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	body := resp.Endpoints[models.EndpointSiteFiles].Body
	if strings.Contains(body, "<table>") {
		t.Errorf("markdown body still contains HTML: %q", body)
	}
	if !strings.Contains(body, "Closure Report") {
		t.Errorf("markdown body lost cell text: %q", body)
	}
}
