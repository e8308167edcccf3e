// Package relay implements the session-relay fetcher: one authenticated
// fetch of a BOTW detail page, a cookie harvest from its response, and a
// concurrent replay of the harvested session against the three document
// widgets of the same record.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"golang.org/x/sync/errgroup"

	"github.com/nexex18/Restorical-Wisconsin/config"
	"github.com/nexex18/Restorical-Wisconsin/docparse"
	"github.com/nexex18/Restorical-Wisconsin/models"
)

// endpoint is one follow-up AJAX widget.
type endpoint struct {
	name string
	path string
}

// Relayer performs relay invocations. It is safe for concurrent use:
// invocations share only the HTTP client's connection pool, never
// session state — each call owns its cookie string for its lifetime.
type Relayer struct {
	client  *http.Client
	target  config.TargetConfig
	timeout time.Duration
	maxBody int64
	mdConv  *converter.Converter
}

// New creates a Relayer for the given target.
func New(target config.TargetConfig, cfg config.RelayConfig) *Relayer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &Relayer{
		client:  newClient(cfg),
		target:  target,
		timeout: timeout,
		maxBody: maxBody,
		mdConv:  docparse.NewMarkdownConverter(),
	}
}

// endpoints returns the fixed follow-up set in its stable order.
func (r *Relayer) endpoints() []endpoint {
	return []endpoint{
		{models.EndpointSiteFiles, r.target.SiteFilesPath},
		{models.EndpointAddtlDocs, r.target.AddtlDocsPath},
		{models.EndpointActions, r.target.ActionsPath},
	}
}

// DetailURL builds the primary detail-page URL for a dsn. The dsn must
// already be validated; it is substituted verbatim.
func (r *Relayer) DetailURL(dsn string) string {
	return r.target.BaseURL + r.target.DetailPath + "?dsn=" + dsn
}

// Relay performs one full invocation.
//
// Outcomes:
//   - (nil, *models.RelayError) — validation failure (no network I/O) or
//     any transport failure in steps 1–3. The first fan-out failure
//     cancels the remaining follow-ups; no partial result escapes.
//   - (resp with Success=false, nil) — the primary fetch answered with
//     HTTP >= 400. The status is part of the payload so callers can
//     tell a missing record (404) from a transport fault; fan-out is
//     skipped.
//   - (resp with Success=true, nil) — aggregated result.
func (r *Relayer) Relay(ctx context.Context, req *models.RelayRequest) (*models.RelayResponse, error) {
	req.Defaults()
	if verr := req.Validate(); verr != nil {
		return nil, verr
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	totalStart := time.Now()

	// ── Step 1: primary fetch ───────────────────────────────────────
	detailURL := r.DetailURL(req.DSN)

	detailStart := time.Now()
	status, body, header, err := r.get(ctx, detailURL, nil)
	detailMs := time.Since(detailStart).Milliseconds()
	if err != nil {
		return nil, categorize(err, "detail page fetch failed")
	}

	// ── Step 2: cookie harvest ──────────────────────────────────────
	cookie, found := harvestCookies(header)

	resp := &models.RelayResponse{
		DSN:          req.DSN,
		Status:       status,
		Title:        docparse.Title(body),
		CookiesFound: found,
	}

	if status >= http.StatusBadRequest {
		resp.Error = &models.ErrorDetail{
			Code:    models.ErrCodeUpstream,
			Message: fmt.Sprintf("detail page returned HTTP %d", status),
		}
		resp.Timing = models.TimingInfo{
			TotalMs:  time.Since(totalStart).Milliseconds(),
			DetailMs: detailMs,
		}
		return resp, nil
	}

	// ── Step 3: concurrent follow-up fetch ──────────────────────────
	eps := r.endpoints()
	results := make([]*models.EndpointResult, len(eps))

	fanoutStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range eps {
		g.Go(func() error {
			ajaxURL := r.target.BaseURL + ep.path + "?dsn=" + req.DSN
			st, fragment, _, ferr := r.get(gctx, ajaxURL, map[string]string{
				"X-Requested-With": "XMLHttpRequest",
				"Referer":          detailURL,
				"Cookie":           cookie,
			})
			if ferr != nil {
				return fmt.Errorf("%s: %w", ep.name, ferr)
			}
			results[i] = &models.EndpointResult{Body: string(fragment), Status: st}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, categorize(err, "follow-up fetch failed")
	}
	fanoutMs := time.Since(fanoutStart).Milliseconds()

	// ── Step 4: aggregation ─────────────────────────────────────────
	resp.Endpoints = make(map[string]*models.EndpointResult, len(eps))
	for i, ep := range eps {
		if req.Format == models.FormatMarkdown {
			md, mdErr := docparse.ToMarkdown(r.mdConv, results[i].Body, r.target.BaseURL)
			if mdErr == nil {
				results[i].Body = md
			}
		}
		resp.Endpoints[ep.name] = results[i]
	}

	resp.Success = true
	resp.Timing = models.TimingInfo{
		TotalMs:  time.Since(totalStart).Milliseconds(),
		DetailMs: detailMs,
		FanoutMs: fanoutMs,
	}
	return resp, nil
}

// get issues one upstream GET with the browser header set plus extra
// headers, and drains the body. The body is always read to completion
// (up to maxBody) so the connection can be reused and trailing headers
// are final.
func (r *Relayer) get(ctx context.Context, rawURL string, extra map[string]string) (int, []byte, http.Header, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build request: %w", err)
	}
	browserHeaders(httpReq.Header)
	for k, v := range extra {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return 0, nil, nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, r.maxBody))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read body: %w", err)
	}

	return httpResp.StatusCode, body, httpResp.Header, nil
}

// categorize wraps a transport error into the relay's two failure
// classes: deadline expiry becomes RELAY_TIMEOUT (abandoned in-flight
// work, never truncated data), everything else UPSTREAM_FAILED.
func categorize(err error, msg string) *models.RelayError {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewRelayError(models.ErrCodeTimeout, msg+": deadline exceeded", err)
	}
	return models.NewRelayError(models.ErrCodeUpstream, msg, err)
}
