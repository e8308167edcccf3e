// Package docscrape drives the batch harvest: relay every pending site,
// parse the returned fragments, and persist the document links.
package docscrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nexex18/Restorical-Wisconsin/config"
	"github.com/nexex18/Restorical-Wisconsin/docparse"
	"github.com/nexex18/Restorical-Wisconsin/models"
	"github.com/nexex18/Restorical-Wisconsin/store"
)

// Fetcher is the slice of the relay the runner needs.
type Fetcher interface {
	Relay(ctx context.Context, req *models.RelayRequest) (*models.RelayResponse, error)
}

// Stats summarizes one harvest run.
type Stats struct {
	Success   int
	Empty     int
	Failed    int
	DocsFound int
}

// Runner harvests documents for a batch of sites. The relay itself never
// retries; the runner owns the retry policy (linear backoff, transport
// failures only) and the upstream rate limit.
type Runner struct {
	fetcher Fetcher
	store   *store.Store
	limiter *rate.Limiter
	cfg     config.HarvestConfig
	baseURL string
}

// NewRunner creates a Runner.
func NewRunner(fetcher Fetcher, st *store.Store, cfg config.HarvestConfig, baseURL string) *Runner {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 0.66
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 100
	}
	return &Runner{
		fetcher: fetcher,
		store:   st,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		cfg:     cfg,
		baseURL: baseURL,
	}
}

// Run harvests documents for the given sites sequentially (the upstream
// is a single occasionally fragile government host; concurrency lives
// inside each relay invocation, not across sites).
func (r *Runner) Run(ctx context.Context, sites []models.Site, label string) (*Stats, error) {
	total := len(sites)
	stats := &Stats{}
	if total == 0 {
		slog.Info("no sites to harvest", "label", label)
		return stats, nil
	}

	slog.Info("harvest starting", "label", label, "sites", total)
	startTime := time.Now()

	for i, site := range sites {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		r.harvestSite(ctx, site, stats)

		done := i + 1
		if done%r.cfg.ProgressInterval == 0 || done == total {
			elapsed := time.Since(startTime).Seconds()
			perSec := float64(done) / elapsed
			etaMin := 0.0
			if perSec > 0 {
				etaMin = float64(total-done) / perSec / 60
			}
			slog.Info("harvest progress",
				"done", done,
				"total", total,
				"ok", stats.Success,
				"empty", stats.Empty,
				"failed", stats.Failed,
				"docs", stats.DocsFound,
				"perSec", fmt.Sprintf("%.2f", perSec),
				"etaMin", fmt.Sprintf("%.0f", etaMin),
			)
		}
	}

	detail := fmt.Sprintf("%d ok, %d empty, %d failed", stats.Success, stats.Empty, stats.Failed)
	if err := r.store.LogScrape(ctx, "documents", "completed", detail, stats.DocsFound); err != nil {
		slog.Warn("scrape log write failed", "error", err)
	}
	slog.Info("harvest complete",
		"label", label,
		"elapsed", time.Since(startTime).Round(time.Second).String(),
		"ok", stats.Success,
		"empty", stats.Empty,
		"failed", stats.Failed,
		"docs", stats.DocsFound,
	)
	return stats, nil
}

// harvestSite relays one site and records the outcome.
func (r *Runner) harvestSite(ctx context.Context, site models.Site, stats *Stats) {
	resp, err := r.fetchWithRetry(ctx, site.DetailSeqNo)

	switch {
	case err != nil:
		r.mark(ctx, site.BRRTSNumber, store.DocsFailed)
		stats.Failed++
		slog.Warn("site harvest failed", "dsn", site.DetailSeqNo, "brrts", site.BRRTSNumber, "error", err)

	case resp.Success:
		docs := docparse.Documents(resp, r.baseURL)
		if len(docs) > 0 {
			if err := r.store.InsertDocuments(ctx, site.BRRTSNumber, site.DetailSeqNo, docs); err != nil {
				r.mark(ctx, site.BRRTSNumber, store.DocsFailed)
				stats.Failed++
				slog.Warn("document insert failed", "brrts", site.BRRTSNumber, "error", err)
				return
			}
			stats.DocsFound += len(docs)
			stats.Success++
		} else {
			stats.Empty++
		}
		r.mark(ctx, site.BRRTSNumber, store.DocsScraped)

	case resp.Status >= http.StatusBadRequest && resp.Status < http.StatusInternalServerError:
		// The record doesn't exist or access is denied: done, no docs.
		r.mark(ctx, site.BRRTSNumber, store.DocsScraped)
		stats.Empty++
		slog.Debug("site has no detail page", "dsn", site.DetailSeqNo, "status", resp.Status)

	default:
		r.mark(ctx, site.BRRTSNumber, store.DocsFailed)
		stats.Failed++
	}
}

func (r *Runner) mark(ctx context.Context, brrtsNumber string, state int) {
	if err := r.store.MarkDocsScraped(ctx, brrtsNumber, state); err != nil {
		slog.Warn("mark docs_scraped failed", "brrts", brrtsNumber, "error", err)
	}
}

// fetchWithRetry invokes the relay with the runner's retry policy:
// transport failures and upstream 5xx answers are retried with linear
// backoff; validation failures and upstream 4xx answers are terminal.
func (r *Runner) fetchWithRetry(ctx context.Context, dsn string) (*models.RelayResponse, error) {
	maxRetries := r.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := r.fetcher.Relay(ctx, &models.RelayRequest{DSN: dsn})
		if err == nil {
			if resp.Success || (resp.Status >= http.StatusBadRequest && resp.Status < http.StatusInternalServerError) {
				return resp, nil
			}
			lastErr = fmt.Errorf("upstream HTTP %d", resp.Status)
		} else {
			var relayErr *models.RelayError
			if errors.As(err, &relayErr) && relayErr.Code == models.ErrCodeInvalidInput {
				return nil, err
			}
			lastErr = err
		}

		if attempt < maxRetries {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			slog.Debug("relay attempt failed, backing off",
				"dsn", dsn, "attempt", attempt, "delay", delay.String(), "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", maxRetries, lastErr)
}
