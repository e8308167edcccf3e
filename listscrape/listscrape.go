// Package listscrape collects site records from the BOTW county search
// with a headless browser. The search form is a JS-driven page, so
// unlike the relay this phase needs real rendering.
package listscrape

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/nexex18/Restorical-Wisconsin/config"
	"github.com/nexex18/Restorical-Wisconsin/models"
)

const (
	countySelector = `select[name="county"], select#county, #ddlCounty`
	searchSelector = `button[type="submit"], input[type="submit"], #btnSearch, .btn-search`
	nextSelector   = `a[aria-label="Next page"], a.next-page`
)

// Scraper manages the browser lifecycle for list scraping.
type Scraper struct {
	browser   *rod.Browser
	cfg       config.BrowserConfig
	baseURL   string
	searchURL string
}

// New launches a headless browser pointed at the county search page.
func New(cfg config.BrowserConfig, target config.TargetConfig) (*Scraper, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// Hide the automation tells a state site might key on.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewRelayError(models.ErrCodeInternal, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewRelayError(models.ErrCodeInternal, "failed to connect to browser", err)
	}

	return &Scraper{
		browser:   browser,
		cfg:       cfg,
		baseURL:   target.BaseURL,
		searchURL: target.BaseURL + target.SearchPath,
	}, nil
}

// Close kills the browser process.
func (s *Scraper) Close() {
	s.browser.MustClose()
	slog.Info("list scraper shutdown complete")
}

// ScrapeAll walks the given counties and returns every newly seen site,
// stopping once cfg.MaxSites rows have been collected. known maps BRRTS
// numbers that should be skipped (already stored); it is updated as
// rows are found.
func (s *Scraper) ScrapeAll(ctx context.Context, counties []string, known map[string]bool) ([]models.Site, error) {
	var all []models.Site

	for _, county := range counties {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		if s.cfg.MaxSites > 0 && len(all) >= s.cfg.MaxSites {
			slog.Info("reached max sites limit", "max", s.cfg.MaxSites)
			break
		}

		sites, err := s.scrapeCounty(ctx, county, known)
		if err != nil {
			slog.Error("county search failed", "county", county, "error", err)
			continue
		}
		if len(sites) > 0 {
			slog.Info("county search done", "county", county, "new", len(sites))
		}
		all = append(all, sites...)
	}

	return all, nil
}

// scrapeCounty runs one county search and walks its result pages.
func (s *Scraper) scrapeCounty(ctx context.Context, county string, known map[string]bool) ([]models.Site, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = page.Close() }()

	// Stealth JS must be installed before the first navigation.
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": "en-US,en;q=0.9"}),
	}.Call(page)

	p := page.Context(ctx)

	if err := p.Navigate(s.searchURL); err != nil {
		return nil, err
	}
	waitStable(p)

	// Fill the county field and submit the search.
	countySel, err := p.Element(countySelector)
	if err != nil {
		return nil, err
	}
	if err := countySel.Select([]string{county}, true, rod.SelectorTypeText); err != nil {
		return nil, err
	}

	searchBtn, err := p.Element(searchSelector)
	if err != nil {
		return nil, err
	}
	if err := searchBtn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, err
	}
	waitStable(p)

	var sites []models.Site
	for {
		pageHTML, err := p.HTML()
		if err != nil {
			return sites, err
		}
		sites = append(sites, ParseResults(pageHTML, s.baseURL, county, known)...)

		if s.cfg.MaxSites > 0 && len(sites) >= s.cfg.MaxSites {
			break
		}

		// Pagination: follow the Next link while one is visible.
		has, next, err := p.Has(nextSelector)
		if err != nil || !has {
			break
		}
		if visible, _ := next.Visible(); !visible {
			break
		}
		if err := next.Click(proto.InputMouseButtonLeft, 1); err != nil {
			break
		}
		waitStable(p)
	}

	return sites, nil
}

// waitStable waits for the DOM to settle after a navigation or click.
// Non-convergence is not fatal; the current DOM is used as-is.
func waitStable(p *rod.Page) {
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
}

// toHeadersMap converts a plain string map to the gson map required by
// NetworkSetExtraHTTPHeaders.
func toHeadersMap(h map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(h))
	for k, v := range h {
		m[k] = gson.New(v)
	}
	return m
}
