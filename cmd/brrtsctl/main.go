// brrtsctl drives the scraping pipeline from the command line: county
// list scraping, batch document harvesting, and progress inspection.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nexex18/Restorical-Wisconsin/config"
	"github.com/nexex18/Restorical-Wisconsin/docparse"
	"github.com/nexex18/Restorical-Wisconsin/docscrape"
	"github.com/nexex18/Restorical-Wisconsin/listscrape"
	"github.com/nexex18/Restorical-Wisconsin/models"
	"github.com/nexex18/Restorical-Wisconsin/relay"
	"github.com/nexex18/Restorical-Wisconsin/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:   "brrtsctl",
		Short: "Wisconsin BRRTS scraping pipeline",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// CLI output is for humans; force the text handler.
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		},
	}

	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default from BRRTS_DB_PATH)")

	root.AddCommand(newDocsCmd(&dbPath))
	root.AddCommand(newStatusCmd(&dbPath))
	root.AddCommand(newTestCmd())
	root.AddCommand(newListCmd(&dbPath))

	return root
}

func openStore(cfg *config.Config, dbPath string) (*store.Store, error) {
	path := dbPath
	if path == "" {
		path = cfg.Store.Path
	}
	return store.Open(path)
}

// newDocsCmd harvests documents for pending (or previously failed) sites.
func newDocsCmd(dbPath *string) *cobra.Command {
	var limit int
	var retryFailed bool

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Harvest document links for unscraped sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			st, err := openStore(cfg, *dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()

			var sites []models.Site
			label := "harvest"
			if retryFailed {
				if _, err := st.ResetFailed(ctx); err != nil {
					return err
				}
				label = "retry"
			}
			sites, err = st.UnscrapedSites(ctx, limit)
			if err != nil {
				return err
			}

			rl := relay.New(cfg.Target, cfg.Relay)
			runner := docscrape.NewRunner(rl, st, cfg.Harvest, cfg.Target.BaseURL)
			_, err = runner.Run(ctx, sites, label)
			return err
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max sites to harvest (0 = all)")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "reset and retry previously failed sites")
	return cmd
}

// newStatusCmd prints document-harvest progress.
func newStatusCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show document harvest progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			st, err := openStore(cfg, *dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			p, err := st.DocProgress(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Document Harvest Progress")
			fmt.Fprintf(out, "  Total sites:     %10d\n", p.Total)
			fmt.Fprintf(out, "  Scraped (done):  %10d\n", p.Scraped)
			fmt.Fprintf(out, "  Failed:          %10d\n", p.Failed)
			fmt.Fprintf(out, "  Pending:         %10d\n", p.Pending)
			fmt.Fprintf(out, "  Total documents: %10d\n", p.TotalDocuments)
			fmt.Fprintf(out, "  Sites with docs: %10d\n", p.SitesWithDocs)
			if p.Total > 0 {
				fmt.Fprintf(out, "  Progress:        %9.1f%%\n", float64(p.Scraped)/float64(p.Total)*100)
			}
			return nil
		},
	}
}

// newTestCmd relays a single dsn and dumps the result for debugging.
func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test DSN",
		Short: "Relay a single detail sequence number and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			rl := relay.New(cfg.Target, cfg.Relay)

			resp, err := rl.Relay(cmd.Context(), &models.RelayRequest{DSN: args[0]})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			summary := struct {
				Success      bool   `json:"success"`
				DSN          string `json:"dsn"`
				Status       int    `json:"status"`
				Title        string `json:"title,omitempty"`
				CookiesFound int    `json:"cookies_found"`
			}{resp.Success, resp.DSN, resp.Status, resp.Title, resp.CookiesFound}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}

			for _, name := range models.EndpointNames {
				if ep := resp.Endpoints[name]; ep != nil {
					fmt.Fprintf(out, "%s: %d bytes (HTTP %d)\n", name, len(ep.Body), ep.Status)
				}
			}

			docs := docparse.Documents(resp, cfg.Target.BaseURL)
			fmt.Fprintf(out, "documents found: %d\n", len(docs))
			for _, d := range docs {
				fmt.Fprintf(out, "  [%d] %s\n      %s\n", d.DocSeqNo, d.Title, d.DocumentURL)
			}
			return nil
		},
	}
}

// newListCmd runs the county list scrape into the store.
func newListCmd(dbPath *string) *cobra.Command {
	var counties string
	var maxSites int
	var headed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Scrape the county search for site records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if maxSites > 0 {
				cfg.Browser.MaxSites = maxSites
			}
			if headed {
				cfg.Browser.Headless = false
			}

			st, err := openStore(cfg, *dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			known, err := st.KnownBRRTSNumbers(ctx)
			if err != nil {
				return err
			}

			targets := listscrape.Counties
			if counties != "" {
				targets = nil
				for _, c := range strings.Split(counties, ",") {
					if trimmed := strings.TrimSpace(c); trimmed != "" {
						targets = append(targets, trimmed)
					}
				}
			}

			sc, err := listscrape.New(cfg.Browser, cfg.Target)
			if err != nil {
				return err
			}
			defer sc.Close()

			sites, err := sc.ScrapeAll(ctx, targets, known)
			if err != nil {
				return err
			}

			inserted, err := st.UpsertSites(ctx, sites)
			if err != nil {
				return err
			}
			if err := st.LogScrape(ctx, "list", "completed",
				fmt.Sprintf("%d counties", len(targets)), inserted); err != nil {
				slog.Warn("scrape log write failed", "error", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "collected %d sites (%d new)\n", len(sites), inserted)
			return nil
		},
	}

	cmd.Flags().StringVar(&counties, "counties", "", "comma-separated county names (default: all 72)")
	cmd.Flags().IntVar(&maxSites, "max-sites", 0, "stop after collecting this many rows")
	cmd.Flags().BoolVar(&headed, "headed", false, "run the browser with a visible window")
	return cmd
}
