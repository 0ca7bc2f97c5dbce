package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fundqa/internal/fetcher"
	"github.com/sells-group/fundqa/internal/ingest"
	"github.com/sells-group/fundqa/internal/resilience"
	"github.com/sells-group/fundqa/internal/scrape"
	"github.com/sells-group/fundqa/pkg/jina"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [url...]",
	Short: "Scrape fund pages into the store",
	Long:  "Fetches each page, extracts fund fields, validates them and stores the result. Without arguments the URLs come from the sources file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		urls := args
		if len(urls) == 0 {
			path, _ := cmd.Flags().GetString("sources")
			if path == "" {
				path = cfg.Data.SourcesPath
			}
			src, err := ingest.LoadSources(path)
			if err != nil {
				return err
			}
			urls = src.All()
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = cfg.Scrape.MaxConcurrent
		}

		sum, err := ingest.New(buildScraper(), st, cfg.Scrape.DefaultHouse).Run(ctx, urls, concurrency)
		if err != nil {
			return eris.Wrap(err, "scrape")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		}
		formatSummary(os.Stdout, sum)
		return nil
	},
}

// buildScraper fetches directly and, when enabled, falls back to the Jina
// Reader for pages that are blocked or empty.
func buildScraper() scrape.Scraper {
	retry := resilience.RetryFromConfig(cfg.Resilience)
	retry.OnRetry = resilience.RetryLogger("fetcher", "get")

	local := scrape.NewLocalScraper(fetcher.New(fetcher.Options{
		UserAgent:     cfg.Scrape.UserAgent,
		Timeout:       timeoutSecs(cfg.Scrape.TimeoutSecs, 30*time.Second),
		RatePerSecond: cfg.Scrape.RatePerSecond,
		MaxBodyBytes:  cfg.Scrape.MaxBodyBytes,
		Retry:         retry,
	}))
	if !cfg.Scrape.JinaFallback {
		return local
	}

	reader := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
	return scrape.NewChain(local, scrape.NewJinaAdapter(reader, resilience.BreakerFromConfig("jina", cfg.Resilience)))
}

func formatSummary(w io.Writer, sum *ingest.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tFIELDS\tFUND\tURL")
	for _, o := range sum.Outcomes {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", o.Status, o.DataCount, o.FundName, o.URL)
		for _, e := range o.Errors {
			fmt.Fprintf(tw, "\t\t  error: %s\t\n", e)
		}
		for _, warn := range o.Warnings {
			fmt.Fprintf(tw, "\t\t  warning: %s\t\n", warn)
		}
	}
	tw.Flush() //nolint:errcheck
	fmt.Fprintf(w, "\n%d succeeded, %d partial, %d failed\n", sum.Succeeded, sum.Partial, sum.Failed)
}

func init() {
	scrapeCmd.Flags().String("sources", "", "sources file (default from config)")
	scrapeCmd.Flags().Int("concurrency", 0, "pages in flight (default from config)")
	scrapeCmd.Flags().Bool("json", false, "print the summary as JSON")
	rootCmd.AddCommand(scrapeCmd)
}
