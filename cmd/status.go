package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fundqa/internal/model"
	"github.com/sells-group/fundqa/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored schemes and recent scrape logs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		schemes, err := st.ListSchemes(ctx)
		if err != nil {
			return eris.Wrap(err, "status: list schemes")
		}

		status, _ := cmd.Flags().GetString("status")
		url, _ := cmd.Flags().GetString("url")
		limit, _ := cmd.Flags().GetInt("limit")
		logs, err := st.ListScrapeLogs(ctx, store.LogFilter{
			URL:    url,
			Status: model.ScrapeStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "status: list scrape logs")
		}

		formatSchemes(os.Stdout, schemes)
		fmt.Fprintln(os.Stdout)
		formatLogs(os.Stdout, logs)
		return nil
	},
}

func formatSchemes(w io.Writer, schemes []model.Scheme) {
	if len(schemes) == 0 {
		fmt.Fprintln(w, "No schemes stored.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCHEME\tHOUSE\tUPDATED\tURL")
	for _, s := range schemes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.FundHouse, s.UpdatedAt.Format("2006-01-02 15:04"), s.SourceURL)
	}
	tw.Flush() //nolint:errcheck
}

func formatLogs(w io.Writer, logs []model.ScrapeLog) {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No scrape logs.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCRAPED\tSTATUS\tFIELDS\tERRORS\tWARNINGS\tURL")
	for _, l := range logs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			l.ScrapedAt.Format("2006-01-02 15:04"), l.Status, l.DataCount, len(l.Errors), len(l.Warnings), l.SchemeURL)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	statusCmd.Flags().String("status", "", "filter logs by status (success, partial, failed)")
	statusCmd.Flags().String("url", "", "filter logs by URL")
	statusCmd.Flags().Int("limit", 20, "maximum log entries")
	rootCmd.AddCommand(statusCmd)
}
