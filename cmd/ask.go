package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/fundqa/internal/compose"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initQA(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		a, err := env.NewAssistant("")
		if err != nil {
			return err
		}

		resp, err := a.Ask(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp.Answer())
		}
		printAnswer(os.Stdout, resp)
		return nil
	},
}

func printAnswer(w io.Writer, resp compose.Response) {
	fmt.Fprintln(w, resp.Text)
	if len(resp.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, s := range resp.Sources {
		fmt.Fprintf(w, "  - %s (%s): %s\n", s.FundName, s.Type, s.URL)
	}
}

func init() {
	askCmd.Flags().Bool("json", false, "print the answer as JSON")
	rootCmd.AddCommand(askCmd)
}
