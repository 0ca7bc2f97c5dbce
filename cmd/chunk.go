package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fundqa/internal/chunk"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Build the chunk file from stored fund data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		f, err := chunk.FromStore(ctx, st)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.Data.ChunksPath
		}
		if err := chunk.Write(out, f); err != nil {
			return err
		}

		if csvPath, _ := cmd.Flags().GetString("csv"); csvPath != "" {
			if err := writeChunkCSV(csvPath, f); err != nil {
				return err
			}
		}

		zap.L().Info("chunk file written", zap.String("path", out), zap.Int("chunks", f.Len()))
		return nil
	},
}

func writeChunkCSV(path string, f chunk.File) error {
	w, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "chunk: create csv")
	}
	if err := chunk.WriteCSV(w, f); err != nil {
		_ = w.Close()
		return err
	}
	return eris.Wrap(w.Close(), "chunk: close csv")
}

func init() {
	chunkCmd.Flags().String("out", "", "chunk file path (default from config)")
	chunkCmd.Flags().String("csv", "", "also export chunks as CSV to this path")
	rootCmd.AddCommand(chunkCmd)
}
