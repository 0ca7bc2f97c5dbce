package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fundqa/internal/chunk"
	"github.com/sells-group/fundqa/internal/embed"
	"github.com/sells-group/fundqa/internal/index"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed the chunk file and save the retrieval index",
	Long:  "Embeds every chunk with the configured model and replaces the index. The index records the model so a server started with a different embedder refuses to load it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var f chunk.File
		if fromStore, _ := cmd.Flags().GetBool("from-store"); fromStore {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			f, err = chunk.FromStore(ctx, st)
			_ = st.Close()
			if err != nil {
				return err
			}
		} else {
			var err error
			if f, err = chunk.Load(cfg.Data.ChunksPath); err != nil {
				return err
			}
		}
		if f.Len() == 0 {
			return eris.New("embed: no chunks to index")
		}

		e, err := embed.New(cfg.Embedding, cfg.Resilience)
		if err != nil {
			return err
		}

		start := time.Now()
		ix, err := index.Build(ctx, e, f.All(), start)
		if err != nil {
			return err
		}

		ie, err := initIndexStore(ctx)
		if err != nil {
			return err
		}
		defer ie.Close()

		if err := ie.Store.Save(ctx, ix); err != nil {
			return eris.Wrap(err, "embed: save index")
		}

		zap.L().Info("index saved",
			zap.String("backend", cfg.Index.Backend),
			zap.String("model", ix.Metadata.Model),
			zap.Int("records", ix.Metadata.ChunksCount),
			zap.Int("dimensions", ix.Metadata.Dimensions),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	},
}

func init() {
	embedCmd.Flags().Bool("from-store", false, "build chunks from the store instead of the chunk file")
	rootCmd.AddCommand(embedCmd)
}
