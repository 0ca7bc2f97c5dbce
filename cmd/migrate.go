package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// The postgres index backend migrates its tables on open.
		ie, err := initIndexStore(ctx)
		if err != nil {
			return err
		}
		ie.Close()

		zap.L().Info("migrations applied",
			zap.String("store", cfg.Store.Driver),
			zap.String("index", cfg.Index.Backend),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
