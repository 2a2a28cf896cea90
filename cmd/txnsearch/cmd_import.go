package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txnsearch/pkg/api"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Load a JSON array of transactions into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			var txns []*api.TransactionDetails
			if err := json.Unmarshal(data, &txns); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			w, ok := store.(api.Writer)
			if !ok {
				return fmt.Errorf("store %q is read-only", a.cfg.Store)
			}

			in := make(chan *api.TransactionDetails, len(txns))
			acks := make(chan string, len(txns))
			for _, txn := range txns {
				in <- txn
			}
			close(in)

			if err := w.Write(ctx, in, acks); err != nil {
				return fmt.Errorf("writing transactions: %w", err)
			}

			a.logger.Info("import complete", "file", args[0], "count", len(txns), "acknowledged", len(acks))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d transactions\n", len(txns))
			return nil
		},
	}
}
