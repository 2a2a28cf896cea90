package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txnsearch/internal/search"
	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/export"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		limit, offset int
		format        string
		saved         string
		strict        bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search transactions in the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if saved != "" && len(args) > 0 {
				return fmt.Errorf("--saved cannot be combined with a query")
			}

			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			svc, err := a.service(store, strict)
			if err != nil {
				return err
			}

			opts := api.SearchOptions{Limit: limit, Offset: offset}
			var res search.Result
			if saved != "" {
				res, err = svc.SearchSaved(ctx, saved, opts)
			} else {
				res, err = svc.Search(ctx, strings.Join(args, " "), opts)
			}
			if err != nil {
				return err
			}

			return export.Write(cmd.OutOrStdout(), f, res.Transactions)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results (default from TXNSEARCH_LIMIT)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of results to skip")
	cmd.Flags().StringVar(&format, "format", string(export.FormatTable), "output format: table, csv or json")
	cmd.Flags().StringVar(&saved, "saved", "", "run a saved search by name")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject queries the parser would repair")
	return cmd
}
