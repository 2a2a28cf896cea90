package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txnsearch/pkg/gmail"
	"github.com/ArionMiles/txnsearch/pkg/query"
)

func newGmailQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gmail-query <query>",
		Short: "Print the Gmail search string a query renders to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rendered, err := gmail.Render(query.Parse(strings.Join(args, " ")))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		},
	}
}
