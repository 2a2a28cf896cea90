package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSavedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "saved",
		Short: "List saved searches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(nil, false)
			if err != nil {
				return err
			}

			searches := svc.Saved()
			if len(searches) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no saved searches in %s\n", a.cfg.SearchesFile)
				return nil
			}
			for _, s := range searches {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.Name, s.Query)
			}
			return nil
		},
	}
}
