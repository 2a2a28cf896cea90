package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newBackendsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the store backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, p := range a.registry.List() {
				marker := " "
				if p.Name() == a.cfg.Store {
					marker = "*"
				}
				line := fmt.Sprintf("%s %-10s %s", marker, p.Name(), p.Description())
				if scopes := p.RequiredScopes(); len(scopes) > 0 {
					line += " (oauth: " + strings.Join(scopes, ", ") + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}
