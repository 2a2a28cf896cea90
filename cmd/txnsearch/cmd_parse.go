package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txnsearch/pkg/query"
)

func newParseCmd(a *app) *cobra.Command {
	var asJSON, strict bool

	cmd := &cobra.Command{
		Use:   "parse <query>",
		Short: "Print the tree a query parses to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			p := a.parser()
			out := cmd.OutOrStdout()

			if strict {
				if issues := p.Validate(raw); len(issues) > 0 {
					for _, issue := range issues {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", issue)
					}
					return fmt.Errorf("query has %d issue(s)", len(issues))
				}
			}

			g := p.Parse(raw)
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(g)
			}

			fmt.Fprintf(out, "canonical: %s\n", g.String())
			printTree(out, g, 0)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the tree as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on input the parser would repair")
	return cmd
}

func printTree(w io.Writer, n query.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	neg := ""
	if n.Prohibited() {
		neg = "-"
	}

	switch x := n.(type) {
	case query.Group:
		fmt.Fprintf(w, "%s%sgroup\n", indent, neg)
		for _, child := range x.Children() {
			printTree(w, child, depth+1)
		}
	case query.FieldTerm:
		fmt.Fprintf(w, "%s%sfield %s %s\n", indent, neg, x.Field(), strconv.Quote(x.Value()))
	case query.Term:
		fmt.Fprintf(w, "%s%sterm %s\n", indent, neg, strconv.Quote(x.Value()))
	}
}
