package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aretw0/rootcause/pkg/diagnosis"
	"github.com/aretw0/rootcause/pkg/rule"
)

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the diagnosis rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RULE\tREQUIRES\tPRODUCES\tDESCRIPTION")
			for _, r := range diagnosis.Rules() {
				info := rule.Describe(r)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					info.Name,
					strings.Join(info.Requires, ","),
					info.Produces,
					info.Description,
				)
			}
			return w.Flush()
		},
	}
}
