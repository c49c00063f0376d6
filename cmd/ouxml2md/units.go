package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/japaniel/ouxml2md/pkg/db"
)

func newUnitsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "units [term]",
		Short: "List stored documents whose title contains term",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			conn, err := a.openDB()
			if err != nil {
				return err
			}
			defer conn.Close()
			return listUnits(cmd, conn, term)
		},
	}
}

func listUnits(cmd *cobra.Command, conn db.DBExecutor, term string) error {
	docs, err := db.ListDocuments(conn, term)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOURSE\tTITLE\tSOURCE")
	for _, d := range docs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.ID, d.CourseCode, d.ItemTitle, d.SourceLink)
	}
	return tw.Flush()
}
