package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/editor"
)

// classesCmd represents the classes command
var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List the defect classes and how many shapes use each",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		classes, err := p.Store.Classes.List(cmd.Context())
		if err != nil {
			return err
		}
		counts, err := p.Store.Annotations.CountByClass(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPREFIX\tCOLOR\tSHAPES")
		for _, c := range classes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", c.ID, c.Name, editor.Prefix(c), c.Color, counts[c.ID])
		}
		if n := counts[0]; n > 0 {
			fmt.Fprintf(w, "-\t(none)\t%s\t\t%d\n", editor.Prefix(domain.Class{}), n)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(classesCmd)
}
