package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lewtec/demarcador/internal/export"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <input.json|->",
	Short: "Load annotations from a JSON document into the database",
	Long: `Read an annotation document and store it. Images are matched by their ref id; the
shapes of a matched image are replaced, unknown images are created. A malformed
document is rejected as a whole and nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("while reading %s: %w", args[0], err)
		}
		images, err := export.ImportAll(data)
		if err != nil {
			return err
		}

		p, err := openProject(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		n, err := p.Store.ImportImages(cmd.Context(), images)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d image(s) imported\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
