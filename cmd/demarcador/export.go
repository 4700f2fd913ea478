package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lewtec/demarcador/internal/export"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [output.json]",
	Short: "Write the saved annotations as JSON",
	Long: `Write one document per saved image, with its shapes, to the given file or to the
standard output. The format is the one accepted by the import command and by the editor.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		images, err := p.Store.LoadImages(cmd.Context())
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("while creating %s: %w", args[0], err)
			}
			defer f.Close()
			out = f
		}
		if err := export.Encode(out, images); err != nil {
			return err
		}
		if len(args) == 1 {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d image(s) exported to %s\n", len(images), args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
