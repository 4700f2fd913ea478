package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/lewtec/demarcador/internal/session"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <folder>",
	Short: "Add a flat folder of images to the project",
	Long: `Copy every image of a flat folder into the images folder of the project, named by
content hash, and register it in the database. Files that are not images, are too large
or were already ingested are skipped.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(1)(cmd, args); err != nil {
			return err
		}
		info, err := os.Stat(args[0])
		if err != nil {
			return fmt.Errorf("on argument: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("on argument: must be a directory")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		ingested, err := p.Store.Ingest(cmd.Context(), osfs.New(args[0]), p.Config.SessionLimits(), int(jobs))
		fmt.Fprintf(cmd.OutOrStdout(), "%d image(s) ingested\n", len(ingested))

		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				var ferr *session.FileError
				if !errors.As(e, &ferr) {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s\n", ferr)
			}
			return nil
		}
		return err
	},
}

var jobs uint

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().UintVarP(&jobs, "jobs", "j", 1, "Amount of concurrent ingestors")
}
