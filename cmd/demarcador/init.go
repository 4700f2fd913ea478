package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lewtec/demarcador/annotation"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [folder]",
	Short: "Initialize a new annotation project",
	Long: `Initialize a new annotation project by creating a sample configuration
file (config.yaml) with a couple of defect classes, and the images folder.

Example:
  demarcador init ./inspection`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")

		if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
			return fmt.Errorf("failed to create images folder: %w", err)
		}
		config := filepath.Join(dir, "config.yaml")
		if err := writeSampleConfig(config, force); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration file created: %s\n", config)
		fmt.Fprintln(out, "\nNext steps:")
		fmt.Fprintln(out, "  1. Review the classes in", config)
		fmt.Fprintf(out, "  2. Optionally ingest a folder of images: demarcador ingest -c %s <folder>\n", config)
		fmt.Fprintf(out, "  3. Start the editor: demarcador %s\n", dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing config file")
}

func writeSampleConfig(filename string, force bool) error {
	if _, err := os.Stat(filename); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", filename)
	}
	if err := os.WriteFile(filename, []byte(annotation.SampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	return nil
}
