package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lewtec/demarcador/annotation"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "demarcador [folder|config.yaml]",
	Short: "Mark defect regions on images",
	Long: strings.TrimSpace(`
Serve the region annotation editor. Images get rectangles, circles and polygons drawn on
them, each tied to a defect class, and the result is exported as JSON.

If a folder is given, its config.yaml is used (and created when missing).
    `),
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			stat, err := os.Stat(args[0])
			switch {
			case err == nil && stat.IsDir():
				configFile = filepath.Join(args[0], "config.yaml")
				if _, err := os.Stat(configFile); os.IsNotExist(err) {
					if err := writeSampleConfig(configFile, false); err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Creating default config: %s\n", configFile)
				}
			case err == nil:
				configFile = args[0]
			default:
				return fmt.Errorf("while checking %s: %w", args[0], err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := openProject(ctx, cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = p.Config.Server.Addr
		}

		app := annotation.NewApp(ctx, p.Config, p.Store, p.Logger)
		if err := app.Reload(ctx); err != nil {
			return err
		}
		go func() {
			if err := annotation.WatchConfig(ctx, configFile, p.Logger, app.SetConfig); err != nil {
				p.Logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()

		p.Logger.Info("starting",
			zap.String("config", configFile),
			zap.String("database", p.Config.Storage.Database),
			zap.String("images", p.Config.Storage.Images),
			zap.Int("classes", len(app.Registry.Classes())))
		return app.Serve(ctx, addr)
	},
}

var (
	configFile string
	verbose    bool
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Config file of the project")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
	rootCmd.Flags().StringP("addr", "a", "", "Address to bind the webserver (default from config)")
}

// project is an opened config with its database and folders. Relative
// storage paths are taken from the folder of the config file.
type project struct {
	Config *annotation.Config
	DB     *sql.DB
	Store  *annotation.Store
	Logger *zap.Logger
}

func (p *project) Close() error {
	p.Logger.Sync()
	return p.DB.Close()
}

func resolve(base, name string) string {
	if name == ":memory:" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(base, name)
}

func openProject(ctx context.Context, cmd *cobra.Command) (*project, error) {
	logger := annotation.NewLogger(cmd.ErrOrStderr(), verbose)

	config, err := annotation.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	base := filepath.Dir(configFile)
	config.Storage.Database = resolve(base, config.Storage.Database)
	config.Storage.Images = resolve(base, config.Storage.Images)
	config.Storage.Blobs = resolve(base, config.Storage.Blobs)

	for _, dir := range []string{config.Storage.Images, config.Storage.Blobs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("while creating %s: %w", dir, err)
		}
	}

	db, err := annotation.GetDatabase(config.Storage.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := annotation.PrepareDatabase(ctx, db, config, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare database: %w", err)
	}

	store := annotation.NewStore(db, osfs.New(config.Storage.Images), osfs.New(config.Storage.Blobs), logger)
	return &project{Config: config, DB: db, Store: store, Logger: logger}, nil
}
