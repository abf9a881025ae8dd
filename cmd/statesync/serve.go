package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/statesync/internal/config"
	"github.com/vango-dev/statesync/pkg/server"
	"github.com/vango-dev/statesync/pkg/storage"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		port    int
		host    string
		backend string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync host",
		Long: `Run the sync host for the consumers declared in statesync.json.

Pages load /statesync.js and connect to /ws/{consumer}. The host
hydrates each page from the store and the page URL, then persists
every change and rewrites the page URL in place.

Examples:
  statesync serve
  statesync serve --port=9000
  statesync serve --backend=file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			if port > 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if backend != "" {
				cfg.Store.Backend = backend
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from statesync.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from statesync.json)")
	cmd.Flags().StringVar(&backend, "backend", "", "Store backend: memory, file, sql, s3")

	return cmd
}

func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	defer store.Close()

	srv, err := newServer(cfg, store, logger)
	if err != nil {
		return err
	}

	printBanner()
	fmt.Println("  serve")
	fmt.Println()
	success("Listening on http://%s", cfg.Address())
	info("Store:     %s", cfg.Store.Backend)
	info("Consumers: %d", len(srv.Definitions()))
	for _, d := range srv.Definitions() {
		info("  %s  ns=%s  key=%s", d.Name, d.Namespace, d.StorageKey)
	}
	if len(srv.Definitions()) == 0 {
		warn("No consumers declared in %s", config.ConfigFileName)
	}
	fmt.Println()

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	fmt.Println("\n  Shut down.")
	return nil
}

// newServer builds the sync host for the consumers in cfg.
func newServer(cfg *config.Config, store storage.TextStore, logger *slog.Logger) (*server.Server, error) {
	defs := make([]server.Definition, 0, len(cfg.Consumers))
	for _, c := range cfg.Consumers {
		defs = append(defs, server.Definition{
			Name:       c.Name,
			Namespace:  c.Namespace,
			StorageKey: c.StorageKey,
			Path:       c.Path,
			Title:      c.Title,
			Template:   c.Template,
		})
	}

	return server.New(&server.Config{
		Address:        cfg.Address(),
		Store:          store,
		PublicURL:      cfg.Server.PublicURL,
		ClientCookie:   cfg.Server.ClientCookie,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsEnabled: cfg.Metrics.Enabled,
		Logger:         logger,
	}, defs...)
}
