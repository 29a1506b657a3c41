package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bookarr/bookarr/internal/api"
	"github.com/bookarr/bookarr/internal/blocklist"
	"github.com/bookarr/bookarr/internal/config"
	"github.com/bookarr/bookarr/internal/decision"
	"github.com/bookarr/bookarr/internal/downloader"
	"github.com/bookarr/bookarr/internal/eventbus"
	"github.com/bookarr/bookarr/internal/grab"
	"github.com/bookarr/bookarr/internal/history"
	"github.com/bookarr/bookarr/internal/indexer"
	"github.com/bookarr/bookarr/internal/library"
	"github.com/bookarr/bookarr/internal/logger"
	"github.com/bookarr/bookarr/internal/models"
	"github.com/bookarr/bookarr/internal/parser"
	"github.com/bookarr/bookarr/internal/pending"
	"github.com/bookarr/bookarr/internal/scheduler"
	"github.com/bookarr/bookarr/internal/search"
	"github.com/bookarr/bookarr/internal/tracked"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bookarr",
		Short: "Book library automation",
		Long:  "Bookarr watches indexers for book releases, decides what is worth grabbing and tracks downloads through the client until import.",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogJSON)
	log.Info("Starting Bookarr")
	log.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	log.Info("Database initialized")

	bus := eventbus.New()

	historySvc := history.NewService(db, log)
	blocklistSvc := blocklist.NewService(db, cfg, log)
	pendingSvc := pending.NewService(db, bus, log)
	releaseParser := parser.New(db, log)
	librarySvc := library.NewService(db, bus, log)

	trackedSvc := tracked.NewService(db, historySvc, blocklistSvc, releaseParser, bus, log)

	var clients []downloader.Client
	for _, clientCfg := range cfg.DownloadClients {
		client, err := downloader.NewHTTPClient(clientCfg, log)
		if err != nil {
			return fmt.Errorf("failed to configure download client %s: %w", clientCfg.Name, err)
		}
		clients = append(clients, client)
	}

	engine := decision.NewEngine(blocklistSvc, historySvc, trackedSvc, cfg.GrabWindow, cfg.DownloadPropers, log)
	processor := grab.NewProcessor(clients, historySvc, pendingSvc, bus, log)
	searcher := indexer.NewSearcher(indexer.NewClient(log), cfg.Indexers, log)
	searchSvc := search.NewService(db, searcher, releaseParser, engine, processor, pendingSvc, cfg.MonitoredOnly, log)

	blocklistSvc.RegisterHandlers(bus)
	historySvc.RegisterHandlers(bus)
	pendingSvc.RegisterHandlers(bus)
	trackedSvc.RegisterHandlers(bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(clients, trackedSvc, searchSvc, cfg.PollInterval, cfg.SearchInterval, cfg.PendingInterval, log)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	server := api.NewServer(cfg, api.Services{
		DB:        db,
		Library:   librarySvc,
		Tracked:   trackedSvc,
		Blocklist: blocklistSvc,
		Pending:   pendingSvc,
		Search:    searchSvc,
	}, log)

	if err := server.Start(ctx); err != nil {
		return err
	}

	log.Info("Shutdown complete")
	return nil
}
