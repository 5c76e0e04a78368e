package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/testkube/suiterunner/internal/config"
	"github.com/testkube/suiterunner/internal/executor"
	"github.com/testkube/suiterunner/internal/report"
	"github.com/testkube/suiterunner/internal/runner"
	"github.com/testkube/suiterunner/internal/server"
	"github.com/testkube/suiterunner/internal/worker"
)

func main() {
	configPath := flag.String("config", os.Getenv("SUITE_CONFIG"), "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var capability executor.Capability
	if cfg.Runner.Mock {
		log.Println("Using STATIC runner (no runner service configured)")
		capability = runner.NewStatic(cfg.Runner.MockDurationMillis)
	} else {
		log.Printf("Connecting to runner service: %s", cfg.Runner.URL)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Runner.Timeout.Duration)
		client, err := runner.NewClient(ctx, runner.Config{
			BaseURL: cfg.Runner.URL,
			Token:   cfg.Runner.Token,
			Timeout: cfg.Runner.Timeout.Duration,
		})
		cancel()
		if err != nil {
			log.Fatalf("Failed to create runner client: %v", err)
		}
		log.Println("✓ Connected to runner service")
		capability = client
	}

	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		log.Fatalf("Invalid report format: %v", err)
	}

	srv := server.NewServer(capability, server.WithReportArchive(report.NewDirSink(cfg.Report.Dir), format))

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.Server.RunInterval.Duration > 0 {
		go worker.NewWorker(srv.ScheduledRun, cfg.Server.RunInterval.Duration).Start(ctx)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
		}
	}()

	log.Printf("Starting suite runner on %s", cfg.Server.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
	log.Println("Server stopped.")
}
