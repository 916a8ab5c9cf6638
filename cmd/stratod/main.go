package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/strato-io/strato/internal/config"
	"github.com/strato-io/strato/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-version") {
		fmt.Printf("stratod version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	switch subcommand {
	case "serve":
		runServe(os.Args[2:])
	case "admin":
		runAdmin(os.Args[2:])
	case "version":
		fmt.Printf("stratod version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: stratod <command> [options]

Commands:
  serve       Start the zone service (compute API, routing, registry)
  admin       Administrative commands (zones, topics)
  version     Print version information

Run 'stratod <command> --help' for more information on a command.`)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	listenAddr := fs.String("listen", "", "Override API listen address (e.g., :8774)")
	metricsAddr := fs.String("metrics-addr", "", "Override metrics/health address (e.g., :9090)")
	zoneName := fs.String("zone-name", "", "Override local zone name")
	routing := fs.String("routing", "", "Override routing enable flag (true/false)")

	fs.Usage = func() {
		fmt.Println(`Usage: stratod serve [options]

Start the Strato zone service.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *listenAddr != "" {
		cfg.API.ListenAddr = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.Observability.MetricsAddr = *metricsAddr
	}
	if *zoneName != "" {
		cfg.Zone.Name = *zoneName
	}
	switch *routing {
	case "":
	case "true":
		cfg.Routing.Enabled = true
	case "false":
		cfg.Routing.Enabled = false
	default:
		fmt.Fprintln(os.Stderr, "-routing must be true or false")
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Observability.LogLevel),
		Format: logging.ParseFormat(cfg.Observability.LogFormat),
	})
	logging.SetGlobal(logger)

	svc, err := NewService(ServiceOptions{
		Config:  cfg,
		Logger:  logger,
		Version: version,
	})
	if err != nil {
		logger.Errorf("failed to create service", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	if err := svc.Start(); err != nil {
		logger.Errorf("failed to start service", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Infof("received shutdown signal", map[string]any{"signal": sig.String()})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("service shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}
