package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/strato-io/strato/internal/config"
	"github.com/strato-io/strato/internal/logging"
	"github.com/strato-io/strato/internal/metadata"
	"github.com/strato-io/strato/internal/metadata/oxia"
	"github.com/strato-io/strato/internal/zone"
)

// adminTimeout bounds each admin operation.
const adminTimeout = 30 * time.Second

func runAdmin(args []string) {
	if len(args) < 1 {
		printAdminUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "zones":
		runAdminZones(args[1:])
	case "topics":
		runAdminTopics(args[1:])
	case "help", "-h", "--help":
		printAdminUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n\n", args[0])
		printAdminUsage()
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Println(`Usage: stratod admin <command> [options]

Admin commands for managing a Strato zone.

Commands:
  zones      Child zone management (add, list, remove)
  topics     Scheduler bus topic management (init)

Run 'stratod admin <command> --help' for more information on a command.`)
}

// adminRegistry connects to the metadata store and returns the zone
// registry over it. The caller closes the store.
func adminRegistry(cfg *config.Config, logger *logging.Logger) (*zone.Registry, metadata.Store, error) {
	store, err := oxia.New(oxia.Config{
		ServiceAddress: cfg.Registry.OxiaEndpoint,
		Namespace:      cfg.Registry.Namespace,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to metadata store: %w", err)
	}
	return zone.NewRegistry(store, logger), store, nil
}

func runAdminZones(args []string) {
	if len(args) < 1 {
		printAdminZonesUsage()
		os.Exit(1)
	}

	sub := args[0]
	fs := flag.NewFlagSet("zones "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")

	var z zone.Zone
	switch sub {
	case "add":
		fs.StringVar(&z.ID, "id", "", "Zone ID (required)")
		fs.StringVar(&z.Name, "name", "", "Zone name")
		fs.StringVar(&z.APIURL, "api-url", "", "Zone API base URL (required)")
		fs.StringVar(&z.Username, "username", "", "Zone API username")
		fs.StringVar(&z.Password, "password", "", "Zone API password")
	case "remove":
		fs.StringVar(&z.ID, "id", "", "Zone ID (required)")
	case "list":
	case "help", "-h", "--help":
		printAdminZonesUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown zones command: %s\n\n", sub)
		printAdminZonesUsage()
		os.Exit(1)
	}

	if err := fs.Parse(args[1:]); err != nil {
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: logging.LevelWarn})

	registry, store, err := adminRegistry(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	switch sub {
	case "add":
		if z.Name == "" {
			z.Name = z.ID
		}
		err = adminZonesAdd(ctx, registry, z)
	case "remove":
		err = adminZonesRemove(ctx, registry, z.ID)
	case "list":
		err = adminZonesList(ctx, registry, os.Stdout)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printAdminZonesUsage() {
	fmt.Println(`Usage: stratod admin zones <command> [options]

Commands:
  add        Register a child zone (-id, -api-url, -username, -password)
  list       List registered child zones
  remove     Remove a child zone (-id)`)
}

func adminZonesAdd(ctx context.Context, registry *zone.Registry, z zone.Zone) error {
	if err := z.Validate(); err != nil {
		return err
	}
	if err := registry.Create(ctx, z); err != nil {
		return fmt.Errorf("adding zone %s: %w", z.ID, err)
	}
	fmt.Printf("zone %s registered\n", z.ID)
	return nil
}

func adminZonesRemove(ctx context.Context, registry *zone.Registry, id string) error {
	if id == "" {
		return fmt.Errorf("-id is required")
	}
	if err := registry.Delete(ctx, id); err != nil {
		return fmt.Errorf("removing zone %s: %w", id, err)
	}
	fmt.Printf("zone %s removed\n", id)
	return nil
}

func adminZonesList(ctx context.Context, registry *zone.Registry, out io.Writer) error {
	zones, err := registry.List(ctx)
	if err != nil {
		return fmt.Errorf("listing zones: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAPI URL\tREGISTERED")
	for _, z := range zones {
		registered := "-"
		if z.RegisteredAt != 0 {
			registered = time.UnixMilli(z.RegisteredAt).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", z.ID, z.Name, z.APIURL, registered)
	}
	return w.Flush()
}

func runAdminTopics(args []string) {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printAdminTopicsUsage()
		if len(args) < 1 {
			os.Exit(1)
		}
		return
	}

	if args[0] != "init" {
		fmt.Fprintf(os.Stderr, "unknown topics command: %s\n\n", args[0])
		printAdminTopicsUsage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet("topics init", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	partitions := fs.Int("partitions", 1, "Partition count for the scheduler topic")
	if err := fs.Parse(args[1:]); err != nil {
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Scheduler.Brokers) == 0 {
		fmt.Fprintln(os.Stderr, "no scheduler brokers configured")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	if err := adminTopicsInit(ctx, cfg, int32(*partitions)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printAdminTopicsUsage() {
	fmt.Println(`Usage: stratod admin topics <command> [options]

Commands:
  init       Create the scheduler request topic (-partitions)`)
}

// adminTopicsInit creates the scheduler request topic. Reply topics are
// per-process and auto-created, so only the shared request topic needs
// provisioning.
func adminTopicsInit(ctx context.Context, cfg *config.Config, partitions int32) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(cfg.Scheduler.Brokers...))
	if err != nil {
		return fmt.Errorf("connecting to brokers: %w", err)
	}
	defer client.Close()

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, partitions, 1, nil, cfg.Scheduler.Topic)
	if err != nil {
		return fmt.Errorf("creating topic %s: %w", cfg.Scheduler.Topic, err)
	}
	for _, t := range resp.Sorted() {
		if t.Err != nil {
			return fmt.Errorf("creating topic %s: %w", t.Topic, t.Err)
		}
		fmt.Printf("topic %s created with %d partitions\n", t.Topic, partitions)
	}
	return nil
}
