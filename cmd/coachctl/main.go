package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loqalabs/musclecoach/internal/bus"
	"github.com/loqalabs/musclecoach/internal/catalog"
	"github.com/loqalabs/musclecoach/internal/config"
	"github.com/loqalabs/musclecoach/internal/llm"
	"github.com/loqalabs/musclecoach/internal/protocol"
	"github.com/loqalabs/musclecoach/internal/relay"
	"github.com/nats-io/nats.go"
)

var version = "0.1.0-dev"

const usage = "expected 'validate', 'catalog', 'models', 'events' or 'version'"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var (
		configPath  string
		catalogPath string
		list        bool
	)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validateCmd.StringVar(&configPath, "config", "coach.yaml", "Path to configuration file")
	catalogCmd := flag.NewFlagSet("catalog", flag.ExitOnError)
	catalogCmd.StringVar(&catalogPath, "file", "", "Path to muscle catalog (empty for the built-in one)")
	catalogCmd.BoolVar(&list, "list", false, "Print every muscle key")
	modelsCmd := flag.NewFlagSet("models", flag.ExitOnError)
	modelsCmd.StringVar(&configPath, "config", "coach.yaml", "Path to configuration file")
	eventsCmd := flag.NewFlagSet("events", flag.ExitOnError)
	eventsCmd.StringVar(&configPath, "config", "coach.yaml", "Path to configuration file")

	var err error
	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if _, err = config.Load(configPath); err == nil {
			fmt.Println("config valid")
		}
	case "catalog":
		catalogCmd.Parse(os.Args[2:])
		err = runCatalog(os.Stdout, catalogPath, list)
	case "models":
		modelsCmd.Parse(os.Args[2:])
		err = runModels(os.Stdout, configPath)
	case "events":
		eventsCmd.Parse(os.Args[2:])
		err = runEvents(os.Stdout, configPath)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCatalog(out io.Writer, path string, list bool) error {
	c, err := catalog.Load(path)
	if err != nil {
		return err
	}
	if list {
		for _, m := range c.List() {
			fmt.Fprintf(out, "%-16s %s (%d workouts)\n", m.Key, m.Name, len(m.Workouts))
		}
	}
	fmt.Fprintf(out, "catalog valid: %d muscles\n", c.Len())
	return nil
}

// runModels prints the backend's model catalog and the model pose feedback
// would use.
func runModels(out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Relay.RequestTimeoutMS)*time.Millisecond)
	defer cancel()

	backend, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	defer backend.Close()

	models := llm.NewCatalog(backend.Lister, cfg.LLM.PreferredModels, 0)
	names, err := models.Models(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	selected, err := llm.SelectModel(names, cfg.LLM.PreferredModels)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "selected: %s\n", selected)
	return nil
}

// runEvents tails relay events from the bus until interrupted.
func runEvents(out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, err := bus.Connect(ctx, cfg.Bus, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.Conn().Subscribe(protocol.SubjectRelayWildcard, func(msg *nats.Msg) {
		e, ev, err := relay.DecodeEvent(msg.Data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", msg.Subject, err)
			return
		}
		fmt.Fprintf(out, "%s %-28s %3d %6dms cached=%t model=%s request=%s\n",
			e.Time().Format(time.RFC3339), ev.Endpoint, ev.Status, ev.LatencyMS, ev.Cached, ev.Model, ev.RequestID)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}
