package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/boardflow"
	"github.com/BaSui01/boardflow/config"
	"github.com/BaSui01/boardflow/deliberation"
	"github.com/BaSui01/boardflow/internal/telemetry"
	"github.com/BaSui01/boardflow/memory"
)

// Build-time variables, injected via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runOnce(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// runOnce runs a single deliberation with the demo committee and prints the
// decision.
func runOnce(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	storeType := fs.String("store", "memory", "Decision store backend: memory, redis or sqlite")
	minutesDir := fs.String("minutes", "", "Directory for markdown minutes (disabled when empty)")
	proposalPath := fs.String("proposal", "", "JSON file with the proposal (demo proposal when empty)")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := config.NewLogger(cfg.Log)
	defer logger.Sync()

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize telemetry: %v\n", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(providers, logger)

	store, err := memory.NewDecisionStore(storeConfig(cfg, *storeType))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create decision store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	proposal, err := loadProposal(*proposalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load proposal: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []boardflow.Option{
		boardflow.WithConfig(cfg.Deliberation.Engine()),
		boardflow.WithLogger(logger),
		boardflow.WithDecisionStore(store),
	}
	if *minutesDir != "" {
		opts = append(opts, boardflow.WithMinutesDir(*minutesDir))
	}

	decision, err := boardflow.Deliberate(ctx, proposal, demoCommittee(), opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Deliberation failed: %v\n", err)
		os.Exit(1)
	}
	printDecision(decision)
}

func printDecision(d *deliberation.Decision) {
	fmt.Printf("Session:   %s\n", d.SessionID)
	fmt.Printf("Proposal:  %s\n", d.ProposalID)
	fmt.Printf("Outcome:   %s", d.Outcome)
	if d.Flag != "" {
		fmt.Printf(" (%s)", d.Flag)
	}
	fmt.Println()
	fmt.Printf("Rounds:    %d\n", len(d.Rounds))
	fmt.Printf("Consensus: %.3f (%s)\n", d.FinalMetric.Score, d.FinalMetric.Band)
	if d.Tally != nil {
		fmt.Printf("Voting:    %s, approve fraction %.3f\n",
			d.Tally.Protocol, d.Tally.ApproveFraction())
	}
}

// loadProposal reads a proposal from a JSON file, falling back to the bundled
// demo proposal when no path is given.
func loadProposal(path string) (*deliberation.Proposal, error) {
	if path == "" {
		return demoProposal(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read proposal file: %w", err)
	}
	var p deliberation.Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse proposal file: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("proposal file is missing an id")
	}
	return &p, nil
}

func loadConfig(path string) *config.Config {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// storeConfig maps the loaded configuration onto the store factory's own
// config for the selected backend.
func storeConfig(cfg *config.Config, storeType string) memory.StoreConfig {
	sc := memory.DefaultStoreConfig()
	sc.Type = memory.StoreType(storeType)
	sc.Redis.Addr = cfg.Redis.Addr
	sc.Redis.Password = cfg.Redis.Password
	sc.Redis.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		sc.Redis.PoolSize = cfg.Redis.PoolSize
	}
	sc.Redis.MinIdleConns = cfg.Redis.MinIdleConns
	sc.Redis.TTL = cfg.Redis.TTL
	if cfg.Database.Path != "" {
		sc.Path = cfg.Database.Path
	}
	return sc
}

func shutdownTelemetry(p *telemetry.Providers, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
}

func printVersion() {
	fmt.Printf("boardflow %s\n", Version)
	fmt.Printf("  build time: %s\n", BuildTime)
	fmt.Printf("  git commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`boardflow - committee deliberation engine

Usage:
  boardflow <command> [flags]

Commands:
  run      Run one deliberation with the demo committee
  serve    Serve deliberations over HTTP with round streaming
  version  Print build information
  help     Print this help

Flags for run:
  -config    Path to YAML config file
  -store     Decision store backend: memory, redis or sqlite (default memory)
  -minutes   Directory for markdown minutes
  -proposal  JSON file with the proposal

Flags for serve:
  -config    Path to YAML config file
  -store     Decision store backend: memory, redis or sqlite (default memory)
  -minutes   Directory for markdown minutes

Environment:
  All settings can be overridden with BOARDFLOW_* variables, for example
  BOARDFLOW_DELIBERATION_MAX_ROUNDS=7.`)
}
