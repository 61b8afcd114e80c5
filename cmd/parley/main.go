// Command parley runs multi-model discussions from a config file.
//
// Usage:
//
//	parley run --config discussion.yaml
//	parley run --config discussion.yaml --compare
//	parley validate --config discussion.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/parleylab/parley/pkg/arbiter"
	"github.com/parleylab/parley/pkg/config"
	"github.com/parleylab/parley/pkg/conversation"
	"github.com/parleylab/parley/pkg/llms"
	"github.com/parleylab/parley/pkg/logger"
	"github.com/parleylab/parley/pkg/observability"
	"github.com/parleylab/parley/pkg/protocol"
	"github.com/parleylab/parley/pkg/transcript"
)

// CLI defines the command-line interface.
type CLI struct {
	Run      RunCmd      `cmd:"" default:"withargs" help:"Run a discussion."`
	Validate ValidateCmd `cmd:"" help:"Validate a discussion config file."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to discussion config file." type:"path" default:"discussion.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:""`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:""`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("parley version %s\n", version)
	return nil
}

// ValidateCmd checks a config file without running anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	fmt.Printf("Config OK: mode=%s rounds=%d models=%d\n", cfg.Mode, cfg.Rounds, len(cfg.Models))
	return nil
}

// RunCmd runs one discussion, or all three modes back to back.
type RunCmd struct {
	Compare     bool   `help:"Run all three modes and evaluate the transcripts comparatively."`
	File        string `help:"Attach a media file to the first turn (overrides config)." type:"path"`
	MetricsPort int    `name:"metrics-port" help:"Expose Prometheus metrics on this port (0 = disabled)."`
}

func (c *RunCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	initLogging(cli, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.GetLogger().Info("shutting down")
		cancel()
	}()

	if err := checkAPIKeys(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	if c.MetricsPort > 0 {
		go serveMetrics(c.MetricsPort, registry)
	}

	humanID, humanSpec, ok := cfg.HumanModel()
	if !ok {
		return fmt.Errorf("no human-role model configured")
	}
	aiID, aiSpec, ok := cfg.AIModel()
	if !ok {
		return fmt.Errorf("no assistant-role model configured")
	}
	log := logger.GetLogger()
	log.Info("participants resolved",
		"human", humanID, "human_type", humanSpec.Type,
		"ai", aiID, "ai_type", aiSpec.Type)

	filePath := c.File
	if filePath == "" && cfg.InputFile != nil {
		filePath = cfg.InputFile.Path
	}

	modes := []config.Mode{config.Mode(cfg.Mode)}
	if c.Compare {
		modes = []config.Mode{config.ModeAIAI, config.ModeHumanAIAI, config.ModeNoMetaPrompting}
	}

	var (
		mu          sync.Mutex
		submissions []arbiter.Submission
	)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, mode := range modes {
		mode := mode
		group.Go(func() error {
			run, history, err := runMode(groupCtx, mode, cfg, metrics, humanSpec.Type, aiSpec.Type, filePath)
			if err != nil {
				return err
			}
			mu.Lock()
			submissions = append(submissions, arbiter.Submission{Run: run, History: history})
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if isOperatorFatal(err) {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
		return err
	}

	if c.Compare {
		report, err := arbiter.NewSummaryEvaluator().Evaluate(ctx, cfg.Goal, submissions)
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}
		path, err := arbiter.Persist(cfg.OutputDir, report)
		if err != nil {
			return err
		}
		log.Info("evaluation report written", "path", path)
	}

	return nil
}

// runMode drives one conversation and writes its transcript artifact.
func runMode(ctx context.Context, mode config.Mode, cfg *config.DiscussionConfig, metrics *observability.Metrics, humanModel, aiModel, filePath string) (conversation.RunContext, []protocol.Message, error) {
	manager, err := conversation.NewManager(mode, cfg, conversation.WithMetrics(metrics))
	if err != nil {
		return conversation.RunContext{}, nil, err
	}
	defer manager.CleanupUnusedClients()

	humanSeed, aiSeed := conversation.SeedInstructions(mode, cfg.Goal)
	run, history, runErr := manager.RunConversation(ctx, conversation.RunParams{
		InitialPrompt:    cfg.Goal,
		HumanModel:       humanModel,
		AIModel:          aiModel,
		Rounds:           cfg.Rounds,
		HumanInstruction: humanSeed,
		AIInstruction:    aiSeed,
		FilePath:         filePath,
	})
	if runErr != nil && history == nil {
		return run, nil, runErr
	}

	writer := transcript.NewWriter(cfg.OutputDir)
	path, err := writer.Save(history, mode, cfg.Goal, humanModel, aiModel)
	if err != nil {
		logger.GetLogger().Error("failed to write transcript", "mode", mode, "error", err)
	} else {
		logger.GetLogger().Info("transcript written", "mode", mode, "path", path)
	}

	return run, history, runErr
}

// checkAPIKeys verifies environment keys for all hosted backends in use.
func checkAPIKeys(cfg *config.DiscussionConfig) error {
	for id, spec := range cfg.Models {
		backend, _, err := llms.ResolveBackend(spec.Type)
		if err != nil {
			return fmt.Errorf("model %q: %w", id, err)
		}
		switch backend {
		case llms.BackendAnthropic, llms.BackendOpenAI, llms.BackendGemini:
			if config.ProviderAPIKey(backend) == "" {
				return fmt.Errorf("no api key provided for %s backend (model %q)", backend, id)
			}
		}
	}
	return nil
}

// isOperatorFatal reports whether the error must abort the process.
func isOperatorFatal(err error) bool {
	var ce *llms.ClientError
	if errors.As(err, &ce) {
		return ce.Class == llms.FatalAuth || ce.Class == llms.FatalQuota
	}
	class := llms.Classify(err)
	return class == llms.FatalAuth || class == llms.FatalQuota
}

func initLogging(cli *CLI, cfg *config.DiscussionConfig) {
	levelStr := cli.LogLevel
	if levelStr == "" {
		levelStr = cfg.LogLevel
	}
	format := cli.LogFormat
	if format == "" {
		format = cfg.LogFormat
	}

	level, _ := logger.ParseLevel(levelStr)
	output := os.Stderr
	if cli.LogFile != "" {
		if file, _, err := logger.OpenLogFile(cli.LogFile); err == nil {
			output = file
		} else {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		}
	}
	logger.Init(level, output, format)
}

func serveMetrics(port int, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	logger.GetLogger().Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.GetLogger().Error("metrics server stopped", "error", err)
	}
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env files: %v\n", err)
		os.Exit(1)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("parley"),
		kong.Description("parley - multi-model conversation orchestration"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
