package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/airac/airac/internal/app"
	"github.com/airac/airac/internal/config"
	"github.com/airac/airac/internal/embedder"
	"github.com/airac/airac/internal/httpapi"
	"github.com/airac/airac/internal/ingest"
	"github.com/airac/airac/internal/mcp"
	"github.com/airac/airac/internal/tui"
	"github.com/airac/airac/internal/vectorindex"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const usage = `Usage: airac [--config path] <command> [args]

Commands:
  serve            Run the HTTP front door
  mcp              Run the MCP server on stdio
  ask <query>      Answer one question and exit
  chat             Interactive terminal chat
  ingest [--watch] Build the document index from the knowledge base file
  embed <text>     Embed a text and print the vector summary

Flags:
  --version        Print version information
`

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("AIRAC\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", vectorindex.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", vectorindex.DriverName)
		os.Exit(0)
	}

	global := flag.NewFlagSet("airac", flag.ExitOnError)
	configPath := global.String("config", os.Getenv("AIRAC_CONFIG"), "path to YAML config")
	envFile := global.String("env-file", "", "path to .env file (default ./.env)")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	if *envFile != "" {
		config.LoadDotEnv(*envFile)
	} else {
		config.LoadDotEnv()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout is reserved for answers and the MCP protocol
	logger := cfg.Logging.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		err = runServe(ctx, cancel, cfg, logger)
	case "mcp":
		err = runMCP(ctx, cancel, cfg, logger)
	case "ask":
		err = runAsk(ctx, cfg, logger, rest)
	case "chat":
		err = runChat(ctx, cfg, logger)
	case "ingest":
		err = runIngest(ctx, cancel, cfg, logger, rest)
	case "embed":
		err = runEmbed(ctx, cfg, rest)
	default:
		global.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// runUntilSignal runs fn in a goroutine and cancels it on SIGINT or SIGTERM
func runUntilSignal(cancel context.CancelFunc, logger *slog.Logger, fn func() error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- fn()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
		return <-errChan
	case err := <-errChan:
		return err
	}
}

func runServe(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *slog.Logger) error {
	httpCfg := httpapi.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         logger.With("component", "http"),
	}

	// A nil Invoker starts the server degraded
	var invoker httpapi.Invoker
	a, err := app.Build(ctx, cfg, logger)
	switch {
	case err == nil:
		defer a.Close()
		invoker = a.Pipeline
		httpCfg.Metrics = a.Metrics.Handler()
	case errors.Is(err, config.ErrMissingConfig):
		logger.Error("pipeline unavailable, serving degraded", "error", err)
	default:
		logger.Error("pipeline initialisation failed, serving degraded", "error", err)
	}

	server := httpapi.NewServer(invoker, httpCfg)

	logger.Info("http server listening", "addr", cfg.Server.Addr, "version", version)
	err = runUntilSignal(cancel, logger, func() error { return server.Start(ctx) })
	logger.Info("server stopped")
	return err
}

func runMCP(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *slog.Logger) error {
	var invoker mcp.Invoker
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("pipeline unavailable, ask tool disabled", "error", err)
	} else {
		defer a.Close()
		invoker = a.Pipeline
	}

	server := mcp.NewServer(invoker, logger.With("component", "mcp"))
	logger.Info("mcp server ready, listening on stdio", "version", version)
	return runUntilSignal(cancel, logger, func() error { return server.Serve(ctx) })
}

func runAsk(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New("ask: a query is required")
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if t := cfg.RequestTimeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	answer, err := a.Pipeline.Invoke(ctx, query)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func runChat(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	p := tea.NewProgram(tui.New(a.Pipeline, cfg.RequestTimeout()), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func runIngest(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	source := fs.String("source", cfg.Ingest.Source, "knowledge base JSON file")
	watch := fs.Bool("watch", false, "re-ingest whenever the file changes")
	_ = fs.Parse(args)

	ing, a, err := app.BuildIngester(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := ing.IngestFile(ctx, *source)
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %d parents: %d text chunks, %d table chunks, %d vectors in %s\n",
		stats.Parents, stats.TextChunks, stats.TableChunks, stats.Upserted, stats.Duration.Round(time.Millisecond))

	if !*watch {
		return nil
	}
	return runUntilSignal(cancel, logger, func() error {
		return ing.Watch(ctx, *source, func(s *ingest.Stats, err error) {
			if err == nil {
				logger.Info("re-ingested", "parents", s.Parents, "vectors", s.Upserted)
			}
		})
	})
}

func runEmbed(ctx context.Context, cfg *config.Config, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return errors.New("embed: text is required")
	}

	emb, err := app.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	defer emb.Close()

	e, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return err
	}
	fmt.Printf("Provider: %s\nModel: %s\nDimension: %d\n", emb.Provider(), emb.Model(), len(e.Vector))
	n := min(5, len(e.Vector))
	fmt.Printf("First %d values: %v\n", n, e.Vector[:n])
	return nil
}
