package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/MegaGrindStone/streamchat/internal/handlers"
	"github.com/MegaGrindStone/streamchat/internal/services"
	"github.com/MegaGrindStone/streamchat/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath           string
	endpointURL          string
	verbose              bool
	markdown             bool
	requireTerminalEvent bool
	noHistory            bool

	historyLimit int
	exportLimit  int
	exportOut    string
	exportTitle  string
)

var rootCmd = &cobra.Command{
	Use:   "streamchat",
	Short: "Terminal chat client for streaming chat endpoints",
	Long: `streamchat posts your messages to a chat endpoint and renders the reply
token by token as it streams back over server-sent events.

Run without arguments to start the interactive chat.`,
	SilenceUsage: true,
	RunE:         runChat,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived interactions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived interactions as an HTML page",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <user config dir>/streamchat/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&endpointURL, "endpoint", "e", "", "Chat endpoint URL (or set "+endpointEnvKey+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.Flags().BoolVar(&markdown, "markdown", false, "Render finished responses as markdown")
	rootCmd.Flags().BoolVar(&requireTerminalEvent, "require-terminal-event", false,
		"Treat a stream that ends without a done or error event as a failure")
	rootCmd.Flags().BoolVar(&noHistory, "no-history", false, "Don't archive interactions")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of most recent interactions to list (0 for all)")

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportTitle, "title", "Chat transcript", "Page title")
	exportCmd.Flags().IntVarP(&exportLimit, "limit", "n", 0, "Number of most recent interactions to export (0 for all)")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration, applies the flags shared by every command and builds the logger.
func setup(cmd *cobra.Command) (config, *zap.Logger, error) {
	path, explicit := configPath, configPath != ""
	if !explicit {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return config{}, nil, err
		}
	}

	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return config{}, nil, err
	}

	if endpointURL != "" {
		cfg.Endpoint.URL = endpointURL
	}
	if cmd.Flags().Changed("markdown") {
		cfg.Markdown = markdown
	}
	if cmd.Flags().Changed("require-terminal-event") {
		cfg.RequireTerminalEvent = requireTerminalEvent
	}
	if noHistory {
		disabled := false
		cfg.History.Enabled = &disabled
	}

	if err := cfg.validate(); err != nil {
		return config{}, nil, err
	}

	logger, err := newLogger(cfg.LogFile, verbose)
	if err != nil {
		return config{}, nil, err
	}
	return cfg, logger, nil
}

// newLogger writes JSON logs to path. The terminal belongs to the UI, so nothing goes to stderr.
func newLogger(path string, debug bool) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("error creating log directory: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.OutputPaths = []string{path}
	zapCfg.ErrorOutputPaths = []string{path}
	if debug {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func openArchive(cfg config) (services.BoltDB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0755); err != nil {
		return services.BoltDB{}, fmt.Errorf("error creating history directory: %w", err)
	}
	return services.NewBoltDB(cfg.History.Path)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: cfg.Endpoint.RequestTimeout,
		},
	}
	endpoint, err := services.NewChatEndpoint(cfg.Endpoint.URL, httpClient, cfg.Endpoint.MaxEventSize,
		logger.Named("endpoint"))
	if err != nil {
		return err
	}

	var archive handlers.Archive
	if cfg.History.enabled() {
		db, err := openArchive(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close history", zap.Error(err))
			}
		}()
		archive = db
	}

	bridge := tui.NewBridge()
	transcript := handlers.NewTranscript(bridge.TranscriptChanged)
	controller := handlers.NewController(endpoint, transcript, bridge, handlers.Config{
		Labels:               cfg.Labels,
		Archive:              archive,
		Logger:               logger.Named("controller"),
		RequireTerminalEvent: cfg.RequireTerminalEvent,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := tui.NewModel(ctx, controller, transcript, tui.Config{
		Labels:   cfg.Labels,
		Theme:    cfg.Theme,
		Markdown: cfg.Markdown,
		Logger:   logger.Named("tui"),
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(program)

	logger.Info("Chat starting", zap.String("endpoint", cfg.Endpoint.URL))
	_, err = program.Run()

	// Cancel a request still in flight and let its interaction be archived before the
	// deferred close of the history database.
	stop()
	bridge.Attach(nil)
	controller.Wait()

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running chat: %w", err)
	}
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	interactions, err := db.Interactions(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, interaction := range interactions {
		status := "ok"
		if interaction.Failed {
			status = "failed"
		}
		fmt.Fprintf(out, "%s  [%s]\n", interaction.StartedAt.Format("2006-01-02 15:04:05"), status)
		fmt.Fprintf(out, "  %s%s\n", cfg.Labels.UserPrefix, oneLine(interaction.Message))
		fmt.Fprintf(out, "  %s%s\n", cfg.Labels.BotPrefix, oneLine(interaction.Response))
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) (err error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	interactions, err := db.Interactions(context.Background(), exportLimit)
	if err != nil {
		return err
	}

	exporter, err := services.NewHTMLExporter(cfg.Labels)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if exportOut != "" {
		f, cerr := os.Create(exportOut)
		if cerr != nil {
			return fmt.Errorf("error creating export file: %w", cerr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		out = f
	}

	if err := exporter.Export(out, exportTitle, interactions); err != nil {
		return err
	}
	logger.Info("Transcript exported", zap.Int("interactions", len(interactions)), zap.String("out", exportOut))
	return nil
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const maxLen = 100
	if r := []rune(s); len(r) > maxLen {
		return string(r[:maxLen-1]) + "…"
	}
	return s
}
