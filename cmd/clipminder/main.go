package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atinylittleshell/clipminder/internal/app"
	"github.com/atinylittleshell/clipminder/internal/appupdate"
	"github.com/atinylittleshell/clipminder/internal/clipboard"
	"github.com/atinylittleshell/clipminder/internal/config"
	"github.com/atinylittleshell/clipminder/internal/core"
	"github.com/atinylittleshell/clipminder/internal/events"
	"github.com/atinylittleshell/clipminder/internal/history"
	"github.com/atinylittleshell/clipminder/internal/settings"
	"github.com/atinylittleshell/clipminder/internal/styles"
	"github.com/atinylittleshell/clipminder/internal/summarize"
	"github.com/atinylittleshell/clipminder/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var BUILD_VERSION = "dev"

var historyFlag = flag.Bool("history", false, "list the copy history")
var searchFlag = flag.String("search", "", "fuzzy filter applied to -history")
var copyFlag = flag.Uint("copy", 0, "copy the history item with this id back to the clipboard")
var clearHistoryFlag = flag.Bool("clear-history", false, "delete the copy history")
var modelsFlag = flag.Bool("models", false, "list models offered by the summary backend")
var settingsFlag = flag.Bool("settings", false, "print the current settings")
var setFlags assignmentList

var helpFlag = flag.Bool("h", false, "display help information")
var versionFlag = flag.Bool("ver", false, "display build version")

func init() {
	flag.Var(&setFlags, "set", "update a setting, as key=value (repeatable)")
}

const helpText = `clipminder - turns copied files into clipboard text and keeps a summarized history

USAGE:
  clipminder [options]

MODES:
  clipminder                  Watch the clipboard (interactive UI on a terminal)
  clipminder -history         List recent copies
  clipminder -copy 12         Put copy #12 back on the clipboard
  clipminder -set use_ollama=true -set ollama_model=llama3
                              Change settings

OPTIONS:
`

// assignmentList collects repeated -set flags.
type assignmentList []string

func (a *assignmentList) String() string {
	return strings.Join(*a, ",")
}

func (a *assignmentList) Set(value string) error {
	*a = append(*a, value)
	return nil
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	if *helpFlag {
		fmt.Print(helpText)
		flag.PrintDefaults()
		return
	}

	cfg, err := config.LoadFromFile(core.ConfigFile())
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.ERROR(err.Error()))
		os.Exit(1)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("-------- new clipminder session --------", zap.Any("args", os.Args))

	store, err := history.Open(core.HistoryFile(), history.WithLogger(logger))
	if err != nil {
		logger.Error("failed to open history database", zap.Error(err))
		fmt.Fprintln(os.Stderr, styles.ERROR(fmt.Sprintf("failed to open history database: %v", err)))
		os.Exit(1)
	}

	err = run(context.Background(), cfg, store, logger, os.Stdout)

	if closeErr := store.Close(); closeErr != nil {
		logger.Warn("failed to close history database", zap.Error(closeErr))
	}

	if err != nil {
		logger.Error("unhandled error", zap.Error(err))
		fmt.Fprintln(os.Stderr, styles.ERROR(err.Error()))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, store *history.Store, logger *zap.Logger, out io.Writer) error {
	switch {
	case len(setFlags) > 0:
		return applySettings(store, setFlags, out)
	case *settingsFlag:
		return printSettings(store, out)
	case *historyFlag:
		return printHistory(store, *searchFlag, out)
	case *clearHistoryFlag:
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(out, "History cleared")
		return nil
	case *modelsFlag:
		return printModels(ctx, newBackend(cfg, logger), out)
	case *copyFlag != 0:
		a, err := newApp(cfg, store, logger, ui.NewPlainSink(out))
		if err != nil {
			return err
		}
		defer a.Close()
		return a.CopyHistoryItem(*copyFlag)
	}

	appupdate.HandleUpdateCheck(BUILD_VERSION, logger, appupdate.DefaultUpdater{})

	if term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		return runInteractive(cfg, store, logger)
	}
	return runPlain(ctx, cfg, store, logger, out)
}

func newBackend(cfg *config.Config, logger *zap.Logger) summarize.Backend {
	if cfg.Backend == config.BackendOpenAI {
		return summarize.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, logger)
	}
	return summarize.NewOllamaClient(cfg.OllamaURL, logger)
}

func newApp(cfg *config.Config, store *history.Store, logger *zap.Logger, sink events.Sink) (*app.App, error) {
	backend := newBackend(cfg, logger)
	return app.New(app.Options{
		Store:     store,
		Clipboard: clipboard.System{},
		Backend:   backend,
		Summarizer: summarize.NewSummarizer(backend,
			summarize.WithMaxWords(cfg.SummaryWords),
			summarize.WithLogger(logger),
		),
		Sink:         sink,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})
}

// runInteractive starts the terminal UI and returns once the user quits.
func runInteractive(cfg *config.Config, store *history.Store, logger *zap.Logger) error {
	sink := &ui.ProgramSink{}
	a, err := newApp(cfg, store, logger, sink)
	if err != nil {
		return err
	}
	defer a.Close()

	if version, ok := appupdate.PendingUpgrade(BUILD_VERSION); ok {
		sink.StatusMessage(fmt.Sprintf("New version available: %s", version))
	}

	if err := a.StartMonitoring(); err != nil {
		return err
	}

	program := tea.NewProgram(ui.NewModel(a), tea.WithAltScreen())
	// Send blocks until the program loop runs.
	go sink.Attach(program)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run terminal UI: %w", err)
	}

	return a.Close()
}

// runPlain watches the clipboard and prints events until interrupted.
func runPlain(ctx context.Context, cfg *config.Config, store *history.Store, logger *zap.Logger, out io.Writer) error {
	if version, ok := appupdate.PendingUpgrade(BUILD_VERSION); ok {
		fmt.Fprintln(os.Stderr, styles.NOTICE(fmt.Sprintf("New version available: %s", version)))
	}

	a, err := newApp(cfg, store, logger, ui.NewPlainSink(out))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.StartMonitoring(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	return a.Close()
}

func applySettings(store settings.KeyValueStore, assignments []string, out io.Writer) error {
	current, err := settings.Load(store)
	if err != nil {
		return err
	}
	for _, assignment := range assignments {
		if err := current.Apply(assignment); err != nil {
			return err
		}
	}
	if err := current.Save(store); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return writeSettings(current, out)
}

func printSettings(store settings.KeyValueStore, out io.Writer) error {
	current, err := settings.Load(store)
	if err != nil {
		return err
	}
	return writeSettings(current, out)
}

func writeSettings(s settings.Settings, out io.Writer) error {
	for _, key := range settings.Keys() {
		if _, err := fmt.Fprintf(out, "%s=%s\n", key, s.Get(key)); err != nil {
			return err
		}
	}
	return nil
}

func printModels(ctx context.Context, backend summarize.ModelLister, out io.Writer) error {
	models, err := backend.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	if len(models) == 0 {
		fmt.Fprintln(out, "No models available")
		return nil
	}
	for _, model := range models {
		fmt.Fprintln(out, model)
	}
	return nil
}

// historySource exposes records to fuzzy matching by summary and file names.
type historySource []history.Record

func (h historySource) String(i int) string {
	return h[i].Summary.String + " " + strings.Join(fileNames(h[i].Content), " ")
}

func (h historySource) Len() int { return len(h) }

func fileNames(content string) []string {
	return lo.FilterMap(strings.Split(content, "\n"), func(line string, _ int) (string, bool) {
		name, ok := strings.CutPrefix(line, "File: ")
		return name, ok
	})
}

func searchHistory(records []history.Record, query string) []history.Record {
	if query == "" {
		return records
	}
	source := historySource(records)
	return lo.Map(fuzzy.FindFrom(query, source), func(match fuzzy.Match, _ int) history.Record {
		return records[match.Index]
	})
}

func printHistory(store *history.Store, query string, out io.Writer) error {
	records, err := store.List()
	if err != nil {
		return err
	}

	records = searchHistory(records, query)
	if len(records) == 0 {
		fmt.Fprintln(out, "No history")
		return nil
	}

	palette := styles.For(out)
	for _, record := range records {
		summary := record.Summary.String
		if !record.Summary.Valid {
			summary = "(no summary yet)"
		}
		fmt.Fprintf(out, "%4d  %s\n", record.ID, summary)
		fmt.Fprintf(out, "      %s\n", palette.Muted(fmt.Sprintf("%d file(s), %d line(s), %s",
			record.FileCount, record.LineCount, humanize.Time(record.CreatedAt))))
	}
	return nil
}

func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	logLevel := cfg.ZapLevel()
	if BUILD_VERSION == "dev" {
		logLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	if config.ShouldCleanLogFile() {
		if err := os.Remove(core.LogFile()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = logLevel
	// The terminal belongs to the UI; use `tail -f ~/.clipminder/clipminder.log` to follow logs.
	loggerConfig.OutputPaths = []string{
		core.LogFile(),
	}

	return loggerConfig.Build()
}
