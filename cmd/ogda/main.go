// Command ogda is the offline game-data asset pipeline driver: it parses
// the command-line surface with kong, builds one immutable
// pipelineconfig.Config, runs every phase via internal/pipeline, and maps
// the run's outcome to one of the three documented process exit codes.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/wolfire/ogda/internal/builtin"
	"github.com/wolfire/ogda/internal/events"
	"github.com/wolfire/ogda/internal/manifest"
	"github.com/wolfire/ogda/internal/metrics"
	"github.com/wolfire/ogda/internal/ogdaerrors"
	"github.com/wolfire/ogda/internal/pipeline"
	"github.com/wolfire/ogda/internal/pipelineconfig"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// CLI is the root kong command definition carrying the driver's global
// flags.
type CLI struct {
	InputDir  string `short:"i" name:"input-dir" help:"Root of input assets." required:""`
	OutputDir string `short:"o" name:"output-dir" help:"Root of produced assets." required:""`
	JobFile   string `short:"j" name:"job-file" help:"Job description." required:""`

	ManifestInput  string `name:"manifest-input" help:"Optional prior manifest for reuse."`
	ManifestOutput string `name:"manifest-output" help:"Optional new manifest destination."`
	DatabaseDir    string `name:"database-dir" help:"Optional shared-result database root."`

	Threads int `name:"threads" help:"Hash pool size." default:"8"`

	DebugOutput bool `short:"d" name:"debug-output" help:"Enable debug log level."`

	PerformRemoves   bool `name:"perform-removes" help:"Actually delete unlisted files (default: dry-run)."`
	ForceRemoves     bool `name:"force-removes" help:"Delete even on prior error or reconciler refusal."`
	RemoveUnlisted   bool `name:"remove-unlisted" help:"Remove files present in output but unknown to prior manifest."`
	LoadFromDatabase bool `name:"load-from-database" help:"Opt in to restoring builder results from the shared database."`
	SaveToDatabase   bool `name:"save-to-database" help:"Opt in to saving builder results to the shared database."`
	DateModifiedHash bool `name:"date-modified-hash" help:"Use mtime as a fast surrogate hash."`

	PrintMissing    bool `name:"print-missing" help:"Print items whose source file could not be found."`
	PrintDuplicates bool `name:"print-duplicates" help:"Print items discovered more than once."`
	PrintItemList   bool `name:"print-item-list" help:"Print each manifest result (dest, type, producer) after the run; discovered items themselves are not listed."`
	MuteMissing     bool `name:"mute-missing" help:"Suppress per-item missing-file log lines."`
	HideProgress    bool `name:"hide-progress" help:"Suppress per-phase progress logging."`

	Config        string `name:"config" help:"Optional operator-defaults YAML file." default:"ogda.yaml"`
	MetricsAddr   string `name:"metrics-addr" help:"Optional Prometheus /metrics listen address."`
	EventsNATSURL string `name:"events-nats-url" help:"Optional NATS URL for diagnostic phase events."`

	Version kong.VersionFlag `name:"version" help:"Show version and exit."`
}

// Global is the shared state kong passes to Run, installed once in
// AfterApply.
type Global struct {
	Logger *slog.Logger
}

// AfterApply runs after flag parsing; it loads .env overrides before any
// flag value is consulted and installs the process-wide logger.
func (c *CLI) AfterApply() error {
	pipelineconfig.LoadEnvOverrides("")

	level := slog.LevelInfo
	if c.DebugOutput {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func main() {
	cli := &CLI{}
	parser := kong.Parse(cli,
		kong.Description("OGDA: offline game-data asset pipeline driver."),
		kong.Vars{"version": version},
	)

	logger := slog.Default()
	globals := &Global{Logger: logger}

	if err := parser.Run(globals, cli); err != nil {
		adapter := ogdaerrors.NewCLIErrorAdapter(cli.DebugOutput, logger)
		adapter.HandleError(err)
	}
}

// Run executes the pipeline once with the flags kong parsed.
func (cli *CLI) Run(globals *Global) error {
	logger := globals.Logger

	cfg := pipelineconfig.Config{
		InputDir:               cli.InputDir,
		OutputDir:              cli.OutputDir,
		JobFile:                cli.JobFile,
		ManifestInput:          cli.ManifestInput,
		ManifestOutput:         cli.ManifestOutput,
		DatabaseDir:            cli.DatabaseDir,
		Threads:                cli.Threads,
		DebugOutput:            cli.DebugOutput,
		PerformRemoves:         cli.PerformRemoves,
		ForceRemoves:           cli.ForceRemoves,
		RemoveUnlisted:         cli.RemoveUnlisted,
		LoadFromDatabase:       cli.LoadFromDatabase,
		SaveToDatabase:         cli.SaveToDatabase,
		DateModifiedHash:       cli.DateModifiedHash,
		PrintMissing:           cli.PrintMissing,
		PrintDuplicates:        cli.PrintDuplicates,
		PrintItemList:          cli.PrintItemList,
		MuteMissing:            cli.MuteMissing,
		HideProgress:           cli.HideProgress,
		MetricsAddr:            cli.MetricsAddr,
		EventsNATSURL:          cli.EventsNATSURL,
		CrossLineageDuplicates: false,
	}
	cfg, err := pipelineconfig.Apply(cfg, cli.Config)
	if err != nil {
		logger.Warn("ignoring operator defaults", "error", err)
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.MetricsAddr != "" {
		recorder = metrics.NewPrometheusRecorderServing(cfg.MetricsAddr, logger)
	}
	publisher := events.NewPublisher(cfg.EventsNATSURL, logger)

	searchers, builders, generators := builtin.Registries(cfg.OutputDir, logger, recorder)
	regs := pipeline.Registries{Searchers: searchers, Builders: builders, Generators: generators}

	result, err := pipeline.Run(cfg, regs, logger, recorder, publisher)
	if err != nil {
		publisher.Close()
		return err
	}

	reportResult(cli, result, logger)
	publisher.Close()

	exitCode := ogdaerrors.ExitSuccess
	if result.HasError || result.ReconcileReport.Refused {
		exitCode = ogdaerrors.ExitRuntimeAsset
	}
	os.Exit(exitCode)
	return nil
}

// reportResult prints the driver's diagnostic summary and the final
// aggregate line.
func reportResult(cli *CLI, result pipeline.Result, logger *slog.Logger) {
	if cli.PrintMissing {
		for _, id := range result.Missing {
			fmt.Printf("missing: item %v\n", id)
		}
	}
	if cli.PrintDuplicates {
		for _, group := range result.Duplicates {
			fmt.Printf("duplicate group: %v\n", group)
		}
	}
	if cli.PrintItemList {
		for _, r := range result.Manifest.Results {
			fmt.Printf("item: %s (%s) <- %s@%s\n", r.Dest, r.Type, r.ProducerName, r.ProducerVersion)
		}
	}
	for _, d := range result.Diagnostics {
		if d.Category == ogdaerrors.CategoryFileMissing && cli.MuteMissing {
			continue
		}
		logger.Warn(d.Message, "category", string(d.Category), "path", d.Path)
	}
	if result.ReconcileReport.Refused {
		logger.Error("reconciler refused to delete: unlisted file set diverges from the prior manifest",
			"unlisted", len(result.ReconcileReport.Unlisted))
	}

	built, database, generated := 0, 0, 0
	for _, r := range result.Manifest.Results {
		switch r.Kind {
		case manifest.KindBuilt:
			built++
		case manifest.KindDatabase:
			database++
		case manifest.KindGenerated:
			generated++
		}
	}
	status := "success"
	if result.HasError {
		status = "completed with errors"
	}
	fmt.Printf("ogda run %s: %s: %d built, %d from database, %d generated, %d missing, %d deleted\n",
		result.RunID, status, built, database, generated, len(result.Missing), len(result.ReconcileReport.Deleted))
}
