package ogdaerrors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Exit codes per the pipeline's three-way error taxonomy.
const (
	ExitSuccess       = 0
	ExitRuntimeAsset  = 1
	ExitFatalInternal = 10
)

// CLIErrorAdapter maps classified errors to process exit codes and renders
// the final summary line the driver prints before exiting.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor maps err to one of the three documented exit codes.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	ce, ok := AsClassified(err)
	if !ok {
		return ExitFatalInternal
	}
	switch ce.Category() {
	case CategoryJobParse, CategoryPluginUnknown, CategoryInternal:
		return ExitFatalInternal
	case CategoryManifestStale, CategoryCaseMismatch:
		// Staleness and case-correction are diagnosed, not failures.
		return ExitSuccess
	default:
		return ExitRuntimeAsset
	}
}

// FormatError renders err for the final stderr summary line.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	if ce, ok := AsClassified(err); ok {
		if a.verbose {
			return ce.Error()
		}
		return fmt.Sprintf("%s (use -d for details)", ce.Message())
	}
	return fmt.Sprintf("Error: %v", err)
}

// HandleError logs err at the appropriate level, prints the summary line,
// and exits the process with the mapped exit code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	exitCode := a.ExitCodeFor(err)
	message := a.FormatError(err)

	a.logError(err)
	fmt.Fprintf(os.Stderr, "%s\n", message)
	os.Exit(exitCode)
}

func (a *CLIErrorAdapter) logError(err error) {
	if ce, ok := AsClassified(err); ok {
		level := slogLevelFromSeverity(ce.Severity())
		attrs := []slog.Attr{slog.String("category", string(ce.Category()))}
		a.logger.LogAttrs(context.Background(), level, ce.Message(), attrs...)
		return
	}
	a.logger.Error("unclassified error", "error", err)
}

func slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
