// Package logfields provides canonical log field names and helpers for structured logging in the pipeline.
package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyWorker     = "worker"
	KeyStatus     = "status"
	KeyName       = "name"
	KeyItemType   = "item_type"
	KeyBuilder    = "builder"
	KeySearcher   = "searcher"
	KeyGenerator  = "generator"
	KeyHash       = "hash"
	KeyRunID      = "run_id"
	KeyKind       = "kind"
)

// Stage returns a slog.Attr for the pipeline phase name.
func Stage(name string) slog.Attr { return slog.String(KeyStage, name) }

// DurationMS returns a slog.Attr for a duration in milliseconds.
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Path returns a slog.Attr for a relative or absolute file path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// File returns a slog.Attr for a bare file name.
func File(f string) slog.Attr { return slog.String(KeyFile, f) }

// Worker returns a slog.Attr for a hash-pool worker identifier.
func Worker(id string) slog.Attr { return slog.String(KeyWorker, id) }

// Status returns a slog.Attr for a result status string.
func Status(s string) slog.Attr { return slog.String(KeyStatus, s) }

// Name returns a slog.Attr for a generic name field (plugin, record, file).
func Name(n string) slog.Attr { return slog.String(KeyName, n) }

// ItemType returns a slog.Attr for an item's type tag.
func ItemType(t string) slog.Attr { return slog.String(KeyItemType, t) }

// Builder returns a slog.Attr for a builder's name.
func Builder(name string) slog.Attr { return slog.String(KeyBuilder, name) }

// Searcher returns a slog.Attr for a searcher's name.
func Searcher(name string) slog.Attr { return slog.String(KeySearcher, name) }

// Generator returns a slog.Attr for a generator's name.
func Generator(name string) slog.Attr { return slog.String(KeyGenerator, name) }

// Hash returns a slog.Attr for a content hash.
func Hash(h string) slog.Attr { return slog.String(KeyHash, h) }

// RunID returns a slog.Attr for the manifest execution run ID.
func RunID(id string) slog.Attr { return slog.String(KeyRunID, id) }

// Kind returns a slog.Attr for a manifest result kind (BUILT/DATABASE/GENERATED).
func Kind(k string) slog.Attr { return slog.String(KeyKind, k) }

// Error returns a slog.Attr for an error, or an empty string if nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
