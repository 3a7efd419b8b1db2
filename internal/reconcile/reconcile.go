// Package reconcile implements the reconciler: computes which
// output-directory files are unlisted by the new manifest, applies the
// prior-manifest safety interlock, and (optionally) deletes them.
package reconcile

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/wolfire/ogda/internal/itemstore"
	"github.com/wolfire/ogda/internal/logfields"
	"github.com/wolfire/ogda/internal/metrics"
)

// Options controls how Reconcile computes and applies the remove list.
type Options struct {
	// RemoveUnlisted, when true, widens the remove list to every unlisted
	// file instead of only those the prior manifest already knew about.
	RemoveUnlisted bool
	// ForceRemoves bypasses the safety-interlock refusal.
	ForceRemoves bool
	// PerformRemoves actually deletes files; otherwise the reconciler only
	// reports what it would delete.
	PerformRemoves bool
}

// Report is the outcome of one reconciliation pass.
type Report struct {
	// Unlisted is D \ M_new: every output-directory file the new manifest
	// does not claim.
	Unlisted []string
	// RemoveList is the subset of Unlisted actually slated for removal.
	RemoveList []string
	// Refused is true when the safety interlock blocked deletion entirely.
	Refused bool
	// Deleted lists the files actually removed from disk (empty unless
	// Options.PerformRemoves and not Refused).
	Deleted []string
}

// Reconcile walks outputDir, computes the unlisted-file set against
// newDests, applies the prior-manifest interlock, and deletes according to
// opts.
func Reconcile(outputDir string, newDests, priorDests map[string]bool, opts Options, recorder metrics.Recorder, logger *slog.Logger) (Report, error) {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	onDisk, err := walkFiles(outputDir)
	if err != nil {
		return Report{}, err
	}

	unlisted := diff(onDisk, newDests)

	var removeSet map[string]bool
	if opts.RemoveUnlisted {
		removeSet = unlisted
	} else {
		removeSet = intersect(unlisted, priorDests)
	}

	report := Report{
		Unlisted:   sortedKeys(unlisted),
		RemoveList: sortedKeys(removeSet),
	}

	if !opts.ForceRemoves && !setsEqual(removeSet, unlisted) {
		report.Refused = true
		logger.Error("reconciler refused: remove list diverges from unlisted-files set",
			slog.Int("unlisted", len(unlisted)), slog.Int("remove_list", len(removeSet)))
		recorder.IncReconcilerRefusal()
		return report, nil
	}

	for _, rel := range report.RemoveList {
		if !opts.PerformRemoves {
			logger.Info("reconciler would remove unlisted file", logfields.Path(rel))
			recorder.IncReconcilerDelete(false)
			continue
		}
		if err := os.Remove(filepath.Join(outputDir, rel)); err != nil {
			logger.Error("failed to remove unlisted file", logfields.Path(rel), logfields.Error(err))
			continue
		}
		report.Deleted = append(report.Deleted, rel)
		recorder.IncReconcilerDelete(true)
	}
	return report, nil
}

// RemoveDeleteOnExit deletes every item in store flagged DeleteOnExit and
// returns how many were removed. Failures are logged, not fatal.
func RemoveDeleteOnExit(store *itemstore.Store, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	removed := 0
	for _, id := range store.WorkingList() {
		item := store.Get(id)
		if !item.DeleteOnExit {
			continue
		}
		if err := os.Remove(item.AbsPath()); err != nil {
			logger.Warn("failed to remove delete-on-exit item", logfields.Path(item.RelPath), logfields.Error(err))
			continue
		}
		removed++
	}
	return removed
}

func walkFiles(root string) (map[string]bool, error) {
	set := map[string]bool{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		set[filepath.ToSlash(rel)] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func diff(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k := range a {
		if !b[k] {
			out[k] = true
		}
	}
	return out
}

func intersect(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
