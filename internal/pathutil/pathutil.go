// Package pathutil provides content hashing and filesystem
// case-correction for items. Case correction walks the path root-to-leaf,
// re-resolving each segment against a directory listing when the verbatim
// segment does not exist.
package pathutil

import (
	"crypto/md5" //nolint:gosec // content addressing only, not used for security.
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// foldKey normalizes a path segment for case-insensitive comparison:
// Unicode-normalize then case-fold, so comparisons hold beyond ASCII.
func foldKey(s string) string {
	return foldCaser.String(norm.NFC.String(s))
}

// HashFile computes the MD5-like content hash of the file at path.
func HashFile(path string) (string, error) {
	// #nosec G304 - path originates from job-declared or searcher-discovered items.
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New() //nolint:gosec
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashMTime computes a fast, less reliable surrogate hash from a file's
// modification time and size, used in --date-modified-hash mode.
func HashMTime(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	var buf []byte
	buf = strconv.AppendInt(buf, fi.ModTime().UnixNano(), 10)
	buf = append(buf, '|')
	buf = strconv.AppendInt(buf, fi.Size(), 10)
	sum := md5.Sum(buf) //nolint:gosec
	return hex.EncodeToString(sum[:]), nil
}

// Exists reports whether root/relPath exists on disk.
func Exists(root, relPath string) bool {
	_, err := os.Stat(filepath.Join(root, relPath))
	return err == nil
}

// CaseCorrect resolves relPath against root segment by segment, matching
// each directory entry case-insensitively when an exact match is absent.
// It returns the corrected relative path, whether any segment needed
// correction, and an error only if a segment genuinely cannot be resolved
// (missing entirely, or a parent is unreadable).
func CaseCorrect(root, relPath string) (corrected string, changed bool, err error) {
	segments := strings.Split(filepath.ToSlash(relPath), "/")
	cur := root
	out := make([]string, 0, len(segments))

	for _, seg := range segments {
		if seg == "" {
			continue
		}
		entries, readErr := os.ReadDir(cur)
		if readErr != nil {
			return relPath, false, fmt.Errorf("read dir %s: %w", cur, readErr)
		}

		match, found := exactMatch(entries, seg)
		if !found {
			match, found = foldedMatch(entries, seg)
		}
		if !found {
			return relPath, false, os.ErrNotExist
		}
		if match != seg {
			changed = true
		}
		out = append(out, match)
		cur = filepath.Join(cur, match)
	}
	return strings.Join(out, "/"), changed, nil
}

func exactMatch(entries []os.DirEntry, seg string) (string, bool) {
	for _, e := range entries {
		if e.Name() == seg {
			return seg, true
		}
	}
	return "", false
}

func foldedMatch(entries []os.DirEntry, seg string) (string, bool) {
	target := foldKey(seg)
	for _, e := range entries {
		if foldKey(e.Name()) == target {
			return e.Name(), true
		}
	}
	return "", false
}

// ResolveCaseCorrected returns relPath unchanged if root/relPath exists as
// written; otherwise it attempts CaseCorrect and returns the corrected path.
// The caller is responsible for diagnosing CaseMismatch when changed is true.
func ResolveCaseCorrected(root, relPath string) (resolved string, changed bool, err error) {
	if Exists(root, relPath) {
		return relPath, false, nil
	}
	return CaseCorrect(root, relPath)
}
