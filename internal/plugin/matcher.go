package plugin

import (
	"fmt"
	"regexp"
	"strings"
)

// Predicate is the compiled path-suffix + type-pattern matcher a job file's
// Searcher/Builder/Generator declaration carries for one bound plugin
// instance.
type Predicate struct {
	PathSuffix string
	typeRe     *regexp.Regexp
}

// CompilePredicate compiles a declaration's path-suffix/type-pattern into a
// reusable Predicate. An empty typePatternRe matches every type tag.
func CompilePredicate(pathSuffix, typePatternRe string) (Predicate, error) {
	if typePatternRe == "" {
		return Predicate{PathSuffix: pathSuffix}, nil
	}
	re, err := regexp.Compile(typePatternRe)
	if err != nil {
		return Predicate{}, fmt.Errorf("compile type pattern %q: %w", typePatternRe, err)
	}
	return Predicate{PathSuffix: pathSuffix, typeRe: re}, nil
}

// Match reports whether relPath and typeTag both satisfy the predicate.
func (p Predicate) Match(relPath, typeTag string) bool {
	if p.PathSuffix != "" && !strings.HasSuffix(relPath, p.PathSuffix) {
		return false
	}
	if p.typeRe != nil && !p.typeRe.MatchString(typeTag) {
		return false
	}
	return true
}
