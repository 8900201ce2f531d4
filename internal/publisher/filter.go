package publisher

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Filter decides whether events of a table are published.
type Filter interface {
	Match(database, table string) bool
}

// GlobFilter matches database and table names against glob patterns.
// An empty pattern list matches everything.
type GlobFilter struct {
	tableGlobs    []glob.Glob
	databaseGlobs []glob.Glob
}

func NewGlobFilter(tablePatterns, dbPatterns []string) (*GlobFilter, error) {
	tables, err := compileAll("table", tablePatterns)
	if err != nil {
		return nil, err
	}
	dbs, err := compileAll("database", dbPatterns)
	if err != nil {
		return nil, err
	}
	return &GlobFilter{tableGlobs: tables, databaseGlobs: dbs}, nil
}

func compileAll(what string, patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", what, pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (f *GlobFilter) Match(database, table string) bool {
	return matchAny(f.databaseGlobs, database) && matchAny(f.tableGlobs, table)
}

func matchAny(globs []glob.Glob, s string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}
