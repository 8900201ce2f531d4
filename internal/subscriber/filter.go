package subscriber

import (
	"encoding/json"
	"fmt"
	"strings"

	"changelog_emitter/internal/event"
	"changelog_emitter/internal/publisher"
)

// Filter selects the change events a subscriber acts on. Every configured
// criterion must hold; an unset criterion matches everything.
type Filter struct {
	include   *publisher.GlobFilter
	excludeDB *publisher.GlobFilter
	excludeTb *publisher.GlobFilter
	idSet     strset
	opSet     map[event.Op]struct{}
	changeAny strset
	changeAll strset
}

func NewFilter(cfg *Config) (*Filter, error) {
	include, err := publisher.NewGlobFilter(cfg.FilterTables, cfg.FilterDBs)
	if err != nil {
		return nil, err
	}
	f := &Filter{
		include:   include,
		idSet:     toSet(cfg.FilterIDs),
		changeAny: toSet(cfg.FilterChangeAny),
		changeAll: toSet(cfg.FilterChangeAll),
	}
	if len(cfg.ExcludeDBs) > 0 {
		if f.excludeDB, err = publisher.NewGlobFilter(nil, cfg.ExcludeDBs); err != nil {
			return nil, err
		}
	}
	if len(cfg.ExcludeTables) > 0 {
		if f.excludeTb, err = publisher.NewGlobFilter(cfg.ExcludeTables, nil); err != nil {
			return nil, err
		}
	}
	if len(cfg.FilterOps) > 0 {
		f.opSet = make(map[event.Op]struct{}, len(cfg.FilterOps))
		for _, s := range cfg.FilterOps {
			op, err := event.ParseOp(s)
			if err != nil {
				return nil, fmt.Errorf("FILTER_OPS: %w", err)
			}
			f.opSet[op] = struct{}{}
		}
	}
	return f, nil
}

func (f *Filter) Matches(ev *event.ChangeEvent) bool {
	if !f.include.Match(ev.DB, ev.Table) {
		return false
	}
	if f.excludeDB != nil && f.excludeDB.Match(ev.DB, ev.Table) {
		return false
	}
	if f.excludeTb != nil && f.excludeTb.Match(ev.DB, ev.Table) {
		return false
	}
	if !inSet(f.idSet, rowKeyToString(ev.RowKey)) {
		return false
	}
	if f.opSet != nil {
		if _, ok := f.opSet[ev.Op]; !ok {
			return false
		}
	}
	if !hasAnyColumns(ev.Changes, f.changeAny) {
		return false
	}
	return hasAllColumns(ev.Changes, f.changeAll)
}

type strset map[string]struct{}

func toSet(list []string) strset {
	if len(list) == 0 {
		return nil
	}
	out := make(strset, len(list))
	for _, v := range list {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[v] = struct{}{}
	}
	return out
}

func inSet(s strset, v string) bool {
	if s == nil {
		return true // no filter
	}
	_, ok := s[v]
	return ok
}

func rowKeyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

func hasAnyColumns(changes []event.ColumnChange, cols strset) bool {
	if cols == nil {
		return true
	}
	for _, c := range changes {
		if _, ok := cols[c.Column]; ok {
			return true
		}
	}
	return false
}

func hasAllColumns(changes []event.ColumnChange, cols strset) bool {
	if len(cols) == 0 {
		return true
	}
	seen := map[string]bool{}
	for _, c := range changes {
		seen[c.Column] = true
	}
	for col := range cols {
		if !seen[col] {
			return false
		}
	}
	return true
}
