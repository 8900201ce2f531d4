// Package table resolves column order and primary keys for captured tables.
package table

import (
	"context"
	"fmt"
)

// Column describes one table column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Descriptor is the ordered column layout of a table.
type Descriptor struct {
	Schema  string
	Table   string
	Columns []Column // ordered
	PKCols  []string // primary key column names (ordered)

	colIndex map[string]int
}

// NewDescriptor builds a descriptor and its name -> index map.
func NewDescriptor(schema, table string, cols []Column, pk []string) *Descriptor {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c.Name] = i
	}
	return &Descriptor{
		Schema:   schema,
		Table:    table,
		Columns:  cols,
		PKCols:   pk,
		colIndex: idx,
	}
}

// ColumnCount is the number of slots a row image must have.
func (d *Descriptor) ColumnCount() int {
	return len(d.Columns)
}

// ColumnNames returns the column names in ordinal order.
func (d *Descriptor) ColumnNames() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the named column. Descriptors not built by
// NewDescriptor are scanned.
func (d *Descriptor) Index(name string) (int, bool) {
	if d.colIndex != nil {
		i, ok := d.colIndex[name]
		return i, ok
	}
	for i, c := range d.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// QualifiedName returns "schema.table".
func (d *Descriptor) QualifiedName() string {
	return d.Schema + "." + d.Table
}

// Resolver looks up the descriptor of a table.
type Resolver interface {
	Descriptor(ctx context.Context, schema, table string) (*Descriptor, error)
}

// Static is a fixed set of descriptors keyed by "schema.table".
type Static map[string]*Descriptor

func (s Static) Descriptor(_ context.Context, schema, table string) (*Descriptor, error) {
	d, ok := s[schema+"."+table]
	if !ok {
		return nil, fmt.Errorf("no descriptor for %s.%s", schema, table)
	}
	return d, nil
}
