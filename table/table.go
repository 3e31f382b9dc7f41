// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package table implements named, equal-length column vectors: the
// event data that is partitioned across kernelpool workers. A table
// maps column names to Go slices. All columns in a table have the
// same length, and row i of one column describes the same event as
// row i of every other column.
package table

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
)

// Column is a single column of a table. Columns are always Go slices,
// represented as reflect.Values so that tables can hold columns of
// any element type.
type Column reflect.Value

// ColumnOf returns a new column created from the given interface,
// which must be a slice.
func ColumnOf(x interface{}) Column {
	return Column(reflect.ValueOf(x))
}

// Len returns the column's length.
func (c Column) Len() int { return reflect.Value(c).Len() }

// Type returns the type of the column. The returned type is always a
// slice.
func (c Column) Type() reflect.Type { return reflect.Value(c).Type() }

// Value returns the reflect.Value that represents this column.
func (c Column) Value() reflect.Value { return reflect.Value(c) }

// Interface returns the column value as an empty interface.
func (c Column) Interface() interface{} { return reflect.Value(c).Interface() }

// Slice returns rows i to j of the column. The returned column's
// capacity is capped at j so that appends never reach into rows that
// belong to other slices of the same column.
func (c Column) Slice(i, j int) Column { return Column(reflect.Value(c).Slice3(i, j, j)) }

// Copy returns a copy of the column that shares no storage with c.
func (c Column) Copy() Column {
	v := reflect.MakeSlice(c.Type(), c.Len(), c.Len())
	reflect.Copy(v, c.Value())
	return Column(v)
}

// A TypeError is returned when a table column is not a slice.
type TypeError struct {
	Column string
	Type   reflect.Type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("table: column %q has type %v, expected a slice", e.Column, e.Type)
}

// A ShapeMismatchError is returned when a column's length differs
// from the length of the other columns in the table.
type ShapeMismatchError struct {
	Column string
	Len    int
	Want   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("table: shape mismatch: column %q has length %d, other columns have length %d",
		e.Column, e.Len, e.Want)
}

// A Table is a set of named columns of equal length. Tables are
// immutable once constructed; operations that change shape return
// new tables. The zero Table has no columns and no rows.
type Table struct {
	// names is sorted; cols[i] is the column named names[i].
	names []string
	cols  []Column
}

// New constructs a table from a map of column names to slices. New
// returns a *TypeError if a value is not a slice, and a
// *ShapeMismatchError if the columns do not all have the same
// length. The slices are referenced, not copied.
func New(columns map[string]interface{}) (*Table, error) {
	t := &Table{
		names: make([]string, 0, len(columns)),
		cols:  make([]Column, 0, len(columns)),
	}
	for name := range columns {
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)
	n := -1
	for _, name := range t.names {
		val := reflect.ValueOf(columns[name])
		if !val.IsValid() || val.Kind() != reflect.Slice {
			var typ reflect.Type
			if val.IsValid() {
				typ = val.Type()
			}
			return nil, &TypeError{Column: name, Type: typ}
		}
		if n < 0 {
			n = val.Len()
		} else if val.Len() != n {
			return nil, &ShapeMismatchError{Column: name, Len: val.Len(), Want: n}
		}
		t.cols = append(t.cols, Column(val))
	}
	return t, nil
}

// Must is a version of New that panics on error.
func Must(columns map[string]interface{}) *Table {
	t, err := New(columns)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rows in the table.
func (t *Table) Len() int {
	if t == nil || len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumColumn returns the number of columns in the table.
func (t *Table) NumColumn() int {
	if t == nil {
		return 0
	}
	return len(t.cols)
}

// Names returns the table's column names in sorted order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

// Column returns the column with the provided name.
func (t *Table) Column(name string) (Column, bool) {
	if t == nil {
		return Column{}, false
	}
	i := sort.SearchStrings(t.names, name)
	if i == len(t.names) || t.names[i] != name {
		return Column{}, false
	}
	return t.cols[i], true
}

// Slice returns a table with rows i to j, analagous to Go's native
// slice operation. The returned table shares storage with t.
func (t *Table) Slice(i, j int) *Table {
	u := &Table{names: t.names, cols: make([]Column, len(t.cols))}
	for k := range t.cols {
		u.cols[k] = t.cols[k].Slice(i, j)
	}
	return u
}

// Copy returns a deep copy of the table's column vectors. Elements
// are copied by value, so pointers inside elements are still shared.
func (t *Table) Copy() *Table {
	u := &Table{names: t.names, cols: make([]Column, len(t.cols))}
	for k := range t.cols {
		u.cols[k] = t.cols[k].Copy()
	}
	return u
}

// Map returns the table as a map of column names to slices.
func (t *Table) Map() map[string]interface{} {
	m := make(map[string]interface{}, t.NumColumn())
	for i, name := range t.names {
		m[name] = t.cols[i].Interface()
	}
	return m
}

// String returns a descriptive string of the table.
func (t *Table) String() string {
	cols := make([]string, t.NumColumn())
	for i := range cols {
		cols[i] = t.names[i] + ":" + t.cols[i].Type().Elem().String()
	}
	return fmt.Sprintf("table[%d]{%s}", t.Len(), strings.Join(cols, ","))
}

// WriteTab writes the table in tabular format to the provided
// io.Writer.
func (t *Table) WriteTab(w io.Writer) {
	var tw tabwriter.Writer
	tw.Init(w, 4, 4, 1, ' ', 0)
	fmt.Fprintln(&tw, strings.Join(t.names, "\t"))
	values := make([]string, len(t.cols))
	for i := 0; i < t.Len(); i++ {
		for j := range t.cols {
			values[j] = fmt.Sprint(t.cols[j].Value().Index(i))
		}
		fmt.Fprintln(&tw, strings.Join(values, "\t"))
	}
	tw.Flush()
}

// TabString returns a string representing the table in tabular
// format.
func (t *Table) TabString() string {
	var b bytes.Buffer
	t.WriteTab(&b)
	return b.String()
}

// Equal tells whether t1 and t2 have the same column names and
// (deeply) equal column values.
func Equal(t1, t2 *Table) bool {
	if t1.NumColumn() != t2.NumColumn() {
		return false
	}
	for i := range t1.names {
		if t1.names[i] != t2.names[i] {
			return false
		}
		if !reflect.DeepEqual(t1.cols[i].Interface(), t2.cols[i].Interface()) {
			return false
		}
	}
	return true
}
