// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package table

import (
	"fmt"
	"reflect"

	"github.com/grailbio/base/errors"
)

// Bounds returns the row ranges of a balanced split of n rows into
// nparts partitions. Partition p covers rows [bounds[p], bounds[p+1]).
// The first n%nparts partitions hold one extra row, so partition
// sizes never differ by more than one.
func Bounds(n, nparts int) []int {
	bounds := make([]int, nparts+1)
	size, extra := n/nparts, n%nparts
	for p := 0; p < nparts; p++ {
		bounds[p+1] = bounds[p] + size
		if p < extra {
			bounds[p+1]++
		}
	}
	return bounds
}

// Split splits the table t into n row-aligned partitions of balanced
// size. Concatenating the partitions in order reproduces t. If n is
// 1, Split returns t itself as the only partition. When t has fewer
// than n rows, the trailing partitions are empty. Partitions share
// storage with t but have capped capacity, so appending to one
// partition never modifies another.
func Split(t *Table, n int) ([]*Table, error) {
	if n < 1 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("table.Split: invalid partition count %d", n))
	}
	if t == nil {
		t = new(Table)
	}
	if n == 1 {
		return []*Table{t}, nil
	}
	bounds := Bounds(t.Len(), n)
	parts := make([]*Table, n)
	for p := range parts {
		parts[p] = t.Slice(bounds[p], bounds[p+1])
	}
	return parts, nil
}

// Concat concatenates the rows of the provided tables, which must
// all have the same column names and column types. The returned
// table does not share storage with its inputs.
func Concat(parts []*Table) (*Table, error) {
	if len(parts) == 0 {
		return new(Table), nil
	}
	first := parts[0]
	t := &Table{names: first.names, cols: make([]Column, len(first.cols))}
	n := 0
	for _, part := range parts {
		n += part.Len()
	}
	for i, col := range first.cols {
		t.cols[i] = Column(reflect.MakeSlice(col.Type(), 0, n))
	}
	for p, part := range parts {
		if part.NumColumn() != len(first.cols) {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("table.Concat: partition %d has %d columns, expected %d",
				p, part.NumColumn(), len(first.cols)))
		}
		for i := range part.cols {
			if part.names[i] != first.names[i] {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("table.Concat: partition %d has column %q, expected %q",
					p, part.names[i], first.names[i]))
			}
			if part.cols[i].Type() != t.cols[i].Type() {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("table.Concat: partition %d column %q has type %v, expected %v",
					p, part.names[i], part.cols[i].Type(), t.cols[i].Type()))
			}
			t.cols[i] = Column(reflect.AppendSlice(t.cols[i].Value(), part.cols[i].Value()))
		}
	}
	return t, nil
}
