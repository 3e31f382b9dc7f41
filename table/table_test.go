// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package table

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func fuzzTable(fz *fuzz.Fuzzer, n int) *Table {
	var (
		x   = make([]float64, n)
		y   = make([]int, n)
		tag = make([]string, n)
	)
	for i := 0; i < n; i++ {
		fz.Fuzz(&x[i])
		fz.Fuzz(&y[i])
		fz.Fuzz(&tag[i])
	}
	return Must(map[string]interface{}{"x": x, "y": y, "tag": tag})
}

func TestNew(t *testing.T) {
	tab, err := New(map[string]interface{}{
		"b": []int{1, 2, 3},
		"a": []string{"x", "y", "z"},
	})
	assert.NoError(t, err)
	expect.EQ(t, tab.Len(), 3)
	expect.EQ(t, tab.Names(), []string{"a", "b"})
	col, ok := tab.Column("b")
	if !ok {
		t.Fatal("missing column b")
	}
	expect.EQ(t, col.Interface(), []int{1, 2, 3})
	if _, ok := tab.Column("c"); ok {
		t.Error("unexpected column c")
	}
}

func TestShapeMismatch(t *testing.T) {
	_, err := New(map[string]interface{}{
		"a": []int{1, 2, 3},
		"b": []float64{1, 2},
	})
	e, ok := err.(*ShapeMismatchError)
	if !ok {
		t.Fatalf("got %v, want ShapeMismatchError", err)
	}
	if got, want := e.Column, "b"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := e.Len, 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := e.Want, 3; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNotSlice(t *testing.T) {
	_, err := New(map[string]interface{}{"a": 1})
	if _, ok := err.(*TypeError); !ok {
		t.Fatalf("got %v, want TypeError", err)
	}
	_, err = New(map[string]interface{}{"a": nil})
	if _, ok := err.(*TypeError); !ok {
		t.Fatalf("got %v, want TypeError", err)
	}
}

func TestBounds(t *testing.T) {
	for _, c := range []struct {
		n, nparts int
		want      []int
	}{
		{10, 3, []int{0, 4, 7, 10}},
		{9, 3, []int{0, 3, 6, 9}},
		{2, 4, []int{0, 1, 2, 2, 2}},
		{0, 2, []int{0, 0, 0}},
		{5, 1, []int{0, 5}},
	} {
		if got, want := Bounds(c.n, c.nparts), c.want; !reflect.DeepEqual(got, want) {
			t.Errorf("Bounds(%d, %d): got %v, want %v", c.n, c.nparts, got, want)
		}
	}
}

func TestSplitProperties(t *testing.T) {
	fz := fuzz.NewWithSeed(12345)
	for _, n := range []int{0, 1, 2, 7, 50, 101} {
		tab := fuzzTable(fz, n)
		for nparts := 1; nparts <= 12; nparts++ {
			t.Run(fmt.Sprintf("L=%d,N=%d", n, nparts), func(t *testing.T) {
				parts, err := Split(tab, nparts)
				assert.NoError(t, err)
				if got, want := len(parts), nparts; got != want {
					t.Fatalf("got %v, want %v", got, want)
				}
				var (
					total    int
					min, max = n, 0
				)
				for _, part := range parts {
					expect.EQ(t, part.Names(), tab.Names())
					total += part.Len()
					if part.Len() < min {
						min = part.Len()
					}
					if part.Len() > max {
						max = part.Len()
					}
				}
				if got, want := total, n; got != want {
					t.Errorf("got %v, want %v", got, want)
				}
				if max-min > 1 {
					t.Errorf("unbalanced partitions: min %d, max %d", min, max)
				}
				joined, err := Concat(parts)
				assert.NoError(t, err)
				if !Equal(joined, tab) {
					t.Errorf("round trip mismatch:\n%s\n%s", joined.TabString(), tab.TabString())
				}
				want, err := tab.Checksum()
				assert.NoError(t, err)
				got, err := joined.Checksum()
				assert.NoError(t, err)
				if got != want {
					t.Errorf("checksum: got %x, want %x", got, want)
				}
			})
		}
	}
}

func TestSplitAlignment(t *testing.T) {
	const n = 23
	var (
		ids    = make([]int, n)
		square = make([]int, n)
	)
	for i := range ids {
		ids[i] = i
		square[i] = i * i
	}
	tab := Must(map[string]interface{}{"id": ids, "square": square})
	parts, err := Split(tab, 4)
	assert.NoError(t, err)
	for p, part := range parts {
		idcol, _ := part.Column("id")
		sqcol, _ := part.Column("square")
		pids, psq := idcol.Interface().([]int), sqcol.Interface().([]int)
		for i := range pids {
			if got, want := psq[i], pids[i]*pids[i]; got != want {
				t.Errorf("partition %d row %d: got %v, want %v", p, i, got, want)
			}
		}
	}
}

func TestSplitOne(t *testing.T) {
	tab := Must(map[string]interface{}{"x": []float64{1, 2, 3}})
	parts, err := Split(tab, 1)
	assert.NoError(t, err)
	if got, want := len(parts), 1; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if parts[0] != tab {
		t.Error("expected the original table")
	}
	if _, err := Split(tab, 0); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid error, got %v", err)
	}
}

func TestSplitCappedCapacity(t *testing.T) {
	tab := Must(map[string]interface{}{"x": []int{1, 2, 3, 4}})
	parts, err := Split(tab, 2)
	assert.NoError(t, err)
	col, _ := parts[0].Column("x")
	first := col.Interface().([]int)
	_ = append(first, 100)
	col, _ = parts[1].Column("x")
	expect.EQ(t, col.Interface(), []int{3, 4})
}

func TestConcatMismatch(t *testing.T) {
	a := Must(map[string]interface{}{"x": []int{1}})
	b := Must(map[string]interface{}{"y": []int{1}})
	if _, err := Concat([]*Table{a, b}); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid error, got %v", err)
	}
	c := Must(map[string]interface{}{"x": []float64{1}})
	if _, err := Concat([]*Table{a, c}); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid error, got %v", err)
	}
	d := Must(map[string]interface{}{"x": []int{1}, "y": []int{2}})
	if _, err := Concat([]*Table{a, d}); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid error, got %v", err)
	}
}

func TestGob(t *testing.T) {
	tab := fuzzTable(fuzz.NewWithSeed(31415), 17)
	var b bytes.Buffer
	assert.NoError(t, gob.NewEncoder(&b).Encode(tab))
	got := new(Table)
	assert.NoError(t, gob.NewDecoder(&b).Decode(got))
	if !Equal(got, tab) {
		t.Errorf("got %s, want %s", got.TabString(), tab.TabString())
	}
}

func TestCopy(t *testing.T) {
	x := []int{1, 2, 3}
	tab := Must(map[string]interface{}{"x": x})
	cp := tab.Copy()
	col, _ := cp.Column("x")
	col.Interface().([]int)[0] = 100
	if got, want := x[0], 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
