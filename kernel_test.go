// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package kernelpool

import (
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/pwakit/kernelpool/table"
)

func TestPartitionColumn(t *testing.T) {
	x := []float64{1, 2, 3}
	part := Partition{ID: 2, Data: table.Must(map[string]interface{}{"x": x})}
	if got, want := part.Len(), 3; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	var col []float64
	if err := part.Column("x", &col); err != nil {
		t.Fatal(err)
	}
	col[0] = 100
	if got, want := x[0], 1.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	var ints []int
	if err := part.Column("x", &ints); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected type error, got %v", err)
	}
	if err := part.Column("y", &col); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected missing column error, got %v", err)
	}
	if err := part.Column("x", col); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected pointer error, got %v", err)
	}
}
