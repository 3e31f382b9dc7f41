// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package kernelpool

import (
	"context"
	"encoding/gob"
	"fmt"
	"reflect"

	"github.com/grailbio/base/errors"
	"github.com/pwakit/kernelpool/table"
)

// A Kernel is the unit of computation placed inside each worker.
// Each worker owns exactly one kernel, cloned from a template by
// CloneWith, and never shares it with other workers.
type Kernel interface {
	// Setup is called exactly once in the worker, before any call to
	// Process. It is where expensive per-worker initialization belongs.
	Setup() error

	// Process computes over the kernel's partition. Duplex workers call
	// Process once per request received from the caller; simplex workers
	// call it once, with a nil request.
	Process(ctx context.Context, request interface{}) (interface{}, error)

	// CloneWith returns a copy of the kernel that owns the provided
	// partition. The returned kernel must not share mutable state with
	// the receiver or with other clones; auxiliary state (precomputed
	// constants, configuration) is expected to be copied as is.
	// Required columns should be extracted with Partition.Column so that
	// missing or mistyped data is reported here, not while computing.
	CloneWith(part Partition) (Kernel, error)
}

// RegisterKernel registers the concrete type of the provided kernel
// so that it can be shipped to worker processes. Kernels are gob
// encoded; only exported fields (or state provided by a GobEncoder
// implementation) survive the trip. Fields of embedded structs whose
// type is unexported are not encoded either: a kernel embedding one
// arrives in its worker with that state zeroed. RegisterKernel should
// be called during package initialization.
func RegisterKernel(k Kernel) {
	gob.Register(k)
}

// A Partition is the typed record handed to Kernel.CloneWith: one
// balanced, row-aligned slice of the event table together with its
// partition ID.
type Partition struct {
	// ID is the index of the partition, and of the worker that owns it.
	// IDs are assigned sequentially from 0.
	ID int
	// Data holds the partition's rows.
	Data *table.Table
}

// Len returns the number of rows in the partition.
func (p Partition) Len() int { return p.Data.Len() }

// Column copies the named column into the slice pointed to by ptr,
// which must be a pointer to a slice of the column's type. The copy
// shares no storage with the partition or with the original table.
// Column returns an error if the column does not exist or has a
// different type.
func (p Partition) Column(name string, ptr interface{}) error {
	col, ok := p.Data.Column(name)
	if !ok {
		return errors.E(errors.Invalid, fmt.Sprintf("partition %d: missing column %q", p.ID, name))
	}
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errors.E(errors.Invalid, fmt.Sprintf("partition %d: column %q: expected non-nil pointer, got %T", p.ID, name, ptr))
	}
	if got, want := col.Type(), v.Elem().Type(); got != want {
		return errors.E(errors.Invalid, fmt.Sprintf("partition %d: column %q has type %v, destination has type %v", p.ID, name, got, want))
	}
	v.Elem().Set(col.Copy().Value())
	return nil
}
