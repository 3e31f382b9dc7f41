// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package pooltest

import (
	"context"
	"fmt"

	"github.com/pwakit/kernelpool"
)

func init() {
	kernelpool.RegisterKernel(new(Sum))
	kernelpool.RegisterKernel(new(Fail))
}

// Sum is a kernel that sums its partition of an integer column. Its
// simplex result is the sum; duplex requests are integer multipliers
// applied to the sum.
type Sum struct {
	// Column names the column to sum.
	Column string
	// Values holds the worker's partition of the column.
	Values []int
}

// Setup implements kernelpool.Kernel.
func (k *Sum) Setup() error { return nil }

// Process implements kernelpool.Kernel.
func (k *Sum) Process(ctx context.Context, request interface{}) (interface{}, error) {
	var sum int
	for _, v := range k.Values {
		sum += v
	}
	switch req := request.(type) {
	case nil:
		return sum, nil
	case int:
		return sum * req, nil
	default:
		return nil, fmt.Errorf("pooltest.Sum: unexpected request %T", request)
	}
}

// CloneWith implements kernelpool.Kernel.
func (k *Sum) CloneWith(part kernelpool.Partition) (kernelpool.Kernel, error) {
	clone := &Sum{Column: k.Column}
	if err := part.Column(k.Column, &clone.Values); err != nil {
		return nil, err
	}
	return clone, nil
}

// Fail is a kernel that fails in the worker that owns partition
// Partition, in Setup if InSetup is set and in Process otherwise. Other
// workers reply with their partition's row count.
type Fail struct {
	Partition int
	InSetup   bool
	Message   string

	ID   int
	Rows int
}

// Setup implements kernelpool.Kernel.
func (k *Fail) Setup() error {
	if k.InSetup && k.ID == k.Partition {
		return k.err()
	}
	return nil
}

// Process implements kernelpool.Kernel.
func (k *Fail) Process(ctx context.Context, request interface{}) (interface{}, error) {
	if !k.InSetup && k.ID == k.Partition {
		return nil, k.err()
	}
	return k.Rows, nil
}

// CloneWith implements kernelpool.Kernel.
func (k *Fail) CloneWith(part kernelpool.Partition) (kernelpool.Kernel, error) {
	clone := *k
	clone.ID = part.ID
	clone.Rows = part.Len()
	return &clone, nil
}

func (k *Fail) err() error {
	msg := k.Message
	if msg == "" {
		msg = "injected failure"
	}
	return fmt.Errorf("pooltest.Fail: partition %d: %s", k.ID, msg)
}
