// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pwakit/kernelpool"
)

func init() {
	kernelpool.RegisterKernel(new(sumKernel))
	kernelpool.RegisterKernel(new(failKernel))
	kernelpool.RegisterKernel(new(blockKernel))
	kernelpool.RegisterKernel(new(sleepKernel))
}

// sumKernel sums its partition of column "x". Duplex requests are
// integer multipliers; the simplex result is the plain sum.
type sumKernel struct {
	ID     int
	X      []int
	Setups int
}

func (k *sumKernel) Setup() error {
	k.Setups++
	return nil
}

func (k *sumKernel) Process(ctx context.Context, request interface{}) (interface{}, error) {
	var sum int
	for _, x := range k.X {
		sum += x
	}
	if request == nil {
		return sum, nil
	}
	n, ok := request.(int)
	if !ok {
		return nil, fmt.Errorf("unexpected request type %T", request)
	}
	return sum * n, nil
}

func (k *sumKernel) CloneWith(part kernelpool.Partition) (kernelpool.Kernel, error) {
	clone := &sumKernel{ID: part.ID}
	if err := part.Column("x", &clone.X); err != nil {
		return nil, err
	}
	return clone, nil
}

var errKernel = errors.New("kernel failure")

// failKernel fails in the worker whose partition ID is Fail, either
// in Setup or in Process. Other workers behave like sumKernel. Its
// state is held in exported fields so that it survives gob encoding.
type failKernel struct {
	ID      int
	X       []int
	Fail    int
	InSetup bool
	Panic   bool
}

func (k *failKernel) Setup() error {
	if k.InSetup && k.ID == k.Fail {
		if k.Panic {
			panic("setup panic")
		}
		return errKernel
	}
	return nil
}

func (k *failKernel) Process(ctx context.Context, request interface{}) (interface{}, error) {
	if !k.InSetup && k.ID == k.Fail {
		if k.Panic {
			panic("process panic")
		}
		return nil, errKernel
	}
	return (&sumKernel{ID: k.ID, X: k.X}).Process(ctx, request)
}

func (k *failKernel) CloneWith(part kernelpool.Partition) (kernelpool.Kernel, error) {
	clone := *k
	clone.ID = part.ID
	clone.X = nil
	if err := part.Column("x", &clone.X); err != nil {
		return nil, err
	}
	return &clone, nil
}

// sleepKernel behaves like sumKernel, except that the worker whose
// partition ID is Slow waits for Delay before replying.
type sleepKernel struct {
	ID    int
	X     []int
	Slow  int
	Delay time.Duration
}

func (*sleepKernel) Setup() error { return nil }

func (k *sleepKernel) Process(ctx context.Context, request interface{}) (interface{}, error) {
	if k.ID == k.Slow {
		select {
		case <-time.After(k.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return (&sumKernel{ID: k.ID, X: k.X}).Process(ctx, request)
}

func (k *sleepKernel) CloneWith(part kernelpool.Partition) (kernelpool.Kernel, error) {
	clone := &sleepKernel{ID: part.ID, Slow: k.Slow, Delay: k.Delay}
	if err := part.Column("x", &clone.X); err != nil {
		return nil, err
	}
	return clone, nil
}

// blockKernel blocks in Process until its context is done.
type blockKernel struct {
	ID int
}

func (*blockKernel) Setup() error { return nil }

func (*blockKernel) Process(ctx context.Context, request interface{}) (interface{}, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (k *blockKernel) CloneWith(part kernelpool.Partition) (kernelpool.Kernel, error) {
	return &blockKernel{ID: part.ID}, nil
}

func ones(n int) map[string]interface{} {
	x := make([]int, n)
	for i := range x {
		x[i] = 1
	}
	return map[string]interface{}{"x": x}
}
