// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package kernelpool

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// An Aggregator owns the logic by which per-worker replies are
// combined into a single result. It is supplied by the caller when
// the pool is configured.
type Aggregator interface {
	// Duplex tells whether the pool's workers persist across calls
	// (duplex) or compute once at startup (simplex).
	Duplex() bool

	// Run is invoked for each call on the pool. The i'th channel is
	// connected to the worker that owns partition i. For duplex pools
	// Run typically sends a request to every worker and collects one
	// reply from each; for simplex pools it collects the single reply
	// that each worker computed at startup.
	//
	// Replies from workers whose kernel failed are Error messages.
	// Aggregators that wait for further replies from such a worker
	// receive ErrClosed once the worker has exited.
	Run(ctx context.Context, channels []Channel, args []interface{}) (interface{}, error)
}

// Request returns the request value conventionally sent to duplex
// workers for a call with the provided arguments: nil for no
// arguments, the argument itself for a single argument, and the
// argument slice otherwise.
func Request(args []interface{}) interface{} {
	switch len(args) {
	case 0:
		return nil
	case 1:
		return args[0]
	default:
		return args
	}
}

// Gather receives one message from each channel. The returned
// replies are indexed by channel, regardless of the order in which
// workers reply. A channel that is already closed yields an Error
// message in its place. Other receive errors abort the gather.
func Gather(ctx context.Context, channels []Channel) ([]Message, error) {
	replies := make([]Message, len(channels))
	g, ctx := errgroup.WithContext(ctx)
	for i := range channels {
		i := i
		g.Go(func() error {
			m, err := channels[i].Receive(ctx)
			switch {
			case err == ErrClosed:
				replies[i] = ErrorMessage(errors.E(fmt.Sprintf("worker %d exited", i), err))
			case err != nil:
				return err
			default:
				replies[i] = m
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return replies, nil
}

// Exchange sends the request to every channel as a Payload and then
// gathers one reply from each. Workers that can no longer accept
// requests are reported by an Error message at their index and are
// not waited on.
func Exchange(ctx context.Context, channels []Channel, request interface{}) ([]Message, error) {
	var (
		replies = make([]Message, len(channels))
		live    = make([]Channel, 0, len(channels))
		index   = make([]int, 0, len(channels))
	)
	for i, ch := range channels {
		err := ch.Send(ctx, PayloadMessage(request))
		switch {
		case err == ErrClosed:
			replies[i] = ErrorMessage(errors.E(fmt.Sprintf("worker %d exited", i), err))
		case err != nil:
			return nil, err
		default:
			live = append(live, ch)
			index = append(index, i)
		}
	}
	gathered, err := Gather(ctx, live)
	if err != nil {
		return nil, err
	}
	for j, m := range gathered {
		replies[index[j]] = m
	}
	return replies, nil
}

// FirstError returns the error of the first Error message in
// replies, annotated with the index of its worker, or nil if there
// are none.
func FirstError(replies []Message) error {
	for i, m := range replies {
		if m.IsError() {
			return errors.E(fmt.Sprintf("worker %d", i), m.Err)
		}
	}
	return nil
}

// Collect is an aggregator that returns the replies of all workers,
// as a []Message indexed by worker. Error replies are returned as
// they are and do not fail the call.
type Collect struct {
	IsDuplex bool
}

// Duplex implements Aggregator.
func (a Collect) Duplex() bool { return a.IsDuplex }

// Run implements Aggregator.
func (a Collect) Run(ctx context.Context, channels []Channel, args []interface{}) (interface{}, error) {
	return a.replies(ctx, channels, args)
}

func (a Collect) replies(ctx context.Context, channels []Channel, args []interface{}) ([]Message, error) {
	if a.IsDuplex {
		return Exchange(ctx, channels, Request(args))
	}
	return Gather(ctx, channels)
}

// Sum is an aggregator that adds up numeric worker replies. Replies
// must be ints or float64s; the sum is an int if every reply is an
// int, and a float64 otherwise. Any Error reply fails the call.
type Sum struct {
	IsDuplex bool
}

// Duplex implements Aggregator.
func (a Sum) Duplex() bool { return a.IsDuplex }

// Run implements Aggregator.
func (a Sum) Run(ctx context.Context, channels []Channel, args []interface{}) (interface{}, error) {
	replies, err := Collect(a).replies(ctx, channels, args)
	if err != nil {
		return nil, err
	}
	if err := FirstError(replies); err != nil {
		return nil, err
	}
	var (
		ints    int
		vals    = make([]float64, len(replies))
		allInts = true
	)
	for i, m := range replies {
		switch v := m.Value.(type) {
		case int:
			ints += v
			vals[i] = float64(v)
		case float64:
			allInts = false
			vals[i] = v
		default:
			return nil, errors.E(errors.Invalid, fmt.Sprintf("worker %d: cannot sum reply of type %T", i, m.Value))
		}
	}
	if allInts {
		return ints, nil
	}
	return floats.Sum(vals), nil
}
