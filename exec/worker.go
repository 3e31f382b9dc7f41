// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/pwakit/kernelpool"
	"github.com/pwakit/kernelpool/stats"
)

// WorkerState is the state of a worker's kernel loop. WorkerState
// values are defined so that their magnitudes correspond with worker
// progression; a worker only ever returns to WorkerReady from
// WorkerComputing.
type WorkerState int

const (
	// WorkerSpawned is the state of a worker whose loop has not yet
	// started.
	WorkerSpawned WorkerState = iota
	// WorkerInitializing indicates that the worker is running its
	// kernel's Setup.
	WorkerInitializing
	// WorkerReady is the state of a duplex worker that is waiting for
	// its next request.
	WorkerReady
	// WorkerComputing indicates that the kernel is processing a request.
	WorkerComputing
	// WorkerTerminated is the final state of every worker.
	WorkerTerminated
)

var workerStates = [...]string{
	WorkerSpawned:      "SPAWNED",
	WorkerInitializing: "INITIALIZING",
	WorkerReady:        "READY",
	WorkerComputing:    "COMPUTING",
	WorkerTerminated:   "TERMINATED",
}

// String returns the worker's state as an upper-case string.
func (s WorkerState) String() string {
	if s < 0 || int(s) >= len(workerStates) {
		return fmt.Sprintf("WorkerState(%d)", int(s))
	}
	return workerStates[s]
}

// A worker runs a single kernel against one end of a channel. The
// same loop serves the local system's goroutine workers and the
// worker processes started by bigmachine.
type worker struct {
	index  int
	kernel kernelpool.Kernel
	ch     kernelpool.Channel
	duplex bool
	stats  *stats.Map

	// report, if not nil, is called on every state transition.
	report func(WorkerState)

	mu    sync.Mutex
	state WorkerState
	// setupc is closed once Setup has returned; setupErr holds its
	// error.
	setupc   chan struct{}
	setupErr error
}

func newWorker(index int, kernel kernelpool.Kernel, ch kernelpool.Channel, duplex bool, stats *stats.Map) *worker {
	return &worker{
		index:  index,
		kernel: kernel,
		ch:     ch,
		duplex: duplex,
		stats:  stats,
		setupc: make(chan struct{}),
	}
}

// State returns the worker's current state.
func (w *worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *worker) set(state WorkerState) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
	if w.report != nil {
		w.report(state)
	}
}

// Ready blocks until the worker's kernel has been set up, returning
// the error from Setup.
func (w *worker) Ready(ctx context.Context) error {
	select {
	case <-w.setupc:
		return w.setupErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run runs the worker loop until the worker terminates. The worker's
// end of the channel is closed when Run returns. Run returns nil
// when a duplex worker is asked to shut down or a simplex worker has
// sent its result. A failed Setup, or a failed Process in a simplex
// worker, is reported to the caller as an Error message and returned.
// Channel errors, including ErrClosed, also terminate the worker.
func (w *worker) Run(ctx context.Context) (err error) {
	defer w.set(WorkerTerminated)
	defer w.ch.Close()

	w.set(WorkerInitializing)
	w.setupErr = w.setup()
	close(w.setupc)
	w.stats.Int("setup").Add(1)
	if w.setupErr != nil {
		w.stats.Int("errors").Add(1)
		log.Error.Printf("worker %d: setup: %v", w.index, w.setupErr)
		if err := w.ch.Send(ctx, kernelpool.ErrorMessage(w.setupErr)); err != nil {
			log.Error.Printf("worker %d: report setup error: %v", w.index, err)
		}
		return w.setupErr
	}

	if !w.duplex {
		kerr, err := w.compute(ctx, nil)
		if err != nil {
			return err
		}
		return kerr
	}
	for {
		w.set(WorkerReady)
		m, err := w.ch.Receive(ctx)
		if err != nil {
			if err == kernelpool.ErrClosed {
				log.Debug.Printf("worker %d: channel closed; exiting", w.index)
			}
			return err
		}
		switch m.Kind {
		case kernelpool.Shutdown:
			log.Debug.Printf("worker %d: shutting down", w.index)
			return nil
		case kernelpool.Payload:
			if _, err := w.compute(ctx, m.Value); err != nil {
				return err
			}
		default:
			log.Error.Printf("worker %d: ignoring unexpected message %s", w.index, m)
		}
	}
}

// Compute runs the kernel on a single request and sends its result,
// or an Error message if the kernel failed. Compute returns the
// kernel's error separately from errors sending the reply.
func (w *worker) compute(ctx context.Context, request interface{}) (kerr, err error) {
	w.set(WorkerComputing)
	w.stats.Int("requests").Add(1)
	result, kerr := w.process(ctx, request)
	reply := kernelpool.PayloadMessage(result)
	if kerr != nil {
		w.stats.Int("errors").Add(1)
		log.Error.Printf("worker %d: process: %v", w.index, kerr)
		reply = kernelpool.ErrorMessage(kerr)
	}
	return kerr, w.ch.Send(ctx, reply)
}

func (w *worker) setup() (err error) {
	defer recoverKernel("setup", &err)
	return w.kernel.Setup()
}

func (w *worker) process(ctx context.Context, request interface{}) (result interface{}, err error) {
	defer recoverKernel("process", &err)
	return w.kernel.Process(ctx, request)
}

// recoverKernel converts a kernel panic into a fatal error.
func recoverKernel(op string, err *error) {
	if e := recover(); e != nil {
		stack := debug.Stack()
		*err = errors.E(errors.Fatal, fmt.Errorf("panic in kernel %s: %v\n%s", op, e, string(stack)))
	}
}
