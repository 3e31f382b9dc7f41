// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/status"
	"github.com/grailbio/base/sync/ctxsync"
	"github.com/pwakit/kernelpool/stats"
)

// ErrKilled is the error recorded for workers that were terminated
// by a forced stop.
var ErrKilled = errors.E(errors.Canceled, "exec: worker killed")

// ProcState represents the lifecycle state of a worker process, as
// seen by the caller. ProcState values are defined so that their
// magnitudes correspond with process progression.
type ProcState int

const (
	// ProcCreated is the state of a process that has been built but
	// not yet started.
	ProcCreated ProcState = iota
	// ProcRunning is the state of a process that has been started and
	// has not exited.
	ProcRunning
	// ProcTerminated is the final state of every process.
	ProcTerminated
)

var procStates = [...]string{
	ProcCreated:    "CREATED",
	ProcRunning:    "RUNNING",
	ProcTerminated: "TERMINATED",
}

// String returns the process state as an upper-case string.
func (s ProcState) String() string {
	if s < 0 || int(s) >= len(procStates) {
		return fmt.Sprintf("ProcState(%d)", int(s))
	}
	return procStates[s]
}

// procImpl is implemented by each system's process type.
type procImpl interface {
	// start starts the process. Exit must be called exactly once,
	// when the process has terminated, with the reason it terminated.
	start(ctx context.Context, exit func(error)) error
	// kill terminates the process without waiting for it to exit.
	kill()
	// stats returns the process's counters.
	stats(ctx context.Context) (stats.Values, error)
}

// A Proc is the caller's handle to a single worker. Procs are
// created by Build; they are started by the Foreman and stopped
// through the ProcessInterface.
type Proc struct {
	// Index is the index of the partition owned by the worker.
	Index int
	// Status is the status task to which the process reports its
	// lifecycle, if any.
	Status *status.Task

	impl procImpl

	mu    sync.Mutex
	cond  *ctxsync.Cond
	state ProcState
	err   error
}

func newProc(index int, impl procImpl) *Proc {
	p := &Proc{Index: index, impl: impl}
	p.cond = ctxsync.NewCond(&p.mu)
	return p
}

// String returns a short, human-readable string describing the
// process's state.
func (p *Proc) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b bytes.Buffer
	fmt.Fprintf(&b, "worker %d %s", p.Index, p.state)
	if p.err != nil {
		fmt.Fprintf(&b, ": %v", p.err)
	}
	return b.String()
}

// State returns the process's current state.
func (p *Proc) State() ProcState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Alive tells whether the process has been started and has not yet
// terminated.
func (p *Proc) Alive() bool {
	return p.State() == ProcRunning
}

// Err returns the reason a terminated process exited, or nil if it
// exited cleanly or is still running.
func (p *Proc) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Wait blocks until the process has terminated or the context is
// done. Wait does not return the process's exit error; see Err.
func (p *Proc) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.state < ProcTerminated {
		if err := p.cond.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns the counters maintained by the worker.
func (p *Proc) Stats(ctx context.Context) (stats.Values, error) {
	return p.impl.stats(ctx)
}

func (p *Proc) start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != ProcCreated {
		p.mu.Unlock()
		return errors.E(errors.Precondition, fmt.Sprintf("exec: worker %d already started", p.Index))
	}
	p.state = ProcRunning
	p.cond.Broadcast()
	p.mu.Unlock()
	p.print("running")
	if err := p.impl.start(ctx, p.exit); err != nil {
		p.exit(err)
		return err
	}
	return nil
}

// Exit marks the process terminated. Only the first call has an
// effect.
func (p *Proc) exit(err error) {
	p.mu.Lock()
	if p.state == ProcTerminated {
		p.mu.Unlock()
		return
	}
	p.state = ProcTerminated
	p.err = err
	p.cond.Broadcast()
	p.mu.Unlock()
	if p.Status != nil {
		if err != nil {
			p.Status.Printf("terminated: %v", err)
		} else {
			p.Status.Print("terminated")
		}
		p.Status.Done()
	}
}

// Kill terminates the process immediately. Work in flight is lost.
func (p *Proc) kill() {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	p.exit(ErrKilled)
	if state == ProcRunning {
		p.impl.kill()
	}
}

func (p *Proc) print(v ...interface{}) {
	if p.Status != nil {
		p.Status.Print(v...)
	}
}
