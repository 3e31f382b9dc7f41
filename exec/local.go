// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"net/http"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/pwakit/kernelpool"
	"github.com/pwakit/kernelpool/stats"
)

// A System starts workers. Each worker runs a single kernel and is
// connected to the caller by a single channel.
type System interface {
	// Name returns a short name for the system, for logs and events.
	Name() string

	// Start is called when the session is started. It returns a
	// function that tears down the system's resources.
	Start(sess *Session) (shutdown func())

	// New creates, but does not start, the worker for partition index.
	// It returns the worker's process handle together with the
	// caller's end of its channel.
	New(index int, kernel kernelpool.Kernel, duplex bool) (*Proc, kernelpool.Channel)

	// HandleDebug adds the system's debug handlers to the provided
	// ServeMux.
	HandleDebug(handler *http.ServeMux)
}

// localSystem runs workers in-process in separate goroutines,
// connected to the caller by in-memory pipes.
type localSystem struct{}

func newLocalSystem() *localSystem {
	return &localSystem{}
}

func (*localSystem) Name() string { return "local" }

func (*localSystem) Start(*Session) (shutdown func()) {
	return func() {}
}

func (*localSystem) New(index int, kernel kernelpool.Kernel, duplex bool) (*Proc, kernelpool.Channel) {
	parent, child := newPipe(duplex)
	impl := &localProc{
		w:     newWorker(index, kernel, child, duplex, stats.NewMap()),
		child: child,
	}
	proc := newProc(index, impl)
	impl.w.report = func(state WorkerState) { proc.print(state) }
	return proc, parent
}

func (*localSystem) HandleDebug(*http.ServeMux) {}

type localProc struct {
	w     *worker
	child kernelpool.Channel

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (p *localProc) start(_ context.Context, exit func(error)) error {
	// Workers outlive the call that started them.
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	go func() {
		err := p.w.Run(ctx)
		if err != nil && err != kernelpool.ErrClosed {
			log.Debug.Printf("worker %d: exited: %v", p.w.index, err)
		}
		exit(err)
	}()
	return nil
}

// Kill abandons the worker's goroutine: its channel is closed and its
// context canceled, but a kernel that ignores its context may keep
// running until Process returns.
func (p *localProc) kill() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.child.Close()
}

func (p *localProc) stats(context.Context) (stats.Values, error) {
	return p.w.stats.Snapshot(), nil
}
