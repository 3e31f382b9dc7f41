// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/pwakit/kernelpool"
	"github.com/pwakit/kernelpool/stats"
	"golang.org/x/sync/errgroup"
)

// ErrStopped is returned by ProcessInterface.Run once the pool has
// been stopped.
var ErrStopped = errors.E(errors.Precondition, "kernelpool: pool stopped")

// Info describes a configured pool.
type Info struct {
	// Version is the value of the session's counter, the number of
	// workers ever started, after the pool was configured.
	Version int64
	// Processes is the number of workers in the pool.
	Processes int
	// Duplex tells whether the pool's workers are duplex.
	Duplex bool
	// Rows is the number of rows in the event table.
	Rows int
	// Checksum is the checksum of the event table, or 0 if the table
	// could not be encoded.
	Checksum uint32
}

// ProcessInterface is the caller's handle to a running pool. It owns
// the caller's end of every worker channel, and invokes the pool's
// aggregator for each call.
type ProcessInterface struct {
	agg      kernelpool.Aggregator
	channels []kernelpool.Channel
	procs    []*Proc
	info     Info
	counter  *Counter

	// runMu serializes calls to Run.
	runMu sync.Mutex

	mu      sync.Mutex
	stopped bool
	prev    interface{}
	hasPrev bool
}

func newProcessInterface(agg kernelpool.Aggregator, channels []kernelpool.Channel, procs []*Proc, info Info, counter *Counter) *ProcessInterface {
	return &ProcessInterface{
		agg:      agg,
		channels: channels,
		procs:    procs,
		info:     info,
		counter:  counter,
	}
}

// Run invokes the pool's aggregator with the provided arguments and
// returns its result. Calls to Run are serialized. Run returns
// ErrStopped after the pool has been stopped.
//
// If the aggregator fails, for example because ctx was canceled while
// replies were outstanding, the pool is terminated as by a forced
// Stop: replies left in flight would otherwise be received by the
// next call.
func (p *ProcessInterface) Run(ctx context.Context, args ...interface{}) (interface{}, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return nil, ErrStopped
	}
	v, err := p.agg.Run(ctx, p.channels, args)
	if err != nil {
		log.Error.Printf("kernelpool: call failed, terminating %d workers: %v", len(p.procs), err)
		p.Stop(context.Background(), true)
		return nil, err
	}
	p.mu.Lock()
	p.prev, p.hasPrev = v, true
	p.mu.Unlock()
	return v, nil
}

// PreviousValue returns the result of the last successful call to
// Run. The second return value is false if there has been none.
func (p *ProcessInterface) PreviousValue() (interface{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prev, p.hasPrev
}

// Stop stops the pool's workers. A graceful stop (force is false)
// sends Shutdown to every duplex worker and waits for all of them to
// exit. A forced stop terminates workers immediately; results in
// flight are lost. Simplex workers cannot be asked to stop: a
// graceful stop of a simplex pool logs a warning and does nothing,
// leaving the workers to exit once they have sent their results.
//
// Once stopped, the pool's channels are closed and Run returns
// ErrStopped. Stopping a stopped pool is a no-op.
func (p *ProcessInterface) Stop(ctx context.Context, force bool) error {
	if !p.info.Duplex && !force {
		log.Error.Printf("kernelpool: warning: simplex workers exit on their own; use a forced stop to terminate them")
		return nil
	}
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()
	defer p.closeChannels()

	if force {
		log.Printf("kernelpool: terminating %d workers; results in flight are lost", len(p.procs))
		for _, proc := range p.procs {
			proc.kill()
		}
		return nil
	}
	for i, ch := range p.channels {
		if err := ch.Send(ctx, kernelpool.ShutdownMessage); err != nil && err != kernelpool.ErrClosed {
			log.Error.Printf("kernelpool: worker %d: shutdown: %v", i, err)
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, proc := range p.procs {
		proc := proc
		g.Go(func() error { return proc.Wait(ctx) })
	}
	return g.Wait()
}

func (p *ProcessInterface) closeChannels() {
	for _, ch := range p.channels {
		ch.Close()
	}
}

// IsAlive tells whether any of the pool's workers is still running.
func (p *ProcessInterface) IsAlive() bool {
	for _, proc := range p.procs {
		if proc.Alive() {
			return true
		}
	}
	return false
}

// Procs returns the pool's worker processes, indexed by partition.
func (p *ProcessInterface) Procs() []*Proc {
	procs := make([]*Proc, len(p.procs))
	copy(procs, p.procs)
	return procs
}

// Stats returns the sum of the counters of every worker whose
// counters can be retrieved. Workers on machines that have stopped
// are skipped.
func (p *ProcessInterface) Stats(ctx context.Context) (stats.Values, error) {
	var (
		mu    sync.Mutex
		total = make(stats.Values)
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, proc := range p.procs {
		proc := proc
		g.Go(func() error {
			vals, err := proc.Stats(ctx)
			if errors.Is(errors.Unavailable, err) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			total.Merge(vals)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return total, nil
}

// Info returns a description of the pool.
func (p *ProcessInterface) Info() Info {
	return p.info
}

// Stale tells whether another pool has been configured on the same
// counter since this one was.
func (p *ProcessInterface) Stale() bool {
	return p.counter.Value() != p.info.Version
}
