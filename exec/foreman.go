// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/pwakit/kernelpool"
	"github.com/pwakit/kernelpool/table"
	"golang.org/x/sync/errgroup"
)

// A ReconfigurationError is returned when a Foreman that already
// runs a pool is configured again.
type ReconfigurationError struct {
	Version int64
}

func (e *ReconfigurationError) Error() string {
	return fmt.Sprintf("kernelpool: foreman already configured (pool version %d)", e.Version)
}

// A Foreman partitions an event table, clones a kernel template for
// each partition, and starts one worker per clone. A Foreman runs at
// most one pool.
type Foreman struct {
	sess *Session
	n    int

	mu    sync.Mutex
	iface *ProcessInterface
}

// NewForeman returns a foreman that starts n workers on the session's
// system. If n <= 0, the session's parallelism is used.
func NewForeman(sess *Session, n int) *Foreman {
	if n <= 0 {
		n = sess.Parallelism()
	}
	return &Foreman{sess: sess, n: n}
}

// Configure validates and partitions the provided named columns, and
// starts the pool. Columns must be slices of equal length. Each
// worker receives a clone of template made by its CloneWith method.
// The aggregator determines whether the workers are duplex or
// simplex, and how replies are combined for each call.
//
// Configure may succeed only once per Foreman; subsequent calls return
// a *ReconfigurationError. If Configure fails, any workers it started
// are terminated and the Foreman may be configured again.
func (f *Foreman) Configure(ctx context.Context, data map[string]interface{}, template kernelpool.Kernel, agg kernelpool.Aggregator) error {
	t, err := table.New(data)
	if err != nil {
		return err
	}
	return f.ConfigureTable(ctx, t, template, agg)
}

// ConfigureTable is like Configure, but takes an already validated
// table.
func (f *Foreman) ConfigureTable(ctx context.Context, t *table.Table, template kernelpool.Kernel, agg kernelpool.Aggregator) error {
	if agg == nil {
		return errors.E(errors.Invalid, "exec.Foreman: nil aggregator")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.iface != nil {
		return &ReconfigurationError{Version: f.iface.info.Version}
	}
	parts, err := table.Split(t, f.n)
	if err != nil {
		return err
	}
	kernels, err := Clone(template, parts)
	if err != nil {
		return err
	}
	duplex := agg.Duplex()
	procs, channels := Build(f.sess.system, kernels, duplex)
	if status := f.sess.status; status != nil {
		group := status.Groupf("kernelpool %T", template)
		for _, proc := range procs {
			proc.Status = group.Start()
			proc.Status.Title(fmt.Sprintf("worker %d (%d rows)", proc.Index, parts[proc.Index].Len()))
			proc.Status.Print("created")
		}
	}
	var g errgroup.Group
	for _, proc := range procs {
		proc := proc
		g.Go(func() error { return proc.start(ctx) })
	}
	if err := g.Wait(); err != nil {
		for i, proc := range procs {
			proc.kill()
			channels[i].Close()
		}
		return errors.E("exec.Foreman: start workers", err)
	}

	info := Info{
		Processes: len(procs),
		Duplex:    duplex,
		Rows:      t.Len(),
	}
	if info.Checksum, err = t.Checksum(); err != nil {
		log.Error.Printf("exec.Foreman: checksum: %v", err)
	}
	info.Version = f.sess.counter.Add(len(procs))
	f.iface = newProcessInterface(agg, channels, procs, info, f.sess.counter)
	f.sess.eventer.Event("kernelpool:configure",
		"systemType", f.sess.system.Name(),
		"processes", info.Processes,
		"duplex", info.Duplex,
		"rows", info.Rows,
		"version", info.Version)
	kind := "simplex"
	if duplex {
		kind = "duplex"
	}
	log.Printf("kernelpool: started %d %s workers over %d rows (version %d, checksum %08x)",
		info.Processes, kind, info.Rows, info.Version, info.Checksum)
	return nil
}

// FetchInterface returns the running pool's interface, or nil if the
// foreman has not been configured.
func (f *Foreman) FetchInterface() *ProcessInterface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.iface
}
