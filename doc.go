// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package kernelpool distributes per-event numerical computations
	(likelihoods, intensities, acceptance weights) across a fixed set
	of worker processes and combines their partial results.

	Users supply three things: a table of equal-length event columns,
	a Kernel template that computes over one partition of those events,
	and an Aggregator that combines the per-worker replies. The pool
	splits the table into balanced, row-aligned partitions, clones the
	kernel once per partition (Kernel.CloneWith), and starts one worker
	per partition, each connected to the caller by a Channel.

	Workers come in two flavors, selected by Aggregator.Duplex:

	Duplex workers persist across calls. Each call sends one request
	to every worker and collects one reply per worker, until the pool
	is stopped. This avoids paying the startup cost for every set of
	parameters, e.g., during a minimization.

	Simplex workers compute exactly once, immediately after they start,
	send their single reply, and exit.

	Messages on a channel are tagged (see Message): a payload can never
	be mistaken for the Shutdown or Error control codes. A worker whose
	kernel fails replies with an Error message in place of a result; the
	pool never retries or restarts workers. It is up to the Aggregator to
	decide whether an Error reply fails the whole batch. A worker that has
	exited closes its channel, so receiving past its final Error returns
	ErrClosed instead of blocking forever.

	The pool machinery itself lives in package
	github.com/pwakit/kernelpool/exec. Workers can run as goroutines in
	the calling binary (exec.Local) or as separate processes managed by
	bigmachine (exec.Bigmachine). In the latter case kernels are gob
	encoded and shipped to the worker processes: concrete kernel types
	must be registered with RegisterKernel, and only their exported state
	crosses the process boundary. As with any bigmachine program, the
	binary must call exec.Start early in main; in worker processes Start
	does not return.
*/
package kernelpool
