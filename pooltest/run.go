// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package pooltest provides utilities for testing kernelpool user
// code. The utilities here are generally not optimized for
// performance or robustness; they are strictly intended for unit
// testing.
package pooltest

import (
	"context"
	"testing"

	"github.com/pwakit/kernelpool"
	"github.com/pwakit/kernelpool/exec"
)

// Start configures a pool of n workers over the provided columns in
// local execution mode. The returned function force-stops the pool
// and shuts down its session. Errors are reported as fatal to the
// provided t instance.
func Start(t *testing.T, n int, data map[string]interface{}, template kernelpool.Kernel, agg kernelpool.Aggregator) (*exec.ProcessInterface, func()) {
	t.Helper()
	sess := exec.Start(exec.Local)
	foreman := exec.NewForeman(sess, n)
	if err := foreman.Configure(context.Background(), data, template, agg); err != nil {
		sess.Shutdown()
		t.Fatal(err)
	}
	pool := foreman.FetchInterface()
	return pool, func() {
		if err := pool.Stop(context.Background(), true); err != nil {
			t.Error(err)
		}
		sess.Shutdown()
	}
}

// Run configures a pool of n workers in local execution mode, calls it
// once with the provided arguments, and returns the result. Errors are
// reported as fatal to the provided t instance. Run is intended for
// unit testing of Kernel implementations.
func Run(t *testing.T, n int, data map[string]interface{}, template kernelpool.Kernel, agg kernelpool.Aggregator, args ...interface{}) interface{} {
	t.Helper()
	pool, stop := Start(t, n, data, template, agg)
	defer stop()
	v, err := pool.Run(context.Background(), args...)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// Replies is like Run, but returns the replies of all workers,
// indexed by partition, rather than an aggregate.
func Replies(t *testing.T, n int, data map[string]interface{}, template kernelpool.Kernel, duplex bool, args ...interface{}) []kernelpool.Message {
	t.Helper()
	return Run(t, n, data, template, kernelpool.Collect{IsDuplex: duplex}, args...).([]kernelpool.Message)
}
