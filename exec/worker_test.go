// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/pwakit/kernelpool"
	"github.com/pwakit/kernelpool/stats"
)

func startWorker(t *testing.T, k kernelpool.Kernel, duplex bool) (*worker, kernelpool.Channel, <-chan error) {
	t.Helper()
	parent, child := newPipe(duplex)
	w := newWorker(0, k, child, duplex, stats.NewMap())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(context.Background()) }()
	return w, parent, errc
}

func TestWorkerDuplex(t *testing.T) {
	ctx := context.Background()
	k := &sumKernel{X: []int{1, 2, 3}}
	w, ch, errc := startWorker(t, k, true)
	if err := w.Ready(ctx); err != nil {
		t.Fatal(err)
	}
	for n := 1; n <= 3; n++ {
		if err := ch.Send(ctx, kernelpool.PayloadMessage(n)); err != nil {
			t.Fatal(err)
		}
		m, err := ch.Receive(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := m.Value, 6*n; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	if err := ch.Send(ctx, kernelpool.ShutdownMessage); err != nil {
		t.Fatal(err)
	}
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if got, want := w.State(), WorkerTerminated; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := k.Setups, 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	vals := w.stats.Snapshot()
	if got, want := vals["requests"], int64(3); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := vals["errors"], int64(0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	// The worker's end is closed on exit.
	if _, err := ch.Receive(ctx); err != kernelpool.ErrClosed {
		t.Errorf("got %v, want %v", err, kernelpool.ErrClosed)
	}
}

func TestWorkerSimplex(t *testing.T) {
	ctx := context.Background()
	_, ch, errc := startWorker(t, &sumKernel{X: []int{4, 5}}, false)
	m, err := ch.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := m.Value, 9; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if _, err := ch.Receive(ctx); err != kernelpool.ErrClosed {
		t.Errorf("got %v, want %v", err, kernelpool.ErrClosed)
	}
}

func TestWorkerProcessError(t *testing.T) {
	ctx := context.Background()
	w, ch, errc := startWorker(t, &failKernel{}, true)
	if err := ch.Send(ctx, kernelpool.PayloadMessage(1)); err != nil {
		t.Fatal(err)
	}
	m, err := ch.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsError() {
		t.Fatalf("expected error message, got %v", m)
	}
	if got, want := m.Err, errKernel; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	// The worker survives kernel failures.
	if got, want := w.State(), WorkerReady; got != want && got != WorkerComputing {
		t.Errorf("got %v, want %v", got, want)
	}
	ch.Close()
	if err := <-errc; err != kernelpool.ErrClosed {
		t.Errorf("got %v, want %v", err, kernelpool.ErrClosed)
	}
	if got, want := w.stats.Snapshot()["errors"], int64(1); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWorkerSetupError(t *testing.T) {
	ctx := context.Background()
	for _, duplex := range []bool{true, false} {
		w, ch, errc := startWorker(t, &failKernel{InSetup: true}, duplex)
		if got, want := w.Ready(ctx), errKernel; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		m, err := ch.Receive(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !m.IsError() {
			t.Errorf("expected error message, got %v", m)
		}
		if got, want := <-errc, errKernel; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		if _, err := ch.Receive(ctx); err != kernelpool.ErrClosed {
			t.Errorf("got %v, want %v", err, kernelpool.ErrClosed)
		}
	}
}

func TestWorkerPanic(t *testing.T) {
	ctx := context.Background()
	_, ch, _ := startWorker(t, &failKernel{Panic: true}, true)
	defer ch.Close()
	if err := ch.Send(ctx, kernelpool.PayloadMessage(1)); err != nil {
		t.Fatal(err)
	}
	m, err := ch.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsError() {
		t.Fatalf("expected error message, got %v", m)
	}
	if !errors.Match(errors.E(errors.Fatal), m.Err) {
		t.Errorf("expected fatal error, got %v", m.Err)
	}
	if !strings.Contains(m.Err.Error(), "process panic") {
		t.Errorf("error %v does not mention the panic", m.Err)
	}
}

func TestWorkerStateString(t *testing.T) {
	if got, want := WorkerComputing.String(), "COMPUTING"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := WorkerState(99).String(), "WorkerState(99)"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
