// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"encoding/gob"
	"fmt"
	"net/http"
	"sync"

	"github.com/grailbio/base/backgroundcontext"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigmachine"
	"github.com/pwakit/kernelpool"
	"github.com/pwakit/kernelpool/stats"
)

func init() {
	gob.Register(&workerService{})
}

// machineSystem runs each worker in its own bigmachine machine: a
// separate process running the same binary. The caller's channel
// relays messages to the machine's worker service, which runs the
// kernel loop against an in-process pipe.
type machineSystem struct {
	system bigmachine.System
	params []bigmachine.Param

	b *bigmachine.B
}

func newMachineSystem(system bigmachine.System, params ...bigmachine.Param) *machineSystem {
	return &machineSystem{system: system, params: params}
}

func (s *machineSystem) Name() string { return "bigmachine:" + s.system.Name() }

func (s *machineSystem) Start(*Session) (shutdown func()) {
	s.b = bigmachine.Start(s.system)
	return s.b.Shutdown
}

func (s *machineSystem) New(index int, kernel kernelpool.Kernel, duplex bool) (*Proc, kernelpool.Channel) {
	ch := newMachineChannel(index, duplex)
	impl := &machineProc{
		system: s,
		ch:     ch,
		svc:    &workerService{Index: index, Kernel: kernel, Duplex: duplex},
	}
	return newProc(index, impl), ch
}

func (s *machineSystem) HandleDebug(handler *http.ServeMux) {
	s.b.HandleDebug(handler)
}

type machineProc struct {
	system *machineSystem
	ch     *machineChannel
	svc    *workerService

	mu sync.Mutex
	m  *bigmachine.Machine
}

func (p *machineProc) start(ctx context.Context, exit func(error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := append([]bigmachine.Param{bigmachine.Services{"Worker": p.svc}}, p.system.params...)
	// Machines outlive the call that started them.
	machines, err := p.system.b.Start(backgroundcontext.Get(), 1, params...)
	if err != nil {
		return errors.E(errors.Unavailable, fmt.Sprintf("worker %d: start machine", p.svc.Index), err)
	}
	m := machines[0]
	p.mu.Lock()
	p.m = m
	p.mu.Unlock()
	p.ch.attach(m)
	go func() {
		<-m.Wait(bigmachine.Stopped)
		exit(m.Err())
	}()
	return nil
}

func (p *machineProc) kill() {
	p.ch.Close()
	p.mu.Lock()
	m := p.m
	p.mu.Unlock()
	if m != nil {
		m.Cancel()
	}
}

func (p *machineProc) stats(ctx context.Context) (stats.Values, error) {
	p.mu.Lock()
	m := p.m
	p.mu.Unlock()
	if m == nil {
		return nil, errors.E(errors.Unavailable, fmt.Sprintf("worker %d: not started", p.svc.Index))
	}
	select {
	case <-m.Wait(bigmachine.Stopped):
		return nil, errors.E(errors.Unavailable, fmt.Sprintf("worker %d: machine %s stopped", p.svc.Index, m.Addr))
	default:
	}
	var vals stats.Values
	if err := m.RetryCall(ctx, "Worker.Stats", struct{}{}, &vals); err != nil {
		return nil, err
	}
	return vals, nil
}

// A machineChannel is the caller's end of the channel to a worker
// running on a bigmachine machine. Messages sent on the channel are
// relayed, in order, as calls to the worker service by a single pump
// goroutine; replies are queued for Receive.
type machineChannel struct {
	index int
	dir   kernelpool.Direction

	attachc chan *bigmachine.Machine
	outbox  chan kernelpool.Message
	inbox   chan kernelpool.Message

	// closed is closed when the channel is closed locally; done when
	// the pump has exited.
	closed, done chan struct{}
	once         sync.Once
}

func newMachineChannel(index int, duplex bool) *machineChannel {
	c := &machineChannel{
		index:   index,
		dir:     kernelpool.ReceiveOnly,
		attachc: make(chan *bigmachine.Machine, 1),
		outbox:  make(chan kernelpool.Message, pipeBuffer),
		inbox:   make(chan kernelpool.Message, pipeBuffer),
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	if duplex {
		c.dir = kernelpool.Bidirectional
	}
	go c.pump()
	return c
}

// attach connects the channel to the machine running its worker.
func (c *machineChannel) attach(m *bigmachine.Machine) {
	c.attachc <- m
}

func (c *machineChannel) pump() {
	defer close(c.done)
	var m *bigmachine.Machine
	select {
	case m = <-c.attachc:
	case <-c.closed:
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	select {
	case <-m.Wait(bigmachine.Running):
	case <-ctx.Done():
		return
	}
	if err := m.Err(); err != nil {
		c.deliver(ctx, kernelpool.ErrorMessage(errors.E(errors.Unavailable, fmt.Sprintf("worker %d: machine failed to start", c.index), err)))
		return
	}
	log.Debug.Printf("worker %d: machine %s is running", c.index, m.Addr)
	// Setup failures end the worker: report the failure and release
	// the machine.
	if err := m.RetryCall(ctx, "Worker.Ready", struct{}{}, nil); err != nil {
		c.deliver(ctx, kernelpool.ErrorMessage(err))
		m.Cancel()
		return
	}
	if c.dir == kernelpool.ReceiveOnly {
		var reply workerReply
		if err := m.Call(ctx, "Worker.Result", struct{}{}, &reply); err != nil {
			c.deliver(ctx, kernelpool.ErrorMessage(err))
		} else {
			c.deliver(ctx, kernelpool.PayloadMessage(reply.Value))
		}
		m.Cancel()
		return
	}
	stopped := m.Wait(bigmachine.Stopped)
	for {
		var msg kernelpool.Message
		select {
		case msg = <-c.outbox:
		case <-stopped:
			log.Error.Printf("worker %d: machine %s stopped: %v", c.index, m.Addr, m.Err())
			return
		case <-ctx.Done():
			return
		}
		switch msg.Kind {
		case kernelpool.Shutdown:
			if err := m.Call(ctx, "Worker.Shutdown", struct{}{}, nil); err != nil {
				log.Error.Printf("worker %d: shutdown: %v", c.index, err)
			}
			m.Cancel()
			return
		case kernelpool.Payload:
			var reply workerReply
			if err := m.Call(ctx, "Worker.Process", workerRequest{Value: msg.Value}, &reply); err != nil {
				c.deliver(ctx, kernelpool.ErrorMessage(err))
				continue
			}
			c.deliver(ctx, kernelpool.PayloadMessage(reply.Value))
		default:
			log.Error.Printf("worker %d: dropping unexpected message %s", c.index, msg)
		}
	}
}

func (c *machineChannel) deliver(ctx context.Context, m kernelpool.Message) {
	select {
	case c.inbox <- m:
	case <-ctx.Done():
	}
}

func (c *machineChannel) Direction() kernelpool.Direction { return c.dir }

func (c *machineChannel) Send(ctx context.Context, m kernelpool.Message) error {
	if !c.dir.CanSend() {
		return &kernelpool.DirectionError{Op: "send", Direction: c.dir}
	}
	select {
	case <-c.closed:
		return kernelpool.ErrClosed
	case <-c.done:
		return kernelpool.ErrClosed
	default:
	}
	select {
	case c.outbox <- m:
		return nil
	case <-c.closed:
		return kernelpool.ErrClosed
	case <-c.done:
		return kernelpool.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *machineChannel) Receive(ctx context.Context) (kernelpool.Message, error) {
	if !c.dir.CanReceive() {
		return kernelpool.Message{}, &kernelpool.DirectionError{Op: "receive", Direction: c.dir}
	}
	select {
	case <-c.closed:
		return kernelpool.Message{}, kernelpool.ErrClosed
	default:
	}
	select {
	case m := <-c.inbox:
		return m, nil
	case <-c.closed:
		return kernelpool.Message{}, kernelpool.ErrClosed
	case <-c.done:
		select {
		case m := <-c.inbox:
			return m, nil
		default:
			return kernelpool.Message{}, kernelpool.ErrClosed
		}
	case <-ctx.Done():
		return kernelpool.Message{}, ctx.Err()
	}
}

func (c *machineChannel) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type workerRequest struct {
	Value interface{}
}

type workerReply struct {
	Value interface{}
}

// workerService is the bigmachine service that runs a single kernel
// on a worker machine. The service and its kernel are gob encoded when
// the machine is started.
type workerService struct {
	Index  int
	Kernel kernelpool.Kernel
	Duplex bool

	stats  *stats.Map
	w      *worker
	parent kernelpool.Channel
	done   chan struct{}
	// mu serializes request/reply exchanges on parent.
	mu sync.Mutex
}

func (s *workerService) Init(b *bigmachine.B) error {
	if s.Kernel == nil {
		return errors.E(errors.Invalid, fmt.Sprintf("worker %d: no kernel", s.Index))
	}
	var child kernelpool.Channel
	s.parent, child = newPipe(s.Duplex)
	s.stats = stats.NewMap()
	s.w = newWorker(s.Index, s.Kernel, child, s.Duplex, s.stats)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.w.Run(context.Background()); err != nil {
			log.Error.Printf("worker %d: %v", s.Index, err)
		}
	}()
	return nil
}

// Ready returns after the worker's kernel has been set up, with the
// error returned by Setup.
func (s *workerService) Ready(ctx context.Context, _ struct{}, _ *struct{}) error {
	return s.w.Ready(ctx)
}

// Process relays a single request to the kernel loop and returns its
// reply. Kernel failures are returned as errors.
func (s *workerService) Process(ctx context.Context, req workerRequest, reply *workerReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.parent.Send(ctx, kernelpool.PayloadMessage(req.Value)); err != nil {
		return err
	}
	return s.receive(ctx, reply)
}

// Result returns the single result computed by a simplex worker.
func (s *workerService) Result(ctx context.Context, _ struct{}, reply *workerReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receive(ctx, reply)
}

func (s *workerService) receive(ctx context.Context, reply *workerReply) error {
	m, err := s.parent.Receive(ctx)
	if err != nil {
		return err
	}
	if m.IsError() {
		return m.Err
	}
	reply.Value = m.Value
	return nil
}

// Shutdown asks the kernel loop to exit and waits for it to do so.
func (s *workerService) Shutdown(ctx context.Context, _ struct{}, _ *struct{}) error {
	if err := s.parent.Send(ctx, kernelpool.ShutdownMessage); err != nil && err != kernelpool.ErrClosed {
		return err
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the worker's counters.
func (s *workerService) Stats(ctx context.Context, _ struct{}, vals *stats.Values) error {
	*vals = s.stats.Snapshot()
	return nil
}
