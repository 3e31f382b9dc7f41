// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"sync"

	"github.com/pwakit/kernelpool"
)

// pipeBuffer is the number of messages that may be in flight in each
// direction of a pipe before senders block.
const pipeBuffer = 16

// A pipeEnd is one endpoint of an in-memory channel pair. Pipes
// connect the caller to workers run by the local system, and the
// worker service of a bigmachine worker to its kernel loop.
type pipeEnd struct {
	dir kernelpool.Direction
	in  <-chan kernelpool.Message
	out chan<- kernelpool.Message

	// closed is closed when this end is closed; peer when the other
	// end is.
	closed, peer chan struct{}
	once         *sync.Once
}

// newPipe returns the two ends of a new pipe. Duplex pipes are
// bidirectional at both ends; simplex pipes may only carry messages
// from the child to the parent.
func newPipe(duplex bool) (parent, child *pipeEnd) {
	var (
		up           = make(chan kernelpool.Message, pipeBuffer)
		down         chan kernelpool.Message
		parentClosed = make(chan struct{})
		childClosed  = make(chan struct{})
	)
	parent = &pipeEnd{
		dir:    kernelpool.ReceiveOnly,
		in:     up,
		closed: parentClosed,
		peer:   childClosed,
		once:   new(sync.Once),
	}
	child = &pipeEnd{
		dir:    kernelpool.SendOnly,
		out:    up,
		closed: childClosed,
		peer:   parentClosed,
		once:   new(sync.Once),
	}
	if duplex {
		down = make(chan kernelpool.Message, pipeBuffer)
		parent.dir, parent.out = kernelpool.Bidirectional, down
		child.dir, child.in = kernelpool.Bidirectional, down
	}
	return
}

func (p *pipeEnd) Direction() kernelpool.Direction { return p.dir }

func (p *pipeEnd) Send(ctx context.Context, m kernelpool.Message) error {
	if !p.dir.CanSend() {
		return &kernelpool.DirectionError{Op: "send", Direction: p.dir}
	}
	select {
	case <-p.closed:
		return kernelpool.ErrClosed
	case <-p.peer:
		return kernelpool.ErrClosed
	default:
	}
	select {
	case p.out <- m:
		return nil
	case <-p.closed:
		return kernelpool.ErrClosed
	case <-p.peer:
		return kernelpool.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive(ctx context.Context) (kernelpool.Message, error) {
	if !p.dir.CanReceive() {
		return kernelpool.Message{}, &kernelpool.DirectionError{Op: "receive", Direction: p.dir}
	}
	select {
	case <-p.closed:
		return kernelpool.Message{}, kernelpool.ErrClosed
	default:
	}
	select {
	case m := <-p.in:
		return m, nil
	case <-p.closed:
		return kernelpool.Message{}, kernelpool.ErrClosed
	case <-p.peer:
		// The peer may have sent its last messages just before closing.
		select {
		case m := <-p.in:
			return m, nil
		default:
			return kernelpool.Message{}, kernelpool.ErrClosed
		}
	case <-ctx.Done():
		return kernelpool.Message{}, ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
