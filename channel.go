// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package kernelpool

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
)

// ErrClosed is returned by channel operations once the channel has
// been closed, either locally or because the worker on its other end
// has exited. Messages already in flight are still delivered before
// ErrClosed is returned.
var ErrClosed = errors.E(errors.Unavailable, "kernelpool: channel closed")

// Direction describes which operations a channel endpoint supports.
type Direction int

const (
	// Bidirectional endpoints may both send and receive. Duplex pools
	// use bidirectional channels.
	Bidirectional Direction = iota
	// SendOnly endpoints may only send. The worker end of a simplex
	// channel is send-only.
	SendOnly
	// ReceiveOnly endpoints may only receive. The caller's end of a
	// simplex channel is receive-only.
	ReceiveOnly
)

// CanSend tells whether endpoints with direction d may send.
func (d Direction) CanSend() bool { return d != ReceiveOnly }

// CanReceive tells whether endpoints with direction d may receive.
func (d Direction) CanReceive() bool { return d != SendOnly }

// String returns a descriptive name of the direction.
func (d Direction) String() string {
	switch d {
	case Bidirectional:
		return "bidirectional"
	case SendOnly:
		return "send-only"
	case ReceiveOnly:
		return "receive-only"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// A DirectionError is returned when a channel endpoint is used in a
// direction it does not support, e.g., sending a request to a simplex
// worker.
type DirectionError struct {
	Op        string
	Direction Direction
}

func (e *DirectionError) Error() string {
	return fmt.Sprintf("kernelpool: %s on %s channel", e.Op, e.Direction)
}

// A Channel is one endpoint of the blocking, message-oriented
// connection between the caller and a single worker. Each endpoint
// has exactly one owner; Channels are not safe for concurrent use
// by multiple senders or multiple receivers.
type Channel interface {
	// Direction returns the operations supported by this endpoint.
	Direction() Direction
	// Send sends a message to the other end. Send returns a
	// *DirectionError if the endpoint cannot send, and ErrClosed if the
	// channel is closed.
	Send(ctx context.Context, m Message) error
	// Receive blocks until a message is available from the other end.
	// Receive returns a *DirectionError if the endpoint cannot receive,
	// and ErrClosed once the channel is closed and drained.
	Receive(ctx context.Context) (Message, error)
	// Close closes the endpoint. Subsequent operations on either end
	// return ErrClosed, after pending messages are drained.
	Close() error
}
