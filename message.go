// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package kernelpool

import "fmt"

// Kind tags the contents of a Message.
type Kind int

const (
	// Payload messages carry application values: requests from the
	// caller to duplex workers, and results from workers to the caller.
	Payload Kind = iota
	// Shutdown asks a duplex worker to exit. It is only ever sent from
	// the caller to a worker.
	Shutdown
	// Error replaces a result when the worker's kernel failed. A worker
	// whose Setup failed sends a single Error and exits.
	Error
)

var kinds = [...]string{
	Payload:  "PAYLOAD",
	Shutdown: "SHUTDOWN",
	Error:    "ERROR",
}

// String returns the kind as an upper-case string.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kinds) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kinds[k]
}

// A Message is the unit exchanged on a Channel. Control messages are
// distinguished from payloads by their Kind, not by their value.
type Message struct {
	Kind Kind
	// Value is the payload of a Payload message.
	Value interface{}
	// Err is the failure reported by an Error message.
	Err error
}

// PayloadMessage returns a Payload message carrying v.
func PayloadMessage(v interface{}) Message {
	return Message{Kind: Payload, Value: v}
}

// ShutdownMessage is the message that asks duplex workers to exit.
var ShutdownMessage = Message{Kind: Shutdown}

// ErrorMessage returns an Error message reporting err.
func ErrorMessage(err error) Message {
	return Message{Kind: Error, Err: err}
}

// IsError tells whether m is an Error message.
func (m Message) IsError() bool { return m.Kind == Error }

// String returns a descriptive string of the message.
func (m Message) String() string {
	switch m.Kind {
	case Payload:
		return fmt.Sprintf("%s(%v)", m.Kind, m.Value)
	case Error:
		return fmt.Sprintf("%s(%v)", m.Kind, m.Err)
	default:
		return m.Kind.String()
	}
}
