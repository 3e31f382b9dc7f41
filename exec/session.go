// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"

	"github.com/grailbio/base/backgroundcontext"
	"github.com/grailbio/base/diagnostic/dump"
	"github.com/grailbio/base/eventlog"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine"
	"github.com/pwakit/kernelpool/internal/defaultprocs"
)

// Session represents a kernelpool session. A session shares a binary
// and a system, and is valid for the run of the binary. A session can
// host any number of pools, each configured by its own Foreman.
//
// A session is started by the Start function. The bigmachine system
// launches additional copies of the binary to host workers; in these
// copies Start does not return. Start should therefore be called
// early in main, before any other work is done, and kernel types must
// be registered (see kernelpool.RegisterKernel) during package
// initialization:
//
//	func init() {
//		kernelpool.RegisterKernel(new(likelihood))
//	}
//
//	func main() {
//		sess := exec.Start()
//		defer sess.Shutdown()
//		foreman := exec.NewForeman(sess, 0)
//		if err := foreman.Configure(ctx, data, template, kernelpool.Sum{IsDuplex: true}); err != nil {
//			log.Fatal(err)
//		}
//		pool := foreman.FetchInterface()
//		defer pool.Stop(ctx, false)
//		total, err := pool.Run(ctx, params)
//		...
//	}
type Session struct {
	context.Context
	index    int32
	shutdown func()
	p        int
	system   System
	status   *status.Status
	eventer  eventlog.Eventer
	counter  *Counter
}

func newSession() *Session {
	return &Session{
		Context: backgroundcontext.Get(),
		index:   atomic.AddInt32(&nextSessionIndex, 1) - 1,
		eventer: eventlog.Nop{},
	}
}

// An Option represents a session configuration parameter value.
type Option func(s *Session)

// Local configures a session with the local in-binary system: workers
// run in goroutines of the calling process.
var Local Option = func(s *Session) {
	s.system = newLocalSystem()
}

// Bigmachine configures a session using the bigmachine system
// configured with the provided system. Each worker is run in its own
// machine. If any params are provided, they are applied to each
// machine allocated for a worker.
func Bigmachine(system bigmachine.System, params ...bigmachine.Param) Option {
	return func(s *Session) {
		s.system = newMachineSystem(system, params...)
	}
}

// Parallelism configures the session with the number of workers
// started for pools whose size is not given explicitly.
func Parallelism(p int) Option {
	if p <= 0 {
		panic("exec.Parallelism: p <= 0")
	}
	return func(s *Session) {
		s.p = p
	}
}

// Status configures the session with a status object to which
// worker statuses are reported.
func Status(status *status.Status) Option {
	return func(s *Session) {
		s.status = status

		name := fmt.Sprintf("kernelpool-%02d-status", s.index)
		dump.Register(name, func(ctx context.Context, w io.Writer) error {
			return status.Marshal(w)
		})
	}
}

// Eventer configures the session with an Eventer that will be used to log
// session events (for analytics).
func Eventer(e eventlog.Eventer) Option {
	return func(s *Session) {
		s.eventer = e
	}
}

// VersionCounter configures the session with a counter of the
// workers ever started; it advances whenever a pool is configured. Callers that manage other
// resources alongside pools may share the counter to detect stale
// pools; see ProcessInterface.Stale.
func VersionCounter(c *Counter) Option {
	return func(s *Session) {
		s.counter = c
	}
}

// nextSessionIndex is the index of the next session that will be
// started by Start.
var nextSessionIndex int32

// Start creates and starts a new kernelpool session, configuring it
// according to the provided options. If no system is configured, the
// session is configured to use the bigmachine system with
// bigmachine.Local, and the parallelism defaults to a multiple of the
// number of available CPUs.
func Start(options ...Option) *Session {
	s := newSession()
	for _, opt := range options {
		opt(s)
	}
	if s.system == nil {
		s.system = newMachineSystem(bigmachine.Local)
	}
	s.start()
	return s
}

func (s *Session) start() {
	if s.p == 0 {
		s.p = defaultprocs.Count()
	}
	if s.counter == nil {
		s.counter = new(Counter)
	}
	s.shutdown = s.system.Start(s)
	s.eventer.Event("kernelpool:sessionStart",
		"command", strings.Join(os.Args, " "),
		"systemType", s.system.Name(),
		"parallelism", s.p)
}

// Parallelism returns the default number of workers per pool.
func (s *Session) Parallelism() int {
	return s.p
}

// Status returns the session's status aggregator.
func (s *Session) Status() *status.Status {
	return s.status
}

// Counter returns the session's version counter.
func (s *Session) Counter() *Counter {
	return s.counter
}

// System returns the system used by the session to start workers.
func (s *Session) System() System {
	return s.system
}

// Shutdown tears down resources associated with this session.
// It should be called when the session is discarded.
func (s *Session) Shutdown() {
	if s.shutdown != nil {
		s.shutdown()
	}
}

// HandleDebug adds the session's debug handlers to the provided
// ServeMux.
func (s *Session) HandleDebug(handler *http.ServeMux) {
	s.system.HandleDebug(handler)
}
