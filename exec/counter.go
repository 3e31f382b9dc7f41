// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import "sync/atomic"

// A Counter is a monotonically increasing version number. The zero
// Counter is ready to use. Counters are safe for concurrent use.
type Counter struct {
	n int64
}

// Add advances the counter by n and returns its new value.
func (c *Counter) Add(n int) int64 {
	return atomic.AddInt64(&c.n, int64(n))
}

// Value returns the counter's current value.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.n)
}
