// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import "github.com/pwakit/kernelpool"

// Build creates one worker per kernel on the provided system. Workers
// are duplex or simplex as the flag dictates. The i'th returned
// process and channel belong to kernels[i]. Build does not start the
// workers.
func Build(system System, kernels []kernelpool.Kernel, duplex bool) ([]*Proc, []kernelpool.Channel) {
	var (
		procs    = make([]*Proc, len(kernels))
		channels = make([]kernelpool.Channel, len(kernels))
	)
	for i, k := range kernels {
		procs[i], channels[i] = system.New(i, k, duplex)
	}
	return procs, channels
}
