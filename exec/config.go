// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"github.com/grailbio/base/config"
	"github.com/grailbio/bigmachine"
	"github.com/pwakit/kernelpool/internal/defaultprocs"
)

func init() {
	config.Register("kernelpool", func(inst *config.Constructor) {
		sess := newSession()
		inst.IntVar(&sess.p, "parallelism", defaultprocs.Count(), "number of workers started per pool")
		var system bigmachine.System
		inst.InstanceVar(&system, "system", "", "the bigmachine system used to host workers; workers run in-process if empty")
		inst.Doc = "kernelpool configures the kernelpool runtime"
		inst.New = func() (interface{}, error) {
			if system != nil {
				sess.system = newMachineSystem(system)
			} else {
				sess.system = newLocalSystem()
			}
			sess.start()
			return sess, nil
		}
	})
}
