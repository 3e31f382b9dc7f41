// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package poolconfig provides a mechanism to create a kernelpool
// session from a shared configuration. Poolconfig uses the
// configuration mechanism in package
// github.com/grailbio/base/config, and reads a default profile from
// $HOME/.kernelpool/config.
package poolconfig

import (
	"flag"
	"os"

	"github.com/grailbio/base/config"
	"github.com/grailbio/base/must"
	"github.com/pwakit/kernelpool/exec"
)

// Path determines the location of the kernelpool profile read
// by Parse.
var Path = os.ExpandEnv("$HOME/.kernelpool/config")

// Parse registers configuration flags and calls flag.Parse. It reads
// kernelpool configuration from Path defined in this package. Parse
// returns a session as configured by the configuration and any flags
// provided. Parse panics if session creation fails.
func Parse() (sess *exec.Session, shutdown func()) {
	config.RegisterFlags("", Path)
	flag.Parse()
	must.Nil(config.ProcessFlags())
	config.Must("kernelpool", &sess)
	return sess, sess.Shutdown
}
