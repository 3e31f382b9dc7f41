// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package poolcmd provides utilities for implementing kernelpool-based
// command line tools. The main entry point, poolcmd.Main, configures
// kernelpool according to a common set of flags, and then invokes the
// user's driver code.
//
// A poolcmd tool follows this form:
//
//	func main() {
//		var (
//			applicationFlag1 = flag.Int(...)
//			applicationFlag2 = ...
//		)
//		poolcmd.Main(func(sess *exec.Session, args []string) error {
//			ctx := context.Background()
//			foreman := exec.NewForeman(sess, 0)
//			if err := foreman.Configure(ctx, data, template, aggregator); err != nil {
//				return err
//			}
//			pool := foreman.FetchInterface()
//			defer pool.Stop(ctx, false)
//			// Call the pool...
//			return nil
//		})
//	}
package poolcmd

import (
	"flag"
	"net/http"
	_ "net/http/pprof" // Pprof is included to be exposed on the local diagnostic web server.
	"os"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/pwakit/kernelpool/exec"
	"github.com/pwakit/kernelpool/poolflags"
)

// Main is a convenient entry point for a poolcmd. Main does not return;
// it should be called after other initialization is performed. Main
// parses (global) flags, and configures kernelpool accordingly. Main
// then invokes the provided func with a kernelpool session from which
// pools may be configured. Main also passes the unparsed arguments.
//
// Main starts a diagnostic web server (default address :3333), using
// http.DefaultServeMux, which includes pprof handlers as well as
// bigmachine's aggregated pprof handlers.
//
// Main terminates the program after the user func returns. If it
// returns with an error, it is reported and the process exits with
// code 1, otherwise it exits successfully.
//
// Integration with other command line processing is best achieved using
// the poolflags package and Init and DisplayStatus functions.
func Main(main func(sess *exec.Session, args []string) error) {
	var fl poolflags.Flags
	poolflags.RegisterFlags(flag.CommandLine, &fl, "")
	log.AddFlags()
	flag.Parse()
	sess, err := Init(fl)
	if err != nil {
		log.Fatal(err)
	}
	err = main(sess, flag.Args())
	sess.Shutdown()
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(0)
}

// Init initializes kernelpool according to the supplied flags.
func Init(pf poolflags.Flags) (*exec.Session, error) {
	options, err := pf.ExecOptions()
	if err != nil {
		return nil, err
	}
	sess := exec.Start(options...)
	DisplayStatus(pf, sess)
	return sess, nil
}

// DisplayStatus arranges for the worker status to be displayed on the
// console and/or a web page depending on the flags specified on the
// command line. The web page is hosted at /debug/status on
// http.DefaultServeMux.
func DisplayStatus(pf poolflags.Flags, sess *exec.Session) {
	if pf.ConsoleStatus {
		var console status.Reporter
		go console.Go(os.Stdout, sess.Status())
	}
	if len(pf.HTTPAddress.Address) > 0 {
		sess.HandleDebug(http.DefaultServeMux)
		http.Handle("/debug/status", status.Handler(sess.Status()))
		go func() {
			log.Printf("HTTP Status at: %v\n", pf.HTTPAddress)
			err := http.ListenAndServe(pf.HTTPAddress.Address, nil)
			if err != nil {
				log.Error.Printf("Failed to start HTTP at: %v: %v\n", pf.HTTPAddress, err)
			}
		}()
	}
}
