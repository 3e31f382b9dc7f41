// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Pwasum is a demonstration of kernelpool. It partitions a synthetic
// event sample over a pool of workers and either fits a Gaussian to it
// by maximum likelihood (duplex workers) or computes a weighted
// acceptance once (simplex workers).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/pwakit/kernelpool/poolconfig"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `usage: pwasum [flags] command args...

Command pwasum runs a kernelpool over a synthetic sample of events.

Available commands are:

	fit
		Fit the mean and width of the sample by scanning the
		log-likelihood computed by duplex workers.
	accept
		Compute the weighted fraction of events inside a window
		once, with simplex workers.
`)
		flag.PrintDefaults()
		os.Exit(2)
	}
	sess, shutdown := poolconfig.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
	}
	ctx := context.Background()
	cmd, args := flag.Arg(0), flag.Args()[1:]
	var err error
	switch cmd {
	default:
		fmt.Fprintf(os.Stderr, "unknown command %s\n", cmd)
		flag.Usage()
	case "fit":
		err = fit(ctx, sess, args)
	case "accept":
		err = accept(ctx, sess, args)
	}
	shutdown()
	if err != nil {
		log.Printf("%s: %v", cmd, err)
	}
	must.Nil(err, cmd)
}
