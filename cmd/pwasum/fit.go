// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"math"

	"github.com/grailbio/base/log"
	"github.com/pwakit/kernelpool"
	"github.com/pwakit/kernelpool/exec"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type sampleFlags struct {
	n         int
	mu, sigma float64
	seed      int64
	procs     int
}

func (s *sampleFlags) register(flags *flag.FlagSet) {
	flags.IntVar(&s.n, "n", 100000, "number of events")
	flags.Float64Var(&s.mu, "mu", 1.5, "true mean of the sample")
	flags.Float64Var(&s.sigma, "sigma", 0.7, "true width of the sample")
	flags.Int64Var(&s.seed, "seed", 1, "random seed")
	flags.IntVar(&s.procs, "procs", 0, "number of workers; 0 uses the session's parallelism")
}

func fit(ctx context.Context, sess *exec.Session, args []string) error {
	var (
		flags = flag.NewFlagSet("fit", flag.ExitOnError)
		steps = flags.Int("steps", 21, "number of grid points per parameter")
		s     sampleFlags
	)
	s.register(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}
	data := sample(s.n, s.mu, s.sigma, s.seed)
	x := data["x"].([]float64)
	mean, std := stat.MeanStdDev(x, data["weight"].([]float64))
	log.Printf("sample: %d events, weighted mean %.4f, std %.4f", len(x), mean, std)

	foreman := exec.NewForeman(sess, s.procs)
	if err := foreman.Configure(ctx, data, new(likelihood), kernelpool.Sum{IsDuplex: true}); err != nil {
		return err
	}
	pool := foreman.FetchInterface()
	defer pool.Stop(ctx, false)

	var (
		mus    = floats.Span(make([]float64, *steps), mean-std, mean+std)
		sigmas = floats.Span(make([]float64, *steps), std/2, 2*std)
		best   = math.Inf(-1)
	)
	var bestMu, bestSigma float64
	for _, mu := range mus {
		for _, sigma := range sigmas {
			v, err := pool.Run(ctx, []float64{mu, sigma})
			if err != nil {
				return err
			}
			if ll := v.(float64); ll > best {
				best, bestMu, bestSigma = ll, mu, sigma
			}
		}
	}
	vals, err := pool.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("mu=%.4f sigma=%.4f log-likelihood=%.4f\n", bestMu, bestSigma, best)
	log.Printf("worker stats: %s", vals)
	return nil
}

func accept(ctx context.Context, sess *exec.Session, args []string) error {
	var (
		flags = flag.NewFlagSet("accept", flag.ExitOnError)
		lo    = flags.Float64("lo", 1, "lower edge of the acceptance window")
		hi    = flags.Float64("hi", 2, "upper edge of the acceptance window")
		s     sampleFlags
	)
	s.register(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}
	data := sample(s.n, s.mu, s.sigma, s.seed)
	foreman := exec.NewForeman(sess, s.procs)
	if err := foreman.Configure(ctx, data, &acceptance{Lo: *lo, Hi: *hi}, kernelpool.Sum{}); err != nil {
		return err
	}
	pool := foreman.FetchInterface()
	v, err := pool.Run(ctx)
	if err != nil {
		return err
	}
	total := floats.Sum(data["weight"].([]float64))
	fmt.Printf("accepted weight %.4f of %.4f (%.2f%%)\n", v.(float64), total, 100*v.(float64)/total)
	return nil
}
