// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"math"
	"testing"

	"github.com/pwakit/kernelpool"
	"github.com/pwakit/kernelpool/pooltest"
	"gonum.org/v1/gonum/floats"
)

func TestLikelihood(t *testing.T) {
	data := sample(1000, 0, 1, 1)
	whole := &likelihood{X: data["x"].([]float64), Weight: data["weight"].([]float64)}
	if err := whole.Setup(); err != nil {
		t.Fatal(err)
	}
	params := []float64{0.2, 1.1}
	want, err := whole.Process(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	got := pooltest.Run(t, 4, data, new(likelihood), kernelpool.Sum{IsDuplex: true}, params)
	if !floats.EqualWithinAbsOrRel(got.(float64), want.(float64), 1e-9, 1e-9) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLikelihoodMaximum(t *testing.T) {
	data := sample(5000, 1, 0.5, 2)
	pool, stop := pooltest.Start(t, 3, data, new(likelihood), kernelpool.Sum{IsDuplex: true})
	defer stop()
	ctx := context.Background()
	ll := func(mu, sigma float64) float64 {
		v, err := pool.Run(ctx, []float64{mu, sigma})
		if err != nil {
			t.Fatal(err)
		}
		return v.(float64)
	}
	if ll(1, 0.5) <= ll(2, 0.5) {
		t.Error("likelihood is not larger near the true mean")
	}
	if ll(1, 0.5) <= ll(1, 2) {
		t.Error("likelihood is not larger near the true width")
	}
	if _, err := pool.Run(ctx, []float64{1, -1}); err == nil {
		t.Error("expected error")
	}
}

func TestAcceptance(t *testing.T) {
	data := sample(1000, 0, 1, 3)
	got := pooltest.Run(t, 3, data, &acceptance{Lo: math.Inf(-1), Hi: math.Inf(1)}, kernelpool.Sum{})
	want := floats.Sum(data["weight"].([]float64))
	if !floats.EqualWithinAbsOrRel(got.(float64), want, 1e-9, 1e-9) {
		t.Errorf("got %v, want %v", got, want)
	}
	got = pooltest.Run(t, 3, data, &acceptance{Lo: 10, Hi: 11}, kernelpool.Sum{})
	if got.(float64) != 0 {
		t.Errorf("got %v, want 0", got)
	}
}
