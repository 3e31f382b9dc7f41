// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/pwakit/kernelpool"
	"gonum.org/v1/gonum/floats"
)

func init() {
	kernelpool.RegisterKernel(new(likelihood))
	kernelpool.RegisterKernel(new(acceptance))
}

// sample returns n events drawn from a normal distribution, with
// uniform weights in [0.5, 1.5).
func sample(n int, mu, sigma float64, seed int64) map[string]interface{} {
	r := rand.New(rand.NewSource(seed))
	var (
		x = make([]float64, n)
		w = make([]float64, n)
	)
	for i := range x {
		x[i] = mu + sigma*r.NormFloat64()
		w[i] = 0.5 + r.Float64()
	}
	return map[string]interface{}{"x": x, "weight": w}
}

// likelihood computes the weighted Gaussian log-likelihood of its
// partition. Requests are []float64{mu, sigma}.
type likelihood struct {
	X, Weight []float64
	logw      []float64
}

func (k *likelihood) Setup() error {
	// Precompute per-worker scratch space.
	k.logw = make([]float64, len(k.X))
	return nil
}

func (k *likelihood) Process(ctx context.Context, request interface{}) (interface{}, error) {
	params, ok := request.([]float64)
	if !ok || len(params) != 2 {
		return nil, fmt.Errorf("likelihood: expected []float64{mu, sigma}, got %v", request)
	}
	mu, sigma := params[0], params[1]
	if sigma <= 0 {
		return nil, fmt.Errorf("likelihood: non-positive width %v", sigma)
	}
	norm := -math.Log(sigma) - 0.5*math.Log(2*math.Pi)
	for i, x := range k.X {
		z := (x - mu) / sigma
		k.logw[i] = norm - 0.5*z*z
	}
	return floats.Dot(k.logw, k.Weight), nil
}

func (k *likelihood) CloneWith(part kernelpool.Partition) (kernelpool.Kernel, error) {
	clone := new(likelihood)
	if err := part.Column("x", &clone.X); err != nil {
		return nil, err
	}
	if err := part.Column("weight", &clone.Weight); err != nil {
		return nil, err
	}
	return clone, nil
}

// acceptance computes the total weight of the events of its partition
// that fall inside [Lo, Hi).
type acceptance struct {
	Lo, Hi    float64
	X, Weight []float64
}

func (*acceptance) Setup() error { return nil }

func (k *acceptance) Process(ctx context.Context, request interface{}) (interface{}, error) {
	mask := make([]float64, len(k.X))
	for i, x := range k.X {
		if x >= k.Lo && x < k.Hi {
			mask[i] = 1
		}
	}
	return floats.Dot(mask, k.Weight), nil
}

func (k *acceptance) CloneWith(part kernelpool.Partition) (kernelpool.Kernel, error) {
	clone := &acceptance{Lo: k.Lo, Hi: k.Hi}
	if err := part.Column("x", &clone.X); err != nil {
		return nil, err
	}
	if err := part.Column("weight", &clone.Weight); err != nil {
		return nil, err
	}
	return clone, nil
}
