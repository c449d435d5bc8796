// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neuron

import (
	"fmt"
	"math"

	"github.com/goki/mat32"

	"github.com/emer/snn/egrad"
)

// Bounder keeps the raw PLIF parameter in a valid reciprocal-tau range.
// Bound is the differentiable transform used every Forward; BoundVal
// and Unbound are the plain float64 forms used at construction, where
// the inverse round trip is verified: BoundVal(Unbound(tau)) = 1/tau.
type Bounder interface {
	// Bound maps the raw 1-element parameter to the effective rate.
	Bound(w *egrad.Value) *egrad.Value

	// BoundVal is Bound on a plain number.
	BoundVal(w float64) float64

	// Unbound inverts BoundVal at rate 1/tau.
	Unbound(tau float64) float64
}

// PLIFNode is the parametric leaky integrate-and-fire neuron: LIF
// whose reciprocal time constant is one trainable parameter shared by
// every unit, learned jointly with the synaptic weights:
// V <- V + (X - (V - Vrest)) * bound(W).
// With a nil Bounder, W is the rate itself and gradient steps can push
// it out of (0, 1]; the bounded forms guarantee a valid rate at any W.
type PLIFNode struct {
	BaseNode
	W   *egrad.Value `view:"-" desc:"raw trainable rate parameter, 1 element"`
	Bnd Bounder      `desc:"bounding transform for W, nil = use W directly"`
}

// NewPLIFNode returns a PLIF neuron whose rate parameter is
// initialized so the effective time constant starts at initTau.
// Bounded parameterizations need initTau > 1; the inverse transform is
// verified by round trip in float64 to within 1e-4 of initTau.
func NewPLIFNode(initTau float32, bnd Bounder) (*PLIFNode, error) {
	nd := &PLIFNode{}
	nd.Defaults()
	nd.Bnd = bnd
	var w0 float64
	if bnd == nil {
		if initTau <= 0 {
			return nil, fmt.Errorf("neuron.NewPLIFNode: initTau must be > 0, got %g", initTau)
		}
		w0 = 1 / float64(initTau)
	} else {
		if initTau <= 1 {
			return nil, fmt.Errorf("neuron.NewPLIFNode: initTau must be > 1 for a bounded parameterization, got %g", initTau)
		}
		w0 = bnd.Unbound(float64(initTau))
		rt := 1 / bnd.BoundVal(w0)
		if math.Abs(rt-float64(initTau)) >= 1e-4 {
			return nil, fmt.Errorf("neuron.NewPLIFNode: bound inverse round trip gives tau %g for initTau %g", rt, initTau)
		}
	}
	nd.W = egrad.NewScalarParam(float32(w0))
	return nd, nil
}

// Rate returns the effective reciprocal time constant as a
// gradient-carrying 1-element Value, recomputed from W so rate
// gradients flow back into the raw parameter.
func (nd *PLIFNode) Rate() *egrad.Value {
	if nd.Bnd == nil {
		return nd.W
	}
	return nd.Bnd.Bound(nd.W)
}

// Tau returns the current effective time constant as a plain number.
func (nd *PLIFNode) Tau() float32 {
	w := float64(nd.W.Val.Values[0])
	if nd.Bnd == nil {
		return float32(1 / w)
	}
	return float32(1 / nd.Bnd.BoundVal(w))
}

func (nd *PLIFNode) Forward(x *egrad.Value) *egrad.Value {
	nd.InitV(x)
	leak := nd.V
	if v0 := nd.V0(); v0 != 0 {
		leak = egrad.AddScalar(nd.V, -v0)
	}
	nd.V = egrad.Add(nd.V, egrad.Scale(egrad.Sub(x, leak), nd.Rate()))
	return nd.Spiking()
}

//////////////////////////////////////////////////////////////////////
// Bounders

// boundOp applies an elementwise transform with analytic gradient,
// for bounders that are not compositions of existing ops.
func boundOp(w *egrad.Value, fun, grad func(w float32) float32) *egrad.Value {
	t := egrad.Zeros(w.Val.Shp)
	for i, wv := range w.Val.Values {
		t.Values[i] = fun(wv)
	}
	out := egrad.NewOp(t, w)
	out.SetBack(func() {
		wg := w.EnsureGrad()
		for i, g := range out.Grad.Values {
			wg.Values[i] += g * grad(w.Val.Values[i])
		}
	})
	return out
}

// SigmoidBound maps W through the logistic function, bounding the rate
// into (0, 1).  Inverse: Unbound(tau) = -ln(tau - 1).
type SigmoidBound struct{}

func (sb SigmoidBound) Bound(w *egrad.Value) *egrad.Value {
	return egrad.Sigmoid(w)
}

func (sb SigmoidBound) BoundVal(w float64) float64 {
	return 1 / (1 + math.Exp(-w))
}

func (sb SigmoidBound) Unbound(tau float64) float64 {
	return -math.Log(tau - 1)
}

// PiecewiseExpBound bounds the rate into (0, 1) with two exponential
// branches meeting smoothly at W = 0 (rate 1/2): 1 - exp(-W)/2 for
// W >= 0, exp(W)/2 below.  The gradient is exp(-|W|)/2 on both sides,
// so it never saturates as abruptly as the logistic for large |W|.
type PiecewiseExpBound struct{}

func (pb PiecewiseExpBound) Bound(w *egrad.Value) *egrad.Value {
	return boundOp(w,
		func(w float32) float32 {
			if w >= 0 {
				return 1 - mat32.Exp(-w)/2
			}
			return mat32.Exp(w) / 2
		},
		func(w float32) float32 {
			return mat32.Exp(-mat32.Abs(w)) / 2
		})
}

func (pb PiecewiseExpBound) BoundVal(w float64) float64 {
	if w >= 0 {
		return 1 - math.Exp(-w)/2
	}
	return math.Exp(w) / 2
}

func (pb PiecewiseExpBound) Unbound(tau float64) float64 {
	switch {
	case tau > 2:
		return math.Log(2 / tau)
	case tau < 2:
		return math.Log(tau / (2*tau - 2))
	}
	return 0
}

// RecipAbsBound bounds the rate into (0, 1] as 1 / (1 + |W|), the
// cheapest of the transforms.  Inverse: Unbound(tau) = tau - 1.  The
// gradient at exactly W = 0 uses sign(0) = 0.
type RecipAbsBound struct{}

func (rb RecipAbsBound) Bound(w *egrad.Value) *egrad.Value {
	return boundOp(w,
		func(w float32) float32 {
			return 1 / (1 + mat32.Abs(w))
		},
		func(w float32) float32 {
			d := 1 + mat32.Abs(w)
			switch {
			case w > 0:
				return -1 / (d * d)
			case w < 0:
				return 1 / (d * d)
			}
			return 0
		})
}

func (rb RecipAbsBound) BoundVal(w float64) float64 {
	return 1 / (1 + math.Abs(w))
}

func (rb RecipAbsBound) Unbound(tau float64) float64 {
	return tau - 1
}
