// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package surrogate provides the spike functions for surrogate-gradient
learning: the forward pass emits the hard Heaviside step 1[x >= 0]
(boundary inclusive, so exactly-at-threshold fires), while the backward
pass substitutes a smooth analytic gradient in place of the step's
almost-everywhere-zero true derivative.

Each function also carries a Spike mode flag (on by default).  Turning
it off makes the forward pass return the smooth primitive that the
substitute gradient is the true derivative of, so the same object can
serve as a conventional activation.  The backward formula is identical
in both modes; only the forward values change.

The input is always the overdrive v - v_threshold, so the step fires at
zero regardless of the neuron's configured threshold.
*/
package surrogate

import (
	"github.com/chewxy/math32"
	"github.com/emer/etable/etensor"
	"github.com/emer/snn/egrad"
)

// SpikeFn is the contract between neurons and their spike function:
// Apply fires the overdrive tensor through the function, attaching the
// surrogate backward when the input carries gradients, and Spiking
// reports whether the forward pass is currently the hard step.
type SpikeFn interface {
	Apply(x *egrad.Value) *egrad.Value
	Spiking() bool
}

// Heaviside returns the hard step 1[x >= 0] elementwise, the shared
// spiking-mode forward of every SpikeFn.
func Heaviside(x *etensor.Float32) *etensor.Float32 {
	t := egrad.Zeros(x.Shp)
	for i, xv := range x.Values {
		if xv >= 0 {
			t.Values[i] = 1
		}
	}
	return t
}

// apply builds the output Value for a surrogate function given its
// elementwise primitive and gradient.  Inputs that do not need
// gradients produce a plain constant: no graph node, nothing retained.
func apply(x *egrad.Value, spike bool, prim, grad func(x float32) float32) *egrad.Value {
	var t *etensor.Float32
	if spike {
		t = Heaviside(x.Val)
	} else {
		t = egrad.Zeros(x.Val.Shp)
		for i, xv := range x.Val.Values {
			t.Values[i] = prim(xv)
		}
	}
	if !x.NeedsGrad() {
		return egrad.NewConst(t)
	}
	out := egrad.NewOp(t, x)
	out.SetBack(func() {
		xg := x.EnsureGrad()
		for i, g := range out.Grad.Values {
			xg.Values[i] += g * grad(x.Val.Values[i])
		}
	})
	return out
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

//////////////////////////////////////////////////////////////////////////////
//  BilinearLeakyReLU

// BilinearLeakyReLU substitutes a piecewise-constant gradient: A inside
// the band [-C, C], B outside.  Its primitive is the continuous
// piecewise-linear curve A*x on the band, B*x +- (A-B)*C outside.
type BilinearLeakyReLU struct {
	A     float32 `def:"1" desc:"substitute gradient inside the band [-C, C]"`
	B     float32 `def:"0.01" desc:"substitute (leak) gradient outside the band"`
	C     float32 `def:"0.5" min:"0" desc:"half-width of the inner band"`
	Spike bool    `def:"true" desc:"hard 0/1 step forward -- off returns the smooth primitive"`
}

func NewBilinearLeakyReLU() *BilinearLeakyReLU {
	sf := &BilinearLeakyReLU{}
	sf.Defaults()
	return sf
}

func (sf *BilinearLeakyReLU) Defaults() {
	sf.A = 1
	sf.B = 0.01
	sf.C = 0.5
	sf.Spike = true
}

func (sf *BilinearLeakyReLU) Spiking() bool { return sf.Spike }

func (sf *BilinearLeakyReLU) Apply(x *egrad.Value) *egrad.Value {
	return apply(x, sf.Spike, sf.Prim, sf.Grad)
}

// Grad is the substitute gradient at x.  The band edges are inclusive.
func (sf *BilinearLeakyReLU) Grad(x float32) float32 {
	if x < -sf.C || x > sf.C {
		return sf.B
	}
	return sf.A
}

// Prim is the continuous primitive the gradient integrates to.
func (sf *BilinearLeakyReLU) Prim(x float32) float32 {
	switch {
	case x < -sf.C:
		return sf.B*x + sf.B*sf.C - sf.A*sf.C
	case x > sf.C:
		return sf.B*x - sf.B*sf.C + sf.A*sf.C
	default:
		return sf.A * x
	}
}

//////////////////////////////////////////////////////////////////////////////
//  Sigmoid

// Sigmoid substitutes the logistic derivative:
// g'(x) = Alpha * sig(Alpha*x) * (1 - sig(Alpha*x)), primitive
// sig(Alpha*x).  Larger Alpha concentrates gradient near threshold.
type Sigmoid struct {
	Alpha float32 `def:"1" min:"0" desc:"steepness of the substitute sigmoid"`
	Spike bool    `def:"true" desc:"hard 0/1 step forward -- off returns the smooth primitive"`
}

func NewSigmoid() *Sigmoid {
	sf := &Sigmoid{}
	sf.Defaults()
	return sf
}

func (sf *Sigmoid) Defaults() {
	sf.Alpha = 1
	sf.Spike = true
}

func (sf *Sigmoid) Spiking() bool { return sf.Spike }

func (sf *Sigmoid) Apply(x *egrad.Value) *egrad.Value {
	return apply(x, sf.Spike, sf.Prim, sf.Grad)
}

func (sf *Sigmoid) Grad(x float32) float32 {
	s := sigmoid(sf.Alpha * x)
	return sf.Alpha * s * (1 - s)
}

func (sf *Sigmoid) Prim(x float32) float32 {
	return sigmoid(sf.Alpha * x)
}

//////////////////////////////////////////////////////////////////////////////
//  SignSwish

// SignSwish substitutes the derivative of the sign-swish curve from
// Darabi et al (2018), BNN+: Improved binary network training:
// g'(x) = Beta*(2 - Beta*x*tanh(Beta*x/2)) / (1 + cosh(Beta*x)),
// primitive 2*sig(Beta*x)*(1 + Beta*x*(1 - sig(Beta*x))) - 1.
// Unlike the other members the gradient dips negative beyond its hump.
type SignSwish struct {
	Beta  float32 `def:"5" min:"0" desc:"sharpness of the swish hump"`
	Spike bool    `def:"true" desc:"hard 0/1 step forward -- off returns the smooth primitive"`
}

func NewSignSwish() *SignSwish {
	sf := &SignSwish{}
	sf.Defaults()
	return sf
}

func (sf *SignSwish) Defaults() {
	sf.Beta = 5
	sf.Spike = true
}

func (sf *SignSwish) Spiking() bool { return sf.Spike }

func (sf *SignSwish) Apply(x *egrad.Value) *egrad.Value {
	return apply(x, sf.Spike, sf.Prim, sf.Grad)
}

func (sf *SignSwish) Grad(x float32) float32 {
	bx := sf.Beta * x
	return sf.Beta * (2 - bx*math32.Tanh(bx/2)) / (1 + math32.Cosh(bx))
}

func (sf *SignSwish) Prim(x float32) float32 {
	bx := sf.Beta * x
	s := sigmoid(bx)
	return 2*s*(1+bx*(1-s)) - 1
}

//////////////////////////////////////////////////////////////////////////////
//  Erf

// invSqrt2Pi = 1 / sqrt(2*pi), the gaussian normalization constant.
const invSqrt2Pi = float32(0.3989422804014327)

// Erf substitutes a gaussian gradient: g'(x) = Alpha * phi(Alpha*x)
// where phi is the standard normal density, primitive the gaussian CDF
// Phi(Alpha*x).  The default gate function of the spiking LSTM.
type Erf struct {
	Alpha float32 `def:"2" min:"0" desc:"inverse width of the gaussian gradient"`
	Spike bool    `def:"true" desc:"hard 0/1 step forward -- off returns the smooth primitive"`
}

func NewErf() *Erf {
	sf := &Erf{}
	sf.Defaults()
	return sf
}

func (sf *Erf) Defaults() {
	sf.Alpha = 2
	sf.Spike = true
}

func (sf *Erf) Spiking() bool { return sf.Spike }

func (sf *Erf) Apply(x *egrad.Value) *egrad.Value {
	return apply(x, sf.Spike, sf.Prim, sf.Grad)
}

func (sf *Erf) Grad(x float32) float32 {
	ax := sf.Alpha * x
	return sf.Alpha * invSqrt2Pi * math32.Exp(-0.5*ax*ax)
}

func (sf *Erf) Prim(x float32) float32 {
	ax := sf.Alpha * x
	return 0.5 * (1 + math32.Erf(ax/math32.Sqrt2))
}
