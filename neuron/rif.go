// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neuron

import (
	"fmt"
	"math"

	"github.com/emer/etable/minmax"
	"github.com/goki/mat32"

	"github.com/emer/snn/egrad"
)

// DefRIFWeight is the conventional initial feedback weight: slightly
// negative, so the recurrence starts as a weak leak.
const DefRIFWeight = -1e-3

// RIFNode is the recurrent integrate-and-fire neuron: one trainable
// self-feedback weight scales the potential's distance from rest each
// step, while the external input always enters unscaled:
// V <- V + (V - Vrest) * Weff + X.
// A negative effective weight is a learned leak, a positive one
// self-excitation.  With an amplitude range the raw parameter G is
// squashed through a sigmoid rescaled into (Min, Max), so gradient
// steps can never push Weff out of range; nil means Weff = G, fully
// unconstrained.
type RIFNode struct {
	BaseNode
	G   *egrad.Value `view:"-" desc:"raw trainable feedback parameter, 1 element"`
	Amp *minmax.F32  `desc:"effective weight range, nil = unbounded"`
}

// NewRIFNode returns an RIF neuron with effective feedback weight
// starting at initW (conventionally DefRIFWeight).  With a non-nil
// amplitude range, initW must lie strictly inside it.
func NewRIFNode(initW float32, amp *minmax.F32) (*RIFNode, error) {
	nd := &RIFNode{}
	nd.Defaults()
	nd.Amp = amp
	if amp == nil {
		nd.G = egrad.NewScalarParam(initW)
		return nd, nil
	}
	if amp.Min >= amp.Max {
		return nil, fmt.Errorf("neuron.NewRIFNode: amplitude range needs Min < Max, got [%g, %g]", amp.Min, amp.Max)
	}
	if initW <= amp.Min || initW >= amp.Max {
		return nil, fmt.Errorf("neuron.NewRIFNode: initW %g not strictly inside amplitude range (%g, %g)", initW, amp.Min, amp.Max)
	}
	g0 := math.Log(float64(initW-amp.Min) / float64(amp.Max-initW))
	nd.G = egrad.NewScalarParam(float32(g0))
	return nd, nil
}

// Weight returns the effective feedback weight as a gradient-carrying
// 1-element Value, recomputed from G so weight gradients flow back
// into the raw parameter.
func (nd *RIFNode) Weight() *egrad.Value {
	if nd.Amp == nil {
		return nd.G
	}
	sg := egrad.Sigmoid(nd.G)
	return egrad.AddScalar(egrad.MulScalar(sg, nd.Amp.Max-nd.Amp.Min), nd.Amp.Min)
}

// W returns the current effective feedback weight as a plain number.
func (nd *RIFNode) W() float32 {
	g := nd.G.Val.Values[0]
	if nd.Amp == nil {
		return g
	}
	sg := 1 / (1 + mat32.Exp(-g))
	return sg*(nd.Amp.Max-nd.Amp.Min) + nd.Amp.Min
}

func (nd *RIFNode) Forward(x *egrad.Value) *egrad.Value {
	nd.InitV(x)
	fb := nd.V
	if v0 := nd.V0(); v0 != 0 {
		fb = egrad.AddScalar(nd.V, -v0)
	}
	nd.V = egrad.Add(nd.V, egrad.Add(egrad.Scale(fb, nd.Weight()), x))
	return nd.Spiking()
}
