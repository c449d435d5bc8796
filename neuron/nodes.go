// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neuron

import (
	"github.com/emer/snn/egrad"
)

//////////////////////////////////////////////////////////////////////
// IFNode

// IFNode is the integrate-and-fire neuron: a perfect integrator with
// no leak, V <- V + X each step.
type IFNode struct {
	BaseNode
}

// NewIFNode returns an IF neuron with default config: VTh = 1, hard
// reset to 0, sigmoid spike function.  Adjust fields before the first
// Forward.
func NewIFNode() *IFNode {
	nd := &IFNode{}
	nd.Defaults()
	return nd
}

func (nd *IFNode) Forward(x *egrad.Value) *egrad.Value {
	nd.InitV(x)
	nd.V = egrad.Add(nd.V, x)
	return nd.Spiking()
}

//////////////////////////////////////////////////////////////////////
// LIFNode

// LIFNode is the leaky integrate-and-fire neuron:
// V <- V + (X - (V - Vrest)) / Tau.  Between inputs the potential
// decays toward rest; a larger Tau means slower integration and
// slower decay.  Vrest is VRst in hard mode and 0 in soft mode.
type LIFNode struct {
	BaseNode
	Tau float32 `def:"100" min:"1" desc:"membrane time constant -- both input and leak are scaled by 1/Tau"`
	Dt  float32 `view:"-" json:"-" xml:"-" desc:"rate = 1/Tau"`
}

// NewLIFNode returns a LIF neuron with default config: Tau = 100,
// VTh = 1, hard reset to 0, sigmoid spike function.
func NewLIFNode() *LIFNode {
	nd := &LIFNode{}
	nd.Defaults()
	return nd
}

func (nd *LIFNode) Defaults() {
	nd.BaseNode.Defaults()
	nd.Tau = 100
	nd.Update()
}

// Update computes the derived rate from Tau.  Call after changing Tau.
func (nd *LIFNode) Update() {
	nd.Dt = 1 / nd.Tau
}

func (nd *LIFNode) Forward(x *egrad.Value) *egrad.Value {
	nd.InitV(x)
	leak := nd.V
	if v0 := nd.V0(); v0 != 0 {
		leak = egrad.AddScalar(nd.V, -v0)
	}
	nd.V = egrad.Add(nd.V, egrad.MulScalar(egrad.Sub(x, leak), nd.Dt))
	return nd.Spiking()
}
