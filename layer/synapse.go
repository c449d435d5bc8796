// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layer

import (
	"fmt"

	"github.com/emer/snn/egrad"
)

// DefSynTau is the conventional low-pass synapse time constant.
const DefSynTau = 100

// LowPassSynapse is a per-element leaky accumulator driven by binary
// spikes: I <- I - (1 - S)*I/Tau + S.  Current decays exponentially
// toward 0 where no spike arrives and jumps by one unit per spike.
// Equivalently, an LIF neuron with infinite threshold whose potential
// is read out directly: its accumulated value traces recent input
// activity, so it typically sits after a network's final spiking layer
// as an analog readout, in place of plain spike counting.  The stored
// parameter is the reciprocal 1/Tau, optionally trainable, in which
// case it receives gradients through every step of the run.
type LowPassSynapse struct {
	Rate *egrad.Value `view:"-" desc:"reciprocal time constant 1/Tau, 1 element"`
	I    *egrad.Value `view:"-" desc:"accumulated current, kept differentiable across steps, nil = 0"`
}

// NewLowPassSynapse returns a synapse with the given time constant
// (DefSynTau is the usual choice); learnable makes 1/Tau trainable.
func NewLowPassSynapse(tau float32, learnable bool) (*LowPassSynapse, error) {
	if tau <= 0 {
		return nil, fmt.Errorf("layer.NewLowPassSynapse: tau must be > 0, got %g", tau)
	}
	sn := &LowPassSynapse{}
	if learnable {
		sn.Rate = egrad.NewScalarParam(1 / tau)
	} else {
		sn.Rate = egrad.NewConst(egrad.Full([]int{1}, 1/tau))
	}
	return sn, nil
}

// Tau returns the current effective time constant.
func (sn *LowPassSynapse) Tau() float32 {
	return 1 / sn.Rate.Val.Values[0]
}

// Forward integrates one step of input spikes and returns the updated
// current, shaped like the input.
func (sn *LowPassSynapse) Forward(s *egrad.Value) *egrad.Value {
	if sn.I == nil {
		// 0 - (1 - s)*0*rate + s
		sn.I = s
		return sn.I
	}
	hold := egrad.AddScalar(egrad.MulScalar(s, -1), 1) // 1 - s
	sn.I = egrad.Add(egrad.Sub(sn.I, egrad.Scale(egrad.Mul(hold, sn.I), sn.Rate)), s)
	return sn.I
}

// Reset zeroes the accumulated current.  The rate parameter persists.
func (sn *LowPassSynapse) Reset() {
	sn.I = nil
}
