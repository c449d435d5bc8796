// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package neuron provides the stateful spiking neuron models: a shared
BaseNode core (membrane potential, threshold, reset policy, spike
function, optional monitoring) and the concrete variants that differ
only in their subthreshold integration rule:

* IFNode: perfect integrator, no leak.

* LIFNode: leaky integrator with fixed time constant Tau.

* PLIFNode: parametric LIF -- the reciprocal time constant is a
trainable layer-shared parameter, optionally passed through a bounding
transform that keeps it in a valid range.

* RIFNode: recurrent IF -- a trainable self-feedback weight scales the
potential's distance from rest, but never the external input.

Each Forward call advances simulation by one discrete time step and
returns a gradient-carrying spike tensor.  State is exclusive to the
instance and must only be driven from one goroutine; calls must be
sequential in simulation-time order.  Reset must be called between
independent runs -- forgetting it silently leaks state across samples.
*/
package neuron

import (
	"github.com/goki/ki/kit"

	"github.com/emer/snn/accel"
	"github.com/emer/snn/egrad"
	"github.com/emer/snn/surrogate"
)

// Node is the interface all spiking neuron models implement.  There is
// deliberately no forward on BaseNode itself: a model without an
// integration rule is not a Node.
type Node interface {
	// Forward integrates one time step of input current into the
	// membrane potential and returns the spike tensor.
	Forward(x *egrad.Value) *egrad.Value

	// Reset restores the exact post-construction state: potential back
	// to rest, recorded data cleared.  Learned parameters persist.
	Reset()

	// SetMonitor toggles recording of per-step voltage and spikes.
	// Enabling always starts a fresh, empty monitor.
	SetMonitor(on bool)
}

//////////////////////////////////////////////////////////////////////
// Enums

// ResetModes are the post-spike membrane update policies.
type ResetModes int

//go:generate stringer -type=ResetModes

var KiT_ResetModes = kit.Enums.AddEnum(ResetModesN, false, nil)

func (ev ResetModes) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *ResetModes) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

const (
	// HardReset snaps the potential to VRst where a spike fired, discarding
	// any overshoot beyond threshold.
	HardReset ResetModes = iota

	// SoftReset subtracts the threshold where a spike fired, preserving
	// overshoot.  There is no fixed reset value: the resting potential is 0.
	SoftReset

	ResetModesN
)

//////////////////////////////////////////////////////////////////////
// BaseNode

// BaseNode is the shared core of the spiking neuron models.  Concrete
// models embed it, compute their subthreshold update in Forward, and
// call Spiking for the shared threshold-fire-reset step.  Config
// fields are fixed once the first Forward has run.
type BaseNode struct {
	VTh  float32           `def:"1" desc:"threshold voltage: a spike fires where V - VTh >= 0, boundary inclusive"`
	Mode ResetModes        `desc:"post-spike reset policy"`
	VRst float32           `def:"0" viewif:"Mode=HardReset" desc:"reset voltage for hard mode"`
	Fn   surrogate.SpikeFn `view:"-" desc:"spike function: step forward, surrogate gradient backward"`
	V    *egrad.Value      `view:"-" desc:"membrane potential, allocated from the first input's shape"`
	Mon  *Monitor          `view:"-" desc:"standard monitor installed by SetMonitor, nil when off"`

	rec Recorder
}

func (bn *BaseNode) Defaults() {
	bn.VTh = 1
	bn.Mode = HardReset
	bn.VRst = 0
	if bn.Fn == nil {
		bn.Fn = surrogate.NewSigmoid()
	}
}

// V0 returns the resting potential: VRst in hard mode, 0 in soft mode.
func (bn *BaseNode) V0() float32 {
	if bn.Mode == SoftReset {
		return 0
	}
	return bn.VRst
}

// InitV allocates the membrane potential at rest, shaped like the
// given input, if it has not been allocated yet.  Forward
// implementations call this first.
func (bn *BaseNode) InitV(x *egrad.Value) {
	if bn.V == nil {
		bn.V = egrad.NewConst(egrad.Full(x.Val.Shp, bn.V0()))
	}
}

// Spiking is the shared post-integration step: fire the spike function
// on the overdrive V - VTh, record if monitoring, then apply the reset
// policy to the potential.  The fused accel transforms are substituted
// when the spike function guarantees 0/1 output.  Returns the
// gradient-carrying spike tensor.
func (bn *BaseNode) Spiking() *egrad.Value {
	if bn.V == nil {
		panic("neuron: Spiking called before any Forward input")
	}
	spike := bn.Fn.Apply(egrad.AddScalar(bn.V, -bn.VTh))
	if bn.rec != nil {
		bn.rec.Step(bn.V.Val, spike.Val)
	}
	switch bn.Mode {
	case SoftReset:
		if bn.Fn.Spiking() {
			bn.V = accel.SoftVoltageTransform(bn.V, spike, bn.VTh)
		} else {
			bn.V = egrad.Sub(bn.V, egrad.MulScalar(spike, bn.VTh))
		}
	default: // HardReset
		if bn.Fn.Spiking() {
			bn.V = accel.HardVoltageTransform(bn.V, spike, bn.VRst)
		} else {
			keep := egrad.AddScalar(egrad.MulScalar(spike, -1), 1) // 1 - spike
			bn.V = egrad.Add(egrad.Mul(bn.V, keep), egrad.MulScalar(spike, bn.VRst))
		}
	}
	return spike
}

// Reset restores the post-construction state: the potential is dropped
// (re-allocated at rest by the next Forward) and recorded data is
// cleared.  Idempotent.  Must be called between independent runs.
func (bn *BaseNode) Reset() {
	bn.V = nil
	if bn.rec != nil {
		bn.rec.Reset()
	}
}

// SetMonitor installs (or removes) the standard Monitor.  Enabling
// always starts empty, also when already enabled.
func (bn *BaseNode) SetMonitor(on bool) {
	if on {
		bn.Mon = NewMonitor(bn.V0())
		bn.rec = bn.Mon
	} else {
		bn.Mon = nil
		bn.rec = nil
	}
}

// SetRecorder injects a custom per-step observer in place of the
// standard Monitor.  nil disables recording with zero overhead.
func (bn *BaseNode) SetRecorder(r Recorder) {
	bn.rec = r
	bn.Mon = nil
}
