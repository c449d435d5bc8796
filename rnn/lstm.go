// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package rnn provides the spiking long short-term memory cell and the
multi-layer stack built from it.  The four LSTM gates fire through
surrogate spike functions instead of sigmoid and tanh, so in spiking
mode every gate is binary in the forward pass, the cell state is a
sparse mostly-integer accumulator, and gradients still flow through
the surrogate backward formulas.

The cell exposes a pure Step (explicit state in, new state out) and a
stateful Forward wrapper; the stack processes a whole time sequence in
one call, with optional dropout at the junctions between stacked
layers.  As everywhere in this module, state is exclusive to the
instance, calls must be sequential in simulation-time order, and Reset
must be called between independent runs.
*/
package rnn

import (
	"fmt"

	"github.com/emer/emergent/erand"
	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"

	"github.com/emer/snn/accel"
	"github.com/emer/snn/egrad"
	"github.com/emer/snn/surrogate"
)

//////////////////////////////////////////////////////////////////////
// SpikingLSTMCell

// SpikingLSTMCell is one LSTM cell with spike-function gates.  All
// four gates come from a single fused affine transform of input and
// hidden state, minus the firing threshold, split four ways in the
// order input, forget, candidate, output.
type SpikingLSTMCell struct {
	In  int               `desc:"size of each input"`
	Hid int               `desc:"number of hidden units"`
	VTh float32           `def:"1" desc:"gate firing threshold, subtracted from the fused affine transform"`
	Fn1 surrogate.SpikeFn `view:"-" desc:"spike function for the input, forget and output gates"`
	Fn2 surrogate.SpikeFn `view:"-" desc:"spike function for the candidate gate"`
	WIh *egrad.Value      `view:"-" desc:"input weights [4*Hid, In]"`
	WHh *egrad.Value      `view:"-" desc:"recurrent weights [4*Hid, Hid]"`
	BIh *egrad.Value      `view:"-" desc:"input bias [4*Hid], nil when built without bias"`
	BHh *egrad.Value      `view:"-" desc:"recurrent bias [4*Hid], nil when built without bias"`
	H   *egrad.Value      `view:"-" desc:"hidden state from the last Forward, nil before first use"`
	C   *egrad.Value      `view:"-" desc:"cell state from the last Forward, nil before first use"`

	GMon *GateMonitor `view:"-" desc:"optional per-step gate output and state monitor"`
}

// NewSpikingLSTMCell returns a cell with weights and biases drawn from
// U(-sqrt(k), sqrt(k)), k = 1/hidSize.  fn1 drives the input, forget
// and output gates and defaults to Erf when nil; fn2 drives the
// candidate gate and defaults to fn1.  An explicit fn2 must agree with
// fn1 on spiking mode, so the fused spike arithmetic is either valid
// for all four gates or used for none.
func NewSpikingLSTMCell(inSize, hidSize int, bias bool, vth float32, fn1, fn2 surrogate.SpikeFn) (*SpikingLSTMCell, error) {
	if inSize < 1 || hidSize < 1 {
		return nil, fmt.Errorf("rnn.NewSpikingLSTMCell: sizes must be >= 1, got in: %v, hid: %v", inSize, hidSize)
	}
	if fn1 == nil {
		fn1 = surrogate.NewErf()
	}
	if fn2 == nil {
		fn2 = fn1
	} else if fn2.Spiking() != fn1.Spiking() {
		return nil, fmt.Errorf("rnn.NewSpikingLSTMCell: gate spike functions disagree on spiking mode: fn1 %v, fn2 %v", fn1.Spiking(), fn2.Spiking())
	}
	cl := &SpikingLSTMCell{In: inSize, Hid: hidSize, VTh: vth, Fn1: fn1, Fn2: fn2}
	rp := erand.RndParams{Dist: erand.Uniform, Mean: 0, Var: float64(mat32.Sqrt(1 / float32(hidSize)))}
	cl.WIh = egrad.NewParam(rndTensor([]int{4 * hidSize, inSize}, &rp))
	cl.WHh = egrad.NewParam(rndTensor([]int{4 * hidSize, hidSize}, &rp))
	if bias {
		cl.BIh = egrad.NewParam(rndTensor([]int{4 * hidSize}, &rp))
		cl.BHh = egrad.NewParam(rndTensor([]int{4 * hidSize}, &rp))
	}
	return cl, nil
}

func rndTensor(shp []int, rp *erand.RndParams) *etensor.Float32 {
	t := egrad.Zeros(shp)
	for i := range t.Values {
		t.Values[i] = float32(rp.Gen(-1))
	}
	return t
}

// Step computes one time step from explicit prior state, returning the
// new hidden and cell state without touching the stored ones.  x is
// [batch, In]; nil h or c means zero state.  In spiking mode the gate
// products run through the fused spike arithmetic; the general
// elementwise products otherwise.
func (cl *SpikingLSTMCell) Step(x, h, c *egrad.Value) (*egrad.Value, *egrad.Value) {
	n := x.Val.Dim(0)
	if h == nil {
		h = egrad.NewConst(egrad.Zeros([]int{n, cl.Hid}))
	}
	if c == nil {
		c = egrad.NewConst(egrad.Zeros([]int{n, cl.Hid}))
	}
	gt := egrad.Add(egrad.Linear(x, cl.WIh, cl.BIh), egrad.Linear(h, cl.WHh, cl.BHh))
	gt = egrad.AddScalar(gt, -cl.VTh)
	ch := egrad.Chunk(gt, 4)
	i := cl.Fn1.Apply(ch[0])
	f := cl.Fn1.Apply(ch[1])
	g := cl.Fn2.Apply(ch[2])
	o := cl.Fn1.Apply(ch[3])
	if cl.Fn1.Spiking() {
		c = egrad.Add(accel.SpikeMul(c, f), accel.AndMul(i, g))
		h = accel.SpikeMul(c, o)
	} else {
		c = egrad.Add(egrad.Mul(c, f), egrad.Mul(i, g))
		h = egrad.Mul(c, o)
	}
	if cl.GMon != nil {
		cl.GMon.record(i.Val, f.Val, g.Val, o.Val, c.Val, h.Val)
	}
	return h, c
}

// Forward advances one step using and updating the stored state, and
// returns the new hidden state (the cell's spike output).
func (cl *SpikingLSTMCell) Forward(x *egrad.Value) *egrad.Value {
	cl.H, cl.C = cl.Step(x, cl.H, cl.C)
	return cl.H
}

// Reset drops the stored state and clears the gate monitor; the next
// Forward starts from zeros.  Weights persist.
func (cl *SpikingLSTMCell) Reset() {
	cl.H, cl.C = nil, nil
	if cl.GMon != nil {
		cl.GMon.Reset()
	}
}

// SetGateMonitor toggles recording of per-step gate outputs and
// states.  Enabling always starts a fresh, empty monitor.
func (cl *SpikingLSTMCell) SetGateMonitor(on bool) {
	if on {
		cl.GMon = &GateMonitor{}
	} else {
		cl.GMon = nil
	}
}

//////////////////////////////////////////////////////////////////////
// SpikingLSTM

// LSTMParams are the construction parameters for a SpikingLSTM stack.
// Start from Defaults and override.
type LSTMParams struct {
	In        int               `min:"1" desc:"size of each input step"`
	Hid       int               `min:"1" desc:"hidden units per layer"`
	Layers    int               `def:"1" min:"1" desc:"number of stacked cells"`
	Bias      bool              `def:"true" desc:"include the two bias vectors in each cell"`
	Drop      float32           `def:"0" min:"0" max:"1" desc:"dropout probability at junctions between stacked layers, 0 = off"`
	Invariant bool              `desc:"sample one dropout mask per sequence instead of fresh masks every step"`
	Bidir     bool              `desc:"bidirectional recurrence -- not implemented, construction fails if set"`
	VTh       float32           `def:"1" desc:"gate firing threshold"`
	Fn1       surrogate.SpikeFn `view:"-" desc:"spike function for the input, forget and output gates, nil = Erf"`
	Fn2       surrogate.SpikeFn `view:"-" desc:"spike function for the candidate gate, nil = Fn1"`
}

func (lp *LSTMParams) Defaults() {
	lp.Layers = 1
	lp.Bias = true
	lp.VTh = 1
}

// SpikingLSTM stacks spiking LSTM cells, feeding each layer's hidden
// output to the next.  Layer states persist across Forward calls
// within a run and are cleared by Reset.
type SpikingLSTM struct {
	Par      LSTMParams         `desc:"construction parameters"`
	Layers   []*SpikingLSTMCell `desc:"stacked cells, input layer first"`
	Training bool               `desc:"dropout between layers applies only in training mode"`

	maskFn func(n int) *etensor.Float32
}

// NewSpikingLSTM builds the stack described by par.  Fails on a
// non-positive size or layer count, a dropout probability outside
// [0, 1), or a request for bidirectional recurrence.
func NewSpikingLSTM(par *LSTMParams) (*SpikingLSTM, error) {
	if par.In < 1 || par.Hid < 1 || par.Layers < 1 {
		return nil, fmt.Errorf("rnn.NewSpikingLSTM: sizes and layer count must be >= 1, got in: %v, hid: %v, layers: %v", par.In, par.Hid, par.Layers)
	}
	if par.Bidir {
		return nil, fmt.Errorf("rnn.NewSpikingLSTM: bidirectional recurrence is not implemented")
	}
	if par.Drop < 0 || par.Drop >= 1 {
		return nil, fmt.Errorf("rnn.NewSpikingLSTM: dropout probability must be in [0, 1), got %v", par.Drop)
	}
	ls := &SpikingLSTM{Par: *par, Training: true}
	ls.maskFn = ls.dropMask
	for li := 0; li < par.Layers; li++ {
		in := par.In
		if li > 0 {
			in = par.Hid
		}
		cl, err := NewSpikingLSTMCell(in, par.Hid, par.Bias, par.VTh, par.Fn1, par.Fn2)
		if err != nil {
			return nil, err
		}
		ls.Layers = append(ls.Layers, cl)
	}
	return ls, nil
}

// Forward processes a whole time sequence through the stack, one
// [batch, In] tensor per step, returning the last layer's output at
// each step.  Zero states are created from the first input when
// absent.  In training, dropout masks the input to every layer after
// the first: fresh masks every step, or, in invariant mode, one mask
// sampled here and reused for the entire sequence.
func (ls *SpikingLSTM) Forward(xs []*egrad.Value) []*egrad.Value {
	if len(xs) == 0 {
		return nil
	}
	drop := ls.Training && ls.Par.Drop > 0 && len(ls.Layers) > 1
	var mask *egrad.Value
	if drop && ls.Par.Invariant {
		mask = egrad.NewConst(ls.maskFn(xs[0].Val.Dim(0)))
	}
	outs := make([]*egrad.Value, len(xs))
	for t, x := range xs {
		cur := x
		for li, cl := range ls.Layers {
			if li > 0 && drop {
				m := mask
				if m == nil {
					m = egrad.NewConst(ls.maskFn(cur.Val.Dim(0)))
				}
				cur = egrad.Mul(cur, m)
			}
			cur = cl.Forward(cur)
		}
		outs[t] = cur
	}
	return outs
}

// dropMask returns a fresh inverted-scaling dropout mask [n, Hid]:
// dropped entries 0, kept entries 1/(1-p).
func (ls *SpikingLSTM) dropMask(n int) *etensor.Float32 {
	m := egrad.Zeros([]int{n, ls.Par.Hid})
	q := 1 / (1 - ls.Par.Drop)
	for i := range m.Values {
		if !erand.BoolProb(float64(ls.Par.Drop), -1) {
			m.Values[i] = q
		}
	}
	return m
}

// State returns the per-layer hidden and cell states; entries are nil
// before the first Forward.
func (ls *SpikingLSTM) State() (h, c []*egrad.Value) {
	for _, cl := range ls.Layers {
		h = append(h, cl.H)
		c = append(c, cl.C)
	}
	return
}

// SetState installs explicit per-layer states, e.g. carried over from
// a previous run.  Lengths must match the layer count.
func (ls *SpikingLSTM) SetState(h, c []*egrad.Value) error {
	if len(h) != len(ls.Layers) || len(c) != len(ls.Layers) {
		return fmt.Errorf("rnn.SetState: need %v per-layer states, got h: %v, c: %v", len(ls.Layers), len(h), len(c))
	}
	for li, cl := range ls.Layers {
		cl.H, cl.C = h[li], c[li]
	}
	return nil
}

// Reset drops all layer states and monitors; call between independent
// sequences.
func (ls *SpikingLSTM) Reset() {
	for _, cl := range ls.Layers {
		cl.Reset()
	}
}
