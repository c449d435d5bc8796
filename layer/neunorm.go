// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layer

import (
	"fmt"

	"github.com/emer/emergent/erand"

	"github.com/emer/snn/egrad"
)

// NeuNorm maintains a momentum-averaged per-location sum of recent
// input spikes across channels and subtracts a learned per-channel
// scaling of it from the raw input (Wu et al, AAAI 2019):
//
//	X <- K0*X + K1*sum_chan(input), K1 = (1-K0)/C^2
//	output = input - W*X
//
// It belongs directly after the spiking neurons of a conv layer, on
// input shaped [batch, chan, width, height].  Reported results on
// convergence are mixed; treat as experimental rather than a validated
// reference.  The running average stays differentiable across steps,
// so gradients reach W through the whole run.
type NeuNorm struct {
	C  int          `desc:"number of input channels"`
	K0 float32      `def:"0.9" desc:"momentum of the running average"`
	K1 float32      `view:"-" desc:"input coefficient = (1-K0)/C^2"`
	W  *egrad.Value `view:"-" desc:"per-channel scaling [C], learned, init U(-1, 1)"`
	X  *egrad.Value `view:"-" desc:"running average [batch, width, height], nil = 0"`
}

// NewNeuNorm returns a normalization layer for inChans channels with
// momentum k0 (conventionally 0.9).
func NewNeuNorm(inChans int, k0 float32) (*NeuNorm, error) {
	if inChans < 1 {
		return nil, fmt.Errorf("layer.NewNeuNorm: inChans must be >= 1, got %v", inChans)
	}
	nrm := &NeuNorm{C: inChans, K0: k0}
	nrm.K1 = (1 - k0) / float32(inChans*inChans)
	w := egrad.Zeros([]int{inChans})
	rp := erand.RndParams{Dist: erand.Uniform, Mean: 0, Var: 1}
	for i := range w.Values {
		w.Values[i] = float32(rp.Gen(-1))
	}
	nrm.W = egrad.NewParam(w)
	return nrm, nil
}

// Forward normalizes one step of input spikes [batch, chan, width,
// height], updating the running average.
func (nrm *NeuNorm) Forward(x *egrad.Value) *egrad.Value {
	s := egrad.MulScalar(chanSum(x), nrm.K1)
	if nrm.X != nil {
		nrm.X = egrad.Add(egrad.MulScalar(nrm.X, nrm.K0), s)
	} else {
		nrm.X = s
	}
	return normOut(x, nrm.W, nrm.X)
}

// Reset zeroes the running average.  W persists.
func (nrm *NeuNorm) Reset() {
	nrm.X = nil
}

// chanSum sums [n, C, W, H] over the channel dimension to [n, W, H].
func chanSum(x *egrad.Value) *egrad.Value {
	xt := x.Val
	if xt.NumDims() != 4 {
		panic("layer: NeuNorm needs input shaped [batch, chan, width, height]")
	}
	n, c := xt.Dim(0), xt.Dim(1)
	plane := xt.Dim(2) * xt.Dim(3)
	t := egrad.Zeros([]int{n, xt.Dim(2), xt.Dim(3)})
	for bi := 0; bi < n; bi++ {
		bo := bi * plane
		for ci := 0; ci < c; ci++ {
			off := (bi*c + ci) * plane
			for pi := 0; pi < plane; pi++ {
				t.Values[bo+pi] += xt.Values[off+pi]
			}
		}
	}
	out := egrad.NewOp(t, x)
	out.SetBack(func() {
		xg := x.EnsureGrad()
		for bi := 0; bi < n; bi++ {
			bo := bi * plane
			for ci := 0; ci < c; ci++ {
				off := (bi*c + ci) * plane
				for pi := 0; pi < plane; pi++ {
					xg.Values[off+pi] += out.Grad.Values[bo+pi]
				}
			}
		}
	})
	return out
}

// normOut computes in - W*X with W broadcast over planes and X over
// channels: out[b,c,p] = in[b,c,p] - W[c]*X[b,p].
func normOut(in, w, x *egrad.Value) *egrad.Value {
	it := in.Val
	n, c := it.Dim(0), it.Dim(1)
	plane := it.Dim(2) * it.Dim(3)
	t := egrad.CloneTensor(it)
	for bi := 0; bi < n; bi++ {
		bo := bi * plane
		for ci := 0; ci < c; ci++ {
			off := (bi*c + ci) * plane
			wv := w.Val.Values[ci]
			for pi := 0; pi < plane; pi++ {
				t.Values[off+pi] -= wv * x.Val.Values[bo+pi]
			}
		}
	}
	out := egrad.NewOp(t, in, w, x)
	out.SetBack(func() {
		if in.NeedsGrad() {
			ig := in.EnsureGrad()
			for i, g := range out.Grad.Values {
				ig.Values[i] += g
			}
		}
		if w.NeedsGrad() {
			wg := w.EnsureGrad()
			for bi := 0; bi < n; bi++ {
				bo := bi * plane
				for ci := 0; ci < c; ci++ {
					off := (bi*c + ci) * plane
					for pi := 0; pi < plane; pi++ {
						wg.Values[ci] -= out.Grad.Values[off+pi] * x.Val.Values[bo+pi]
					}
				}
			}
		}
		if x.NeedsGrad() {
			xg := x.EnsureGrad()
			for bi := 0; bi < n; bi++ {
				bo := bi * plane
				for ci := 0; ci < c; ci++ {
					off := (bi*c + ci) * plane
					wv := w.Val.Values[ci]
					for pi := 0; pi < plane; pi++ {
						xg.Values[bo+pi] -= out.Grad.Values[off+pi] * wv
					}
				}
			}
		}
	})
	return out
}
