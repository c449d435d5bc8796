// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package layer provides the stateful auxiliary layers that surround
spiking neurons in a network: run-frozen dropout, the low-pass synapse
readout, neuron normalization, learned and fixed bilinear transforms
(AXAT, blocked DCT), and channel max pooling.

These layers share the neuron lifecycle contract: internal state
(masks, accumulators) is exclusive to the instance, advances one
discrete step per Forward call, and must be cleared with Reset between
independent runs.  Learned parameters persist across Reset.
*/
package layer

import (
	"fmt"

	"github.com/emer/emergent/erand"
	"github.com/emer/etable/etensor"

	"github.com/emer/snn/egrad"
)

// Resetter is the lifecycle contract shared by every stateful layer
// and neuron in this module: Reset restores construction-time state
// while learned parameters persist.  Call between independent runs.
type Resetter interface {
	Reset()
}

//////////////////////////////////////////////////////////////////////
// Dropout

// Dropout zeroes a fixed random subset of elements for a whole
// simulation run.  Unlike standard dropout, the mask is drawn lazily
// on the first training Forward and reused for every subsequent step
// until Reset: within one simulated time window a broken connection
// stays broken, instead of being redrawn each discrete step.  Kept
// elements are scaled by 1/(1-P).  In evaluation mode input passes
// through unchanged.
type Dropout struct {
	P        float32          `def:"0.5" desc:"probability of dropping each element, strictly within (0, 1)"`
	Training bool             `def:"true" desc:"masking applies only in training mode"`
	Mask     *etensor.Float32 `view:"-" desc:"frozen mask, nil until first training Forward"`
}

// NewDropout returns a run-frozen dropout layer.  p must lie strictly
// between 0 and 1.
func NewDropout(p float32) (*Dropout, error) {
	if p <= 0 || p >= 1 {
		return nil, fmt.Errorf("layer.NewDropout: p must be strictly between 0 and 1, got %v", p)
	}
	return &Dropout{P: p, Training: true}, nil
}

func (dp *Dropout) Forward(x *egrad.Value) *egrad.Value {
	if !dp.Training {
		return x
	}
	if dp.Mask == nil {
		dp.Mask = elemMask(x.Val, dp.P)
	}
	return egrad.Mul(x, egrad.NewConst(dp.Mask))
}

// Reset discards the frozen mask; the next training Forward draws a
// fresh one.
func (dp *Dropout) Reset() {
	dp.Mask = nil
}

// SetTraining switches between training (masking) and evaluation
// (passthrough) mode.  The frozen mask is unaffected.
func (dp *Dropout) SetTraining(on bool) {
	dp.Training = on
}

// elemMask draws an independent keep/drop decision per element,
// scaling kept elements by 1/(1-p).
func elemMask(t *etensor.Float32, p float32) *etensor.Float32 {
	m := egrad.Zeros(t.Shp)
	q := 1 / (1 - p)
	for i := range m.Values {
		if !erand.BoolProb(float64(p), -1) {
			m.Values[i] = q
		}
	}
	return m
}

//////////////////////////////////////////////////////////////////////
// Dropout2d

// Dropout2d is run-frozen dropout over whole channel planes: each
// (batch, channel) plane of a [batch, chan, ...] input is kept or
// dropped as a unit, with the same freeze-until-Reset behavior as
// Dropout.
type Dropout2d struct {
	P        float32          `def:"0.2" desc:"probability of dropping each channel plane, strictly within (0, 1)"`
	Training bool             `def:"true" desc:"masking applies only in training mode"`
	Mask     *etensor.Float32 `view:"-" desc:"frozen mask, nil until first training Forward"`
}

// NewDropout2d returns a run-frozen channel dropout layer.  p must lie
// strictly between 0 and 1.
func NewDropout2d(p float32) (*Dropout2d, error) {
	if p <= 0 || p >= 1 {
		return nil, fmt.Errorf("layer.NewDropout2d: p must be strictly between 0 and 1, got %v", p)
	}
	return &Dropout2d{P: p, Training: true}, nil
}

func (dp *Dropout2d) Forward(x *egrad.Value) *egrad.Value {
	if !dp.Training {
		return x
	}
	if dp.Mask == nil {
		dp.Mask = chanMask(x.Val, dp.P)
	}
	return egrad.Mul(x, egrad.NewConst(dp.Mask))
}

// Reset discards the frozen mask; the next training Forward draws a
// fresh one.
func (dp *Dropout2d) Reset() {
	dp.Mask = nil
}

// SetTraining switches between training (masking) and evaluation
// (passthrough) mode.  The frozen mask is unaffected.
func (dp *Dropout2d) SetTraining(on bool) {
	dp.Training = on
}

// chanMask draws one keep/drop decision per (batch, channel) plane.
func chanMask(t *etensor.Float32, p float32) *etensor.Float32 {
	if t.NumDims() < 3 {
		panic("layer: Dropout2d needs input shaped [batch, chan, ...]")
	}
	n := t.Dim(0)
	c := t.Dim(1)
	plane := t.Len() / (n * c)
	m := egrad.Zeros(t.Shp)
	q := 1 / (1 - p)
	for bi := 0; bi < n; bi++ {
		for ci := 0; ci < c; ci++ {
			if erand.BoolProb(float64(p), -1) {
				continue
			}
			off := (bi*c + ci) * plane
			for pi := 0; pi < plane; pi++ {
				m.Values[off+pi] = q
			}
		}
	}
	return m
}
