// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layer

import (
	"testing"

	"github.com/goki/mat32"

	"github.com/emer/snn/egrad"
)

func TestNeuNormForward(t *testing.T) {
	nrm, err := NewNeuNorm(2, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	nrm.W = egrad.NewParam(tsr([]int{2}, 0.5, -0.25))

	// step 1: chan sum = 4, x = k1*4 = 0.1
	o1 := nrm.Forward(egrad.NewConst(tsr([]int{1, 2, 1, 1}, 1, 3)))
	CmprFloats(o1.Val.Values, []float32{0.95, 3.025}, "step 1 out", t)
	CmprFloats(nrm.X.Val.Values, []float32{0.1}, "step 1 running avg", t)

	// step 2: x = 0.9*0.1 + 0.1 = 0.19
	o2 := nrm.Forward(egrad.NewConst(tsr([]int{1, 2, 1, 1}, 2, 2)))
	CmprFloats(o2.Val.Values, []float32{1.905, 2.0475}, "step 2 out", t)
	CmprFloats(nrm.X.Val.Values, []float32{0.19}, "step 2 running avg", t)

	w := nrm.W
	nrm.Reset()
	if nrm.X != nil {
		t.Errorf("Reset should clear the running average")
	}
	if nrm.W != w {
		t.Errorf("Reset should keep the learned weights")
	}
}

func TestNeuNormGrad(t *testing.T) {
	nrm, _ := NewNeuNorm(2, 0.9)
	nrm.W = egrad.NewParam(tsr([]int{2}, 0.5, -0.25))
	x := egrad.NewParam(tsr([]int{1, 2, 1, 1}, 1, 3))
	o := nrm.Forward(x)
	o.Backward()
	// dW[c] = -sum over planes of g * x_avg
	CmprFloats(nrm.W.Grad.Values, []float32{-0.1, -0.1}, "dW", t)
	// identity path plus the -sum(w)*k1 correction through the average
	CmprFloats(x.Grad.Values, []float32{0.99375, 0.99375}, "dIn", t)
}

func TestNeuNormInit(t *testing.T) {
	nrm, err := NewNeuNorm(16, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	k1 := (1 - float32(0.9)) / 256
	if mat32.Abs(nrm.K1-k1) > difTol {
		t.Errorf("K1: got %v, want %v", nrm.K1, k1)
	}
	if ln := nrm.W.Val.Len(); ln != 16 {
		t.Errorf("W should have one weight per channel: %v", ln)
	}
	for _, w := range nrm.W.Val.Values {
		if w < -1 || w > 1 {
			t.Errorf("W init outside (-1, 1): %v", w)
		}
	}
	if _, err := NewNeuNorm(0, 0.9); err == nil {
		t.Errorf("inChans 0 should fail")
	}
	expectPanic("NeuNorm on non-4D input", func() {
		nrm.Forward(input(1, 2))
	}, t)
}
