// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layer

import "testing"

func TestLowPassSynapse(t *testing.T) {
	sn, err := NewLowPassSynapse(10, false)
	if err != nil {
		t.Fatal(err)
	}
	if tau := sn.Tau(); tau != 10 {
		t.Errorf("Tau: got %v, want 10", tau)
	}
	got := []float32{}
	for _, s := range []float32{1, 0, 0} {
		got = append(got, sn.Forward(input(s)).Val.Values[0])
	}
	CmprFloats(got, []float32{1, 0.9, 0.81}, "spike then exponential decay", t)

	sn.Reset()
	if sn.I != nil {
		t.Errorf("Reset should clear the accumulated current")
	}
	i := sn.Forward(input(0.5))
	CmprFloats(i.Val.Values, []float32{0.5}, "first step copies the input", t)
}

func TestLowPassSynapseElementwise(t *testing.T) {
	sn, _ := NewLowPassSynapse(10, false)
	sn.Forward(input(1, 0))
	i := sn.Forward(input(0, 1))
	CmprFloats(i.Val.Values, []float32{0.9, 1}, "decay and jump are per element", t)
}

func TestLowPassSynapseLearnable(t *testing.T) {
	sn, err := NewLowPassSynapse(2, true)
	if err != nil {
		t.Fatal(err)
	}
	if !sn.Rate.NeedsGrad() {
		t.Fatalf("learnable synapse should have a trainable rate")
	}
	sn.Forward(input(1))
	i2 := sn.Forward(input(0))
	CmprFloats(i2.Val.Values, []float32{0.5}, "decay with tau 2", t)

	// i2 = 1 - rate, so di2/drate = -1
	i2.Backward()
	CmprFloats(sn.Rate.Grad.Values, []float32{-1}, "rate gradient", t)

	sn.Reset()
	if sn.Tau() != 2 {
		t.Errorf("rate parameter should survive Reset")
	}
}

func TestLowPassSynapseErrors(t *testing.T) {
	if _, err := NewLowPassSynapse(0, false); err == nil {
		t.Errorf("tau 0 should fail")
	}
	if _, err := NewLowPassSynapse(-5, true); err == nil {
		t.Errorf("negative tau should fail")
	}
	if _, err := NewLowPassSynapse(DefSynTau, false); err != nil {
		t.Errorf("DefSynTau: %v", err)
	}
}
