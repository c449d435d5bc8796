// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package accel

import (
	"testing"

	"github.com/goki/mat32"

	"github.com/emer/snn/egrad"
)

// difTol is the numerical difference tolerance for comparing vs. target values
const difTol = float32(1.0e-7)

func CmprFloats(got, trg []float32, msg string, t *testing.T) {
	for i := range got {
		dif := mat32.Abs(got[i] - trg[i])
		if dif > difTol { // allow for small numerical diffs
			t.Errorf("%v err: idx: %v, got: %v, trg: %v, dif: %v\n", msg, i, got[i], trg[i], dif)
		}
	}
}

func vals(vs ...float32) *egrad.Value {
	t := egrad.Zeros([]int{len(vs)})
	copy(t.Values, vs)
	return egrad.NewParam(t)
}

// TestSpikeMulMatchesMul checks the fused forward and backward against
// the general multiply on the same spike-valued inputs.
func TestSpikeMulMatchesMul(t *testing.T) {
	xv := []float32{0.5, -1.25, 3, 0}
	sv := []float32{1, 0, 1, 0}

	x1, s1 := vals(xv...), vals(sv...)
	fused := SpikeMul(x1, s1)
	egrad.Sum(fused).Backward()

	x2, s2 := vals(xv...), vals(sv...)
	gen := egrad.Mul(x2, s2)
	egrad.Sum(gen).Backward()

	CmprFloats(fused.Val.Values, gen.Val.Values, "spikemul fwd", t)
	CmprFloats(x1.Grad.Values, x2.Grad.Values, "spikemul dx", t)
	CmprFloats(s1.Grad.Values, s2.Grad.Values, "spikemul ds", t)
}

func TestAndMulMatchesMul(t *testing.T) {
	av := []float32{1, 1, 0, 0}
	bv := []float32{1, 0, 1, 0}

	a1, b1 := vals(av...), vals(bv...)
	fused := AndMul(a1, b1)
	egrad.Sum(fused).Backward()

	a2, b2 := vals(av...), vals(bv...)
	gen := egrad.Mul(a2, b2)
	egrad.Sum(gen).Backward()

	CmprFloats(fused.Val.Values, []float32{1, 0, 0, 0}, "andmul fwd", t)
	CmprFloats(fused.Val.Values, gen.Val.Values, "andmul vs mul", t)
	CmprFloats(a1.Grad.Values, a2.Grad.Values, "andmul da", t)
	CmprFloats(b1.Grad.Values, b2.Grad.Values, "andmul db", t)
}

func TestSoftVoltageTransform(t *testing.T) {
	vth := float32(1)
	vv := []float32{1.3, 0.4, 2.0}
	sv := []float32{1, 0, 1}

	v1, s1 := vals(vv...), vals(sv...)
	fused := SoftVoltageTransform(v1, s1, vth)
	egrad.Sum(fused).Backward()
	CmprFloats(fused.Val.Values, []float32{0.3, 0.4, 1.0}, "soft fwd", t)

	// general form: v - s*vth
	v2, s2 := vals(vv...), vals(sv...)
	gen := egrad.Sub(v2, egrad.MulScalar(s2, vth))
	egrad.Sum(gen).Backward()

	CmprFloats(fused.Val.Values, gen.Val.Values, "soft vs general", t)
	CmprFloats(v1.Grad.Values, v2.Grad.Values, "soft dv", t)
	CmprFloats(s1.Grad.Values, s2.Grad.Values, "soft ds", t)
}

func TestHardVoltageTransform(t *testing.T) {
	vrst := float32(-0.2)
	vv := []float32{1.3, 0.4, 2.0}
	sv := []float32{1, 0, 1}

	v1, s1 := vals(vv...), vals(sv...)
	fused := HardVoltageTransform(v1, s1, vrst)
	egrad.Sum(fused).Backward()
	CmprFloats(fused.Val.Values, []float32{-0.2, 0.4, -0.2}, "hard fwd", t)

	// general form: v*(1-s) + vrst*s
	v2, s2 := vals(vv...), vals(sv...)
	oneMinus := egrad.AddScalar(egrad.MulScalar(s2, -1), 1)
	gen := egrad.Add(egrad.Mul(v2, oneMinus), egrad.MulScalar(s2, vrst))
	egrad.Sum(gen).Backward()

	CmprFloats(fused.Val.Values, gen.Val.Values, "hard vs general", t)
	CmprFloats(v1.Grad.Values, v2.Grad.Values, "hard dv", t)
	CmprFloats(s1.Grad.Values, s2.Grad.Values, "hard ds", t)
}
