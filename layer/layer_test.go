// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layer

import (
	"testing"

	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"

	"github.com/emer/snn/egrad"
)

// difTol is the numerical difference tolerance for comparing vs. target values
const difTol = float32(1.0e-6)

func CmprFloats(got, trg []float32, msg string, t *testing.T) {
	for i := range got {
		dif := mat32.Abs(got[i] - trg[i])
		if dif > difTol { // allow for small numerical diffs
			t.Errorf("%v err: idx: %v, got: %v, trg: %v, dif: %v\n", msg, i, got[i], trg[i], dif)
		}
	}
}

func tsr(shp []int, vs ...float32) *etensor.Float32 {
	t := egrad.Zeros(shp)
	copy(t.Values, vs)
	return t
}

func input(vs ...float32) *egrad.Value {
	return egrad.NewConst(tsr([]int{len(vs)}, vs...))
}

func expectPanic(msg string, fn func(), t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("%v: should have panicked", msg)
		}
	}()
	fn()
}

func TestDropoutFrozenMask(t *testing.T) {
	dp, err := NewDropout(0.5)
	if err != nil {
		t.Fatal(err)
	}
	x1 := egrad.NewParam(egrad.Full([]int{4, 64}, 1))
	o1 := dp.Forward(x1)
	zeros := 0
	for _, v := range o1.Val.Values {
		switch v {
		case 0:
			zeros++
		case 2:
		default:
			t.Fatalf("mask output should be 0 or 1/(1-p): %v", v)
		}
	}
	if zeros == 0 || zeros == o1.Val.Len() {
		t.Errorf("mask should mix kept and dropped elements: %v of %v zero", zeros, o1.Val.Len())
	}

	// same mask must apply to every subsequent step of the run
	x2 := egrad.NewConst(egrad.Full([]int{4, 64}, 3))
	o2 := dp.Forward(x2)
	for i := range o2.Val.Values {
		if o2.Val.Values[i] != 3*o1.Val.Values[i] {
			t.Fatalf("mask changed between steps at %v: %v vs %v", i, o2.Val.Values[i], o1.Val.Values[i])
		}
	}

	// gradients route through kept elements only
	o1.Backward()
	CmprFloats(x1.Grad.Values, dp.Mask.Values, "dropout grad == mask", t)

	dp.Reset()
	if dp.Mask != nil {
		t.Errorf("Reset should discard the frozen mask")
	}
}

func TestDropoutEval(t *testing.T) {
	dp, _ := NewDropout(0.25)
	dp.SetTraining(false)
	x := input(1, 2, 3)
	if o := dp.Forward(x); o != x {
		t.Errorf("eval Forward should pass the input through unchanged")
	}
	if dp.Mask != nil {
		t.Errorf("eval Forward should not draw a mask")
	}
	dp.SetTraining(true)
	dp.Forward(x)
	if dp.Mask == nil {
		t.Errorf("training Forward should draw the mask")
	}
}

func TestDropout2dPlanes(t *testing.T) {
	dp, err := NewDropout2d(0.5)
	if err != nil {
		t.Fatal(err)
	}
	x := egrad.NewConst(egrad.Full([]int{4, 16, 2, 1}, 1))
	o := dp.Forward(x)
	plane := 2
	drops := 0
	for bc := 0; bc < 64; bc++ {
		v0 := o.Val.Values[bc*plane]
		if v0 != 0 && v0 != 2 {
			t.Fatalf("plane value should be 0 or 1/(1-p): %v", v0)
		}
		if v0 == 0 {
			drops++
		}
		for pi := 1; pi < plane; pi++ {
			if o.Val.Values[bc*plane+pi] != v0 {
				t.Fatalf("plane %v not dropped or kept as a unit", bc)
			}
		}
	}
	if drops == 0 || drops == 64 {
		t.Errorf("planes should mix kept and dropped: %v of 64 dropped", drops)
	}

	x2 := egrad.NewConst(egrad.Full([]int{4, 16, 2, 1}, 1))
	o2 := dp.Forward(x2)
	CmprFloats(o2.Val.Values, o.Val.Values, "frozen plane mask", t)

	dp.Reset()
	if dp.Mask != nil {
		t.Errorf("Reset should discard the frozen mask")
	}

	expectPanic("Dropout2d on 2D input", func() {
		dp.Forward(egrad.NewConst(tsr([]int{2, 3}, 1, 2, 3, 4, 5, 6)))
	}, t)
}

func TestDropoutErrors(t *testing.T) {
	for _, p := range []float32{0, 1, -0.5, 1.5} {
		if _, err := NewDropout(p); err == nil {
			t.Errorf("NewDropout(%v) should fail", p)
		}
		if _, err := NewDropout2d(p); err == nil {
			t.Errorf("NewDropout2d(%v) should fail", p)
		}
	}
	if _, err := NewDropout(0.5); err != nil {
		t.Errorf("NewDropout(0.5): %v", err)
	}
	if _, err := NewDropout2d(0.2); err != nil {
		t.Errorf("NewDropout2d(0.2): %v", err)
	}
}
