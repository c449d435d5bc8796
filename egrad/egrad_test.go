// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package egrad

import (
	"testing"

	"github.com/goki/mat32"
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

func vals(vs ...float32) *Value {
	t := Zeros([]int{len(vs)})
	copy(t.Values, vs)
	return NewParam(t)
}

func TestElementwise(t *testing.T) {
	a := vals(1, -2, 3)
	b := vals(0.5, 4, -1)

	sum := Add(a, b)
	CmprFloats(sum.Val.Values, []float32{1.5, 2, 2}, "add fwd", t)

	dif := Sub(a, b)
	CmprFloats(dif.Val.Values, []float32{0.5, -6, 4}, "sub fwd", t)

	prd := Mul(a, b)
	CmprFloats(prd.Val.Values, []float32{0.5, -8, -3}, "mul fwd", t)

	Sum(prd).Backward()
	CmprFloats(a.Grad.Values, []float32{0.5, 4, -1}, "mul da", t)
	CmprFloats(b.Grad.Values, []float32{1, -2, 3}, "mul db", t)
}

func TestScalarOps(t *testing.T) {
	x := vals(1, 2, 3)
	y := MulScalar(AddScalar(x, -1), 2) // 2*(x-1)
	CmprFloats(y.Val.Values, []float32{0, 2, 4}, "scalar fwd", t)
	Sum(y).Backward()
	CmprFloats(x.Grad.Values, []float32{2, 2, 2}, "scalar dx", t)

	x2 := vals(1, 2, 3)
	s := NewScalarParam(0.5)
	z := Scale(x2, s)
	CmprFloats(z.Val.Values, []float32{0.5, 1, 1.5}, "scale fwd", t)
	Sum(z).Backward()
	CmprFloats(x2.Grad.Values, []float32{0.5, 0.5, 0.5}, "scale dx", t)
	CmprFloats(s.Grad.Values, []float32{6}, "scale ds", t)
}

func TestSigmoid(t *testing.T) {
	x := vals(-2, 0, 1)
	y := Sigmoid(x)
	CmprFloats(y.Val.Values, []float32{0.11920292, 0.5, 0.7310586}, "sigmoid fwd", t)
	Sum(y).Backward()
	CmprFloats(x.Grad.Values, []float32{0.10499358, 0.25, 0.19661193}, "sigmoid dx", t)
}

func TestLinear(t *testing.T) {
	x := NewParam(Zeros([]int{2, 2}))
	copy(x.Val.Values, []float32{1, 2, 3, 4})
	w := NewParam(Zeros([]int{2, 2}))
	copy(w.Val.Values, []float32{0.5, -1, 1, 1})
	b := vals(0.1, -0.1)

	y := Linear(x, w, b)
	CmprFloats(y.Val.Values, []float32{-1.4, 2.9, -2.4, 6.9}, "linear fwd", t)

	Sum(y).Backward()
	CmprFloats(x.Grad.Values, []float32{1.5, 0, 1.5, 0}, "linear dx", t)
	CmprFloats(w.Grad.Values, []float32{4, 6, 4, 6}, "linear dw", t)
	CmprFloats(b.Grad.Values, []float32{2, 2}, "linear db", t)
}

func TestChunk(t *testing.T) {
	x := NewParam(Zeros([]int{2, 4}))
	copy(x.Val.Values, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	cks := Chunk(x, 2)
	if len(cks) != 2 {
		t.Fatalf("chunk count: got %v, want 2", len(cks))
	}
	CmprFloats(cks[0].Val.Values, []float32{1, 2, 5, 6}, "chunk 0", t)
	CmprFloats(cks[1].Val.Values, []float32{3, 4, 7, 8}, "chunk 1", t)

	// backward through only the first chunk: gradient lands in its columns
	Sum(cks[0]).Backward()
	CmprFloats(x.Grad.Values, []float32{1, 1, 0, 0, 1, 1, 0, 0}, "chunk dx", t)
}

func TestBackwardAccum(t *testing.T) {
	// shared subexpression must accumulate, not overwrite
	x := vals(3)
	y := Add(x, x)
	Sum(y).Backward()
	CmprFloats(x.Grad.Values, []float32{2}, "x+x dx", t)

	x2 := vals(3)
	z := Mul(x2, x2)
	Sum(z).Backward()
	CmprFloats(x2.Grad.Values, []float32{6}, "x*x dx", t)
}

func TestMatMulT(t *testing.T) {
	a := Zeros([]int{2, 3})
	copy(a.Values, []float32{1, 2, 3, 4, 5, 6})
	b := Zeros([]int{3, 2})
	copy(b.Values, []float32{7, 8, 9, 10, 11, 12})

	ab := MatMulT(a, b, false, false)
	CmprFloats(ab.Values, []float32{58, 64, 139, 154}, "a@b", t)

	// a' @ a: [3,2]' form via transA on [2,3]
	ata := MatMulT(a, a, true, false)
	CmprFloats(ata.Values, []float32{17, 22, 27, 22, 29, 36, 27, 36, 45}, "a'@a", t)

	// b @ b' : [3,2] @ [2,3]
	bbt := MatMulT(b, b, false, true)
	CmprFloats(bbt.Values, []float32{113, 143, 173, 143, 181, 219, 173, 219, 265}, "b@b'", t)
}

func TestConstSkipsGraph(t *testing.T) {
	a := NewConst(Full([]int{3}, 1))
	b := NewConst(Full([]int{3}, 2))
	y := Mul(a, b)
	if y.NeedsGrad() {
		t.Errorf("op over constants should not need gradients")
	}

	p := vals(1, 1, 1)
	z := Mul(p, b)
	if !z.NeedsGrad() {
		t.Errorf("op over a parameter should need gradients")
	}
}

func TestZeroGrad(t *testing.T) {
	x := vals(1, 2)
	Sum(Mul(x, x)).Backward()
	CmprFloats(x.Grad.Values, []float32{2, 4}, "before zero", t)
	x.ZeroGrad()
	CmprFloats(x.Grad.Values, []float32{0, 0}, "after zero", t)
}
