// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package egrad

import "github.com/emer/etable/etensor"

// Linear returns x*w' + b for x [n,in], w [out,in] and optional b [out]
// (nil for no bias), producing [n,out].  The weight layout keeps each
// output unit's incoming weights contiguous.
func Linear(x, w, b *Value) *Value {
	if x.Val.NumDims() != 2 || w.Val.NumDims() != 2 {
		panic("egrad: Linear: x and w must be 2D")
	}
	n, in := x.Val.Dim(0), x.Val.Dim(1)
	nout, win := w.Val.Dim(0), w.Val.Dim(1)
	if win != in {
		panic("egrad: Linear: w columns must match x features")
	}
	if b != nil && b.Val.Len() != nout {
		panic("egrad: Linear: b length must match w rows")
	}
	t := Zeros([]int{n, nout})
	for r := 0; r < n; r++ {
		xr := x.Val.Values[r*in : (r+1)*in]
		for o := 0; o < nout; o++ {
			wr := w.Val.Values[o*in : (o+1)*in]
			var sum float32
			for i, xv := range xr {
				sum += xv * wr[i]
			}
			if b != nil {
				sum += b.Val.Values[o]
			}
			t.Values[r*nout+o] = sum
		}
	}
	var out *Value
	if b != nil {
		out = NewOp(t, x, w, b)
	} else {
		out = NewOp(t, x, w)
	}
	out.SetBack(func() {
		if x.needsGrad {
			xg := x.EnsureGrad()
			for r := 0; r < n; r++ {
				for o := 0; o < nout; o++ {
					g := out.Grad.Values[r*nout+o]
					for i := 0; i < in; i++ {
						xg.Values[r*in+i] += g * w.Val.Values[o*in+i]
					}
				}
			}
		}
		if w.needsGrad {
			wg := w.EnsureGrad()
			for r := 0; r < n; r++ {
				for o := 0; o < nout; o++ {
					g := out.Grad.Values[r*nout+o]
					for i := 0; i < in; i++ {
						wg.Values[o*in+i] += g * x.Val.Values[r*in+i]
					}
				}
			}
		}
		if b != nil && b.needsGrad {
			bg := b.EnsureGrad()
			for r := 0; r < n; r++ {
				for o := 0; o < nout; o++ {
					bg.Values[o] += out.Grad.Values[r*nout+o]
				}
			}
		}
	})
	return out
}

// MatMulT is the raw (non-graph) 2D matrix product op(a) @ op(b), with
// each operand optionally transposed.  It is the building block the
// blocked-transform layers use to express their bespoke backward
// formulas.  Panics unless both tensors are 2D with matching inner
// dimensions.
func MatMulT(a, b *etensor.Float32, ta, tb bool) *etensor.Float32 {
	if a.NumDims() != 2 || b.NumDims() != 2 {
		panic("egrad: MatMulT: tensors must be 2D")
	}
	ac := a.Dim(1)
	bc := b.Dim(1)
	m, k := a.Dim(0), ac
	if ta {
		m, k = ac, a.Dim(0)
	}
	k2, n := b.Dim(0), bc
	if tb {
		k2, n = bc, b.Dim(0)
	}
	if k != k2 {
		panic("egrad: MatMulT: inner dimensions must match")
	}
	out := Zeros([]int{m, n})
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for l := 0; l < k; l++ {
				var av, bv float32
				if ta {
					av = a.Values[l*ac+i]
				} else {
					av = a.Values[i*ac+l]
				}
				if tb {
					bv = b.Values[j*bc+l]
				} else {
					bv = b.Values[l*bc+j]
				}
				sum += av * bv
			}
			out.Values[i*n+j] = sum
		}
	}
	return out
}
