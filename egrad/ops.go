// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package egrad

import "github.com/goki/mat32"

// Add returns the elementwise sum a + b.  Shapes must match.
func Add(a, b *Value) *Value {
	assertSame("Add", a, b)
	t := Zeros(a.Val.Shp)
	for i, av := range a.Val.Values {
		t.Values[i] = av + b.Val.Values[i]
	}
	out := NewOp(t, a, b)
	out.SetBack(func() {
		if a.needsGrad {
			ag := a.EnsureGrad()
			for i, g := range out.Grad.Values {
				ag.Values[i] += g
			}
		}
		if b.needsGrad {
			bg := b.EnsureGrad()
			for i, g := range out.Grad.Values {
				bg.Values[i] += g
			}
		}
	})
	return out
}

// Sub returns the elementwise difference a - b.  Shapes must match.
func Sub(a, b *Value) *Value {
	assertSame("Sub", a, b)
	t := Zeros(a.Val.Shp)
	for i, av := range a.Val.Values {
		t.Values[i] = av - b.Val.Values[i]
	}
	out := NewOp(t, a, b)
	out.SetBack(func() {
		if a.needsGrad {
			ag := a.EnsureGrad()
			for i, g := range out.Grad.Values {
				ag.Values[i] += g
			}
		}
		if b.needsGrad {
			bg := b.EnsureGrad()
			for i, g := range out.Grad.Values {
				bg.Values[i] -= g
			}
		}
	})
	return out
}

// Mul returns the elementwise (Hadamard) product a * b.  Shapes must
// match.  For spike-valued operands the fused forms in the accel
// package compute the same result with masked loops.
func Mul(a, b *Value) *Value {
	assertSame("Mul", a, b)
	t := Zeros(a.Val.Shp)
	for i, av := range a.Val.Values {
		t.Values[i] = av * b.Val.Values[i]
	}
	out := NewOp(t, a, b)
	out.SetBack(func() {
		if a.needsGrad {
			ag := a.EnsureGrad()
			for i, g := range out.Grad.Values {
				ag.Values[i] += g * b.Val.Values[i]
			}
		}
		if b.needsGrad {
			bg := b.EnsureGrad()
			for i, g := range out.Grad.Values {
				bg.Values[i] += g * a.Val.Values[i]
			}
		}
	})
	return out
}

// AddScalar returns x + c elementwise for a plain (non-learnable)
// scalar c.
func AddScalar(x *Value, c float32) *Value {
	t := Zeros(x.Val.Shp)
	for i, xv := range x.Val.Values {
		t.Values[i] = xv + c
	}
	out := NewOp(t, x)
	out.SetBack(func() {
		xg := x.EnsureGrad()
		for i, g := range out.Grad.Values {
			xg.Values[i] += g
		}
	})
	return out
}

// MulScalar returns x * c elementwise for a plain (non-learnable)
// scalar c.
func MulScalar(x *Value, c float32) *Value {
	t := Zeros(x.Val.Shp)
	for i, xv := range x.Val.Values {
		t.Values[i] = xv * c
	}
	out := NewOp(t, x)
	out.SetBack(func() {
		xg := x.EnsureGrad()
		for i, g := range out.Grad.Values {
			xg.Values[i] += g * c
		}
	})
	return out
}

// Scale returns s * x where s is a 1-element Value, broadcast over all
// of x.  This is the shared-parameter multiply used by layer-wide decay
// terms: the gradient to s is the full contraction sum(g * x).
func Scale(x, s *Value) *Value {
	if s.Val.Len() != 1 {
		panic("egrad: Scale: s must have exactly 1 element")
	}
	sv := s.Val.Values[0]
	t := Zeros(x.Val.Shp)
	for i, xv := range x.Val.Values {
		t.Values[i] = xv * sv
	}
	out := NewOp(t, x, s)
	out.SetBack(func() {
		if x.needsGrad {
			xg := x.EnsureGrad()
			for i, g := range out.Grad.Values {
				xg.Values[i] += g * sv
			}
		}
		if s.needsGrad {
			sg := s.EnsureGrad()
			var sum float32
			for i, g := range out.Grad.Values {
				sum += g * x.Val.Values[i]
			}
			sg.Values[0] += sum
		}
	})
	return out
}

// Sigmoid returns the elementwise logistic 1 / (1 + exp(-x)) with its
// true gradient out * (1 - out).
func Sigmoid(x *Value) *Value {
	t := Zeros(x.Val.Shp)
	for i, xv := range x.Val.Values {
		t.Values[i] = 1 / (1 + mat32.Exp(-xv))
	}
	out := NewOp(t, x)
	out.SetBack(func() {
		xg := x.EnsureGrad()
		for i, g := range out.Grad.Values {
			o := t.Values[i]
			xg.Values[i] += g * o * (1 - o)
		}
	})
	return out
}

// Sum reduces x to a 1-element Value holding the total of all elements.
// The usual way to form a scalar root for Backward in tests.
func Sum(x *Value) *Value {
	var sum float32
	for _, xv := range x.Val.Values {
		sum += xv
	}
	out := NewOp(Full([]int{1}, sum), x)
	out.SetBack(func() {
		xg := x.EnsureGrad()
		g := out.Grad.Values[0]
		for i := range xg.Values {
			xg.Values[i] += g
		}
	})
	return out
}

// Chunk splits the last dimension of x into n equal parts, returning
// them in order.  The backward pass reassembles the gradient.  Panics
// if the last dimension does not divide evenly.
func Chunk(x *Value, n int) []*Value {
	nd := x.Val.NumDims()
	sz := x.Val.Dim(nd - 1)
	if n <= 0 || sz%n != 0 {
		panic("egrad: Chunk: last dimension must divide evenly into n parts")
	}
	w := sz / n
	rows := x.Val.Len() / sz
	outs := make([]*Value, n)
	for k := 0; k < n; k++ {
		shp := make([]int, nd)
		copy(shp, x.Val.Shp)
		shp[nd-1] = w
		t := Zeros(shp)
		for r := 0; r < rows; r++ {
			copy(t.Values[r*w:(r+1)*w], x.Val.Values[r*sz+k*w:r*sz+(k+1)*w])
		}
		out := NewOp(t, x)
		kk := k
		out.SetBack(func() {
			xg := x.EnsureGrad()
			for r := 0; r < rows; r++ {
				for c := 0; c < w; c++ {
					xg.Values[r*sz+kk*w+c] += out.Grad.Values[r*w+c]
				}
			}
		})
		outs[k] = out
	}
	return outs
}
