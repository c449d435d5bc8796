// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package accel provides fused elementwise arithmetic for spike-valued
tensors.  When one operand is known to be exactly 0/1, multiplication
reduces to masked selection and the post-spike voltage update reduces
to a conditional overwrite, so the forward loops here select instead of
computing.  The backward closures apply the exact product-rule
gradients, so on spike inputs every function matches its general egrad
counterpart bit for bit.

Spike-valuedness is a documented precondition, not re-verified here:
callers gate these paths on surrogate.SpikeFn.Spiking() and fall back
to the general operations for continuous values.
*/
package accel

import "github.com/emer/snn/egrad"

func assertSame(op string, a, b *egrad.Value) {
	if !egrad.SameShape(a.Val, b.Val) {
		panic("accel: " + op + ": tensor shapes must match")
	}
}

// SpikeMul returns x * s where s is spike-valued: the forward pass
// copies x where s fired and leaves zero elsewhere.  Gradients flow to
// both operands by the product rule.
func SpikeMul(x, s *egrad.Value) *egrad.Value {
	assertSame("SpikeMul", x, s)
	t := egrad.Zeros(x.Val.Shp)
	for i, sv := range s.Val.Values {
		if sv != 0 {
			t.Values[i] = x.Val.Values[i]
		}
	}
	out := egrad.NewOp(t, x, s)
	out.SetBack(func() {
		if x.NeedsGrad() {
			xg := x.EnsureGrad()
			for i, g := range out.Grad.Values {
				xg.Values[i] += g * s.Val.Values[i]
			}
		}
		if s.NeedsGrad() {
			sg := s.EnsureGrad()
			for i, g := range out.Grad.Values {
				sg.Values[i] += g * x.Val.Values[i]
			}
		}
	})
	return out
}

// AndMul returns a * b where both operands are spike-valued: the
// forward pass is a logical AND.
func AndMul(a, b *egrad.Value) *egrad.Value {
	assertSame("AndMul", a, b)
	t := egrad.Zeros(a.Val.Shp)
	for i, av := range a.Val.Values {
		if av != 0 && b.Val.Values[i] != 0 {
			t.Values[i] = 1
		}
	}
	out := egrad.NewOp(t, a, b)
	out.SetBack(func() {
		if a.NeedsGrad() {
			ag := a.EnsureGrad()
			for i, g := range out.Grad.Values {
				ag.Values[i] += g * b.Val.Values[i]
			}
		}
		if b.NeedsGrad() {
			bg := b.EnsureGrad()
			for i, g := range out.Grad.Values {
				bg.Values[i] += g * a.Val.Values[i]
			}
		}
	})
	return out
}

// SoftVoltageTransform returns v - s*vth for spike-valued s: the
// threshold is subtracted only where a spike fired.  Gradient to v is
// the identity; gradient to s is -vth.
func SoftVoltageTransform(v, s *egrad.Value, vth float32) *egrad.Value {
	assertSame("SoftVoltageTransform", v, s)
	t := egrad.CloneTensor(v.Val)
	for i, sv := range s.Val.Values {
		if sv != 0 {
			t.Values[i] -= vth
		}
	}
	out := egrad.NewOp(t, v, s)
	out.SetBack(func() {
		if v.NeedsGrad() {
			vg := v.EnsureGrad()
			for i, g := range out.Grad.Values {
				vg.Values[i] += g
			}
		}
		if s.NeedsGrad() {
			sg := s.EnsureGrad()
			for i, g := range out.Grad.Values {
				sg.Values[i] -= g * vth
			}
		}
	})
	return out
}

// HardVoltageTransform returns v*(1-s) + vrst*s for spike-valued s:
// the potential snaps to vrst where a spike fired and is untouched
// elsewhere.  Gradient to v is masked by (1-s); gradient to s is
// (vrst - v).
func HardVoltageTransform(v, s *egrad.Value, vrst float32) *egrad.Value {
	assertSame("HardVoltageTransform", v, s)
	t := egrad.CloneTensor(v.Val)
	for i, sv := range s.Val.Values {
		if sv != 0 {
			t.Values[i] = vrst
		}
	}
	out := egrad.NewOp(t, v, s)
	out.SetBack(func() {
		if v.NeedsGrad() {
			vg := v.EnsureGrad()
			for i, g := range out.Grad.Values {
				vg.Values[i] += g * (1 - s.Val.Values[i])
			}
		}
		if s.NeedsGrad() {
			sg := s.EnsureGrad()
			for i, g := range out.Grad.Values {
				sg.Values[i] += g * (vrst - v.Val.Values[i])
			}
		}
	})
	return out
}
