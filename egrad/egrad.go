// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package egrad provides a minimal reverse-mode automatic differentiation
engine over etensor.Float32 tensors.

A Value pairs a tensor with an optional gradient and a backward closure.
Package-level operations (Add, Mul, Linear, ...) build the computation
graph as they compute, and Backward on a root Value replays the recorded
closures in reverse topological order, accumulating gradients into every
reachable Value that needs them.

The operation set is deliberately small: exactly what discrete-time
spiking simulation needs.  Components with bespoke gradients (spike
functions, fused spike arithmetic, blocked transforms) build directly on
the NewOp / SetBack extension point instead of on a general broadcasting
system.  Shape mismatches and other hot-path misuse panic with an
egrad-prefixed message; only construction-time configuration is
validated with error returns, elsewhere in this repository.
*/
package egrad

import "github.com/emer/etable/etensor"

// Value is one node in the computation graph: a tensor, an optional
// gradient of the same shape, and the backward closure that propagates
// the output gradient to the node's parents.  Values that do not need
// gradients carry no graph bookkeeping at all, so constants are free.
type Value struct {
	Val  *etensor.Float32 `desc:"the data tensor"`
	Grad *etensor.Float32 `view:"-" desc:"gradient with respect to Val, allocated lazily on first accumulation"`

	needsGrad bool
	back      func()
	pars      []*Value
}

// NewValue wraps an existing tensor.  needsGrad marks it as a gradient
// sink (a leaf the backward pass accumulates into).
func NewValue(t *etensor.Float32, needsGrad bool) *Value {
	return &Value{Val: t, needsGrad: needsGrad}
}

// NewParam wraps a tensor as a trainable parameter (needs gradients).
func NewParam(t *etensor.Float32) *Value {
	return NewValue(t, true)
}

// NewConst wraps a tensor as a constant (no gradients, no graph).
func NewConst(t *etensor.Float32) *Value {
	return NewValue(t, false)
}

// NewScalarParam returns a trainable 1-element parameter, the form used
// for layer-shared decay and feedback weights.
func NewScalarParam(val float32) *Value {
	return NewParam(Full([]int{1}, val))
}

// NewOp wraps the result tensor of a forward computation as a graph
// node whose parents are pars.  The node needs gradients iff any parent
// does; otherwise no parent references are retained, so subgraphs below
// constant inputs are garbage immediately.  Install the backward
// closure with SetBack.  This is the custom-gradient extension point.
func NewOp(t *etensor.Float32, pars ...*Value) *Value {
	ng := false
	for _, p := range pars {
		if p.needsGrad {
			ng = true
			break
		}
	}
	v := &Value{Val: t, needsGrad: ng}
	if ng {
		v.pars = pars
	}
	return v
}

// SetBack installs the backward closure for a Value created by NewOp.
// The closure reads v.Grad and accumulates into each parent's gradient
// (via EnsureGrad).  It is a no-op on Values that do not need
// gradients, so callers can install unconditionally.
func (v *Value) SetBack(fn func()) {
	if v.needsGrad {
		v.back = fn
	}
}

// NeedsGrad reports whether the backward pass accumulates into v.
func (v *Value) NeedsGrad() bool {
	return v.needsGrad
}

// Len returns the number of elements in the underlying tensor.
func (v *Value) Len() int {
	return v.Val.Len()
}

// EnsureGrad returns v's gradient tensor, allocating it zeroed on first
// use.  Backward closures call this before accumulating.
func (v *Value) EnsureGrad() *etensor.Float32 {
	if v.Grad == nil {
		v.Grad = Zeros(v.Val.Shp)
	}
	return v.Grad
}

// ZeroGrad clears the accumulated gradient, keeping the buffer.
// Call on parameters between optimization steps.
func (v *Value) ZeroGrad() {
	if v.Grad == nil {
		return
	}
	for i := range v.Grad.Values {
		v.Grad.Values[i] = 0
	}
}

// Detach returns a gradient-free copy of v with no graph history.
// The tensor is cloned so neither side can alias the other.
func (v *Value) Detach() *Value {
	return NewConst(CloneTensor(v.Val))
}

// Backward seeds v's gradient with ones and propagates it through the
// recorded graph in reverse topological order.  v is typically a
// 1-element loss produced by Sum.  Panics if v does not need gradients
// (nothing upstream to accumulate into).
func (v *Value) Backward() {
	if !v.needsGrad {
		panic("egrad: Backward called on a Value that does not need gradients")
	}
	topo := make([]*Value, 0, 64)
	seen := map[*Value]bool{}
	var visit func(n *Value)
	visit = func(n *Value) {
		if seen[n] || !n.needsGrad {
			return
		}
		seen[n] = true
		for _, p := range n.pars {
			visit(p)
		}
		topo = append(topo, n)
	}
	visit(v)
	g := v.EnsureGrad()
	for i := range g.Values {
		g.Values[i] = 1
	}
	for i := len(topo) - 1; i >= 0; i-- {
		if topo[i].back != nil {
			topo[i].back()
		}
	}
}

// Zeros returns a new zero-filled tensor of the given shape.
func Zeros(shp []int) *etensor.Float32 {
	return etensor.NewFloat32(shp, nil, nil)
}

// Full returns a new tensor of the given shape filled with val.
func Full(shp []int, val float32) *etensor.Float32 {
	t := Zeros(shp)
	for i := range t.Values {
		t.Values[i] = val
	}
	return t
}

// FullLike returns a new tensor shaped like t, filled with val.
func FullLike(t *etensor.Float32, val float32) *etensor.Float32 {
	return Full(t.Shp, val)
}

// CloneTensor returns a deep copy of t (shape and values).
func CloneTensor(t *etensor.Float32) *etensor.Float32 {
	c := Zeros(t.Shp)
	copy(c.Values, t.Values)
	return c
}

// SameShape reports whether two tensors have identical shapes.
func SameShape(a, b *etensor.Float32) bool {
	if len(a.Shp) != len(b.Shp) {
		return false
	}
	for i, d := range a.Shp {
		if b.Shp[i] != d {
			return false
		}
	}
	return true
}

// assertSame panics unless a and b are shape-identical.
func assertSame(op string, a, b *Value) {
	if !SameShape(a.Val, b.Val) {
		panic("egrad: " + op + ": tensor shapes must match")
	}
}
