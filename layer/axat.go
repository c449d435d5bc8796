// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layer

import (
	"fmt"
	"math"

	"github.com/emer/emergent/erand"
	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"

	"github.com/emer/snn/egrad"
)

// AXAT applies the learned bilinear transform A*X*A' to every trailing
// square matrix of the input: [*, In, In] -> [*, Out, Out], with any
// leading dimensions treated as batch.
type AXAT struct {
	In  int          `desc:"trailing input matrix size"`
	Out int          `desc:"trailing output matrix size"`
	A   *egrad.Value `view:"-" desc:"transform matrix [Out, In], learned, init U(-1/sqrt(In), 1/sqrt(In))"`
}

func NewAXAT(inFeat, outFeat int) (*AXAT, error) {
	if inFeat < 1 || outFeat < 1 {
		return nil, fmt.Errorf("layer.NewAXAT: sizes must be >= 1, got in: %v, out: %v", inFeat, outFeat)
	}
	ax := &AXAT{In: inFeat, Out: outFeat}
	a := egrad.Zeros([]int{outFeat, inFeat})
	rp := erand.RndParams{Dist: erand.Uniform, Mean: 0, Var: float64(1 / mat32.Sqrt(float32(inFeat)))}
	for i := range a.Values {
		a.Values[i] = float32(rp.Gen(-1))
	}
	ax.A = egrad.NewParam(a)
	return ax, nil
}

// Forward transforms every trailing [In, In] matrix, with gradients
// for both the input and A: dX = A'*G*A, dA = G*A*X' + G'*A*X.
func (ax *AXAT) Forward(x *egrad.Value) *egrad.Value {
	xt := x.Val
	nd := xt.NumDims()
	in, out := ax.In, ax.Out
	if nd < 2 || xt.Dim(nd-2) != in || xt.Dim(nd-1) != in {
		panic(fmt.Sprintf("layer: AXAT needs input with trailing dims [%v, %v], got %v", in, in, xt.Shp))
	}
	n := xt.Len() / (in * in)
	shp := make([]int, nd)
	copy(shp, xt.Shp)
	shp[nd-2], shp[nd-1] = out, out
	av := ax.A.Val

	t := etensor.NewFloat32(shp, nil, nil)
	xb := etensor.NewFloat32([]int{in, in}, nil, nil)
	for b := 0; b < n; b++ {
		copy(xb.Values, xt.Values[b*in*in:(b+1)*in*in])
		yb := egrad.MatMulT(egrad.MatMulT(av, xb, false, false), av, false, true)
		copy(t.Values[b*out*out:(b+1)*out*out], yb.Values)
	}

	a := ax.A
	res := egrad.NewOp(t, x, a)
	res.SetBack(func() {
		xbk := etensor.NewFloat32([]int{in, in}, nil, nil)
		gb := etensor.NewFloat32([]int{out, out}, nil, nil)
		for b := 0; b < n; b++ {
			copy(xbk.Values, xt.Values[b*in*in:(b+1)*in*in])
			copy(gb.Values, res.Grad.Values[b*out*out:(b+1)*out*out])
			if x.NeedsGrad() {
				xg := x.EnsureGrad()
				dx := egrad.MatMulT(egrad.MatMulT(av, gb, true, false), av, false, false)
				for i, g := range dx.Values {
					xg.Values[b*in*in+i] += g
				}
			}
			if a.NeedsGrad() {
				ag := a.EnsureGrad()
				ga := egrad.MatMulT(gb, av, false, false)
				axb := egrad.MatMulT(av, xbk, false, false)
				da1 := egrad.MatMulT(ga, xbk, false, true)
				da2 := egrad.MatMulT(gb, axb, true, false)
				for i := range ag.Values {
					ag.Values[i] += da1.Values[i] + da2.Values[i]
				}
			}
		}
	})
	return res
}

//////////////////////////////////////////////////////////////////////
// DCT

// DCT applies a blocked discrete cosine transform to the trailing two
// dimensions of the input, a fixed special case of AXAT: each
// [Size, Size] block is replaced by K*block*K' for the orthonormal
// DCT-II kernel K.  Both trailing dimensions must be divisible by
// Size.  The kernel is constant; gradients flow through to the input
// only.
type DCT struct {
	Size   int              `desc:"transform block size"`
	Kernel *etensor.Float32 `view:"-" desc:"DCT-II kernel [Size, Size], constant"`
}

func NewDCT(size int) (*DCT, error) {
	if size < 1 {
		return nil, fmt.Errorf("layer.NewDCT: size must be >= 1, got %v", size)
	}
	k := egrad.Zeros([]int{size, size})
	for i := 0; i < size; i++ {
		scl := math.Sqrt(2 / float64(size))
		if i == 0 {
			scl = math.Sqrt(1 / float64(size))
		}
		for j := 0; j < size; j++ {
			k.Values[i*size+j] = float32(scl * math.Cos((float64(j)+0.5)*math.Pi*float64(i)/float64(size)))
		}
	}
	return &DCT{Size: size, Kernel: k}, nil
}

// Forward transforms every Size x Size block of the trailing two
// dimensions: dX_block = K'*G_block*K.
func (dc *DCT) Forward(x *egrad.Value) *egrad.Value {
	xt := x.Val
	nd := xt.NumDims()
	if nd < 2 {
		panic("layer: DCT needs input with two trailing dimensions")
	}
	w, h := xt.Dim(nd-2), xt.Dim(nd-1)
	ks := dc.Size
	if w%ks != 0 || h%ks != 0 {
		panic(fmt.Sprintf("layer: DCT input trailing dims [%v, %v] not divisible by block size %v", w, h, ks))
	}
	n := xt.Len() / (w * h)
	t := egrad.Zeros(xt.Shp)
	bb := etensor.NewFloat32([]int{ks, ks}, nil, nil)
	for b := 0; b < n; b++ {
		base := b * w * h
		for bi := 0; bi < w; bi += ks {
			for bj := 0; bj < h; bj += ks {
				getBlock(xt.Values, bb.Values, base, bi, bj, h, ks)
				yb := egrad.MatMulT(egrad.MatMulT(dc.Kernel, bb, false, false), dc.Kernel, false, true)
				setBlock(t.Values, yb.Values, base, bi, bj, h, ks, false)
			}
		}
	}
	out := egrad.NewOp(t, x)
	out.SetBack(func() {
		xg := x.EnsureGrad()
		gb := etensor.NewFloat32([]int{ks, ks}, nil, nil)
		for b := 0; b < n; b++ {
			base := b * w * h
			for bi := 0; bi < w; bi += ks {
				for bj := 0; bj < h; bj += ks {
					getBlock(out.Grad.Values, gb.Values, base, bi, bj, h, ks)
					db := egrad.MatMulT(egrad.MatMulT(dc.Kernel, gb, true, false), dc.Kernel, false, false)
					setBlock(xg.Values, db.Values, base, bi, bj, h, ks, true)
				}
			}
		}
	})
	return out
}

// getBlock copies the ks x ks block at (bi, bj) of the row-major
// [w, h] slice starting at base into dst.
func getBlock(src, dst []float32, base, bi, bj, h, ks int) {
	for r := 0; r < ks; r++ {
		copy(dst[r*ks:(r+1)*ks], src[base+(bi+r)*h+bj:base+(bi+r)*h+bj+ks])
	}
}

// setBlock writes (or accumulates, when acc) src into the ks x ks
// block at (bi, bj).
func setBlock(dst, src []float32, base, bi, bj, h, ks int, acc bool) {
	for r := 0; r < ks; r++ {
		off := base + (bi+r)*h + bj
		if acc {
			for c := 0; c < ks; c++ {
				dst[off+c] += src[r*ks+c]
			}
		} else {
			copy(dst[off:off+ks], src[r*ks:(r+1)*ks])
		}
	}
}
