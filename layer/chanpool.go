// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layer

import (
	"fmt"

	"github.com/emer/snn/egrad"
)

// ChannelsMaxPool max-pools over the channel dimension of a
// [Batch, Channels, ...] input, leaving any spatial dimensions
// untouched: [N, C, ...] -> [N, (C-Kernel)/Stride+1, ...].
// Gradients route to the first maximal channel in each window.
type ChannelsMaxPool struct {
	Kernel int `desc:"pooling window size over channels"`
	Stride int `desc:"window step over channels, = Kernel by default"`
}

func NewChannelsMaxPool(kernel int) (*ChannelsMaxPool, error) {
	if kernel < 1 {
		return nil, fmt.Errorf("layer.NewChannelsMaxPool: kernel must be >= 1, got %v", kernel)
	}
	return &ChannelsMaxPool{Kernel: kernel, Stride: kernel}, nil
}

func (cp *ChannelsMaxPool) Forward(x *egrad.Value) *egrad.Value {
	xt := x.Val
	if xt.NumDims() < 2 {
		panic("layer: ChannelsMaxPool needs input with dims [N, C, ...]")
	}
	n := xt.Dim(0)
	c := xt.Dim(1)
	plane := xt.Len() / (n * c)
	cout := (c-cp.Kernel)/cp.Stride + 1
	if cp.Kernel > c || cout < 1 {
		panic(fmt.Sprintf("layer: ChannelsMaxPool kernel %v does not fit %v channels", cp.Kernel, c))
	}
	shp := make([]int, xt.NumDims())
	copy(shp, xt.Shp)
	shp[1] = cout

	t := egrad.Zeros(shp)
	arg := make([]int, t.Len())
	for b := 0; b < n; b++ {
		for co := 0; co < cout; co++ {
			c0 := co * cp.Stride
			for p := 0; p < plane; p++ {
				ai := (b*c+c0)*plane + p
				mx := xt.Values[ai]
				for kc := 1; kc < cp.Kernel; kc++ {
					xi := (b*c+c0+kc)*plane + p
					if xt.Values[xi] > mx {
						mx = xt.Values[xi]
						ai = xi
					}
				}
				oi := (b*cout+co)*plane + p
				t.Values[oi] = mx
				arg[oi] = ai
			}
		}
	}

	out := egrad.NewOp(t, x)
	out.SetBack(func() {
		xg := x.EnsureGrad()
		for oi, ai := range arg {
			xg.Values[ai] += out.Grad.Values[oi]
		}
	})
	return out
}
