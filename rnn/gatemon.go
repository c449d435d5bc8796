// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rnn

import (
	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"

	"github.com/emer/snn/egrad"
)

// GateMonitor buffers detached per-step snapshots of the four gate
// outputs and the resulting cell and hidden state of one cell.  In
// spiking mode the gate tensors are 0/1, so a gate's per-step mean is
// its firing rate: the fraction of gate units that fired.  Useful for
// spotting dead or saturated gates during training.
type GateMonitor struct {
	I []*etensor.Float32 `desc:"input gate output per step"`
	F []*etensor.Float32 `desc:"forget gate output per step"`
	G []*etensor.Float32 `desc:"candidate gate output per step"`
	O []*etensor.Float32 `desc:"output gate output per step"`
	C []*etensor.Float32 `desc:"cell state per step"`
	H []*etensor.Float32 `desc:"hidden state per step"`
}

func (gm *GateMonitor) record(i, f, g, o, c, h *etensor.Float32) {
	gm.I = append(gm.I, egrad.CloneTensor(i))
	gm.F = append(gm.F, egrad.CloneTensor(f))
	gm.G = append(gm.G, egrad.CloneTensor(g))
	gm.O = append(gm.O, egrad.CloneTensor(o))
	gm.C = append(gm.C, egrad.CloneTensor(c))
	gm.H = append(gm.H, egrad.CloneTensor(h))
}

// GateRates returns the mean of each gate's output at the given step --
// in spiking mode, the fraction of gate units that fired.
func (gm *GateMonitor) GateRates(step int) (i, f, g, o float32) {
	return meanVal(gm.I[step]), meanVal(gm.F[step]), meanVal(gm.G[step]), meanVal(gm.O[step])
}

func meanVal(t *etensor.Float32) float32 {
	if len(t.Values) == 0 {
		return 0
	}
	var sum float32
	for _, v := range t.Values {
		sum += v
	}
	return sum / float32(len(t.Values))
}

// Steps returns the number of recorded steps.
func (gm *GateMonitor) Steps() int {
	return len(gm.I)
}

// Reset discards all recorded snapshots.
func (gm *GateMonitor) Reset() {
	gm.I, gm.F, gm.G, gm.O = nil, nil, nil, nil
	gm.C, gm.H = nil, nil
}

// ToTable exports per-step gate firing rates and state means as an
// etable, one row per step.
func (gm *GateMonitor) ToTable() *etable.Table {
	sch := etable.Schema{
		{"Step", etensor.INT64, nil, nil},
		{"IGate", etensor.FLOAT32, nil, nil},
		{"FGate", etensor.FLOAT32, nil, nil},
		{"GGate", etensor.FLOAT32, nil, nil},
		{"OGate", etensor.FLOAT32, nil, nil},
		{"CMean", etensor.FLOAT32, nil, nil},
		{"HMean", etensor.FLOAT32, nil, nil},
	}
	dt := &etable.Table{}
	dt.SetFromSchema(sch, gm.Steps())
	dt.SetMetaData("name", "GateMonitor")
	dt.SetMetaData("desc", "per-step firing rate of the four lstm gates and state means")
	for r := 0; r < gm.Steps(); r++ {
		i, f, g, o := gm.GateRates(r)
		dt.SetCellFloat("Step", r, float64(r))
		dt.SetCellFloat("IGate", r, float64(i))
		dt.SetCellFloat("FGate", r, float64(f))
		dt.SetCellFloat("GGate", r, float64(g))
		dt.SetCellFloat("OGate", r, float64(o))
		dt.SetCellFloat("CMean", r, float64(meanVal(gm.C[r])))
		dt.SetCellFloat("HMean", r, float64(meanVal(gm.H[r])))
	}
	return dt
}
