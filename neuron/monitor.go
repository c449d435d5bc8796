// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neuron

import (
	"fmt"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
	"github.com/emer/etable/minmax"

	"github.com/emer/snn/egrad"
)

// Recorder observes per-step membrane and spike snapshots.  The
// standard implementation is Monitor; anything implementing this can
// be injected via SetRecorder (streaming to disk, aggregating online
// statistics) without buffering full histories.
type Recorder interface {
	// Step records one simulation step: the pre-reset potential and the
	// spike output.  Implementations must copy what they keep -- the
	// tensors are owned by the node.
	Step(v, s *etensor.Float32)

	// Reset clears all recorded data.
	Reset()
}

// Monitor buffers detached per-step snapshots of membrane potential
// and spikes.  The voltage record carries one extra leading entry, the
// resting potential before any input, so after N steps len(V) == N+1
// and len(S) == N.  Detached: recorded tensors never hold gradient
// graph alive.
type Monitor struct {
	V0 float32            `desc:"resting potential, recorded as the synthetic initial entry"`
	V  []*etensor.Float32 `desc:"potential per step, preceded by the synthetic entry"`
	S  []*etensor.Float32 `desc:"spike output per step"`
}

func NewMonitor(v0 float32) *Monitor {
	return &Monitor{V0: v0}
}

// Step appends copies of the given potential and spike tensors.  The
// first call also prepends the synthetic resting entry, shaped like v.
func (mn *Monitor) Step(v, s *etensor.Float32) {
	if len(mn.V) == 0 {
		mn.V = append(mn.V, egrad.Full(v.Shp, mn.V0))
	}
	mn.V = append(mn.V, egrad.CloneTensor(v))
	mn.S = append(mn.S, egrad.CloneTensor(s))
}

// Reset discards all recorded entries.  V0 persists.
func (mn *Monitor) Reset() {
	mn.V = nil
	mn.S = nil
}

// Steps returns the number of recorded simulation steps.
func (mn *Monitor) Steps() int {
	return len(mn.S)
}

//////////////////////////////////////////////////////////////////////
// Statistics

// VStats returns average and max over every recorded potential value,
// synthetic entry included.
func (mn *Monitor) VStats() minmax.AvgMax32 {
	return tensorStats(mn.V)
}

// SStats returns average and max over every recorded spike value.
func (mn *Monitor) SStats() minmax.AvgMax32 {
	return tensorStats(mn.S)
}

func tensorStats(ts []*etensor.Float32) minmax.AvgMax32 {
	var am minmax.AvgMax32
	am.Init()
	idx := 0
	for _, t := range ts {
		for _, v := range t.Values {
			am.UpdateVal(v, int32(idx))
			idx++
		}
	}
	am.CalcAvg()
	return am
}

// FiringRate returns the fraction of (unit, step) pairs that fired:
// the mean over all recorded spike values.  0 when nothing recorded.
func (mn *Monitor) FiringRate() float32 {
	n := 0
	var sum float32
	for _, st := range mn.S {
		for _, s := range st.Values {
			sum += s
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float32(n)
}

//////////////////////////////////////////////////////////////////////
// Export

// ToTable exports the record as an etable for plotting or logging:
// one row per entry in V, with Step = -1 for the synthetic initial
// row (where S is all zero) and 0..N-1 for the simulation steps.
func (mn *Monitor) ToTable() *etable.Table {
	dt := &etable.Table{}
	if len(mn.V) == 0 {
		dt.SetFromSchema(etable.Schema{
			{"Step", etensor.INT64, nil, nil},
		}, 0)
		return dt
	}
	shp := mn.V[0].Shp
	sch := etable.Schema{
		{"Step", etensor.INT64, nil, nil},
		{"V", etensor.FLOAT32, shp, nil},
		{"S", etensor.FLOAT32, shp, nil},
	}
	dt.SetFromSchema(sch, len(mn.V))
	dt.SetMetaData("name", "SpikeMonitor")
	dt.SetMetaData("desc", "per-step membrane potential and spike record")
	for r, vt := range mn.V {
		dt.SetCellFloat("Step", r, float64(r-1))
		dt.SetCellTensor("V", r, vt)
		if r > 0 {
			dt.SetCellTensor("S", r, mn.S[r-1])
		}
	}
	return dt
}

// SizeReport returns a human-readable summary of buffered memory.
func (mn *Monitor) SizeReport() string {
	var b strings.Builder
	nv := 0
	for _, vt := range mn.V {
		nv += len(vt.Values)
	}
	ns := 0
	for _, st := range mn.S {
		ns += len(st.Values)
	}
	fmt.Fprintf(&b, "%14s:\t Steps: %6d\t VMem: %v \t SMem: %v\n", "Monitor",
		mn.Steps(), (datasize.ByteSize)(nv * 4).HumanReadable(),
		(datasize.ByteSize)(ns * 4).HumanReadable())
	return b.String()
}
