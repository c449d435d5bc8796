// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neuron

import (
	"testing"

	"github.com/emer/etable/etensor"
)

func TestMonitorStats(t *testing.T) {
	nd := NewIFNode()
	nd.SetMonitor(true)
	for _, x := range []float32{0.5, 0.6, 0.3} {
		nd.Forward(input(x))
	}
	mn := nd.Mon
	if mn.Steps() != 3 {
		t.Errorf("steps err: got: %v\n", mn.Steps())
	}

	vst := mn.VStats()
	CmprFloats([]float32{vst.Avg, vst.Max}, []float32{0.4750000238418579, 1.1}, "vstats", t)

	sst := mn.SStats()
	CmprFloats([]float32{sst.Avg, sst.Max}, []float32{1.0 / 3.0, 1}, "sstats", t)

	CmprFloats([]float32{mn.FiringRate()}, []float32{1.0 / 3.0}, "firing rate", t)

	// fmt.Printf("%v", mn.SizeReport())
	if mn.SizeReport() == "" {
		t.Errorf("empty size report\n")
	}
}

func TestMonitorToTable(t *testing.T) {
	nd := NewIFNode()
	nd.SetMonitor(true)
	for _, x := range []float32{0.5, 0.6, 0.3} {
		nd.Forward(input(x))
	}
	dt := nd.Mon.ToTable()
	if dt.Rows != 4 {
		t.Fatalf("table rows err: got: %v\n", dt.Rows)
	}
	steps := []float32{}
	for r := 0; r < dt.Rows; r++ {
		steps = append(steps, float32(dt.CellFloat("Step", r)))
	}
	CmprFloats(steps, []float32{-1, 0, 1, 2}, "table steps", t)

	s0 := dt.CellTensor("S", 0).(*etensor.Float32)
	CmprFloats(s0.Values, []float32{0}, "synthetic row spikes", t)

	v2 := dt.CellTensor("V", 2).(*etensor.Float32)
	CmprFloats(v2.Values, []float32{1.1}, "table pre-reset v", t)
	s2 := dt.CellTensor("S", 2).(*etensor.Float32)
	CmprFloats(s2.Values, []float32{1}, "table spike", t)
}

func TestMonitorEmptyTable(t *testing.T) {
	mn := NewMonitor(0)
	dt := mn.ToTable()
	if dt.Rows != 0 {
		t.Errorf("empty table rows err: got: %v\n", dt.Rows)
	}
	if mn.FiringRate() != 0 {
		t.Errorf("empty firing rate err: got: %v\n", mn.FiringRate())
	}
}

func TestMonitorSoftV0(t *testing.T) {
	nd := NewIFNode()
	nd.Mode = SoftReset
	nd.VRst = 0.7 // ignored in soft mode: rest is 0
	nd.SetMonitor(true)
	nd.Forward(input(0.5))
	CmprFloats(nd.Mon.V[0].Values, []float32{0}, "soft synthetic entry", t)

	nd2 := NewIFNode()
	nd2.VRst = 0.25
	nd2.SetMonitor(true)
	nd2.Forward(input(0.5))
	CmprFloats(nd2.Mon.V[0].Values, []float32{0.25}, "hard synthetic entry", t)
}

type countRecorder struct {
	steps  int
	resets int
}

func (cr *countRecorder) Step(v, s *etensor.Float32) { cr.steps++ }
func (cr *countRecorder) Reset()                     { cr.resets++ }

func TestSetRecorder(t *testing.T) {
	nd := NewIFNode()
	cr := &countRecorder{}
	nd.SetRecorder(cr)
	nd.Forward(input(0.5))
	nd.Forward(input(0.5))
	nd.Reset()
	if cr.steps != 2 || cr.resets != 1 {
		t.Errorf("recorder counts err: steps: %v, resets: %v\n", cr.steps, cr.resets)
	}
	if nd.Mon != nil {
		t.Errorf("custom recorder should not install Mon\n")
	}
	nd.SetRecorder(nil)
	nd.Forward(input(0.5))
	if cr.steps != 2 {
		t.Errorf("nil recorder still recording\n")
	}
}

func TestMonitorReinstall(t *testing.T) {
	nd := NewIFNode()
	nd.SetMonitor(true)
	nd.Forward(input(0.5))
	nd.SetMonitor(true) // always starts fresh
	if len(nd.Mon.V) != 0 {
		t.Errorf("reinstalled monitor not fresh\n")
	}
	nd.SetMonitor(false)
	if nd.Mon != nil {
		t.Errorf("monitor not removed\n")
	}
}
