// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package snn is the overall repository for spiking neural network (SNN)
simulation code implemented in the Go language (golang), built around
surrogate-gradient learning: neurons emit hard 0/1 spikes in the forward
pass while backpropagation flows through smooth substitute gradients.

This top-level of the repository has no functional code -- everything is
organized into the following sub-packages:

* egrad: a small reverse-mode autodiff engine over etensor.Float32 tensors,
providing exactly the operation set the spiking components need, plus the
custom-gradient extension point that the spike functions are built on.

* surrogate: the spike functions -- Heaviside step forward, analytic
surrogate gradient backward (bilinear leaky relu, sigmoid, sign-swish, erf).

* neuron: the stateful neuron models (IF, LIF, parametric LIF, recurrent IF)
sharing a common membrane-potential, threshold, and reset-mode core, with
optional per-step monitoring of voltage and spikes.

* rnn: the spiking LSTM cell and multi-layer stack, whose gates are spike
functions instead of sigmoid / tanh nonlinearities.

* layer: auxiliary layers that share the same reset-between-runs lifecycle
as neurons: stateful dropout, low-pass synaptic filtering, neuron
normalization, and blocked linear transforms.

* accel: fused elementwise arithmetic for spike-valued tensors, substituted
for the general operations when the forward pass is known to be binary.
*/
package snn
