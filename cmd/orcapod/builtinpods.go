package main

import (
	"github.com/brian-arnold/orcapod/pod"
	"github.com/brian-arnold/orcapod/types"
)

// registerBuiltinPods wires the handful of pods the run command ships
// with, for pipeline definitions that don't need a custom Go binary.
func registerBuiltinPods(reg *pod.Registry) error {
	add := func(p *pod.Pod, err error) error {
		if err != nil {
			return err
		}
		return reg.Register(p.Name(), p)
	}

	if err := add(pod.FunctionPod("add",
		func(a, b int64) int64 { return a + b },
		[]pod.InputSpec{{Name: "a", Kind: types.Int64}, {Name: "b", Kind: types.Int64}},
		[]pod.OutputSpec{{Key: "sum", Kind: types.Int64}},
		"1",
	)); err != nil {
		return err
	}

	if err := add(pod.FunctionPod("multiply",
		func(a, b float64) float64 { return a * b },
		[]pod.InputSpec{{Name: "a", Kind: types.Float64}, {Name: "b", Kind: types.Float64}},
		[]pod.OutputSpec{{Key: "product", Kind: types.Float64}},
		"1",
	)); err != nil {
		return err
	}

	return nil
}
