package main

import (
	"time"

	"github.com/orbitos/mcore/cpu"
	"github.com/orbitos/mcore/kernel"
)

// Snapshot is the debug/dashboard view of kernel state, serialized as JSON
// both to the debug HTTP endpoint and to every connected dashboard
// websocket client.
type Snapshot struct {
	Time        string     `json:"time"`
	Cores       []CoreView `json:"cores"`
	LiveThreads int64      `json:"live_threads"`
}

// CoreView reports one core's ready-queue depth.
type CoreView struct {
	Core  int `json:"core"`
	Ready int `json:"ready"`
}

// takeSnapshot reads best-effort kernel state for observability; none of
// this is read under S, matching the corpus's dashboard metrics (eventual,
// not linearizable).
func takeSnapshot(k *kernel.Kernel) Snapshot {
	cores := make([]CoreView, k.Cores())
	for c := 0; c < k.Cores(); c++ {
		cores[c] = CoreView{Core: c, Ready: k.ReadyLen(cpu.ID(c))}
	}
	return Snapshot{
		Time:        time.Now().UTC().Format(time.RFC3339),
		Cores:       cores,
		LiveThreads: k.ThreadCount(),
	}
}
