package addrspace

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// SandboxSegment runs a WASM module's linear memory as a Task's segment,
// grounded on inos_v1's wasm.Execute (engine/store/module/instance setup)
// but kept alive across calls instead of tearing the instance down after
// one invocation, so a Task can Read/Write its sandboxed memory and invoke
// exported functions repeatedly over its lifetime. Gated behind
// Config.MultitaskSandbox since most Tasks need no isolation beyond Go's
// own memory safety; this exists for the subset that must run untrusted or
// crash-isolated code inside the same process.
type SandboxSegment struct {
	name     string
	engine   *wasmer.Engine
	store    *wasmer.Store
	instance *wasmer.Instance
	memory   *wasmer.Memory
}

// NewSandboxSegment compiles and instantiates wasmBytes, locating its
// exported "memory" for Read/Write access.
func NewSandboxSegment(name string, wasmBytes []byte) (*SandboxSegment, error) {
	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	module, err := wasmer.NewModule(store, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("addrspace: compile module for segment %q: %w", name, err)
	}
	instance, err := wasmer.NewInstance(module, wasmer.NewImportObject())
	if err != nil {
		return nil, fmt.Errorf("addrspace: instantiate segment %q: %w", name, err)
	}
	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, fmt.Errorf("addrspace: segment %q exports no linear memory: %w", name, err)
	}
	return &SandboxSegment{name: name, engine: engine, store: store, instance: instance, memory: mem}, nil
}

func (s *SandboxSegment) Name() string { return s.name }
func (s *SandboxSegment) Size() int    { return len(s.memory.Data()) }

func (s *SandboxSegment) Read(offset int, buf []byte) (int, error) {
	data := s.memory.Data()
	if offset < 0 || offset > len(data) {
		return 0, fmt.Errorf("addrspace: read offset %d out of bounds for sandbox segment %q", offset, s.name)
	}
	return copy(buf, data[offset:]), nil
}

func (s *SandboxSegment) Write(offset int, buf []byte) (int, error) {
	data := s.memory.Data()
	if offset < 0 || offset > len(data) {
		return 0, fmt.Errorf("addrspace: write offset %d out of bounds for sandbox segment %q", offset, s.name)
	}
	return copy(data[offset:], buf), nil
}

// Call invokes an exported function by name, the same lookup inos_v1's
// Execute performs for "main".
func (s *SandboxSegment) Call(export string, args ...interface{}) (interface{}, error) {
	fn, err := s.instance.Exports.GetFunction(export)
	if err != nil {
		return nil, fmt.Errorf("addrspace: sandbox segment %q exports no function %q: %w", s.name, export, err)
	}
	return fn(args...)
}

func (s *SandboxSegment) Close() error { return nil }
