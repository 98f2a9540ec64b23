package isa

import (
	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
)

// RegisterState captures the register side of one executed step.
// Slots an instruction does not use read as x0, i.e. zero.
type RegisterState struct {
	Rs1Value uint64
	Rs2Value uint64
	RdPre    uint64
	RdPost   uint64
}

// Cycle is one step of the execution trace.
type Cycle struct {
	Instruction Instruction
	RAMAccess   emu.RAMAccess
	Registers   RegisterState
}

// Trace is the ordered, append-only record of executed steps.
// It performs no validation of what it is given.
type Trace struct {
	cycles []Cycle
}

func NewTrace(capacity int) *Trace {
	return &Trace{cycles: make([]Cycle, 0, capacity)}
}

func (t *Trace) Append(c Cycle) {
	t.cycles = append(t.cycles, c)
}

func (t *Trace) Len() int {
	return len(t.cycles)
}

// Cycles returns the recorded cycles in execution order. The slice is shared with the trace.
func (t *Trace) Cycles() []Cycle {
	return t.cycles
}
