package emu

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethereum-optimism/rvtrace/rvgo/riscv"
)

// State is a hart together with its memory: everything a run mutates besides the trace.
type State struct {
	CPU    *CPU    `json:"cpu"`
	Memory *Memory `json:"memory"`

	Step uint64 `json:"step"`
}

func NewState(xlen Xlen) (*State, error) {
	cpu, err := NewCPU(xlen)
	if err != nil {
		return nil, err
	}
	return &State{CPU: cpu, Memory: NewMemory()}, nil
}

// MMU returns an MMU over the state memory, using the hart width for address truncation.
func (s *State) MMU() *MMU {
	return NewMMU(s.Memory, s.CPU.Xlen)
}

type StateWitness []byte

// EncodeWitness serializes the committed parts of the state:
// the memory digest, PC, width, exit status, step and the architectural registers.
// Virtual registers are excluded, they hold no state between instructions.
func (s *State) EncodeWitness() StateWitness {
	out := make([]byte, 0, 32+8+1+1+8+8+riscv.RegisterCount*8)
	memRoot := s.Memory.Digest()
	out = append(out, memRoot[:]...)
	out = binary.BigEndian.AppendUint64(out, s.CPU.PC)
	out = append(out, uint8(s.CPU.Xlen))
	if s.CPU.Exited {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = binary.BigEndian.AppendUint64(out, s.CPU.ExitCode)
	out = binary.BigEndian.AppendUint64(out, s.Step)
	for _, r := range s.CPU.ArchRegisters() {
		out = binary.BigEndian.AppendUint64(out, r)
	}
	return out
}

func (w StateWitness) StateHash() common.Hash {
	return crypto.Keccak256Hash(w)
}

// Instr returns the raw 32 bits at the current PC.
func (s *State) Instr() uint32 {
	var out [4]byte
	s.Memory.GetUnaligned(s.CPU.PC, out[:])
	return binary.LittleEndian.Uint32(out[:])
}

func LoadStateFromFile(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %q: %w", path, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode state file %q: %w", path, err)
	}
	if state.CPU == nil || state.Memory == nil {
		return nil, fmt.Errorf("state file %q is missing cpu or memory", path)
	}
	if err := state.CPU.Xlen.Validate(); err != nil {
		return nil, err
	}
	state.CPU.normalize()
	return &state, nil
}
