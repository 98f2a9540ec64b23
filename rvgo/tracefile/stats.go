package tracefile

import (
	"sort"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
	"github.com/ethereum-optimism/rvtrace/rvgo/isa"
)

type Stats struct {
	Cycles int
	// Instructions counts macro-instructions: direct ones plus one per expanded sequence.
	Instructions int
	Virtual      int
	Reads        int
	Writes       int
	ByKind       map[isa.Kind]int
}

func Summarize(trace *isa.Trace) Stats {
	s := Stats{ByKind: make(map[isa.Kind]int)}
	for _, c := range trace.Cycles() {
		s.Cycles++
		s.ByKind[c.Instruction.Kind]++
		if remaining, ok := c.Instruction.SequenceRemaining(); ok {
			s.Virtual++
			if remaining == 0 {
				s.Instructions++
			}
		} else {
			s.Instructions++
		}
		switch c.RAMAccess.Kind {
		case emu.ReadAccess:
			s.Reads++
		case emu.WriteAccess:
			s.Writes++
		}
	}
	return s
}

// KindCount is one row of the per-kind breakdown.
type KindCount struct {
	Kind  isa.Kind
	Count int
}

// Top returns the n most frequent kinds, ties broken by kind order. n <= 0 returns all of them.
func (s Stats) Top(n int) []KindCount {
	out := make([]KindCount, 0, len(s.ByKind))
	for k, c := range s.ByKind {
		out = append(out, KindCount{Kind: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
