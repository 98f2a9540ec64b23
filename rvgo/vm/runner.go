package vm

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
	"github.com/ethereum-optimism/rvtrace/rvgo/isa"
)

// ErrStepLimit is returned by Run when the step budget is used up before the guest exits.
var ErrStepLimit = errors.New("step limit reached")

// Runner drives the fetch, decode, dispatch and record loop over one state.
// With a nil trace instructions execute directly and nothing is recorded.
type Runner struct {
	state *emu.State
	mmu   *emu.MMU
	trace *isa.Trace
	log   log.Logger

	// InfoEvery logs progress every n steps, 0 disables it.
	InfoEvery uint64
	// Symbols, if set, name the function around the PC in progress logs.
	Symbols emu.SortedSymbols
}

func NewRunner(state *emu.State, trace *isa.Trace, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.Root()
	}
	return &Runner{
		state: state,
		mmu:   state.MMU(),
		trace: trace,
		log:   logger,
	}
}

func (r *Runner) State() *emu.State {
	return r.state
}

func (r *Runner) Trace() *isa.Trace {
	return r.trace
}

// Step runs one macro-instruction. On a fault PC is restored to the failing
// instruction, virtual registers are cleared and the returned error is a *Fault.
func (r *Runner) Step() error {
	cpu := r.state.CPU
	pc := cpu.PC

	word, err := r.mmu.Fetch(pc)
	if err != nil {
		return r.fault(&Fault{Kind: FaultFetch, Step: r.state.Step, Address: pc, Err: err})
	}
	in, err := isa.Decode(word, pc, cpu.Xlen)
	if err != nil {
		return r.fault(&Fault{Kind: classify(err), Step: r.state.Step, Address: pc, Word: word, Err: err})
	}
	if in.IsCompressed {
		word &= 0xFFFF
	}

	cpu.PC = cpu.Unsigned(pc + in.Size())
	if r.trace != nil {
		err = in.Trace(cpu, r.mmu, r.trace)
	} else {
		err = in.Execute(cpu, r.mmu)
	}
	if err != nil {
		cpu.PC = pc
		cpu.ClearVirtualRegisters()
		operands := ""
		if in.Operands != nil {
			operands = in.Operands.String()
		}
		return r.fault(&Fault{
			Kind:        classify(err),
			Step:        r.state.Step,
			Address:     pc,
			Word:        word,
			Instruction: in.Name(),
			Operands:    operands,
			Err:         err,
		})
	}
	r.state.Step++
	return nil
}

func (r *Runner) fault(f *Fault) error {
	r.log.Error("vm fault", "kind", f.Kind, "step", f.Step, "pc", hexutil.Uint64(f.Address), "insn", f.Instruction, "err", f.Err)
	return f
}

// Run steps until the guest exits, a fault occurs, ctx is cancelled or maxSteps
// macro-instructions have run. A maxSteps of 0 means no limit.
func (r *Runner) Run(ctx context.Context, maxSteps uint64) error {
	start := time.Now()
	startStep := r.state.Step

	for !r.state.CPU.Exited {
		step := r.state.Step
		ran := step - startStep
		if ran%100 == 0 { // don't do the ctx err check too often
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if maxSteps != 0 && ran >= maxSteps {
			r.log.Warn("step limit reached", "steps", ran, "pc", hexutil.Uint64(r.state.CPU.PC))
			return ErrStepLimit
		}
		if r.InfoEvery != 0 && step%r.InfoEvery == 0 {
			r.logProgress(step, startStep, start)
		}
		if err := r.Step(); err != nil {
			return err
		}
	}

	r.log.Info("guest exited", "code", r.state.CPU.ExitCode, "steps", r.state.Step-startStep, "cycles", r.cycles())
	return nil
}

func (r *Runner) cycles() int {
	if r.trace == nil {
		return 0
	}
	return r.trace.Len()
}

func (r *Runner) logProgress(step, startStep uint64, start time.Time) {
	delta := time.Since(start)
	pc := r.state.CPU.PC
	ctx := []any{
		"step", step,
		"pc", hexutil.Uint64(pc),
		"insn", hexutil.Uint64(r.state.Instr()),
		"ips", float64(step-startStep) / delta.Seconds(),
		"cycles", r.cycles(),
		"pages", r.state.Memory.PageCount(),
		"mem", r.state.Memory.Usage(),
	}
	if r.Symbols != nil {
		ctx = append(ctx, "name", r.Symbols.FindSymbol(pc).Name)
	}
	r.log.Info("processing", ctx...)
}
