package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
	"github.com/ethereum-optimism/rvtrace/rvgo/isa"
	"github.com/ethereum-optimism/rvtrace/rvgo/tracefile"
	"github.com/ethereum-optimism/rvtrace/rvgo/vm"
)

// loadInput builds the initial state from exactly one of --input, --elf or --program.
func loadInput(ctx *cli.Context) (*emu.State, emu.SortedSymbols, error) {
	var set []string
	for _, f := range []*cli.PathFlag{RunInputFlag, RunELFFlag, RunProgramFlag} {
		if ctx.IsSet(f.Name) {
			set = append(set, f.Name)
		}
	}
	if len(set) != 1 {
		return nil, nil, fmt.Errorf("expected exactly one of --%s, --%s or --%s, got %v",
			RunInputFlag.Name, RunELFFlag.Name, RunProgramFlag.Name, set)
	}

	switch set[0] {
	case RunInputFlag.Name:
		state, err := emu.LoadStateFromFile(ctx.Path(RunInputFlag.Name))
		return state, nil, err
	case RunELFFlag.Name:
		f, err := openELF(ctx.Path(RunELFFlag.Name))
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		state, err := emu.LoadELF(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load ELF data into VM state: %w", err)
		}
		symbols, err := emu.Symbols(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read ELF symbols: %w", err)
		}
		return state, symbols, nil
	default:
		xlen, err := emu.ParseXlen(ctx.String(XlenFlag.Name))
		if err != nil {
			return nil, nil, err
		}
		program, err := os.ReadFile(ctx.Path(RunProgramFlag.Name))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read program: %w", err)
		}
		state, err := emu.NewState(xlen)
		if err != nil {
			return nil, nil, err
		}
		if err := emu.LoadProgram(state, ctx.Uint64(RunBaseFlag.Name), program); err != nil {
			return nil, nil, err
		}
		return state, nil, nil
	}
}

func Run(ctx *cli.Context) error {
	if ctx.Bool(RunPProfCPUFlag.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}

	lvl, err := parseLevel(ctx.String(LogLevelFlag.Name))
	if err != nil {
		return err
	}
	l := Logger(os.Stderr, lvl)

	state, symbols, err := loadInput(ctx)
	if err != nil {
		return err
	}
	state.CPU.Stdout = &LoggingWriter{Name: "program std-out", Log: l}
	state.CPU.Stderr = &LoggingWriter{Name: "program std-err", Log: l}

	var trace *isa.Trace
	if !ctx.Bool(RunNoTraceFlag.Name) {
		trace = isa.NewTrace(1 << 16)
	}
	runner := vm.NewRunner(state, trace, l)
	runner.InfoEvery = ctx.Generic(RunInfoAtFlag.Name).(*StepIntervalFlag).Interval()
	runner.Symbols = symbols

	runErr := runner.Run(ctx.Context, ctx.Uint64(RunMaxStepsFlag.Name))
	if errors.Is(runErr, vm.ErrStepLimit) {
		runErr = nil
	}

	// outputs are written after a fault too, the trace ends right before the failing instruction
	if trace != nil {
		stats := tracefile.Summarize(trace)
		l.Info("trace recorded",
			"cycles", stats.Cycles,
			"instructions", stats.Instructions,
			"virtual", stats.Virtual,
			"reads", stats.Reads,
			"writes", stats.Writes,
			"commitment", tracefile.Commitment(trace),
		)
		for _, kc := range stats.Top(5) {
			l.Debug("cycles by kind", "kind", kc.Kind, "count", kc.Count)
		}
		if err := writeTrace(ctx.Path(RunTraceOutFlag.Name), trace); err != nil {
			return err
		}
	}
	if err := writeJSON(ctx.Path(RunStateOutFlag.Name), state); err != nil {
		return fmt.Errorf("failed to write state output: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

func writeTrace(path string, trace *isa.Trace) error {
	if path == "" {
		return nil
	}
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	if err := tracefile.WriteJSON(out, trace); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write trace output: %w", err)
	}
	return out.Close()
}

var RunCommand = &cli.Command{
	Name:  "run",
	Usage: "Run a RISC-V program and record its cycle trace",
	Description: "Run a RISC-V program from a JSON state, an ELF file or raw instruction bytes until it exits, faults or hits --max-steps. " +
		"Sub-word loads and stores and the M extension divisions run as virtual sequences, recorded one cycle per micro-op.",
	Action: Run,
	Flags: []cli.Flag{
		RunInputFlag,
		RunELFFlag,
		RunProgramFlag,
		RunBaseFlag,
		XlenFlag,
		RunMaxStepsFlag,
		RunInfoAtFlag,
		RunTraceOutFlag,
		RunStateOutFlag,
		RunNoTraceFlag,
		RunPProfCPUFlag,
		LogLevelFlag,
	},
}
