package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
)

var (
	LogLevelFlag = &cli.StringFlag{
		Name:  "log.level",
		Usage: "Log level: trace, debug, info, warn, error or crit",
		Value: "info",
	}

	LoadELFPathFlag = &cli.PathFlag{
		Name:      "path",
		Usage:     "Path to a RISC-V ELF file, 32 or 64 bit",
		TakesFile: true,
		Required:  true,
	}
	LoadELFOutFlag = &cli.PathFlag{
		Name:      "out",
		Usage:     "Output path of the JSON state, '-' for stdout",
		TakesFile: true,
		Value:     "state.json",
	}

	RunInputFlag = &cli.PathFlag{
		Name:      "input",
		Usage:     "Path of the JSON state to start from",
		TakesFile: true,
	}
	RunELFFlag = &cli.PathFlag{
		Name:      "elf",
		Usage:     "Path of a RISC-V ELF file to load and run",
		TakesFile: true,
	}
	RunProgramFlag = &cli.PathFlag{
		Name:      "program",
		Usage:     "Path of raw little-endian instruction bytes to load at --base",
		TakesFile: true,
	}
	RunBaseFlag = &cli.Uint64Flag{
		Name:  "base",
		Usage: "Load address and entry point of a raw --program",
		Value: 0x1000,
	}
	XlenFlag = &cli.StringFlag{
		Name:  "xlen",
		Usage: "Register width of a raw --program: 32 or 64",
		Value: "64",
	}
	RunMaxStepsFlag = &cli.Uint64Flag{
		Name:  "max-steps",
		Usage: "Stop after this many instructions, 0 for no limit",
	}
	RunInfoAtFlag = &cli.GenericFlag{
		Name:  "info-at",
		Usage: "Log progress every n steps with '%<n>', or 'never'",
		Value: new(StepIntervalFlag),
	}
	RunTraceOutFlag = &cli.PathFlag{
		Name:      "trace-out",
		Usage:     "Output path of the JSON cycle trace, '-' for stdout",
		TakesFile: true,
	}
	RunStateOutFlag = &cli.PathFlag{
		Name:      "state-out",
		Usage:     "Output path of the final JSON state, '-' for stdout",
		TakesFile: true,
	}
	RunNoTraceFlag = &cli.BoolFlag{
		Name:  "no-trace",
		Usage: "Execute instructions directly without expanding or recording them",
	}
	RunPProfCPUFlag = &cli.BoolFlag{
		Name:  "pprof.cpu",
		Usage: "Enable pprof cpu profiling",
	}

	ExpandAddressFlag = &cli.Uint64Flag{
		Name:  "address",
		Usage: "Address of the first instruction word",
	}
)

// StepIntervalFlag matches every n-th step. The zero value never matches.
type StepIntervalFlag struct {
	every uint64
}

func (f *StepIntervalFlag) Set(value string) error {
	switch {
	case value == "" || value == "never":
		f.every = 0
	case strings.HasPrefix(value, "%"):
		n, err := strconv.ParseUint(value[1:], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid step interval %q: %w", value, err)
		}
		f.every = n
	default:
		return fmt.Errorf("unrecognized step interval %q", value)
	}
	return nil
}

func (f *StepIntervalFlag) String() string {
	if f.every == 0 {
		return "never"
	}
	return fmt.Sprintf("%%%d", f.every)
}

func (f *StepIntervalFlag) Interval() uint64 {
	return f.every
}
