package cmd

import (
	"debug/elf"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
)

func openELF(path string) (*elf.File, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file %q: %w", path, err)
	}
	if f.Machine != elf.EM_RISCV {
		_ = f.Close()
		return nil, fmt.Errorf("ELF is not RISC-V, but got %q", f.Machine.String())
	}
	return f, nil
}

func LoadELF(ctx *cli.Context) error {
	elfProgram, err := openELF(ctx.Path(LoadELFPathFlag.Name))
	if err != nil {
		return err
	}
	defer elfProgram.Close()
	state, err := emu.LoadELF(elfProgram)
	if err != nil {
		return fmt.Errorf("failed to load ELF data into VM state: %w", err)
	}
	return writeJSON(ctx.Path(LoadELFOutFlag.Name), state)
}

var LoadELFCommand = &cli.Command{
	Name:        "load-elf",
	Usage:       "Load ELF file into JSON state",
	Description: "Load a RISC-V ELF file into a JSON state. The register width follows the ELF class.",
	Action:      LoadELF,
	Flags: []cli.Flag{
		LoadELFPathFlag,
		LoadELFOutFlag,
	},
}
