package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
	"github.com/ethereum-optimism/rvtrace/rvgo/isa"
)

// Expand decodes each instruction word argument and prints the virtual sequence
// it expands to. Advice values are computed against a zeroed register file.
func Expand(ctx *cli.Context) error {
	xlen, err := emu.ParseXlen(ctx.String(XlenFlag.Name))
	if err != nil {
		return err
	}
	cpu, err := emu.NewCPU(xlen)
	if err != nil {
		return err
	}
	if ctx.NArg() == 0 {
		return fmt.Errorf("expected at least one instruction word")
	}
	w := ctx.App.Writer
	addr := ctx.Uint64(ExpandAddressFlag.Name)
	for _, arg := range ctx.Args().Slice() {
		word, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(arg), "0x"), 16, 32)
		if err != nil {
			return fmt.Errorf("invalid instruction word %q: %w", arg, err)
		}
		in, err := isa.Decode(uint32(word), addr, xlen)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%08x: %s\n", addr, in); err != nil {
			return err
		}
		for _, micro := range in.VirtualSequence(cpu) {
			remaining, _ := micro.SequenceRemaining()
			if _, err := fmt.Fprintf(w, "  %3d  %s\n", remaining, micro); err != nil {
				return err
			}
		}
		addr += in.Size()
	}
	return nil
}

var ExpandCommand = &cli.Command{
	Name:      "expand",
	Usage:     "Decode instruction words and show their virtual sequences",
	ArgsUsage: "<hex word>...",
	Action:    Expand,
	Flags: []cli.Flag{
		XlenFlag,
		ExpandAddressFlag,
	},
}
