package emu

import (
	"fmt"
	"strings"
)

// Xlen is the integer register width the hart runs with.
type Xlen uint8

const (
	Bit32 Xlen = 32
	Bit64 Xlen = 64
)

func ParseXlen(s string) (Xlen, error) {
	switch strings.TrimPrefix(strings.ToLower(s), "rv") {
	case "32":
		return Bit32, nil
	case "64":
		return Bit64, nil
	default:
		return 0, &UnsupportedStateError{What: "xlen", Value: s}
	}
}

func (x Xlen) Validate() error {
	switch x {
	case Bit32, Bit64:
		return nil
	default:
		return &UnsupportedStateError{What: "xlen", Value: uint64(x)}
	}
}

// Bytes is the register width in bytes.
func (x Xlen) Bytes() uint64 {
	return uint64(x) / 8
}

func (x Xlen) String() string {
	return fmt.Sprintf("rv%d", uint8(x))
}
