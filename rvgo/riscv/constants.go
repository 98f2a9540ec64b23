package riscv

const (
	// RegisterCount is the number of architectural integer registers.
	RegisterCount = 32
	// VirtualRegisterCount is the number of scratch registers reserved for virtual sequences.
	// They live directly after the architectural registers in the register file.
	VirtualRegisterCount = 16
	// TotalRegisterCount is the size of the full register file.
	TotalRegisterCount = RegisterCount + VirtualRegisterCount

	SysWrite     = 64
	SysExit      = 93
	SysExitGroup = 94

	FdStdout = 1
	FdStderr = 2

	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
	RegA7 = 17
	RegSP = 2
	RegRA = 1

	ErrInvalidSyscall   = uint64(0xf001ca11)
	ErrUnknownOpCode    = uint64(0xf001c0de)
	ErrInvalidRegister  = uint64(0xbad4e9)
	ErrInvalidXlen      = uint64(0xbad4e10)
	ErrNotAlignedAddr   = uint64(0xbad10ad0)
	ErrMisalignedAccess = uint64(0xbad10ad1)
	ErrAssertionFailed  = uint64(0xbada55e7)
	ErrUnknownFault     = uint64(0xbadfa017)
)

// VirtualRegister returns the register file index of the i-th virtual register.
func VirtualRegister(i int) uint8 {
	if i < 0 || i >= VirtualRegisterCount {
		panic("virtual register index out of range")
	}
	return uint8(RegisterCount + i)
}

// IsVirtualRegister reports whether reg indexes the virtual register space.
func IsVirtualRegister(reg uint8) bool {
	return reg >= RegisterCount && reg < TotalRegisterCount
}
