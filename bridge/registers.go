// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package bridge

// Register conventions for syscalls.
const (
	REG_ZERO = 0
	REG_V0   = 2 // Selector in, return value out.
	REG_A0   = 4
	REG_A1   = 5
	REG_A2   = 6
	REG_A3   = 7
)

// Registers is a snapshot of the 32 general purpose registers.
type Registers [32]uint32

// Request is a single syscall issued by the guest.
type Request struct {
	Selector Selector
	Regs     Registers
}

// NewRequest builds a request from a register snapshot, taking the
// selector from $v0.
func NewRequest(regs Registers) Request {
	return Request{
		Selector: Selector(regs[REG_V0]),
		Regs:     regs,
	}
}

// Arg returns argument register n ($a0 through $a3).
func (req Request) Arg(n int) uint32 {
	return req.Regs[REG_A0+n]
}

// Result is the register file after a syscall.
type Result struct {
	Regs   Registers
	Exited bool // Set when the guest asked to terminate.
}

// Handler services syscalls for an execution engine.
type Handler interface {
	Handle(req Request) (res Result, err error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(req Request) (Result, error)

func (fn HandlerFunc) Handle(req Request) (Result, error) {
	return fn(req)
}
