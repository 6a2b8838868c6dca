// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package mips

import (
	"fmt"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/supermips/bridge"
	"github.com/ezrec/supermips/memory"
)

const (
	STACK_TOP = memory.DATA_BASE + 0x0004_0000 // Initial $sp, 256KiB into the data segment.
)

var _cpu_defines = map[string]string{
	"STACK_TOP": fmt.Sprintf("0x%x", STACK_TOP),
}

// Cpu is the simulation context for a MIPS32 integer core.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Memory *memory.Memory // Guest memory, shared with the bridge.

	Pc       uint32     // Byte address of the next instruction.
	Register [32]uint32 // General purpose registers. Register 0 reads as zero.
	Hi       uint32     // Multiply and divide high result.
	Lo       uint32     // Multiply and divide low result.
	Halted   bool       // Set once the guest has exited.

	Ticks int // Instructions executed since reset.
}

// NewCpu creates a core over guest memory, reset to the start of text.
func NewCpu(mem *memory.Memory) (cpu *Cpu) {
	cpu = &Cpu{
		Memory: mem,
	}

	cpu.Reset()

	return
}

// Defines for the cpu
func Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Reset the core state. Memory is left untouched.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	cpu.Register[REG_SP] = STACK_TOP
	cpu.Pc = memory.TEXT_BASE
	cpu.Hi = 0
	cpu.Lo = 0
	cpu.Halted = false
	cpu.Ticks = 0
}

// PC returns the byte address of the next instruction.
func (cpu *Cpu) PC() uint32 {
	return cpu.Pc
}

// LoadText installs program text at the start of the text segment.
func (cpu *Cpu) LoadText(words []uint32) error {
	return cpu.Memory.LoadText(words)
}

// LoadData installs initial data at the start of the data segment.
func (cpu *Cpu) LoadData(words []uint32) error {
	return cpu.Memory.LoadData(words)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text = fmt.Sprintf("   pc: %04X_%04X\n", cpu.Pc>>16, cpu.Pc&0xffff)
	for n := 0; n < len(cpu.Register); n += 4 {
		for c := n; c < n+4; c++ {
			val := cpu.Register[c]
			text += fmt.Sprintf("% 5s: %04X_%04X ", REG_NAMES[c], val>>16, val&0xffff)
		}
		text += "\n"
	}
	text += fmt.Sprintf("   hi: %04X_%04X    lo: %04X_%04X\n", cpu.Hi>>16, cpu.Hi&0xffff, cpu.Lo>>16, cpu.Lo&0xffff)

	return
}

// Fetch reads the instruction at the program counter.
func (cpu *Cpu) Fetch() (in Instruction, err error) {
	if cpu.Pc&3 != 0 {
		err = fmt.Errorf("%w: pc 0x%08x", ErrAlignment, cpu.Pc)
		return
	}

	word, err := cpu.Memory.Get(cpu.Pc >> 2)
	if err != nil {
		return
	}

	in = Instruction(word)
	return
}

// Tick executes a single instruction. A syscall is serviced by handler.
//
// The program counter advances past a syscall before the handler runs,
// so a failed syscall is not retried by the next Tick.
func (cpu *Cpu) Tick(handler bridge.Handler) (err error) {
	if cpu.Halted {
		err = ErrHalted
		return
	}

	in, err := cpu.Fetch()
	if err != nil {
		return
	}

	if cpu.Verbose {
		log.Printf("cpu: %08x: %08x %v", cpu.Pc, uint32(in), in)
	}

	err = cpu.Execute(in, handler)
	cpu.Register[REG_ZERO] = 0
	cpu.Ticks++

	return
}

// Execute runs one decoded instruction at the current program counter.
func (cpu *Cpu) Execute(in Instruction, handler bridge.Handler) (err error) {
	pc := cpu.Pc
	next := pc + 4

	rs := cpu.Register[in.Rs()]
	rt := cpu.Register[in.Rt()]

	// Destination of the instruction, if any.
	var dst *uint32

	switch in.Op() {
	case OP_SPECIAL:
		dst = &cpu.Register[in.Rd()]
		switch in.Funct() {
		case FN_SLL:
			*dst = rt << in.Shamt()
		case FN_SRL:
			*dst = rt >> in.Shamt()
		case FN_SRA:
			*dst = uint32(int32(rt) >> in.Shamt())
		case FN_SLLV:
			*dst = rt << (rs & 0x1f)
		case FN_SRLV:
			*dst = rt >> (rs & 0x1f)
		case FN_SRAV:
			*dst = uint32(int32(rt) >> (rs & 0x1f))
		case FN_JR:
			next = rs
		case FN_JALR:
			*dst = pc + 4
			next = rs
		case FN_SYSCALL:
			cpu.Pc = next
			err = cpu.syscall(handler)
			return
		case FN_MFHI:
			*dst = cpu.Hi
		case FN_MTHI:
			cpu.Hi = rs
		case FN_MFLO:
			*dst = cpu.Lo
		case FN_MTLO:
			cpu.Lo = rs
		case FN_MULT:
			product := uint64(int64(int32(rs)) * int64(int32(rt)))
			cpu.Hi, cpu.Lo = uint32(product>>32), uint32(product)
		case FN_MULTU:
			product := uint64(rs) * uint64(rt)
			cpu.Hi, cpu.Lo = uint32(product>>32), uint32(product)
		case FN_DIV:
			if rt != 0 {
				cpu.Lo = uint32(int32(rs) / int32(rt))
				cpu.Hi = uint32(int32(rs) % int32(rt))
			}
		case FN_DIVU:
			if rt != 0 {
				cpu.Lo = rs / rt
				cpu.Hi = rs % rt
			}
		case FN_ADD, FN_ADDU:
			*dst = rs + rt
		case FN_SUB, FN_SUBU:
			*dst = rs - rt
		case FN_AND:
			*dst = rs & rt
		case FN_OR:
			*dst = rs | rt
		case FN_XOR:
			*dst = rs ^ rt
		case FN_NOR:
			*dst = ^(rs | rt)
		case FN_SLT:
			*dst = bool2word(int32(rs) < int32(rt))
		case FN_SLTU:
			*dst = bool2word(rs < rt)
		default:
			err = ErrOpcode(in)
			return
		}
	case OP_J:
		next = (pc+4)&0xf000_0000 | in.Target()<<2
	case OP_JAL:
		cpu.Register[REG_RA] = pc + 4
		next = (pc+4)&0xf000_0000 | in.Target()<<2
	case OP_BEQ:
		if rs == rt {
			next = pc + 4 + in.SImm()<<2
		}
	case OP_BNE:
		if rs != rt {
			next = pc + 4 + in.SImm()<<2
		}
	case OP_BLEZ:
		if int32(rs) <= 0 {
			next = pc + 4 + in.SImm()<<2
		}
	case OP_BGTZ:
		if int32(rs) > 0 {
			next = pc + 4 + in.SImm()<<2
		}
	case OP_ADDI, OP_ADDIU:
		cpu.Register[in.Rt()] = rs + in.SImm()
	case OP_SLTI:
		cpu.Register[in.Rt()] = bool2word(int32(rs) < int32(in.SImm()))
	case OP_SLTIU:
		cpu.Register[in.Rt()] = bool2word(rs < in.SImm())
	case OP_ANDI:
		cpu.Register[in.Rt()] = rs & in.Imm()
	case OP_ORI:
		cpu.Register[in.Rt()] = rs | in.Imm()
	case OP_XORI:
		cpu.Register[in.Rt()] = rs ^ in.Imm()
	case OP_LUI:
		cpu.Register[in.Rt()] = in.Imm() << 16
	case OP_LB, OP_LBU, OP_LH, OP_LHU, OP_LW:
		var value uint32
		value, err = cpu.load(in.Op(), rs+in.SImm())
		if err != nil {
			return
		}
		cpu.Register[in.Rt()] = value
	case OP_SB, OP_SH, OP_SW:
		err = cpu.store(in.Op(), rs+in.SImm(), rt)
		if err != nil {
			return
		}
	default:
		err = ErrOpcode(in)
		return
	}

	cpu.Pc = next
	return
}

// syscall hands the register file to the handler, and takes back the
// registers it returns. On error the registers are left untouched.
func (cpu *Cpu) syscall(handler bridge.Handler) (err error) {
	if handler == nil {
		err = ErrNoHandler
		return
	}

	res, err := handler.Handle(bridge.NewRequest(bridge.Registers(cpu.Register)))
	if err != nil {
		return
	}

	cpu.Register = [32]uint32(res.Regs)
	cpu.Register[REG_ZERO] = 0
	if res.Exited {
		cpu.Halted = true
	}

	return
}

// load reads a byte, half or word. Sub-word loads extract from the
// containing word.
func (cpu *Cpu) load(op uint32, address uint32) (value uint32, err error) {
	switch op {
	case OP_LH, OP_LHU:
		if address&1 != 0 {
			err = fmt.Errorf("%w: 0x%08x", ErrAlignment, address)
			return
		}
	case OP_LW:
		if address&3 != 0 {
			err = fmt.Errorf("%w: 0x%08x", ErrAlignment, address)
			return
		}
	}

	word, err := cpu.Memory.Get(address >> 2)
	if err != nil {
		return
	}

	shift := 8 * (address & 3)
	switch op {
	case OP_LB:
		value = uint32(int32(int8(word >> shift)))
	case OP_LBU:
		value = (word >> shift) & 0xff
	case OP_LH:
		value = uint32(int32(int16(word >> shift)))
	case OP_LHU:
		value = (word >> shift) & 0xffff
	case OP_LW:
		value = word
	}

	return
}

// store writes a byte, half or word. Sub-word stores read, modify, and
// write back the containing word.
func (cpu *Cpu) store(op uint32, address uint32, value uint32) (err error) {
	var mask uint32
	switch op {
	case OP_SB:
		mask = 0xff
	case OP_SH:
		if address&1 != 0 {
			err = fmt.Errorf("%w: 0x%08x", ErrAlignment, address)
			return
		}
		mask = 0xffff
	case OP_SW:
		if address&3 != 0 {
			err = fmt.Errorf("%w: 0x%08x", ErrAlignment, address)
			return
		}
		return cpu.Memory.Set(address>>2, value)
	}

	word, err := cpu.Memory.Get(address >> 2)
	if err != nil {
		return
	}

	shift := 8 * (address & 3)
	word = (word &^ (mask << shift)) | ((value & mask) << shift)

	return cpu.Memory.Set(address>>2, word)
}

func bool2word(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
