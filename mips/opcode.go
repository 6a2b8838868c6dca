package mips

import (
	"fmt"
)

// Instruction is a single MIPS32 instruction word.
type Instruction uint32

// Primary opcodes, bits 31..26.
const (
	OP_SPECIAL = uint32(0x00)
	OP_J       = uint32(0x02)
	OP_JAL     = uint32(0x03)
	OP_BEQ     = uint32(0x04)
	OP_BNE     = uint32(0x05)
	OP_BLEZ    = uint32(0x06)
	OP_BGTZ    = uint32(0x07)
	OP_ADDI    = uint32(0x08)
	OP_ADDIU   = uint32(0x09)
	OP_SLTI    = uint32(0x0a)
	OP_SLTIU   = uint32(0x0b)
	OP_ANDI    = uint32(0x0c)
	OP_ORI     = uint32(0x0d)
	OP_XORI    = uint32(0x0e)
	OP_LUI     = uint32(0x0f)
	OP_LB      = uint32(0x20)
	OP_LH      = uint32(0x21)
	OP_LW      = uint32(0x23)
	OP_LBU     = uint32(0x24)
	OP_LHU     = uint32(0x25)
	OP_SB      = uint32(0x28)
	OP_SH      = uint32(0x29)
	OP_SW      = uint32(0x2b)
)

// Function codes of OP_SPECIAL, bits 5..0.
const (
	FN_SLL     = uint32(0x00)
	FN_SRL     = uint32(0x02)
	FN_SRA     = uint32(0x03)
	FN_SLLV    = uint32(0x04)
	FN_SRLV    = uint32(0x06)
	FN_SRAV    = uint32(0x07)
	FN_JR      = uint32(0x08)
	FN_JALR    = uint32(0x09)
	FN_SYSCALL = uint32(0x0c)
	FN_MFHI    = uint32(0x10)
	FN_MTHI    = uint32(0x11)
	FN_MFLO    = uint32(0x12)
	FN_MTLO    = uint32(0x13)
	FN_MULT    = uint32(0x18)
	FN_MULTU   = uint32(0x19)
	FN_DIV     = uint32(0x1a)
	FN_DIVU    = uint32(0x1b)
	FN_ADD     = uint32(0x20)
	FN_ADDU    = uint32(0x21)
	FN_SUB     = uint32(0x22)
	FN_SUBU    = uint32(0x23)
	FN_AND     = uint32(0x24)
	FN_OR      = uint32(0x25)
	FN_XOR     = uint32(0x26)
	FN_NOR     = uint32(0x27)
	FN_SLT     = uint32(0x2a)
	FN_SLTU    = uint32(0x2b)
)

// Register numbers with a conventional role.
const (
	REG_ZERO = 0
	REG_AT   = 1
	REG_V0   = 2
	REG_A0   = 4
	REG_GP   = 28
	REG_SP   = 29
	REG_FP   = 30
	REG_RA   = 31
)

// REG_NAMES are the conventional register names, indexed by number.
var REG_NAMES = [32]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

var opNames = map[uint32]string{
	OP_J:     "j",
	OP_JAL:   "jal",
	OP_BEQ:   "beq",
	OP_BNE:   "bne",
	OP_BLEZ:  "blez",
	OP_BGTZ:  "bgtz",
	OP_ADDI:  "addi",
	OP_ADDIU: "addiu",
	OP_SLTI:  "slti",
	OP_SLTIU: "sltiu",
	OP_ANDI:  "andi",
	OP_ORI:   "ori",
	OP_XORI:  "xori",
	OP_LUI:   "lui",
	OP_LB:    "lb",
	OP_LH:    "lh",
	OP_LW:    "lw",
	OP_LBU:   "lbu",
	OP_LHU:   "lhu",
	OP_SB:    "sb",
	OP_SH:    "sh",
	OP_SW:    "sw",
}

var fnNames = map[uint32]string{
	FN_SLL:     "sll",
	FN_SRL:     "srl",
	FN_SRA:     "sra",
	FN_SLLV:    "sllv",
	FN_SRLV:    "srlv",
	FN_SRAV:    "srav",
	FN_JR:      "jr",
	FN_JALR:    "jalr",
	FN_SYSCALL: "syscall",
	FN_MFHI:    "mfhi",
	FN_MTHI:    "mthi",
	FN_MFLO:    "mflo",
	FN_MTLO:    "mtlo",
	FN_MULT:    "mult",
	FN_MULTU:   "multu",
	FN_DIV:     "div",
	FN_DIVU:    "divu",
	FN_ADD:     "add",
	FN_ADDU:    "addu",
	FN_SUB:     "sub",
	FN_SUBU:    "subu",
	FN_AND:     "and",
	FN_OR:      "or",
	FN_XOR:     "xor",
	FN_NOR:     "nor",
	FN_SLT:     "slt",
	FN_SLTU:    "sltu",
}

// MakeR creates a register format instruction.
func MakeR(fn uint32, rd, rs, rt, shamt int) Instruction {
	return Instruction(OP_SPECIAL<<26 |
		(uint32(rs)&0x1f)<<21 |
		(uint32(rt)&0x1f)<<16 |
		(uint32(rd)&0x1f)<<11 |
		(uint32(shamt)&0x1f)<<6 |
		fn&0x3f)
}

// MakeI creates an immediate format instruction.
func MakeI(op uint32, rt, rs int, imm uint16) Instruction {
	return Instruction((op&0x3f)<<26 |
		(uint32(rs)&0x1f)<<21 |
		(uint32(rt)&0x1f)<<16 |
		uint32(imm))
}

// MakeJ creates a jump format instruction from a byte address.
func MakeJ(op uint32, address uint32) Instruction {
	return Instruction((op&0x3f)<<26 | (address>>2)&0x03ff_ffff)
}

// MakeSyscall creates a syscall instruction.
func MakeSyscall() Instruction {
	return MakeR(FN_SYSCALL, 0, 0, 0, 0)
}

// Op returns the primary opcode.
func (in Instruction) Op() uint32 {
	return uint32(in) >> 26
}

func (in Instruction) Rs() int {
	return int((uint32(in) >> 21) & 0x1f)
}

func (in Instruction) Rt() int {
	return int((uint32(in) >> 16) & 0x1f)
}

func (in Instruction) Rd() int {
	return int((uint32(in) >> 11) & 0x1f)
}

func (in Instruction) Shamt() uint32 {
	return (uint32(in) >> 6) & 0x1f
}

func (in Instruction) Funct() uint32 {
	return uint32(in) & 0x3f
}

// Imm returns the zero extended immediate.
func (in Instruction) Imm() uint32 {
	return uint32(in) & 0xffff
}

// SImm returns the sign extended immediate.
func (in Instruction) SImm() uint32 {
	return uint32(int32(int16(uint16(in))))
}

// Target returns the 26-bit jump target field.
func (in Instruction) Target() uint32 {
	return uint32(in) & 0x03ff_ffff
}

// Mnemonic returns the instruction name, or the empty string if the
// encoding is not supported.
func (in Instruction) Mnemonic() string {
	if in.Op() == OP_SPECIAL {
		return fnNames[in.Funct()]
	}
	return opNames[in.Op()]
}

func reg(n int) string {
	return "$" + REG_NAMES[n]
}

// String disassembles the instruction.
func (in Instruction) String() string {
	name := in.Mnemonic()
	if len(name) == 0 {
		return fmt.Sprintf(".word 0x%08x", uint32(in))
	}

	if in == 0 {
		return "nop"
	}

	switch in.Op() {
	case OP_SPECIAL:
		switch in.Funct() {
		case FN_SLL, FN_SRL, FN_SRA:
			return fmt.Sprintf("%v %v, %v, %d", name, reg(in.Rd()), reg(in.Rt()), in.Shamt())
		case FN_SLLV, FN_SRLV, FN_SRAV:
			return fmt.Sprintf("%v %v, %v, %v", name, reg(in.Rd()), reg(in.Rt()), reg(in.Rs()))
		case FN_JR, FN_MTHI, FN_MTLO:
			return fmt.Sprintf("%v %v", name, reg(in.Rs()))
		case FN_JALR:
			return fmt.Sprintf("%v %v, %v", name, reg(in.Rd()), reg(in.Rs()))
		case FN_SYSCALL:
			return name
		case FN_MFHI, FN_MFLO:
			return fmt.Sprintf("%v %v", name, reg(in.Rd()))
		case FN_MULT, FN_MULTU, FN_DIV, FN_DIVU:
			return fmt.Sprintf("%v %v, %v", name, reg(in.Rs()), reg(in.Rt()))
		default:
			return fmt.Sprintf("%v %v, %v, %v", name, reg(in.Rd()), reg(in.Rs()), reg(in.Rt()))
		}
	case OP_J, OP_JAL:
		return fmt.Sprintf("%v 0x%08x", name, in.Target()<<2)
	case OP_BEQ, OP_BNE:
		return fmt.Sprintf("%v %v, %v, %d", name, reg(in.Rs()), reg(in.Rt()), int32(in.SImm()))
	case OP_BLEZ, OP_BGTZ:
		return fmt.Sprintf("%v %v, %d", name, reg(in.Rs()), int32(in.SImm()))
	case OP_LUI:
		return fmt.Sprintf("%v %v, 0x%04x", name, reg(in.Rt()), in.Imm())
	case OP_ANDI, OP_ORI, OP_XORI:
		return fmt.Sprintf("%v %v, %v, 0x%04x", name, reg(in.Rt()), reg(in.Rs()), in.Imm())
	case OP_LB, OP_LH, OP_LW, OP_LBU, OP_LHU, OP_SB, OP_SH, OP_SW:
		return fmt.Sprintf("%v %v, %d(%v)", name, reg(in.Rt()), int32(in.SImm()), reg(in.Rs()))
	}

	return fmt.Sprintf("%v %v, %v, %d", name, reg(in.Rt()), reg(in.Rs()), int32(in.SImm()))
}
