package mips

import (
	"strings"
)

// argsKind is the operand layout of a native instruction.
type argsKind int

const (
	ARGS_NONE        = argsKind(0)  // syscall
	ARGS_RD_RS_RT    = argsKind(1)  // add rd, rs, rt
	ARGS_RD_RT_SA    = argsKind(2)  // sll rd, rt, sa
	ARGS_RD_RT_RS    = argsKind(3)  // sllv rd, rt, rs
	ARGS_RS          = argsKind(4)  // jr rs
	ARGS_RD          = argsKind(5)  // mfhi rd
	ARGS_RS_RT       = argsKind(6)  // mult rs, rt
	ARGS_JALR        = argsKind(7)  // jalr [rd,] rs
	ARGS_RT_RS_IMM   = argsKind(8)  // addi rt, rs, imm
	ARGS_RT_IMM      = argsKind(9)  // lui rt, imm
	ARGS_RS_RT_LABEL = argsKind(10) // beq rs, rt, label
	ARGS_RS_LABEL    = argsKind(11) // blez rs, label
	ARGS_RT_MEM      = argsKind(12) // lw rt, offset(base)
	ARGS_TARGET      = argsKind(13) // j label
)

type encoding struct {
	args argsKind
	op   uint32
	fn   uint32
}

// instructionMap maps native mnemonics to their encoding.
var instructionMap = map[string]encoding{
	"sll":     {ARGS_RD_RT_SA, OP_SPECIAL, FN_SLL},
	"srl":     {ARGS_RD_RT_SA, OP_SPECIAL, FN_SRL},
	"sra":     {ARGS_RD_RT_SA, OP_SPECIAL, FN_SRA},
	"sllv":    {ARGS_RD_RT_RS, OP_SPECIAL, FN_SLLV},
	"srlv":    {ARGS_RD_RT_RS, OP_SPECIAL, FN_SRLV},
	"srav":    {ARGS_RD_RT_RS, OP_SPECIAL, FN_SRAV},
	"jr":      {ARGS_RS, OP_SPECIAL, FN_JR},
	"jalr":    {ARGS_JALR, OP_SPECIAL, FN_JALR},
	"syscall": {ARGS_NONE, OP_SPECIAL, FN_SYSCALL},
	"mfhi":    {ARGS_RD, OP_SPECIAL, FN_MFHI},
	"mthi":    {ARGS_RS, OP_SPECIAL, FN_MTHI},
	"mflo":    {ARGS_RD, OP_SPECIAL, FN_MFLO},
	"mtlo":    {ARGS_RS, OP_SPECIAL, FN_MTLO},
	"mult":    {ARGS_RS_RT, OP_SPECIAL, FN_MULT},
	"multu":   {ARGS_RS_RT, OP_SPECIAL, FN_MULTU},
	"div":     {ARGS_RS_RT, OP_SPECIAL, FN_DIV},
	"divu":    {ARGS_RS_RT, OP_SPECIAL, FN_DIVU},
	"add":     {ARGS_RD_RS_RT, OP_SPECIAL, FN_ADD},
	"addu":    {ARGS_RD_RS_RT, OP_SPECIAL, FN_ADDU},
	"sub":     {ARGS_RD_RS_RT, OP_SPECIAL, FN_SUB},
	"subu":    {ARGS_RD_RS_RT, OP_SPECIAL, FN_SUBU},
	"and":     {ARGS_RD_RS_RT, OP_SPECIAL, FN_AND},
	"or":      {ARGS_RD_RS_RT, OP_SPECIAL, FN_OR},
	"xor":     {ARGS_RD_RS_RT, OP_SPECIAL, FN_XOR},
	"nor":     {ARGS_RD_RS_RT, OP_SPECIAL, FN_NOR},
	"slt":     {ARGS_RD_RS_RT, OP_SPECIAL, FN_SLT},
	"sltu":    {ARGS_RD_RS_RT, OP_SPECIAL, FN_SLTU},
	"j":       {ARGS_TARGET, OP_J, 0},
	"jal":     {ARGS_TARGET, OP_JAL, 0},
	"beq":     {ARGS_RS_RT_LABEL, OP_BEQ, 0},
	"bne":     {ARGS_RS_RT_LABEL, OP_BNE, 0},
	"blez":    {ARGS_RS_LABEL, OP_BLEZ, 0},
	"bgtz":    {ARGS_RS_LABEL, OP_BGTZ, 0},
	"addi":    {ARGS_RT_RS_IMM, OP_ADDI, 0},
	"addiu":   {ARGS_RT_RS_IMM, OP_ADDIU, 0},
	"slti":    {ARGS_RT_RS_IMM, OP_SLTI, 0},
	"sltiu":   {ARGS_RT_RS_IMM, OP_SLTIU, 0},
	"andi":    {ARGS_RT_RS_IMM, OP_ANDI, 0},
	"ori":     {ARGS_RT_RS_IMM, OP_ORI, 0},
	"xori":    {ARGS_RT_RS_IMM, OP_XORI, 0},
	"lui":     {ARGS_RT_IMM, OP_LUI, 0},
	"lb":      {ARGS_RT_MEM, OP_LB, 0},
	"lh":      {ARGS_RT_MEM, OP_LH, 0},
	"lw":      {ARGS_RT_MEM, OP_LW, 0},
	"lbu":     {ARGS_RT_MEM, OP_LBU, 0},
	"lhu":     {ARGS_RT_MEM, OP_LHU, 0},
	"sb":      {ARGS_RT_MEM, OP_SB, 0},
	"sh":      {ARGS_RT_MEM, OP_SH, 0},
	"sw":      {ARGS_RT_MEM, OP_SW, 0},
}

// argCount is the number of operands each layout takes.
var argCount = map[argsKind]int{
	ARGS_NONE:        0,
	ARGS_RD_RS_RT:    3,
	ARGS_RD_RT_SA:    3,
	ARGS_RD_RT_RS:    3,
	ARGS_RS:          1,
	ARGS_RD:          1,
	ARGS_RS_RT:       2,
	ARGS_RT_RS_IMM:   3,
	ARGS_RT_IMM:      2,
	ARGS_RS_RT_LABEL: 3,
	ARGS_RS_LABEL:    2,
	ARGS_RT_MEM:      2,
	ARGS_TARGET:      1,
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, str string, lineno int) (err error) {
	var codes []Instruction
	var label string
	var kind LinkKind

	// no-op
	if len(words) == 0 {
		return
	}

	if strings.HasPrefix(words[0], ".") {
		if len(str) > 0 && words[0] != ".ascii" && words[0] != ".asciiz" {
			err = ErrStringSyntax
			return
		}
		return asm.directive(words, str, lineno)
	}

	if len(str) > 0 {
		err = ErrStringSyntax
		return
	}

	if asm.section != SECTION_TEXT {
		err = ErrDirectiveSection
		return
	}

	initial_words := words
	pc := asm.currentPc()

	defer func() {
		if err != nil || len(codes) == 0 {
			return
		}
		opcode := Opcode{LineNo: lineno, Pc: pc, Words: initial_words, Codes: codes, LinkLabel: label, LinkKind: kind}
		asm.Opcode = append(asm.Opcode, opcode)
	}()

	// Alternate syntax substitutions
	switch {
	case len(words) == 1 && words[0] == "nop":
		// nop => sll $zero, $zero, 0
		words = []string{"sll", "$zero", "$zero", "0"}
	case len(words) == 3 && words[0] == "move":
		// move RD RS => addu RD RS $zero
		words = []string{"addu", words[1], words[2], "$zero"}
	case len(words) == 3 && words[0] == "not":
		// not RD RS => nor RD RS $zero
		words = []string{"nor", words[1], words[2], "$zero"}
	case len(words) == 3 && words[0] == "neg":
		// neg RD RS => sub RD $zero RS
		words = []string{"sub", words[1], "$zero", words[2]}
	case len(words) == 2 && words[0] == "b":
		// b LABEL => beq $zero $zero LABEL
		words = []string{"beq", "$zero", "$zero", words[1]}
	case len(words) == 3 && words[0] == "beqz":
		// beqz RS LABEL => beq RS $zero LABEL
		words = []string{"beq", words[1], "$zero", words[2]}
	case len(words) == 3 && words[0] == "bnez":
		// bnez RS LABEL => bne RS $zero LABEL
		words = []string{"bne", words[1], "$zero", words[2]}
	default:
		// unchanged
	}

	args := words[1:]

	switch words[0] {
	case "li", "la":
		if len(args) < 2 {
			err = ErrOpcodeValueMissing
			return
		}
		if len(args) > 2 {
			err = ErrOpcodeExtraArgs
			return
		}
		var rt int
		rt, err = asm.registerOf(args[0])
		if err != nil {
			return
		}
		value, nerr := asm.numberOf(args[1])
		switch {
		case nerr != nil:
			// A label, linked later.
			codes = []Instruction{
				MakeI(OP_LUI, REG_AT, REG_ZERO, 0),
				MakeI(OP_ORI, rt, REG_AT, 0),
			}
			label = args[1]
			kind = LINK_ADDRESS
		case words[0] == "li" && value >= -0x8000 && value <= 0x7fff:
			codes = []Instruction{MakeI(OP_ADDIU, rt, REG_ZERO, uint16(value))}
		case words[0] == "li" && value >= 0 && value <= 0xffff:
			codes = []Instruction{MakeI(OP_ORI, rt, REG_ZERO, uint16(value))}
		default:
			codes = []Instruction{
				MakeI(OP_LUI, REG_AT, REG_ZERO, uint16(uint32(value)>>16)),
				MakeI(OP_ORI, rt, REG_AT, uint16(value)),
			}
		}
		return
	}

	enc, ok := instructionMap[words[0]]
	if !ok {
		err = ErrOpcodeInvalid
		return
	}

	if enc.args == ARGS_JALR {
		switch len(args) {
		case 1:
			args = []string{"$ra", args[0]}
		case 2:
		case 0:
			err = ErrOpcodeValueMissing
			return
		default:
			err = ErrOpcodeExtraArgs
			return
		}
	} else {
		want := argCount[enc.args]
		if len(args) < want {
			err = ErrOpcodeValueMissing
			return
		}
		if len(args) > want {
			err = ErrOpcodeExtraArgs
			return
		}
	}

	// Registers, in operand order.
	regs := func(n int) (out []int) {
		for _, arg := range args[:n] {
			var reg int
			reg, err = asm.registerOf(arg)
			if err != nil {
				return nil
			}
			out = append(out, reg)
		}
		return
	}

	var code Instruction
	switch enc.args {
	case ARGS_NONE:
		code = MakeR(enc.fn, 0, 0, 0, 0)
	case ARGS_RD_RS_RT:
		r := regs(3)
		if err != nil {
			return
		}
		code = MakeR(enc.fn, r[0], r[1], r[2], 0)
	case ARGS_RD_RT_SA:
		r := regs(2)
		if err != nil {
			return
		}
		var sa uint32
		sa, err = asm.valueOf(args[2])
		if err != nil {
			return
		}
		if sa > 31 {
			err = ErrImmediateRange
			return
		}
		code = MakeR(enc.fn, r[0], 0, r[1], int(sa))
	case ARGS_RD_RT_RS:
		r := regs(3)
		if err != nil {
			return
		}
		code = MakeR(enc.fn, r[0], r[2], r[1], 0)
	case ARGS_RS:
		r := regs(1)
		if err != nil {
			return
		}
		code = MakeR(enc.fn, 0, r[0], 0, 0)
	case ARGS_RD:
		r := regs(1)
		if err != nil {
			return
		}
		code = MakeR(enc.fn, r[0], 0, 0, 0)
	case ARGS_RS_RT:
		r := regs(2)
		if err != nil {
			return
		}
		code = MakeR(enc.fn, 0, r[0], r[1], 0)
	case ARGS_JALR:
		r := regs(2)
		if err != nil {
			return
		}
		code = MakeR(enc.fn, r[0], r[1], 0, 0)
	case ARGS_RT_RS_IMM:
		r := regs(2)
		if err != nil {
			return
		}
		var imm uint16
		imm, err = asm.immediateOf(args[2])
		if err != nil {
			return
		}
		code = MakeI(enc.op, r[0], r[1], imm)
	case ARGS_RT_IMM:
		r := regs(1)
		if err != nil {
			return
		}
		var imm uint16
		imm, err = asm.immediateOf(args[1])
		if err != nil {
			return
		}
		code = MakeI(enc.op, r[0], 0, imm)
	case ARGS_RS_RT_LABEL:
		r := regs(2)
		if err != nil {
			return
		}
		code = MakeI(enc.op, r[1], r[0], 0)
		label = args[2]
		kind = LINK_BRANCH
	case ARGS_RS_LABEL:
		r := regs(1)
		if err != nil {
			return
		}
		code = MakeI(enc.op, 0, r[0], 0)
		label = args[1]
		kind = LINK_BRANCH
	case ARGS_RT_MEM:
		r := regs(1)
		if err != nil {
			return
		}
		var base int
		var offset uint16
		base, offset, err = asm.memoryOf(args[1])
		if err != nil {
			return
		}
		code = MakeI(enc.op, r[0], base, offset)
	case ARGS_TARGET:
		target, nerr := asm.valueOf(args[0])
		if nerr != nil {
			code = MakeJ(enc.op, 0)
			label = args[0]
			kind = LINK_JUMP
			break
		}
		if (target & 0xf000_0000) != ((pc + 4) & 0xf000_0000) {
			err = ErrJumpRange
			return
		}
		code = MakeJ(enc.op, target)
	}

	codes = []Instruction{code}

	return
}
