package mips

import (
	"errors"

	"github.com/ezrec/supermips/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
	ErrAlignment          = errors.New(f("unaligned access"))
	ErrNoHandler          = errors.New(f("syscall without handler"))
	ErrHalted             = errors.New(f("core halted"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrMacroSyntax        = errors.New(f(".macro syntax"))
	ErrMacroNesting       = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate     = errors.New(f(".macro duplicated"))
	ErrMacroLonely        = errors.New(f(".macro without .endm"))
	ErrMacroLonelyEndm    = errors.New(f(".endm without .macro"))
	ErrDirectiveInvalid   = errors.New(f("directive invalid"))
	ErrDirectiveSection   = errors.New(f("directive not allowed in this section"))
	ErrStringSyntax       = errors.New(f("string syntax"))
	ErrOpcodeExtraArgs    = errors.New(f("excessive arguments"))
	ErrOpcodeValueMissing = errors.New(f("value missing"))
	ErrOpcodeInvalid      = errors.New(f("opcode invalid"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrOperandInvalid     = errors.New(f("memory operand invalid"))
	ErrImmediateRange     = errors.New(f("immediate out of range"))
	ErrBranchRange        = errors.New(f("branch target out of range"))
	ErrJumpRange          = errors.New(f("jump target out of region"))
)

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

// ErrOpcode is an instruction word the core cannot decode.
type ErrOpcode uint32

func (eo ErrOpcode) Error() string {
	return f("bad instruction 0x%08x", uint32(eo))
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	if err == ErrInstructionInvalid {
		return true
	}
	_, ok = err.(ErrOpcode)
	return
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrMacro struct {
	Macro string
	Line  int
	Err   error
}

func (err *ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.Line, err.Err.Error())
}

func (err *ErrMacro) Unwrap() error {
	return err.Err
}
