package mips

import (
	"iter"
	"slices"

	"github.com/ezrec/supermips/memory"
)

// LinkKind is how a label reference is patched into an opcode.
//
//go:generate go tool stringer -type=LinkKind -trimprefix=LINK_
type LinkKind int

const (
	LINK_NONE    = LinkKind(0) // No label reference.
	LINK_BRANCH  = LinkKind(1) // 16-bit word offset from the next instruction.
	LINK_JUMP    = LinkKind(2) // 26-bit word address within the current region.
	LINK_ADDRESS = LinkKind(3) // lui/ori pair holding the full byte address.
)

// Opcode is a line of assembled text with its source location and
// generated instructions.
type Opcode struct {
	LineNo    int
	Pc        uint32
	Words     []string
	Codes     []Instruction
	LinkLabel string
	LinkKind  LinkKind
}

// Program is an assembled text and data image.
type Program struct {
	Opcodes []Opcode
	Data    []byte
	Label   map[string]uint32
}

type Debug struct {
	*Opcode
	Index int
}

// Debug finds the opcode that generated the instruction at pc.
func (prog *Program) Debug(pc uint32) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if pc >= op.Pc && pc < op.Pc+4*uint32(len(op.Codes)) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(pc-op.Pc) / 4,
			}
			break
		}
	}

	return
}

// LineNo returns the source line for pc, or 0 if pc is not in the program.
func (prog *Program) LineNo(pc uint32) int {
	dbg := prog.Debug(pc)
	if dbg.Opcode == nil {
		return 0
	}
	return dbg.LineNo
}

// Codes iterates over every instruction and its address.
func (prog *Program) Codes() iter.Seq2[uint32, Instruction] {
	return func(yield func(pc uint32, code Instruction) bool) {
		for _, op := range prog.Opcodes {
			for n, code := range op.Codes {
				if !yield(op.Pc+4*uint32(n), code) {
					return
				}
			}
		}
	}
}

// Text returns the text segment image, starting at TEXT_BASE.
func (prog *Program) Text() (words []uint32) {
	for pc, code := range prog.Codes() {
		index := int(pc-memory.TEXT_BASE) / 4
		if index >= len(words) {
			words = append(words, make([]uint32, index+1-len(words))...)
		}
		words[index] = uint32(code)
	}

	return
}

// TextBytes returns the text segment image as little-endian bytes.
func (prog *Program) TextBytes() []byte {
	return memory.Bytes(prog.Text())
}

// DataWords returns the data segment image, starting at DATA_BASE.
func (prog *Program) DataWords() []uint32 {
	return memory.Words(prog.Data)
}

// DataBytes returns a copy of the data segment image.
func (prog *Program) DataBytes() []byte {
	return slices.Clone(prog.Data)
}
