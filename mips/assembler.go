// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package mips

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/supermips/bridge"
	"github.com/ezrec/supermips/memory"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// DATA_BYTES is the largest data image the data segment can hold.
const DATA_BYTES = uint64(memory.DATA_END-memory.DATA_START+1) * 4

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Section is the segment the assembler is currently emitting into.
//
//go:generate go tool stringer -type=Section -trimprefix=SECTION_
type Section int

const (
	SECTION_TEXT = Section(0)
	SECTION_DATA = Section(1)
)

// dataLink is a label reference in the data image, patched after parsing.
type dataLink struct {
	Offset int
	Label  string
	LineNo int
}

// Assembler is a single pass macro assembler for MIPS32 text and data.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.
	Data    []byte   // Generated data image.

	predefine map[string]string   // Predefines
	Label     map[string]uint32   // Map of labels to byte addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.

	section   Section
	dataLinks []dataLink
	expansion int // Macro expansions so far, for unique '@' labels.
}

// NewAssembler creates an assembler with the memory map, the syscall ABI,
// and the cpu equates predefined.
func NewAssembler() (asm *Assembler) {
	asm = &Assembler{}
	asm.PredefineAll(memory.Defines())
	asm.PredefineAll(bridge.Defines())
	asm.PredefineAll(Defines())

	return
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// PredefineAll predefines every equate of a define table.
func (asm *Assembler) PredefineAll(defines iter.Seq2[string, string]) {
	for equ, value := range defines {
		asm.Predefine(equ, value)
	}
}

// numberOf returns the value of a simple word, which may be an equate.
func (asm *Assembler) numberOf(word string) (value int64, err error) {
	for range 8 {
		equate, ok := asm.Equate[word]
		if !ok {
			break
		}
		word = equate
	}

	if len(word) == 0 {
		err = ErrOpcodeValueMissing
		return
	}

	invert := false
	if word[0] == '~' {
		invert = true
		word = word[1:]
	}

	value, err = strconv.ParseInt(word, 0, 64)
	if err != nil || value > 0xffffffff || value < -int64(0x80000000) {
		err = ErrParseNumber(word)
		return
	}

	if invert {
		value = int64(^uint32(value))
	}

	return
}

// valueOf returns the 32-bit value of a simple word.
func (asm *Assembler) valueOf(word string) (value uint32, err error) {
	v64, err := asm.numberOf(word)
	if err != nil {
		return
	}

	value = uint32(v64)
	return
}

// immediateOf returns a 16-bit immediate, signed or unsigned.
func (asm *Assembler) immediateOf(word string) (imm uint16, err error) {
	v64, err := asm.numberOf(word)
	if err != nil {
		return
	}

	if v64 < -0x8000 || v64 > 0xffff {
		err = fmt.Errorf("%w: %v", ErrImmediateRange, word)
		return
	}

	imm = uint16(v64)
	return
}

// registerMap maps register names to numbers.
var registerMap = func() map[string]int {
	regs := make(map[string]int, 64)
	for n, name := range REG_NAMES {
		regs["$"+name] = n
		regs[fmt.Sprintf("$%d", n)] = n
	}
	regs["$s8"] = REG_FP
	return regs
}()

// registerOf returns the number of a register, which may be an equate.
func (asm *Assembler) registerOf(word string) (reg int, err error) {
	equate, ok := asm.Equate[word]
	if ok {
		word = equate
	}

	reg, ok = registerMap[word]
	if !ok {
		err = fmt.Errorf("%w: %v", ErrRegisterInvalid, word)
		return
	}

	return
}

var memOperand = regexp.MustCompile(`^([^()]*)\(([^()]+)\)$`)

// memoryOf returns the base register and offset of an "offset(base)" operand.
func (asm *Assembler) memoryOf(word string) (base int, offset uint16, err error) {
	match := memOperand.FindStringSubmatch(word)
	if match == nil {
		err = fmt.Errorf("%w: %v", ErrOperandInvalid, word)
		return
	}

	base, err = asm.registerOf(match[2])
	if err != nil {
		return
	}

	if len(match[1]) == 0 {
		return
	}

	offset, err = asm.immediateOf(match[1])
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value uint32, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var value64 int64
		value64, err = asm.numberOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt64(value64)
	}
	err = nil
	for key, addr := range asm.Label {
		pred[key] = starlark.MakeUint64(uint64(addr))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = uint32(st_int64)
	return
}

// stripComment removes a '#' or ';' comment, ignoring both inside string
// and character literals.
func stripComment(line string) string {
	inString := false
	for n := 0; n < len(line); n++ {
		c := line[n]
		switch {
		case inString && c == '\\':
			n++
		case c == '"':
			inString = !inString
		case inString:
		case c == '\'':
			if n+2 < len(line) && line[n+2] == '\'' {
				n += 2
			} else if n+3 < len(line) && line[n+1] == '\\' && line[n+3] == '\'' {
				n += 3
			}
		case c == '#' || c == ';':
			return line[:n]
		}
	}

	return line
}

var (
	reCharacter  = regexp.MustCompile(`'\\?[^']'`)
	reExpression = regexp.MustCompile(`\$\([^\$]*\)`)
)

// parseLine parses a single line into words, and the trailing string
// literal (if any).
func (asm *Assembler) parseLine(line string, lineno int) (words []string, str string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	line = strings.TrimSpace(stripComment(line))

	// String literals are only used by .ascii and .asciiz, and are
	// never substituted.
	if quote := strings.IndexByte(line, '"'); quote >= 0 {
		str = strings.TrimSpace(line[quote:])
		line = line[:quote]
	}

	// Do 'x' evaluations
	line = reCharacter.ReplaceAllStringFunc(line, func(word string) string {
		char := word[1 : len(word)-1]
		if char[0] == '\\' {
			char = char[1:]
			switch char {
			case "\\":
				char = "\\"
			case "n":
				char = "\n"
			case "r":
				char = "\r"
			case "t":
				char = "\t"
			case "0":
				char = "\000"
			case "e":
				char = "\033"
			default:
				return word
			}
		} else if len(char) != 1 {
			return word
		}
		return fmt.Sprintf("%v", char[0])
	})

	// Do $() evaluations
	line = reExpression.ReplaceAllStringFunc(line, func(expr string) string {
		value, _err := asm.parenEval(expr[2 : len(expr)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#v", value)
	})
	if err != nil {
		return
	}

	words = strings.Fields(strings.ReplaceAll(line, ",", " "))

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	var labels []string
	for len(words) > 0 && strings.HasSuffix(words[0], ":") {
		labels = append(labels, words[0][:len(words[0])-1])
		words = words[1:]
	}

	if len(labels) > 0 {
		if len(words) > 0 {
			asm.alignFor(words[0])
		}
		for _, label := range labels {
			_, ok := asm.Label[label]
			if ok {
				err = ErrLabelDuplicate
				return
			}
			asm.Label[label] = asm.currentAddress()
		}
	}

	if len(words) == 0 {
		return
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = words[1+n]
		}
		defer func() { asm.Equate = old_equate }()

		asm.expansion++
		expansion := asm.expansion

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", fmt.Sprintf("%v_%v_", name, expansion))
			var lineStr string
			words, lineStr, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineStr, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// currentPc gets the address of the next text instruction.
func (asm *Assembler) currentPc() uint32 {
	if len(asm.Opcode) == 0 {
		return memory.TEXT_BASE
	}

	last := asm.Opcode[len(asm.Opcode)-1]

	return last.Pc + 4*uint32(len(last.Codes))
}

// currentAddress gets the address of the next byte in the current section.
func (asm *Assembler) currentAddress() uint32 {
	if asm.section == SECTION_DATA {
		return memory.DATA_BASE + uint32(len(asm.Data))
	}

	return asm.currentPc()
}

// align pads the data image to a multiple of size bytes.
func (asm *Assembler) align(size int) {
	for len(asm.Data)%size != 0 {
		asm.Data = append(asm.Data, 0)
	}
}

// alignFor aligns data ahead of a directive, so that a label on the
// same line gets the aligned address.
func (asm *Assembler) alignFor(directive string) {
	if asm.section != SECTION_DATA {
		return
	}

	switch directive {
	case ".word":
		asm.align(4)
	case ".half":
		asm.align(2)
	}
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			if _, ok := err.(*ErrSyntax); !ok {
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
			}
		}
	}()

	asm.Label = make(map[string]uint32, 16)
	asm.Opcode = asm.Opcode[:0]
	asm.Data = nil
	asm.dataLinks = nil
	asm.expansion = 0
	asm.section = SECTION_TEXT
	asm.Macro = make(map[string](*Macro))
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		line = scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, line)
		}

		words := strings.Fields(strings.ReplaceAll(stripComment(line), ",", " "))

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		var str string
		words, str, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, str, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	err = asm.link()
	if err != nil {
		return
	}

	prog = &Program{
		Opcodes: slices.Clone(asm.Opcode),
		Data:    slices.Clone(asm.Data),
		Label:   maps.Clone(asm.Label),
	}

	return
}

// Assemble parses an input stream into text and data segment images.
func (asm *Assembler) Assemble(input io.Reader) (text, data []byte, err error) {
	prog, err := asm.Parse(input)
	if err != nil {
		return
	}

	text = prog.TextBytes()
	data = prog.DataBytes()

	return
}

// link patches every label reference once all labels are known.
func (asm *Assembler) link() (err error) {
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if op.LinkKind == LINK_NONE {
			continue
		}

		err = asm.linkOpcode(op)
		if err != nil {
			err = &ErrSyntax{LineNo: op.LineNo, Line: strings.Join(op.Words, " "), Err: err}
			return
		}
	}

	for _, dl := range asm.dataLinks {
		target, ok := asm.Label[dl.Label]
		if !ok {
			err = &ErrSyntax{LineNo: dl.LineNo, Line: dl.Label, Err: ErrLabelMissing(dl.Label)}
			return
		}
		binary.LittleEndian.PutUint32(asm.Data[dl.Offset:], target)
	}

	return
}

// linkOpcode patches the label reference of a single opcode.
func (asm *Assembler) linkOpcode(op *Opcode) (err error) {
	target, ok := asm.Label[op.LinkLabel]
	if !ok {
		err = ErrLabelMissing(op.LinkLabel)
		return
	}

	if asm.Verbose {
		log.Printf("asm: line %d: link %v %v = 0x%08x", op.LineNo, op.LinkKind, op.LinkLabel, target)
	}

	last := len(op.Codes) - 1
	next := op.Pc + 4*uint32(last) + 4

	switch op.LinkKind {
	case LINK_BRANCH:
		offset := (int64(target) - int64(next)) / 4
		if offset < -0x8000 || offset > 0x7fff {
			err = ErrBranchRange
			return
		}
		op.Codes[last] |= Instruction(uint16(offset))
	case LINK_JUMP:
		if (target & 0xf000_0000) != (next & 0xf000_0000) {
			err = ErrJumpRange
			return
		}
		op.Codes[last] = MakeJ(op.Codes[last].Op(), target)
	case LINK_ADDRESS:
		op.Codes[last-1] |= Instruction(target >> 16)
		op.Codes[last] |= Instruction(target & 0xffff)
	}

	return
}

// directive handles a dot directive.
func (asm *Assembler) directive(words []string, str string, lineno int) (err error) {
	args := words[1:]

	needData := func() bool {
		if asm.section != SECTION_DATA {
			err = ErrDirectiveSection
			return false
		}
		return true
	}

	switch words[0] {
	case ".text", ".data":
		if len(args) > 0 {
			err = ErrOpcodeExtraArgs
			return
		}
		if words[0] == ".text" {
			asm.section = SECTION_TEXT
		} else {
			asm.section = SECTION_DATA
		}
		if asm.Verbose {
			log.Printf("asm: line %d: section %v", lineno, asm.section)
		}
	case ".globl", ".global":
		// Single module programs have no symbol export.
	case ".word":
		if !needData() {
			return
		}
		if len(args) == 0 {
			err = ErrOpcodeValueMissing
			return
		}
		asm.align(4)
		for _, arg := range args {
			value, _err := asm.valueOf(arg)
			if _err != nil {
				// Presume a label, and patch it later.
				asm.dataLinks = append(asm.dataLinks, dataLink{Offset: len(asm.Data), Label: arg, LineNo: lineno})
				value = 0
			}
			asm.Data = binary.LittleEndian.AppendUint32(asm.Data, value)
		}
	case ".half":
		if !needData() {
			return
		}
		if len(args) == 0 {
			err = ErrOpcodeValueMissing
			return
		}
		asm.align(2)
		for _, arg := range args {
			var value uint16
			value, err = asm.immediateOf(arg)
			if err != nil {
				return
			}
			asm.Data = binary.LittleEndian.AppendUint16(asm.Data, value)
		}
	case ".byte":
		if !needData() {
			return
		}
		if len(args) == 0 {
			err = ErrOpcodeValueMissing
			return
		}
		for _, arg := range args {
			var value int64
			value, err = asm.numberOf(arg)
			if err != nil {
				return
			}
			if value < -0x80 || value > 0xff {
				err = fmt.Errorf("%w: %v", ErrImmediateRange, arg)
				return
			}
			asm.Data = append(asm.Data, byte(value))
		}
	case ".ascii", ".asciiz":
		if !needData() {
			return
		}
		if len(args) > 0 || len(str) == 0 {
			err = fmt.Errorf("%w: %v", ErrStringSyntax, strings.Join(args, " "))
			return
		}
		var text string
		text, err = strconv.Unquote(str)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrStringSyntax, str)
			return
		}
		asm.Data = append(asm.Data, text...)
		if words[0] == ".asciiz" {
			asm.Data = append(asm.Data, 0)
		}
	case ".space":
		if !needData() {
			return
		}
		if len(args) != 1 {
			err = ErrOpcodeValueMissing
			return
		}
		var size uint32
		size, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		if uint64(len(asm.Data))+uint64(size) > DATA_BYTES {
			err = fmt.Errorf("%w: .space %v", ErrImmediateRange, size)
			return
		}
		asm.Data = append(asm.Data, make([]byte, size)...)
	case ".align":
		if !needData() {
			return
		}
		if len(args) != 1 {
			err = ErrOpcodeValueMissing
			return
		}
		var power uint32
		power, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		if power > 12 {
			err = fmt.Errorf("%w: %v", ErrImmediateRange, args[0])
			return
		}
		asm.align(1 << power)
	default:
		err = ErrDirectiveInvalid
	}

	return
}
