// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/supermips/bridge"
	"github.com/ezrec/supermips/internal"
	"github.com/ezrec/supermips/memory"
	"github.com/ezrec/supermips/mips"
)

const (
	TICKS_PER_FRAME = 200_000 // Default instruction budget of RunFrame.
)

var _emulator_defines = map[string]string{
	"TICKS_PER_FRAME": fmt.Sprintf("%v", TICKS_PER_FRAME),
}

// Core is an execution engine. Tick executes one instruction, and hands
// any syscall to the handler.
type Core interface {
	Tick(handler bridge.Handler) error
	LoadText(words []uint32) error
	LoadData(words []uint32) error
}

// ProgramCounter is implemented by cores that can report their location
// for diagnostics.
type ProgramCounter interface {
	PC() uint32
}

// Assembler translates source into text and data segment images.
type Assembler interface {
	Assemble(source io.Reader) (text, data []byte, err error)
}

// Emulator state. Memory + core + syscall bridge.
type Emulator struct {
	Verbose bool // If set, enables verbose logging.

	Memory  *memory.Memory // Guest memory, owned by the emulator.
	Core    Core           // Execution engine.
	Bridge  *bridge.Bridge // Syscall dispatch to the host.
	Program *mips.Program  // Listing of the running program, if known.

	blockSize   int
	bridgeOpts  []bridge.Option
	newCore     func(mem *memory.Memory) Core
	unsupported map[bridge.Selector]bool
}

// Option configures an Emulator.
type Option func(emu *Emulator) error

// WithBlockSize sets the memory segment growth increment, in words.
func WithBlockSize(words int) Option {
	return func(emu *Emulator) error {
		if words <= 0 {
			return memory.ErrBlockSize
		}
		emu.blockSize = words
		return nil
	}
}

// WithBridge passes options through to the syscall bridge.
func WithBridge(opts ...bridge.Option) Option {
	return func(emu *Emulator) error {
		emu.bridgeOpts = append(emu.bridgeOpts, opts...)
		return nil
	}
}

// WithCore replaces the reference MIPS core.
func WithCore(newCore func(mem *memory.Memory) Core) Option {
	return func(emu *Emulator) error {
		if newCore == nil {
			return ErrNoCore
		}
		emu.newCore = newCore
		return nil
	}
}

// WithVerbose enables logging in the emulator, core and bridge.
func WithVerbose(verbose bool) Option {
	return func(emu *Emulator) error {
		emu.Verbose = verbose
		return nil
	}
}

// NewEmulator creates a new emulator attached to a host adapter.
func NewEmulator(host bridge.Host, opts ...Option) (emu *Emulator, err error) {
	emu = &Emulator{
		Program:     &mips.Program{},
		blockSize:   memory.BLOCK_SIZE,
		unsupported: map[bridge.Selector]bool{},
		newCore: func(mem *memory.Memory) Core {
			return mips.NewCpu(mem)
		},
	}

	for _, opt := range opts {
		err = opt(emu)
		if err != nil {
			emu = nil
			return
		}
	}

	emu.Memory, err = memory.NewMemory(emu.blockSize)
	if err != nil {
		emu = nil
		return
	}

	bridgeOpts := append([]bridge.Option{bridge.WithVerbose(emu.Verbose)}, emu.bridgeOpts...)
	emu.Bridge, err = bridge.NewBridge(host, emu.Memory, bridgeOpts...)
	if err != nil {
		emu = nil
		return
	}

	emu.Core = emu.newCore(emu.Memory)
	if emu.Core == nil {
		emu = nil
		err = ErrNoCore
		return
	}

	if cpu, ok := emu.Core.(*mips.Cpu); ok {
		cpu.Verbose = emu.Verbose
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		memory.Defines(),
		bridge.Defines(),
		mips.Defines(),
	)
}

// Load installs an assembled program.
func (emu *Emulator) Load(prog *mips.Program) (err error) {
	err = emu.LoadWords(prog.Text(), prog.DataWords())
	if err != nil {
		return
	}

	emu.Program = prog
	return
}

// LoadWords installs raw text and data segment images.
func (emu *Emulator) LoadWords(text, data []uint32) (err error) {
	err = emu.Core.LoadText(text)
	if err != nil {
		return
	}

	return emu.Core.LoadData(data)
}

// LoadBytes installs little-endian text and data segment images.
func (emu *Emulator) LoadBytes(text, data []byte) error {
	return emu.LoadWords(memory.Words(text), memory.Words(data))
}

// LoadSource assembles source with asm and installs the result. No
// listing is kept, so runtime errors report only the pc.
func (emu *Emulator) LoadSource(asm Assembler, source io.Reader) (err error) {
	text, data, err := asm.Assemble(source)
	if err != nil {
		return
	}

	emu.Program = &mips.Program{}
	return emu.LoadBytes(text, data)
}

// Pc returns the core's program counter, or 0 if the core can not say.
func (emu *Emulator) Pc() uint32 {
	pc, ok := emu.Core.(ProgramCounter)
	if !ok {
		return 0
	}
	return pc.PC()
}

// LineNo returns the current line number for the executing opcode.
func (emu *Emulator) LineNo() int {
	if emu.Program == nil {
		return 0
	}
	return emu.Program.LineNo(emu.Pc())
}

// Handle services a syscall for the core. Reserved selectors are logged
// once and treated as a no-op; all other errors pass through.
func (emu *Emulator) Handle(req bridge.Request) (res bridge.Result, err error) {
	res, err = emu.Bridge.Handle(req)
	if req.Selector.Reserved() && errors.Is(err, bridge.ErrUnimplemented(0)) {
		if !emu.unsupported[req.Selector] {
			log.Printf("emulator: %v", err)
			emu.unsupported[req.Selector] = true
		}
		res = bridge.Result{Regs: req.Regs}
		err = nil
	}

	return
}

// Tick performs a single tick of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	if emu.Bridge.Quit() {
		done = true
		return
	}

	pc := emu.Pc()
	defer func() {
		if err != nil {
			lineno := 0
			if emu.Program != nil {
				lineno = emu.Program.LineNo(pc)
			}
			err = &ErrRuntime{Pc: pc, LineNo: lineno, Err: err}
		}
	}()

	err = emu.Core.Tick(emu)
	if errors.Is(err, mips.ErrHalted) {
		err = nil
		done = true
		return
	}
	if err != nil {
		return
	}

	done = emu.Bridge.Quit()
	return
}

// RunFrame ticks until the guest polls for the next frame, exits, or
// has executed budget instructions.
func (emu *Emulator) RunFrame(budget int) (done bool, err error) {
	if budget <= 0 {
		err = ErrTickCount
		return
	}

	frame := emu.Bridge.Frames()
	for range budget {
		done, err = emu.Tick()
		if done || err != nil {
			return
		}
		if emu.Bridge.Frames() != frame {
			return
		}
	}

	if emu.Verbose {
		log.Printf("emulator: frame budget of %d ticks exhausted at 0x%08x", budget, emu.Pc())
	}

	return
}

// Run ticks until the guest exits or fails.
func (emu *Emulator) Run() (err error) {
	for {
		var done bool
		done, err = emu.Tick()
		if done || err != nil {
			return
		}
	}
}
