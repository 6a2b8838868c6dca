package emulator

import (
	"bytes"
	"errors"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/supermips/bridge"
	"github.com/ezrec/supermips/host"
	"github.com/ezrec/supermips/memory"
	"github.com/ezrec/supermips/mips"
)

type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func (fc *fakeClock) Now() time.Time { return fc.now }

func (fc *fakeClock) Sleep(d time.Duration) {
	fc.slept += d
	fc.now = fc.now.Add(d)
}

// newTestEmulator creates an emulator on a headless host that records
// text, with a clock that never sleeps.
func newTestEmulator(t *testing.T, program []string) (emu *Emulator, hl *host.Headless, output *bytes.Buffer) {
	hl = host.NewHeadless(320, 240)
	output = &bytes.Buffer{}
	hl.Output = output

	clock := &fakeClock{now: time.Unix(1000, 0)}
	emu, err := NewEmulator(hl,
		WithBlockSize(64),
		WithBridge(bridge.WithClock(clock), bridge.WithEntropy(bytes.NewReader(make([]byte, 64)))),
	)
	if err != nil {
		t.Fatal(err)
	}

	if program == nil {
		return
	}

	asm := mips.NewAssembler()
	prog, err := asm.Parse(strings.NewReader(strings.Join(program, "\n")))
	if err != nil {
		t.Fatal(err)
	}

	err = emu.Load(prog)
	if err != nil {
		t.Fatal(err)
	}

	return
}

var demoProgram = []string{
	"# Bouncy square",
	".data",
	"title: .asciiz \"Bouncy Square!\"",
	"",
	".text",
	"    li $v0, SYS_SET_TITLE",
	"    la $a0, $(title + 3)",
	"    syscall",
	"loop:",
	"    li $v0, SYS_CLEAR",
	"    li $a0, 0x777777ff",
	"    syscall",
	"    li $v0, SYS_FILL_RECT",
	"    li $a0, 0xff0000ff",
	"    li $a1, 0x00400040",
	"    li $a2, 0x00800080",
	"    syscall",
	"    li $v0, SYS_PRESENT",
	"    syscall",
	"    li $v0, SYS_POLL",
	"    syscall",
	"    j loop",
}

func TestNewEmulator(t *testing.T) {
	assert := assert.New(t)

	hl := host.NewHeadless(0, 0)

	emu, err := NewEmulator(hl)
	assert.NoError(err)
	assert.False(emu.Verbose)
	assert.NotNil(emu.Memory)
	assert.NotNil(emu.Bridge)
	assert.IsType(&mips.Cpu{}, emu.Core)
	assert.Equal(memory.TEXT_BASE, emu.Pc())
	assert.Equal(0, emu.LineNo())

	table := [](struct {
		name string
		host bridge.Host
		opts []Option
		err  error
	}){
		{"no_host", nil, nil, bridge.ErrNoHost},
		{"block_size", hl, []Option{WithBlockSize(0)}, memory.ErrBlockSize},
		{"no_core", hl, []Option{WithCore(nil)}, ErrNoCore},
		{"nil_core", hl, []Option{WithCore(func(*memory.Memory) Core { return nil })}, ErrNoCore},
		{"frame_rate", hl, []Option{WithBridge(bridge.WithFrameRate(0))}, bridge.ErrFrameRate},
	}

	for _, entry := range table {
		emu, err := NewEmulator(entry.host, entry.opts...)
		assert.ErrorIs(err, entry.err, entry.name)
		assert.Nil(emu, entry.name)
	}

	defines := map[string]string{}
	for key, value := range emu.Defines() {
		defines[key] = value
	}
	assert.Equal("200000", defines["TICKS_PER_FRAME"])
	assert.Equal("0x22", defines["SYS_FILL_RECT"])
	assert.Contains(defines, "DATA_BASE")
	assert.Contains(defines, "STACK_TOP")
}

func TestEmulatorDemo(t *testing.T) {
	assert := assert.New(t)

	emu, hl, _ := newTestEmulator(t, demoProgram)

	done, err := emu.RunFrame(TICKS_PER_FRAME)
	assert.NoError(err)
	assert.False(done)
	assert.Equal(uint64(1), emu.Bridge.Frames())
	assert.Equal(1, hl.Frames)
	assert.Equal("ncy Square!", hl.Title())
	assert.Equal("ncy Square!", emu.Bridge.Title())

	grey := color.NRGBA{0x77, 0x77, 0x77, 0xff}
	red := color.NRGBA{0xff, 0x00, 0x00, 0xff}

	assert.Equal(grey, hl.At(10, 10))
	assert.Equal(red, hl.At(64, 64))
	assert.Equal(red, hl.At(127, 127))
	assert.Equal(grey, hl.At(128, 128))

	// The next frame starts after the jump back to the loop.
	assert.Equal(memory.TEXT_BASE+0x50, emu.Pc())
	assert.Equal(22, emu.LineNo())

	done, err = emu.RunFrame(TICKS_PER_FRAME)
	assert.NoError(err)
	assert.False(done)
	assert.Equal(uint64(2), emu.Bridge.Frames())
	assert.Equal(2, hl.Frames)
	assert.Len(hl.Titles, 1)
}

func TestEmulatorRun(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		".data",
		"hello: .asciiz \"Hello, \"",
		".text",
		"    li $v0, SYS_PRINT_STRING",
		"    la $a0, hello",
		"    syscall",
		"    li $v0, SYS_PRINT_NUMBER",
		"    li $a0, -42",
		"    li $a1, FMT_SIGNED",
		"    syscall",
		"    li $v0, SYS_DRAW_PIXEL",
		"    syscall",
		"    li $v0, SYS_DRAW_PIXEL",
		"    syscall",
		"    li $v0, SYS_EXIT",
		"    syscall",
		"    li $v0, 0xff",
		"    syscall",
	}

	emu, hl, output := newTestEmulator(t, program)

	err := emu.Run()
	assert.NoError(err)
	assert.Equal("Hello, -42", output.String())
	assert.True(hl.Quit)
	assert.True(emu.Bridge.Quit())

	done, err := emu.Tick()
	assert.NoError(err)
	assert.True(done)
	assert.Equal(memory.TEXT_BASE+0x38, emu.Pc())
	assert.Equal(map[bridge.Selector]bool{bridge.SYS_DRAW_PIXEL: true}, emu.unsupported)
}

func TestEmulatorHandle(t *testing.T) {
	assert := assert.New(t)

	emu, _, _ := newTestEmulator(t, nil)

	table := [](struct {
		selector bridge.Selector
		err      error
	}){
		{bridge.SYS_READ_STRING, nil},
		{bridge.SYS_AUDIO_VOLUME, nil},
		{bridge.SYS_READ_STRING, nil},
		{bridge.Selector(0xff), bridge.ErrUnknownSyscall(0)},
	}

	for _, entry := range table {
		var regs bridge.Registers
		regs[bridge.REG_V0] = uint32(entry.selector)
		regs[bridge.REG_A0] = 0x1234

		res, err := emu.Handle(bridge.NewRequest(regs))
		if entry.err == nil {
			assert.NoError(err, entry.selector.String())
			assert.Equal(regs, res.Regs, entry.selector.String())
		} else {
			assert.ErrorIs(err, entry.err, entry.selector.String())
		}
	}

	assert.Equal(map[bridge.Selector]bool{
		bridge.SYS_READ_STRING:  true,
		bridge.SYS_AUDIO_VOLUME: true,
	}, emu.unsupported)
}

func TestEmulatorErrors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name    string
		program []string
		lineno  int
		pc      uint32
		err     error
	}){
		{"unknown_syscall", []string{"li $v0, 0xff", "syscall"}, 2, memory.TEXT_BASE + 4, bridge.ErrUnknownSyscall(0)},
		{"unmapped", []string{"nop", "lw $t0, 0($zero)"}, 2, memory.TEXT_BASE + 4, memory.ErrUnmapped},
		{"alignment", []string{"addiu $t0, $sp, 1", "sw $t0, 0($t0)"}, 2, memory.TEXT_BASE + 4, mips.ErrAlignment},
		{"bounds", []string{"li $v0, SYS_PRINT_STRING", "li $a0, $(DATA_BASE + 0x1000)", "syscall"}, 3, memory.TEXT_BASE + 12, &bridge.ErrBounds{}},
		{"address", []string{"li $v0, SYS_SET_TITLE", "li $a0, TEXT_BASE", "syscall"}, 3, memory.TEXT_BASE + 12, memory.ErrUnmapped},
	}

	for _, entry := range table {
		emu, _, _ := newTestEmulator(t, entry.program)

		err := emu.Run()
		var runtime *ErrRuntime
		if !assert.True(errors.As(err, &runtime), entry.name) {
			continue
		}
		assert.Equal(entry.lineno, runtime.LineNo, entry.name)
		assert.Equal(entry.pc, runtime.Pc, entry.name)

		switch target := entry.err.(type) {
		case *bridge.ErrBounds:
			assert.True(errors.As(err, &target), entry.name)
		default:
			assert.ErrorIs(err, entry.err, entry.name)
		}
	}
}

func TestEmulatorInstruction(t *testing.T) {
	assert := assert.New(t)

	emu, _, _ := newTestEmulator(t, nil)
	assert.NoError(emu.LoadWords([]uint32{uint32(mips.MakeR(mips.FN_ADDU, 8, 0, 0, 0)), 0xfc000000}, nil))

	done, err := emu.Tick()
	assert.NoError(err)
	assert.False(done)

	done, err = emu.Tick()
	assert.False(done)
	assert.ErrorIs(err, mips.ErrInstructionInvalid)

	var runtime *ErrRuntime
	if assert.True(errors.As(err, &runtime)) {
		assert.Equal(memory.TEXT_BASE+4, runtime.Pc)
		assert.Equal(0, runtime.LineNo)
		assert.Equal("pc 0x00400004: bad instruction 0xfc000000", runtime.Error())
	}
}

func TestEmulatorRunFrameBudget(t *testing.T) {
	assert := assert.New(t)

	emu, _, _ := newTestEmulator(t, []string{"loop:", "    j loop"})

	done, err := emu.RunFrame(0)
	assert.ErrorIs(err, ErrTickCount)
	assert.False(done)

	done, err = emu.RunFrame(10)
	assert.NoError(err)
	assert.False(done)
	assert.Equal(uint64(0), emu.Bridge.Frames())
	assert.Equal(10, emu.Core.(*mips.Cpu).Ticks)
}

func TestEmulatorLoadSource(t *testing.T) {
	assert := assert.New(t)

	emu, _, output := newTestEmulator(t, nil)

	source := strings.Join([]string{
		"    li $v0, SYS_PRINT_NUMBER",
		"    li $a0, 0xab",
		"    li $a1, FMT_HEX",
		"    syscall",
		"    li $v0, SYS_EXIT",
		"    syscall",
	}, "\n")

	err := emu.LoadSource(mips.NewAssembler(), strings.NewReader(source))
	assert.NoError(err)
	assert.NoError(emu.Run())
	assert.Equal("0xAB", output.String())
	assert.Equal(0, emu.LineNo())

	err = emu.LoadSource(mips.NewAssembler(), strings.NewReader("bogus $t0"))
	assert.Error(err)
}

// scriptCore issues one syscall per tick from a fixed script.
type scriptCore struct {
	script []bridge.Registers
	text   []uint32
	data   []uint32
}

func (sc *scriptCore) Tick(handler bridge.Handler) (err error) {
	if len(sc.script) == 0 {
		return mips.ErrHalted
	}

	req := bridge.NewRequest(sc.script[0])
	sc.script = sc.script[1:]

	_, err = handler.Handle(req)
	return
}

func (sc *scriptCore) LoadText(words []uint32) error {
	sc.text = words
	return nil
}

func (sc *scriptCore) LoadData(words []uint32) error {
	sc.data = words
	return nil
}

func TestEmulatorCore(t *testing.T) {
	assert := assert.New(t)

	core := &scriptCore{}
	core.script = []bridge.Registers{
		{bridge.REG_V0: uint32(bridge.SYS_CLEAR), bridge.REG_A0: 0x0000ffff},
		{bridge.REG_V0: uint32(bridge.SYS_AUDIO_TONE)},
		{bridge.REG_V0: uint32(bridge.SYS_PRESENT)},
	}

	hl := host.NewHeadless(16, 16)
	emu, err := NewEmulator(hl, WithCore(func(*memory.Memory) Core { return core }))
	assert.NoError(err)

	assert.NoError(emu.LoadBytes([]byte{1, 2, 3, 4, 5}, []byte{6}))
	assert.Equal([]uint32{0x04030201, 0x05}, core.text)
	assert.Equal([]uint32{0x06}, core.data)

	assert.NoError(emu.Run())
	assert.Equal(1, hl.Frames)
	assert.Equal(color.NRGBA{0, 0, 0xff, 0xff}, hl.At(4, 4))
	assert.Equal(uint32(0), emu.Pc())
	assert.Equal(0, emu.LineNo())
}
