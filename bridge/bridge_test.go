package bridge

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/supermips/memory"
)

// recordHost is a Host that records every call.
type recordHost struct {
	keys     KeyState
	presents int
	clears   []color.NRGBA
	fills    []image.Rectangle
	colors   []color.NRGBA
	titles   []string
	text     strings.Builder
	quits    int
	fail     error
}

func (h *recordHost) Present() error {
	h.presents++
	return h.fail
}

func (h *recordHost) Clear(c color.NRGBA) error {
	h.clears = append(h.clears, c)
	return h.fail
}

func (h *recordHost) FillRect(c color.NRGBA, r image.Rectangle) error {
	h.colors = append(h.colors, c)
	h.fills = append(h.fills, r)
	return h.fail
}

func (h *recordHost) SetTitle(title string) error {
	h.titles = append(h.titles, title)
	return h.fail
}

func (h *recordHost) PollKeys() KeyState {
	return h.keys
}

func (h *recordHost) PushQuit() {
	h.quits++
}

func (h *recordHost) TextOutput(text string) error {
	h.text.WriteString(text)
	return h.fail
}

// fakeClock advances only when slept on, or when moved by the test.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (fc *fakeClock) Now() time.Time {
	return fc.now
}

func (fc *fakeClock) Sleep(d time.Duration) {
	fc.slept = append(fc.slept, d)
	fc.now = fc.now.Add(d)
}

func newTestBridge(t *testing.T, opts ...Option) (b *Bridge, host *recordHost, clock *fakeClock) {
	mem, err := memory.NewMemory(16)
	if err != nil {
		t.Fatal(err)
	}

	host = &recordHost{}
	clock = &fakeClock{now: time.Unix(1000, 0)}

	opts = append([]Option{
		WithClock(clock),
		WithEntropy(bytes.NewReader(bytes.Repeat([]byte{0x5a}, 256))),
	}, opts...)

	b, err = NewBridge(host, mem, opts...)
	if err != nil {
		t.Fatal(err)
	}

	return
}

func call(b *Bridge, sel Selector, args ...uint32) (res Result, err error) {
	var regs Registers
	regs[REG_V0] = uint32(sel)
	for n, arg := range args {
		regs[REG_A0+n] = arg
	}

	return b.Handle(NewRequest(regs))
}

func storeString(t *testing.T, mem *memory.Memory, address uint32, text string) {
	data := append([]byte(text), 0)
	for n, word := range memory.Words(data) {
		err := mem.Set(address>>2+uint32(n), word)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestNewBridge(t *testing.T) {
	assert := assert.New(t)

	mem, _ := memory.NewMemory(8)

	_, err := NewBridge(nil, mem)
	assert.ErrorIs(err, ErrNoHost)

	_, err = NewBridge(&recordHost{}, nil)
	assert.ErrorIs(err, ErrNoMemory)

	_, err = NewBridge(&recordHost{}, mem, WithFrameRate(0))
	assert.ErrorIs(err, ErrFrameRate)

	_, err = NewBridge(&recordHost{}, mem, WithEntropy(bytes.NewReader([]byte{1, 2, 3})))
	assert.ErrorIs(err, ErrEntropy)

	b, err := NewBridge(&recordHost{}, mem, WithVerbose(true))
	assert.NoError(err)
	assert.True(b.Verbose)
	assert.False(b.Quit())
	assert.Equal("", b.Title())
}

func TestBridgeUnknownSyscall(t *testing.T) {
	assert := assert.New(t)

	b, _, _ := newTestBridge(t)

	res, err := call(b, Selector(0xff), 1, 2, 3)
	assert.ErrorIs(err, ErrUnknownSyscall(0))
	assert.Equal(ErrUnknownSyscall(0xff), err)
	assert.True(IsFatal(err))
	assert.Equal(uint32(0xff), res.Regs[REG_V0])
}

func TestBridgeUnimplemented(t *testing.T) {
	assert := assert.New(t)

	b, host, _ := newTestBridge(t)

	for _, sel := range []Selector{
		SYS_READ_STRING, SYS_RNG_RANGE, SYS_DRAW_PIXEL, SYS_DRAW_RECT,
		SYS_DRAW_LINE, SYS_AUDIO_TONE, SYS_AUDIO_NOISE, SYS_AUDIO_STOP,
		SYS_AUDIO_VOLUME,
	} {
		res, err := call(b, sel, 0x12345678)
		assert.ErrorIs(err, ErrUnimplemented(0), sel.String())
		assert.False(IsFatal(err), sel.String())
		assert.True(sel.Reserved(), sel.String())
		assert.Equal(uint32(0x12345678), res.Regs[REG_A0], sel.String())
	}

	assert.Equal(0, host.presents)
	assert.Equal(0, host.text.Len())
}

func TestBridgeExit(t *testing.T) {
	assert := assert.New(t)

	b, host, _ := newTestBridge(t)

	res, err := call(b, SYS_EXIT)
	assert.NoError(err)
	assert.True(res.Exited)
	assert.True(b.Quit())
	assert.Equal(1, host.quits)
}

func TestBridgePresentAndClear(t *testing.T) {
	assert := assert.New(t)

	b, host, _ := newTestBridge(t)

	_, err := call(b, SYS_CLEAR, 0xff00807f)
	assert.NoError(err)
	assert.Equal([]color.NRGBA{{R: 255, G: 0, B: 128, A: 127}}, host.clears)

	_, err = call(b, SYS_PRESENT)
	assert.NoError(err)
	assert.Equal(1, host.presents)
}

func TestBridgeFillRect(t *testing.T) {
	assert := assert.New(t)

	b, host, _ := newTestBridge(t)

	_, err := call(b, SYS_FILL_RECT, 0x0000ffff, 0x00000040, 0x00200080)
	assert.NoError(err)
	assert.Equal([]image.Rectangle{image.Rect(0, 64, 32, 128)}, host.fills)
	assert.Equal([]color.NRGBA{{B: 255, A: 255}}, host.colors)

	// Swapped corners draw nothing.
	_, err = call(b, SYS_FILL_RECT, 0x0000ffff, 0x00200080, 0x00000040)
	assert.NoError(err)
	assert.Len(host.fills, 1)
}

func TestBridgeHostError(t *testing.T) {
	assert := assert.New(t)

	b, host, _ := newTestBridge(t)
	failure := errors.New("device lost")
	host.fail = failure

	_, err := call(b, SYS_PRESENT)
	assert.ErrorIs(err, failure)
	assert.True(IsFatal(err))

	var hostErr *ErrHost
	assert.True(errors.As(err, &hostErr))
	assert.Equal("present", hostErr.Op)
}

func TestBridgePrintString(t *testing.T) {
	assert := assert.New(t)

	b, host, _ := newTestBridge(t)

	storeString(t, b.Memory, memory.DATA_BASE+0x40, "Hello, world")
	_, err := call(b, SYS_PRINT_STRING, memory.DATA_BASE+0x40)
	assert.NoError(err)
	assert.Equal("Hello, world", host.text.String())

	// Strings written after the previous call are seen.
	storeString(t, b.Memory, memory.DATA_BASE+0x80, "!?")
	_, err = call(b, SYS_PRINT_STRING, memory.DATA_BASE+0x80)
	assert.NoError(err)
	assert.Equal("Hello, world!?", host.text.String())

	_, err = call(b, SYS_PRINT_STRING, memory.TEXT_BASE)
	assert.ErrorIs(err, memory.ErrUnmapped)
	assert.False(IsFatal(err))
}

func TestBridgePrintNumber(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		value  uint32
		format uint32
		text   string
	}){
		{42, FMT_UNSIGNED, "42"},
		{0xffffffff, FMT_UNSIGNED, "4294967295"},
		{0xffffffff, FMT_SIGNED, "-1"},
		{1234, FMT_SIGNED, "1234"},
		{0x0a, FMT_HEX, "0x0A"},
		{0xdeadbeef, FMT_HEX, "0xDEADBEEF"},
		{0x141, FMT_CHAR, "A"},
		{99, 7, ""},
	}

	for _, entry := range table {
		b, host, _ := newTestBridge(t)
		_, err := call(b, SYS_PRINT_NUMBER, entry.value, entry.format)
		assert.NoError(err, entry.text)
		assert.Equal(entry.text, host.text.String())
	}
}

func TestBridgeSetTitle(t *testing.T) {
	assert := assert.New(t)

	b, host, _ := newTestBridge(t)

	storeString(t, b.Memory, memory.DATA_BASE, "Snake")
	_, err := call(b, SYS_SET_TITLE, memory.DATA_BASE)
	assert.NoError(err)
	assert.Equal("Snake", b.Title())
	assert.Equal([]string{"Snake"}, host.titles)

	// A string past the allocated data segment leaves the title alone.
	_, err = call(b, SYS_SET_TITLE, memory.DATA_BASE+0x1000)
	var bounds *ErrBounds
	assert.True(errors.As(err, &bounds))
	assert.Equal("Snake", b.Title())
}

func TestBridgeRng(t *testing.T) {
	assert := assert.New(t)

	b1, _, _ := newTestBridge(t)
	b2, _, _ := newTestBridge(t)

	for range 8 {
		r1, err := call(b1, SYS_RNG_NEXT)
		assert.NoError(err)
		r2, _ := call(b2, SYS_RNG_NEXT)
		assert.Equal(r1.Regs[REG_V0], r2.Regs[REG_V0])
	}

	b3, _, _ := newTestBridge(t, WithEntropy(bytes.NewReader(make([]byte, 32))))
	_, err := call(b3, SYS_RNG_SEED)
	assert.ErrorIs(err, ErrEntropy)
}

func TestBridgePoll(t *testing.T) {
	assert := assert.New(t)

	b, host, clock := newTestBridge(t)
	interval := time.Second / FRAME_RATE

	host.keys[KEY_W] = true
	_, err := call(b, SYS_POLL)
	assert.NoError(err)
	assert.Equal([]time.Duration{interval}, clock.slept)
	assert.Equal(uint64(1), b.Frames())

	res, _ := call(b, SYS_KEYS_DOWN)
	assert.Equal(uint32(1<<1), res.Regs[REG_V0])
	res, _ = call(b, SYS_KEYS_PRESSED)
	assert.Equal(uint32(1<<1), res.Regs[REG_V0])

	// A slow frame does not sleep.
	clock.now = clock.now.Add(2 * interval)
	host.keys[KEY_W] = false
	host.keys[KEY_SPACE] = true
	_, err = call(b, SYS_POLL)
	assert.NoError(err)
	assert.Len(clock.slept, 1)

	res, _ = call(b, SYS_KEYS_DOWN)
	assert.Equal(uint32(1<<9), res.Regs[REG_V0])
	res, _ = call(b, SYS_KEYS_UP)
	assert.Equal(uint32(1<<1), res.Regs[REG_V0])

	// Part of a frame elapsed, sleep the rest.
	clock.now = clock.now.Add(interval / 3)
	_, err = call(b, SYS_POLL)
	assert.NoError(err)
	assert.Equal(interval-interval/3, clock.slept[1])
	assert.Equal(uint64(3), b.Frames())
}

func TestDefines(t *testing.T) {
	assert := assert.New(t)

	defines := map[string]string{}
	for name, value := range Defines() {
		defines[name] = value
	}

	assert.Equal("0x00", defines["SYS_EXIT"])
	assert.Equal("0x22", defines["SYS_FILL_RECT"])
	assert.Equal("0x33", defines["SYS_AUDIO_VOLUME"])
	assert.Equal("0x1", defines["KEY_ESCAPE"])
	assert.Equal("0x400", defines["KEY_ENTER"])
	assert.Equal("0x400", defines["KEY_KP_ENTER"])
	assert.Equal("0x800", defines["KEY_SHIFT"])
	assert.Equal("2", defines["FMT_HEX"])
}
