// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package bridge

import (
	"crypto/rand"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
	mrand "math/rand/v2"
	"strconv"
	"time"

	"github.com/ezrec/supermips/internal"
	"github.com/ezrec/supermips/memory"
)

const (
	FRAME_RATE = 30 // Default frames per second for SYS_POLL pacing.
)

// Clock is the time source used for frame pacing.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Bridge services guest syscalls against a host adapter.
//
// It owns the input edge state, the random stream and the frame pacing
// clock. It reads guest strings from the data segment of Memory, and
// never writes guest memory.
type Bridge struct {
	Verbose bool // If set, logs every syscall.

	Host   Host           // Host adapter, borrowed.
	Memory *memory.Memory // Guest memory, read only.
	Input  InputTracker   // Key edge state.

	clock     Clock
	entropy   io.Reader
	rng       *mrand.Rand
	interval  time.Duration
	lastFrame time.Time
	frames    uint64
	title     string
	quit      bool

	data    []uint32 // Copy of the data segment for string decoding.
	dataGen uint64
}

// Option configures a Bridge.
type Option func(b *Bridge) error

// WithFrameRate sets the SYS_POLL pacing target.
func WithFrameRate(fps int) Option {
	return func(b *Bridge) error {
		if fps <= 0 {
			return ErrFrameRate
		}
		b.interval = time.Second / time.Duration(fps)
		return nil
	}
}

// WithClock replaces the wall clock used for pacing.
func WithClock(clock Clock) Option {
	return func(b *Bridge) error {
		b.clock = clock
		return nil
	}
}

// WithEntropy replaces the entropy source used to seed the random stream.
func WithEntropy(entropy io.Reader) Option {
	return func(b *Bridge) error {
		b.entropy = entropy
		return nil
	}
}

// WithVerbose enables syscall logging.
func WithVerbose(verbose bool) Option {
	return func(b *Bridge) error {
		b.Verbose = verbose
		return nil
	}
}

// NewBridge creates a bridge between guest memory and a host adapter.
func NewBridge(host Host, mem *memory.Memory, opts ...Option) (b *Bridge, err error) {
	if host == nil {
		err = ErrNoHost
		return
	}
	if mem == nil {
		err = ErrNoMemory
		return
	}

	b = &Bridge{
		Host:     host,
		Memory:   mem,
		clock:    systemClock{},
		entropy:  rand.Reader,
		interval: time.Second / FRAME_RATE,
	}

	for _, opt := range opts {
		err = opt(b)
		if err != nil {
			b = nil
			return
		}
	}

	err = b.reseed()
	if err != nil {
		b = nil
		return
	}

	b.lastFrame = b.clock.Now()
	b.data = mem.Data.Words()
	b.dataGen = mem.Data.Generation()

	return
}

// Defines returns the syscall ABI equates for the assembler.
func Defines() iter.Seq2[string, string] {
	selectors := map[string]string{}
	for sel, sc := range syscalls {
		selectors[sc.Name] = fmt.Sprintf("0x%02x", uint32(sel))
	}

	formats := map[string]string{
		"FMT_UNSIGNED": strconv.Itoa(FMT_UNSIGNED),
		"FMT_SIGNED":   strconv.Itoa(FMT_SIGNED),
		"FMT_HEX":      strconv.Itoa(FMT_HEX),
		"FMT_CHAR":     strconv.Itoa(FMT_CHAR),
	}

	return internal.IterSeq2Concat(maps.All(selectors), maps.All(keyDefines()), maps.All(formats))
}

// Title is the last window title set by the guest.
func (b *Bridge) Title() string {
	return b.title
}

// Quit reports whether the guest has asked to exit.
func (b *Bridge) Quit() bool {
	return b.quit
}

// Frames is the number of SYS_POLL calls serviced.
func (b *Bridge) Frames() uint64 {
	return b.frames
}

// Handle services a single syscall. The returned registers equal the
// request's except for any return value in $v0.
func (b *Bridge) Handle(req Request) (res Result, err error) {
	res.Regs = req.Regs

	sc, ok := syscalls[req.Selector]
	if !ok {
		err = ErrUnknownSyscall(req.Selector)
		return
	}

	if b.Verbose {
		log.Printf("syscall: %v a0=0x%08x a1=0x%08x a2=0x%08x", sc.Name,
			req.Arg(0), req.Arg(1), req.Arg(2))
	}

	if sc.Handler == nil {
		err = ErrUnimplemented(req.Selector)
		return
	}

	err = sc.Handler(b, &res)
	return
}

// reseed restarts the random stream from fresh entropy.
func (b *Bridge) reseed() (err error) {
	var seed [32]byte
	_, err = io.ReadFull(b.entropy, seed[:])
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrEntropy, err)
		return
	}

	b.rng = mrand.New(mrand.NewChaCha8(seed))
	return
}

// decodeString reads a guest string from the latest data segment copy.
func (b *Bridge) decodeString(address uint32) (text string, err error) {
	words, gen, changed := b.Memory.SnapshotIfChanged(memory.SEGMENT_DATA, b.dataGen)
	if changed {
		b.data = words
		b.dataGen = gen
	}

	return DecodeString(wordSlice(b.data), address)
}

func hostError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ErrHost{Op: op, Err: err}
}

func (b *Bridge) sysExit(res *Result) (err error) {
	b.quit = true
	b.Host.PushQuit()
	res.Exited = true
	return
}

func (b *Bridge) sysPresent(res *Result) (err error) {
	return hostError("present", b.Host.Present())
}

// sysPoll updates key edges and paces the guest to the frame rate.
func (b *Bridge) sysPoll(res *Result) (err error) {
	b.Input.Update(b.Host.PollKeys())

	now := b.clock.Now()
	wait := b.interval - now.Sub(b.lastFrame)
	if wait > 0 {
		b.clock.Sleep(wait)
		now = now.Add(wait)
	}
	b.lastFrame = now
	b.frames++

	return
}

func (b *Bridge) sysPrintString(res *Result) (err error) {
	text, err := b.decodeString(res.Regs[REG_A0])
	if err != nil {
		return
	}

	return hostError("text output", b.Host.TextOutput(text))
}

// sysPrintNumber prints $a0 in the format selected by $a1. Unknown
// formats print nothing.
func (b *Bridge) sysPrintNumber(res *Result) (err error) {
	value := res.Regs[REG_A0]

	var text string
	switch res.Regs[REG_A1] {
	case FMT_UNSIGNED:
		text = strconv.FormatUint(uint64(value), 10)
	case FMT_SIGNED:
		text = strconv.FormatInt(int64(int32(value)), 10)
	case FMT_HEX:
		text = fmt.Sprintf("0x%02X", value)
	case FMT_CHAR:
		text = string(rune(value & 0xff))
	default:
		return
	}

	return hostError("text output", b.Host.TextOutput(text))
}

func (b *Bridge) sysSetTitle(res *Result) (err error) {
	title, err := b.decodeString(res.Regs[REG_A0])
	if err != nil {
		return
	}

	err = hostError("set title", b.Host.SetTitle(title))
	if err != nil {
		return
	}

	b.title = title
	return
}

func (b *Bridge) sysRngSeed(res *Result) (err error) {
	return b.reseed()
}

func (b *Bridge) sysRngNext(res *Result) (err error) {
	res.Regs[REG_V0] = b.rng.Uint32()
	return
}

func (b *Bridge) sysKeysDown(res *Result) (err error) {
	res.Regs[REG_V0] = b.Input.Down()
	return
}

func (b *Bridge) sysKeysUp(res *Result) (err error) {
	res.Regs[REG_V0] = b.Input.Up()
	return
}

func (b *Bridge) sysKeysPressed(res *Result) (err error) {
	res.Regs[REG_V0] = b.Input.Pressed()
	return
}

func (b *Bridge) sysClear(res *Result) (err error) {
	return hostError("clear", b.Host.Clear(Color(res.Regs[REG_A0])))
}

// sysFillRect fills between two packed corners. Swapped corners fill nothing.
func (b *Bridge) sysFillRect(res *Result) (err error) {
	rect := RectOf(res.Regs[REG_A1], res.Regs[REG_A2])
	if rect.Empty() {
		return
	}

	return hostError("fill rect", b.Host.FillRect(Color(res.Regs[REG_A0]), rect.Image()))
}
