package bridge

import (
	"fmt"
)

// Selector is the syscall number the guest places in $v0.
type Selector uint32

const (
	SYS_EXIT         = Selector(0x00)
	SYS_PRESENT      = Selector(0x01)
	SYS_POLL         = Selector(0x02)
	SYS_PRINT_STRING = Selector(0x03)
	SYS_PRINT_NUMBER = Selector(0x04)
	SYS_SET_TITLE    = Selector(0x05)
	SYS_READ_STRING  = Selector(0x08) // reserved
	SYS_RNG_SEED     = Selector(0x09)
	SYS_RNG_NEXT     = Selector(0x0a)
	SYS_RNG_RANGE    = Selector(0x0b) // reserved
	SYS_KEYS_DOWN    = Selector(0x10)
	SYS_KEYS_UP      = Selector(0x11)
	SYS_KEYS_PRESSED = Selector(0x12)
	SYS_CLEAR        = Selector(0x20)
	SYS_DRAW_PIXEL   = Selector(0x21) // reserved
	SYS_FILL_RECT    = Selector(0x22)
	SYS_DRAW_RECT    = Selector(0x23) // reserved
	SYS_DRAW_LINE    = Selector(0x24) // reserved
	SYS_AUDIO_TONE   = Selector(0x30) // reserved
	SYS_AUDIO_NOISE  = Selector(0x31) // reserved
	SYS_AUDIO_STOP   = Selector(0x32) // reserved
	SYS_AUDIO_VOLUME = Selector(0x33) // reserved
)

// Formats for SYS_PRINT_NUMBER, selected by $a1.
const (
	FMT_UNSIGNED = 0
	FMT_SIGNED   = 1
	FMT_HEX      = 2
	FMT_CHAR     = 3
)

// Syscall is one entry of the dispatch table. A nil Handler marks a
// reserved selector.
type Syscall struct {
	Name    string
	Handler func(b *Bridge, res *Result) error
}

// syscalls is the dispatch table.
var syscalls = map[Selector]Syscall{
	SYS_EXIT:         {"SYS_EXIT", (*Bridge).sysExit},
	SYS_PRESENT:      {"SYS_PRESENT", (*Bridge).sysPresent},
	SYS_POLL:         {"SYS_POLL", (*Bridge).sysPoll},
	SYS_PRINT_STRING: {"SYS_PRINT_STRING", (*Bridge).sysPrintString},
	SYS_PRINT_NUMBER: {"SYS_PRINT_NUMBER", (*Bridge).sysPrintNumber},
	SYS_SET_TITLE:    {"SYS_SET_TITLE", (*Bridge).sysSetTitle},
	SYS_READ_STRING:  {"SYS_READ_STRING", nil},
	SYS_RNG_SEED:     {"SYS_RNG_SEED", (*Bridge).sysRngSeed},
	SYS_RNG_NEXT:     {"SYS_RNG_NEXT", (*Bridge).sysRngNext},
	SYS_RNG_RANGE:    {"SYS_RNG_RANGE", nil},
	SYS_KEYS_DOWN:    {"SYS_KEYS_DOWN", (*Bridge).sysKeysDown},
	SYS_KEYS_UP:      {"SYS_KEYS_UP", (*Bridge).sysKeysUp},
	SYS_KEYS_PRESSED: {"SYS_KEYS_PRESSED", (*Bridge).sysKeysPressed},
	SYS_CLEAR:        {"SYS_CLEAR", (*Bridge).sysClear},
	SYS_DRAW_PIXEL:   {"SYS_DRAW_PIXEL", nil},
	SYS_FILL_RECT:    {"SYS_FILL_RECT", (*Bridge).sysFillRect},
	SYS_DRAW_RECT:    {"SYS_DRAW_RECT", nil},
	SYS_DRAW_LINE:    {"SYS_DRAW_LINE", nil},
	SYS_AUDIO_TONE:   {"SYS_AUDIO_TONE", nil},
	SYS_AUDIO_NOISE:  {"SYS_AUDIO_NOISE", nil},
	SYS_AUDIO_STOP:   {"SYS_AUDIO_STOP", nil},
	SYS_AUDIO_VOLUME: {"SYS_AUDIO_VOLUME", nil},
}

func (sel Selector) String() string {
	sc, ok := syscalls[sel]
	if !ok {
		return fmt.Sprintf("Selector(0x%02x)", uint32(sel))
	}
	return sc.Name
}

// Reserved reports a selector that is known but not implemented.
func (sel Selector) Reserved() bool {
	sc, ok := syscalls[sel]
	return ok && sc.Handler == nil
}
