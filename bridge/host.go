package bridge

import (
	"image"
	"image/color"
)

// Key is a physical key the guest can observe.
type Key int

const (
	KEY_ESCAPE = Key(iota)
	KEY_W
	KEY_A
	KEY_S
	KEY_D
	KEY_UP
	KEY_LEFT
	KEY_DOWN
	KEY_RIGHT
	KEY_SPACE
	KEY_RETURN
	KEY_KP_ENTER
	KEY_LSHIFT
	KEY_RSHIFT

	KEY_COUNT = int(iota)
)

var keyNames = [KEY_COUNT]string{
	"escape", "w", "a", "s", "d",
	"up", "left", "down", "right",
	"space", "return", "kp_enter", "lshift", "rshift",
}

func (k Key) String() string {
	if k < 0 || int(k) >= KEY_COUNT {
		return "unknown"
	}
	return keyNames[k]
}

// KeyState is the raw held state of every key, indexed by Key.
type KeyState [KEY_COUNT]bool

// Host is the presentation, input and console surface the guest drives.
// The bridge borrows it; it never creates or closes one.
type Host interface {
	// Present flushes the drawing surface to the display.
	Present() error
	// Clear fills the whole drawing surface.
	Clear(c color.NRGBA) error
	// FillRect fills a rectangle of the drawing surface.
	FillRect(c color.NRGBA, r image.Rectangle) error
	// SetTitle sets the window title.
	SetTitle(title string) error
	// PollKeys returns the current held state of every key.
	PollKeys() KeyState
	// PushQuit asks the host to shut down once the current tick returns.
	PushQuit()
	// TextOutput writes text to the console and flushes it.
	TextOutput(text string) error
}
