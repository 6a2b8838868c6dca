package bridge

import (
	"fmt"
	"strings"
)

// KeyBit maps a physical key to its bit in the guest key masks.
type KeyBit struct {
	Key Key
	Bit uint
}

// KEYMAP is the fixed key to bit mapping. Both Enter keys share a bit,
// as do both Shift keys.
var KEYMAP = [14]KeyBit{
	{KEY_ESCAPE, 0},
	{KEY_W, 1},
	{KEY_A, 2},
	{KEY_S, 3},
	{KEY_D, 4},
	{KEY_UP, 5},
	{KEY_LEFT, 6},
	{KEY_DOWN, 7},
	{KEY_RIGHT, 8},
	{KEY_SPACE, 9},
	{KEY_RETURN, 10},
	{KEY_KP_ENTER, 10},
	{KEY_LSHIFT, 11},
	{KEY_RSHIFT, 11},
}

// keyDefines names each guest bit for the assembler, plus KEY_ENTER and
// KEY_SHIFT for the shared bits.
func keyDefines() map[string]string {
	defines := map[string]string{}
	for _, kb := range KEYMAP {
		name := "KEY_" + strings.ToUpper(kb.Key.String())
		defines[name] = fmt.Sprintf("0x%x", uint32(1)<<kb.Bit)
	}
	defines["KEY_ENTER"] = defines["KEY_RETURN"]
	defines["KEY_SHIFT"] = defines["KEY_LSHIFT"]

	return defines
}

// Pressed folds raw key state into a guest mask.
func Pressed(keys KeyState) (mask uint32) {
	for _, kb := range KEYMAP {
		if keys[kb.Key] {
			mask |= 1 << kb.Bit
		}
	}

	return
}

// InputTracker derives edge masks from successive key polls.
type InputTracker struct {
	previous uint32
	down     uint32
	up       uint32
}

// Advance folds in the newest pressed mask. Keys that became held since
// the last call are down, keys that were let go are up.
func (it *InputTracker) Advance(current uint32) {
	changed := it.previous ^ current
	it.down = changed & current
	it.up = changed & it.previous
	it.previous = current
}

// Update polls raw key state and advances.
func (it *InputTracker) Update(keys KeyState) {
	it.Advance(Pressed(keys))
}

// Down is the mask of keys pressed at the last update.
func (it *InputTracker) Down() uint32 {
	return it.down
}

// Up is the mask of keys released at the last update.
func (it *InputTracker) Up() uint32 {
	return it.up
}

// Pressed is the mask of keys held at the last update.
func (it *InputTracker) Pressed() uint32 {
	return it.previous
}
