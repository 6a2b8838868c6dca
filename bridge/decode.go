// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package bridge

import (
	"image"
	"image/color"
	"unicode/utf8"

	"github.com/ezrec/supermips/memory"
)

// Color unpacks 0xRRGGBBAA.
func Color(packed uint32) color.NRGBA {
	return color.NRGBA{
		R: uint8((packed & 0xff000000) >> 24),
		G: uint8((packed & 0x00ff0000) >> 16),
		B: uint8((packed & 0x0000ff00) >> 8),
		A: uint8((packed & 0x000000ff) >> 0),
	}
}

// Point unpacks 0xXXXXYYYY.
func Point(packed uint32) image.Point {
	return image.Point{
		X: int((packed & 0xffff0000) >> 16),
		Y: int(packed & 0x0000ffff),
	}
}

// Rect is an origin and an extent. The extent may be negative when the
// guest swaps its corners.
type Rect struct {
	X, Y          int
	Width, Height int
}

// RectOf unpacks the upper-left and lower-right corner points.
func RectOf(upperLeft, lowerRight uint32) Rect {
	ul := Point(upperLeft)
	lr := Point(lowerRight)

	return Rect{
		X:      ul.X,
		Y:      ul.Y,
		Width:  lr.X - ul.X,
		Height: lr.Y - ul.Y,
	}
}

// Empty reports a rectangle with no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Image converts to an image.Rectangle. A negative extent collapses to
// an empty rectangle at the origin rather than being canonicalized.
func (r Rect) Image() image.Rectangle {
	if r.Empty() {
		return image.Rectangle{Min: image.Pt(r.X, r.Y), Max: image.Pt(r.X, r.Y)}
	}

	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// WordReader is the read side of a data segment.
type WordReader interface {
	Word(index int) (value uint32, ok bool)
	Len() int
}

// wordSlice reads from a snapshot of the data segment.
type wordSlice []uint32

func (ws wordSlice) Word(index int) (value uint32, ok bool) {
	if index < 0 || index >= len(ws) {
		return
	}
	return ws[index], true
}

func (ws wordSlice) Len() int {
	return len(ws)
}

// DecodeString reads a NUL terminated string at a byte address in the
// data segment. Bytes are packed little-endian within each word.
func DecodeString(data WordReader, address uint32) (text string, err error) {
	if address < memory.DATA_BASE || address>>2 > memory.DATA_END {
		err = memory.ErrAddress(address >> 2)
		return
	}

	index := int((address - memory.DATA_BASE) / 4)
	offset := address % 4

	var bytes []byte

	word, ok := data.Word(index)
	if !ok {
		err = &ErrBounds{Address: address, Index: index, Len: data.Len()}
		return
	}

	for {
		b := uint8((word >> (8 * offset)) & 0xff)
		if b == 0 {
			break
		}
		bytes = append(bytes, b)

		offset++
		if offset == 4 {
			offset = 0
			index++
			word, ok = data.Word(index)
			if !ok {
				err = &ErrBounds{Address: address, Index: index, Len: data.Len()}
				return
			}
		}
	}

	if !utf8.Valid(bytes) {
		err = &ErrEncoding{Address: address, Bytes: bytes}
		return
	}

	text = string(bytes)
	return
}
