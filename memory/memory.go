// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package memory

import (
	"fmt"
	"iter"
	"maps"
)

// Memory map, in word addresses. The byte address of a word is its word
// address shifted left by two.
const (
	TEXT_START = uint32(0x0010_0000) // 0x0040_0000 / 4
	TEXT_END   = uint32(0x0400_3fff) // 0x1001_0000 / 4 - 1
	DATA_START = uint32(0x0400_4000) // 0x1001_0000 / 4
	DATA_END   = uint32(0x1fff_ffff) // 0x8000_0000 / 4 - 1

	TEXT_BASE = TEXT_START << 2 // Byte address of the first text word.
	DATA_BASE = DATA_START << 2 // Byte address of the first data word.

	BLOCK_SIZE = 1024 // Default segment growth increment, in words.
)

// SegmentId selects one of the two segments.
type SegmentId int

const (
	SEGMENT_TEXT = SegmentId(0)
	SEGMENT_DATA = SegmentId(1)
)

func (id SegmentId) String() string {
	switch id {
	case SEGMENT_TEXT:
		return "text"
	case SEGMENT_DATA:
		return "data"
	}

	return fmt.Sprintf("SegmentId(%d)", int(id))
}

var _memory_defines = map[string]string{
	"TEXT_BASE": fmt.Sprintf("0x%x", TEXT_BASE),
	"DATA_BASE": fmt.Sprintf("0x%x", DATA_BASE),
}

// Memory is the guest address space: an instruction segment and a data
// segment. Any address outside both is unmapped, and accessing it is an
// ErrAddress for both loads and stores.
type Memory struct {
	Text *Segment
	Data *Segment
}

// NewMemory creates a memory with the default MIPS layout.
func NewMemory(blockSize int) (mem *Memory, err error) {
	if blockSize <= 0 {
		err = ErrBlockSize
		return
	}

	mem = &Memory{
		Text: NewSegment(TEXT_START, TEXT_END, blockSize),
		Data: NewSegment(DATA_START, DATA_END, blockSize),
	}

	return
}

// Defines returns the memory map equates for the assembler.
func Defines() iter.Seq2[string, string] {
	return maps.All(_memory_defines)
}

// Segment returns the segment for an id.
func (mem *Memory) Segment(id SegmentId) (seg *Segment, err error) {
	switch id {
	case SEGMENT_TEXT:
		seg = mem.Text
	case SEGMENT_DATA:
		seg = mem.Data
	default:
		err = ErrSegmentId
	}

	return
}

// lookup finds the segment owning a word address.
func (mem *Memory) lookup(addr uint32) (seg *Segment, err error) {
	switch {
	case mem.Text.Contains(addr):
		seg = mem.Text
	case mem.Data.Contains(addr):
		seg = mem.Data
	default:
		err = ErrAddress(addr)
	}

	return
}

// Get loads the word at a word address. Reads never allocate.
func (mem *Memory) Get(addr uint32) (value uint32, err error) {
	seg, err := mem.lookup(addr)
	if err != nil {
		return
	}

	value = seg.get(addr)
	return
}

// Set stores a word at a word address.
func (mem *Memory) Set(addr uint32, value uint32) (err error) {
	seg, err := mem.lookup(addr)
	if err != nil {
		return
	}

	seg.set(addr, value)
	return
}

// load stores words sequentially from the start of a segment.
func (mem *Memory) load(seg *Segment, words []uint32) (err error) {
	if uint64(len(words)) > uint64(seg.End-seg.Start)+1 {
		err = fmt.Errorf("%w: %v words", ErrLoadLength, len(words))
		return
	}

	for n, word := range words {
		seg.set(seg.Start+uint32(n), word)
	}

	return
}

// LoadText installs the program text at TEXT_START.
func (mem *Memory) LoadText(words []uint32) error {
	return mem.load(mem.Text, words)
}

// LoadData installs the initial data at DATA_START.
func (mem *Memory) LoadData(words []uint32) error {
	return mem.load(mem.Data, words)
}

// SnapshotIfChanged returns a copy of a segment and its generation, but
// only when the generation differs from lastSeen. It costs a single
// comparison when nothing was written.
func (mem *Memory) SnapshotIfChanged(id SegmentId, lastSeen uint64) (words []uint32, generation uint64, changed bool) {
	seg, err := mem.Segment(id)
	if err != nil {
		return
	}

	return seg.snapshot(lastSeen)
}

// Words packs little-endian bytes into words, zero padding a partial
// final word.
func Words(bytes []byte) (words []uint32) {
	words = make([]uint32, 0, (len(bytes)+3)/4)

	var val uint32
	var count int
	for _, b := range bytes {
		val |= uint32(b) << (8 * count)
		count++
		if count == 4 {
			words = append(words, val)
			val = 0
			count = 0
		}
	}
	if count > 0 {
		words = append(words, val)
	}

	return
}

// Bytes unpacks words into little-endian bytes.
func Bytes(words []uint32) (bytes []byte) {
	bytes = make([]byte, 0, len(words)*4)
	for _, word := range words {
		bytes = append(bytes, byte(word), byte(word>>8), byte(word>>16), byte(word>>24))
	}

	return
}
