// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package memory

import (
	"slices"
)

// Segment is a lazily grown, word addressed region of guest memory.
//
// Storage always holds a whole number of blocks. It grows when a store
// lands past the allocated length and never shrinks. Every store bumps
// the generation counter by exactly one; loads never touch it.
type Segment struct {
	Start     uint32 // First word address of the segment.
	End       uint32 // Last word address of the segment, inclusive.
	BlockSize int    // Growth increment, in words.

	words      []uint32
	generation uint64
}

// NewSegment creates a segment covering [start, end] holding one zeroed block.
func NewSegment(start, end uint32, blockSize int) (seg *Segment) {
	seg = &Segment{
		Start:     start,
		End:       end,
		BlockSize: blockSize,
		words:     make([]uint32, blockSize),
	}

	return
}

// Contains reports whether the word address falls in the declared range.
func (seg *Segment) Contains(addr uint32) bool {
	return seg.Start <= addr && addr <= seg.End
}

// Len is the number of allocated words.
func (seg *Segment) Len() int {
	return len(seg.words)
}

// Generation is the number of stores since the segment was created.
func (seg *Segment) Generation() uint64 {
	return seg.generation
}

// Word returns the allocated word at a segment relative index.
func (seg *Segment) Word(index int) (value uint32, ok bool) {
	if index < 0 || index >= len(seg.words) {
		return
	}

	return seg.words[index], true
}

// Words returns a copy of the allocated storage.
func (seg *Segment) Words() []uint32 {
	return slices.Clone(seg.words)
}

// get reads an in-range address. Unallocated words read as zero.
func (seg *Segment) get(addr uint32) uint32 {
	index := int(addr - seg.Start)
	if index >= len(seg.words) {
		return 0
	}

	return seg.words[index]
}

// set stores to an in-range address, growing storage block by block.
func (seg *Segment) set(addr uint32, value uint32) {
	index := int(addr - seg.Start)

	if index >= len(seg.words) {
		blocks := (index - len(seg.words)) / seg.BlockSize
		grown := len(seg.words) + (blocks+1)*seg.BlockSize
		seg.words = append(seg.words, make([]uint32, grown-len(seg.words))...)
	}

	seg.words[index] = value
	seg.generation++
}

// snapshot returns a copy of the storage if the generation moved past lastSeen.
func (seg *Segment) snapshot(lastSeen uint64) (words []uint32, generation uint64, changed bool) {
	generation = seg.generation
	if generation == lastSeen {
		return
	}

	return seg.Words(), generation, true
}
