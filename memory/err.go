package memory

import (
	"errors"

	"github.com/ezrec/supermips/translate"
)

var f = translate.From

var (
	// ErrUnmapped matches any ErrAddress with errors.Is.
	ErrUnmapped   = errors.New(f("address unmapped"))
	ErrBlockSize  = errors.New(f("block size must be positive"))
	ErrSegmentId  = errors.New(f("segment id invalid"))
	ErrLoadLength = errors.New(f("load exceeds segment"))
)

// ErrAddress is returned for an access to a word address outside of
// both the text and data segments.
type ErrAddress uint32

func (ea ErrAddress) Error() string {
	return f("address 0x%08x unmapped", uint32(ea))
}

func (ea ErrAddress) Is(err error) (ok bool) {
	if err == ErrUnmapped {
		return true
	}
	_, ok = err.(ErrAddress)
	return
}
