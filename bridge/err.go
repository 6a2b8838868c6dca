package bridge

import (
	"errors"

	"github.com/ezrec/supermips/translate"
)

var f = translate.From

var (
	ErrFrameRate = errors.New(f("frame rate must be positive"))
	ErrEntropy   = errors.New(f("entropy source exhausted"))
	ErrNoHost    = errors.New(f("no host adapter"))
	ErrNoMemory  = errors.New(f("no guest memory"))
)

// ErrUnimplemented is a recognized syscall that is not supported yet.
// It is recoverable.
type ErrUnimplemented Selector

func (eu ErrUnimplemented) Error() string {
	return f("syscall 0x%02x (%v) unimplemented", uint32(eu), Selector(eu).String())
}

func (eu ErrUnimplemented) Is(err error) (ok bool) {
	_, ok = err.(ErrUnimplemented)
	return
}

// ErrUnknownSyscall is a selector missing from the syscall table. It is fatal.
type ErrUnknownSyscall Selector

func (eu ErrUnknownSyscall) Error() string {
	return f("syscall 0x%02x unrecognized", uint32(eu))
}

func (eu ErrUnknownSyscall) Is(err error) (ok bool) {
	_, ok = err.(ErrUnknownSyscall)
	return
}

// ErrBounds is a guest string that runs past the allocated data segment.
type ErrBounds struct {
	Address uint32 // Byte address of the string.
	Index   int    // Word index that was out of range.
	Len     int    // Allocated length of the segment, in words.
}

func (err *ErrBounds) Error() string {
	return f("string at 0x%08x runs past word %d of %d", err.Address, err.Index, err.Len)
}

// ErrEncoding is a guest string that is not valid UTF-8.
type ErrEncoding struct {
	Address uint32 // Byte address of the string.
	Bytes   []byte // Raw bytes, without the terminator.
}

func (err *ErrEncoding) Error() string {
	return f("string at 0x%08x is not utf-8: %q", err.Address, err.Bytes)
}

// ErrHost is a failure reported by the host adapter. It is fatal.
type ErrHost struct {
	Op  string
	Err error
}

func (err *ErrHost) Error() string {
	return f("host %v: %v", err.Op, err.Err)
}

func (err *ErrHost) Unwrap() error {
	return err.Err
}

// IsFatal reports whether an error returned by Handle must end the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var host *ErrHost
	return errors.Is(err, ErrUnknownSyscall(0)) || errors.As(err, &host)
}
