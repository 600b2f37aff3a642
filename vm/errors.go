package vm

import (
	"github.com/pkg/errors"
)

// Sentinel error values per the VM's error taxonomy. Every error the
// interpreter returns unwraps (via errors.Cause, or errors.Is) to exactly
// one of these — tests compare against these values directly, never
// against message text.
var (
	// ErrDivisionByZero is returned when Div's divisor is zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrStackOverflow is returned when a push would exceed the stack's
	// fixed capacity.
	ErrStackOverflow = errors.New("stack overflow")
	// ErrStackUnderflow is returned when popping an empty stack, or when
	// reading a variable name that was never written.
	ErrStackUnderflow = errors.New("stack underflow")
	// ErrUnknownInstruction is returned for an opcode byte outside the
	// defined set, or when a decode read runs past the end of the
	// instruction stream partway through a multi-byte operand.
	ErrUnknownInstruction = errors.New("unknown instruction")
	// ErrUnwrap is returned when a stack value's variant doesn't match
	// what the opcode expected (e.g. popping an Int where a Channel was
	// required).
	ErrUnwrap = errors.New("stack value unwrap error")
	// ErrChannelClosed is returned by RecvChannel when the channel has
	// been closed (by either participant) with nothing left buffered. SendChannel
	// failures are logged and treated as a no-op instead (see §4.5),
	// since closing mid-send is expected embedder behavior rather than a
	// VM-level fault.
	ErrChannelClosed = errors.New("channel closed")
)

// wrap attaches a stack trace to one of the sentinel errors above, tagged
// with the instruction pointer at which the failure was detected. The
// sentinel remains recoverable with errors.Is/errors.Cause.
func wrap(sentinel error, ip int) error {
	return errors.Wrapf(sentinel, "at ip=%d", ip)
}
