package vm

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// VM is one instance of the stack-based interpreter: a private instruction
// stream, operand stack, flat variable environment and instruction
// pointer. Nothing here is shared between VM instances except whatever
// Channel values an embedder explicitly hands to more than one of them
// (§5).
type VM struct {
	instructions []byte
	stack        *operandStack
	env          *environment
	ip           int

	id     string
	debug  bool
	logger zerolog.Logger
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithDebugLogging enables per-instruction debug-level event logging of
// the dispatch loop (ip, opcode, stack depth). The hot path only pays for
// this when it's turned on.
func WithDebugLogging() Option {
	return func(v *VM) { v.debug = true }
}

// WithInitialStack seeds the operand stack before Interpret runs, which is
// how an embedder hands in prepared Channel values (§6 "Program entry").
func WithInitialStack(initial ...StackValue) Option {
	return func(v *VM) {
		v.stack.values = append(v.stack.values, initial...)
	}
}

// WithEntryPoint sets the initial instruction pointer, letting an embedder
// skip over instructions reserved for function bodies (§6).
func WithEntryPoint(ip int) Option {
	return func(v *VM) { v.ip = ip }
}

// New constructs a VM over the given instruction stream. The stream is
// never mutated after this call.
func New(instructions []byte, opts ...Option) *VM {
	v := &VM{
		instructions: instructions,
		stack:        newOperandStack(),
		env:          newEnvironment(),
		id:           uuid.NewString(),
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ID returns the identifier this VM tags its log lines with, letting logs
// from concurrently running VM instances be told apart (§5).
func (v *VM) ID() string { return v.id }

// Interpret runs the dispatch loop until Finish, or until the instruction
// stream is exhausted, or until an opcode handler returns an error. On
// clean termination it pops one Int off the stack and returns it: an
// empty stack at termination is ErrStackUnderflow, matching the source's
// pop_val call after the loop (§4.4 Termination).
func (v *VM) Interpret() (int64, error) {
	d := newDecoder(v.instructions)
	d.ip = v.ip

	for !d.atEnd() {
		startIP := d.ip
		op, err := d.nextOpcode()
		if err != nil {
			return 0, wrap(err, startIP)
		}

		if v.debug {
			v.logger.Debug().
				Str("vm", v.id).
				Int("ip", startIP).
				Str("opcode", op.String()).
				Int("depth", v.stack.depth()).
				Msg("dispatch")
		}

		finished, execErr := v.execOne(op, d)
		if execErr != nil {
			return 0, wrap(execErr, startIP)
		}
		if finished {
			break
		}
	}

	v.ip = d.ip
	result, err := v.stack.popInt()
	if err != nil {
		return 0, wrap(err, d.ip)
	}
	return result, nil
}

// execOne applies the transition for a single decoded opcode. It returns
// finished=true only for Finish, which the caller uses to stop the loop
// without treating normal end-of-stream as an error (§4.4 Termination).
func (v *VM) execOne(op Opcode, d *decoder) (finished bool, err error) {
	switch op {
	case LoadVal:
		val, err := d.readLong()
		if err != nil {
			return false, err
		}
		return false, v.stack.pushInt(val)

	case WriteVar:
		name, err := d.readName()
		if err != nil {
			return false, err
		}
		val, err := v.stack.popInt()
		if err != nil {
			return false, err
		}
		v.env.write(name, val)
		return false, nil

	case ReadVar:
		name, err := d.readName()
		if err != nil {
			return false, err
		}
		val, err := v.env.read(name)
		if err != nil {
			return false, err
		}
		return false, v.stack.pushInt(val)

	case FuncCall:
		return false, v.execFuncCall(d)

	case ReturnIndex:
		target, err := d.readU16BE()
		if err != nil {
			return false, err
		}
		d.ip = int(target)
		return false, nil

	case Add:
		return false, v.binaryOp(func(b, a int64) int64 { return b + a })
	case Sub:
		return false, v.binaryOp(func(b, a int64) int64 { return b - a })
	case Mul:
		return false, v.binaryOp(func(b, a int64) int64 { return b * a })
	case Mod:
		return false, v.binaryOpErr(func(b, a int64) (int64, error) {
			if a == 0 {
				return 0, ErrDivisionByZero
			}
			return b % a, nil
		})
	case Div:
		return false, v.binaryOpErr(func(b, a int64) (int64, error) {
			if b == 0 {
				return 0, ErrDivisionByZero
			}
			return a / b, nil
		})

	case Eq:
		return false, v.compareOp(func(b, a int64) bool { return b == a })
	case NotEq:
		return false, v.compareOp(func(b, a int64) bool { return b != a })
	case Gt:
		return false, v.compareOp(func(b, a int64) bool { return b > a })
	case Lt:
		return false, v.compareOp(func(b, a int64) bool { return b < a })
	case Gte:
		return false, v.compareOp(func(b, a int64) bool { return b >= a })
	case Lte:
		return false, v.compareOp(func(b, a int64) bool { return b <= a })

	case Jump:
		off, err := d.readByte()
		if err != nil {
			return false, err
		}
		d.ip += int(off)
		return false, nil

	case JumpBack:
		off, err := d.readByte()
		if err != nil {
			return false, err
		}
		d.ip -= int(off)
		return false, nil

	case JumpIfTrue:
		off, err := d.readByte()
		if err != nil {
			return false, err
		}
		val, err := v.stack.popInt()
		if err != nil {
			return false, err
		}
		if val != 0 {
			d.ip += int(off)
		}
		return false, nil

	case JumpIfFalse:
		off, err := d.readByte()
		if err != nil {
			return false, err
		}
		val, err := v.stack.popInt()
		if err != nil {
			return false, err
		}
		if val == 0 {
			d.ip += int(off)
		}
		return false, nil

	case SendChannel:
		return false, v.execSend(d.ip)

	case RecvChannel:
		return false, v.execRecv()

	case Spawn:
		// Unimplemented in the source and unspecified here (§9 open
		// question) — rejected rather than guessed at.
		return false, ErrUnknownInstruction

	case Finish:
		return true, nil

	default:
		return false, ErrUnknownInstruction
	}
}

// execFuncCall implements the calling convention of §4.4: read the target
// and argument count, push each inline argument (in stream order, so the
// last one read ends up on top), then jump.
func (v *VM) execFuncCall(d *decoder) error {
	target, err := d.readU16BE()
	if err != nil {
		return err
	}
	numArgs, err := d.readByte()
	if err != nil {
		return err
	}
	for i := byte(0); i < numArgs; i++ {
		arg, err := d.readLong()
		if err != nil {
			return err
		}
		if err := v.stack.pushInt(arg); err != nil {
			return err
		}
	}
	d.ip = int(target)
	return nil
}

// binaryOp pops a (top) then b (beneath) and pushes fn(b, a), matching the
// source's `(b <op> a)` evaluation order for Add/Sub/Mul (§4.4).
func (v *VM) binaryOp(fn func(b, a int64) int64) error {
	a, err := v.stack.popInt()
	if err != nil {
		return err
	}
	b, err := v.stack.popInt()
	if err != nil {
		return err
	}
	return v.stack.pushInt(fn(b, a))
}

// binaryOpErr is binaryOp for operations that can fail (Div, Mod).
func (v *VM) binaryOpErr(fn func(b, a int64) (int64, error)) error {
	a, err := v.stack.popInt()
	if err != nil {
		return err
	}
	b, err := v.stack.popInt()
	if err != nil {
		return err
	}
	result, err := fn(b, a)
	if err != nil {
		return err
	}
	return v.stack.pushInt(result)
}

// compareOp pops a (top) then b (beneath) and pushes 1 if pred(b, a) holds,
// else 0 — b is compared against a in that order (§4.4 "Comparison
// order"): pushing x then y and applying Lt tests x < y.
func (v *VM) compareOp(pred func(b, a int64) bool) error {
	a, err := v.stack.popInt()
	if err != nil {
		return err
	}
	b, err := v.stack.popInt()
	if err != nil {
		return err
	}
	if pred(b, a) {
		return v.stack.pushInt(1)
	}
	return v.stack.pushInt(0)
}

// execSend consumes the top integer and the channel beneath it, sends the
// integer (Channel.Send queues it and never blocks), and restores the channel to the stack so it
// can be reused (§4.5). A failed send (peer gone) is logged and treated as
// a no-op, never an error.
func (v *VM) execSend(ip int) error {
	value, err := v.stack.popInt()
	if err != nil {
		return err
	}
	ch, err := v.stack.popChannel()
	if err != nil {
		return err
	}
	if ok := ch.Send(value); !ok {
		logSendFailure(v.id, ip, value)
	}
	return v.stack.push(ChannelValue(ch))
}

// execRecv consumes the channel, receives a value (which may block),
// restores the channel, then pushes the received integer above it (§4.5).
// A closed channel with nothing buffered surfaces as ErrChannelClosed
// rather than panicking the process (§9 open question, resolved in
// DESIGN.md).
func (v *VM) execRecv() error {
	ch, err := v.stack.popChannel()
	if err != nil {
		return err
	}
	value, ok := ch.Recv()
	if !ok {
		return ErrChannelClosed
	}
	if err := v.stack.push(ChannelValue(ch)); err != nil {
		return err
	}
	return v.stack.pushInt(value)
}
