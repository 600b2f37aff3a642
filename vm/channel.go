package vm

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Channel is a synchronous-equivalent FIFO carrying 64-bit integers
// between exactly two participants. It is constructed as a matched
// send/receive pair (see NewChannel) the way the source VM's
// StackValue::Channel variant always carries both halves together; this
// type is what travels underneath that tagged-union stack value.
//
// §3 allows either a true rendezvous or "an unbounded sender-side buffer
// with blocking receive": this implementation takes the latter, the same
// choice the source makes by building on std::sync::mpsc::channel, whose
// Sender::send never blocks. That choice matters operationally: a program
// that both sends and receives on the same channel within one VM's single
// goroutine (scenario §8.7 — SendChannel immediately followed by
// RecvChannel) would deadlock against a true rendezvous, since nothing
// else is running concurrently to accept the send.
//
// Closing is explicit via Close, callable from either participant and
// safe to call more than once.
type Channel struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []int64
	closed bool
}

// NewChannel allocates one empty FIFO. Callers wrap it with ChannelValue
// to get the single stack value holding both halves, matching the
// move-only Channel stack value described in §3: there is no way to
// construct one endpoint without the other from inside this package.
func NewChannel() *Channel {
	c := &Channel{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Send enqueues v for delivery and returns true, unless the channel has
// already been closed, in which case it returns false without blocking.
// The VM layer treats a false return as a no-op per §4.5 (logged, channel
// left on stack).
func (c *Channel) Send(v int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.queue = append(c.queue, v)
	c.cond.Signal()
	return true
}

// Recv blocks until a value is available or the channel is closed with
// nothing left queued, in which case ok is false. The VM layer surfaces a
// false return as ErrChannelClosed rather than panicking (§9 open
// question, resolved in DESIGN.md).
func (c *Channel) Recv() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) == 0 && !c.closed {
		c.cond.Wait()
	}
	if len(c.queue) == 0 {
		return 0, false
	}
	v := c.queue[0]
	c.queue = c.queue[1:]
	return v, true
}

// Close marks the channel closed and wakes any blocked receiver. Safe to
// call more than once and from either participant.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.cond.Broadcast()
	}
}

// logSendFailure records a failed SendChannel as a no-op the way §4.5
// specifies ("send errors are logged and treated as no-ops that preserve
// the channel on the stack"), instead of the source's bare println.
func logSendFailure(vmID string, ip int, value int64) {
	log.Warn().
		Str("vm", vmID).
		Int("ip", ip).
		Int64("value", value).
		Msg("SendChannel: peer gone, dropping value")
}
