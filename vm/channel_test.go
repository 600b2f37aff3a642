package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestConcurrentTwoVMChannelOrdering runs two VM instances on separate
// goroutines connected by one channel pair, demonstrating §5's cross-
// instance ordering guarantee: for a given channel, the sequence of
// successful sends matches the sequence the receiver observes.
func TestConcurrentTwoVMChannelOrdering(t *testing.T) {
	ch := NewChannel()

	const n = 25

	sender := concatBytes(
		repeatSend(n)...,
	)
	receiver := concatBytes(
		repeatRecvSum(n)...,
	)

	senderVM := New(sender, WithInitialStack(ChannelValue(ch)))
	receiverVM := New(receiver, WithInitialStack(ChannelValue(ch)))

	g, _ := errgroup.WithContext(context.Background())

	var senderResult, receiverResult int64
	g.Go(func() error {
		r, err := senderVM.Interpret()
		senderResult = r
		return err
	})
	g.Go(func() error {
		r, err := receiverVM.Interpret()
		receiverResult = r
		return err
	})

	require.NoError(t, g.Wait())

	// Sender pushes values 0..n-1 in order and echoes the last one sent.
	assert.Equal(t, int64(n-1), senderResult)
	// Receiver accumulates the sum of everything received: 0+1+...+(n-1).
	assert.Equal(t, int64(n*(n-1)/2), receiverResult)
}

// repeatSend builds a program that sends 0, 1, ..., n-1 on the channel
// already sitting on the stack, leaving the last value sent on top.
func repeatSend(n int) [][]byte {
	var instrs [][]byte
	for i := 0; i < n; i++ {
		instrs = append(instrs,
			concatBytes(op(LoadVal), le64(int64(i))),
			op(SendChannel),
		)
	}
	// Leave the channel beneath and push the last sent value as the
	// result; Finish only pops the top of stack.
	instrs = append(instrs,
		concatBytes(op(LoadVal), le64(int64(n-1))),
		op(Finish),
	)
	return instrs
}

// repeatRecvSum builds a program that receives n values off the channel
// and accumulates their sum into a variable, returning the total.
func repeatRecvSum(n int) [][]byte {
	sumName := name4("asum")
	var instrs [][]byte
	instrs = append(instrs, concatBytes(op(LoadVal), le64(0)), concatBytes(op(WriteVar), sumName))
	for i := 0; i < n; i++ {
		instrs = append(instrs,
			op(RecvChannel),
			concatBytes(op(ReadVar), sumName),
			op(Add),
			concatBytes(op(WriteVar), sumName),
		)
	}
	instrs = append(instrs,
		concatBytes(op(ReadVar), sumName),
		op(Finish),
	)
	return instrs
}

func TestChannelSendFailureIsLoggedNotErrored(t *testing.T) {
	ch := NewChannel()
	ch.Close() // drop the peer before anything is sent

	prog := concatBytes(
		op(LoadVal), le64(1),
		op(SendChannel),
		op(Finish),
	)

	machine := New(prog, WithInitialStack(ChannelValue(ch)))
	_, err := machine.Interpret()
	// A failed send is a no-op: Finish still runs, popping whatever is on
	// top (the re-pushed channel is the only value left, not an Int), so this is a plain
	// unwrap error rather than a send-specific one — the key behavior
	// under test is that execSend itself never returns an error.
	require.ErrorIs(t, err, ErrUnwrap)
}

func TestChannelRecvOnClosedChannelIsChannelClosed(t *testing.T) {
	ch := NewChannel()
	ch.Close()

	prog := concatBytes(
		op(RecvChannel),
		op(Finish),
	)

	machine := New(prog, WithInitialStack(ChannelValue(ch)))
	_, err := machine.Interpret()
	require.ErrorIs(t, err, ErrChannelClosed)
}
