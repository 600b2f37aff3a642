package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpcodeRoundTrip verifies that encode (the opcode's own byte value)
// and decode (decodable) are inverses over the entire defined set, per
// spec §8's "opcode-to-byte and byte-to-opcode are inverses" round-trip
// law.
func TestOpcodeRoundTrip(t *testing.T) {
	for b := byte(0); b <= byte(Finish); b++ {
		decoded, ok := decodable(b)
		require.True(t, ok, "byte %d should decode to a defined opcode", b)
		assert.Equal(t, b, byte(decoded))
	}
}

func TestUndefinedOpcodeBytesDoNotDecode(t *testing.T) {
	for _, b := range []byte{24, 25, 100, 255} {
		_, ok := decodable(b)
		assert.False(t, ok, "byte %d should not decode", b)
	}
}

func TestOpcodeStringNames(t *testing.T) {
	cases := map[Opcode]string{
		LoadVal:     "LoadVal",
		FuncCall:    "FuncCall",
		SendChannel: "SendChannel",
		Finish:      "Finish",
	}
	for code, want := range cases {
		assert.Equal(t, want, code.String())
	}
	assert.Equal(t, "?unknown?", Opcode(99).String())
}

// TestLoadValRoundTripsI64 verifies spec §8's round-trip law: for every
// little-endian 8-byte encoding of an i64 v, LoadVal of that encoding
// pushes Int(v).
func TestLoadValRoundTripsI64(t *testing.T) {
	values := []int64{0, 1, -1, 522, 65793, 1 << 40, -(1 << 40), 9223372036854775807, -9223372036854775808}
	for _, v := range values {
		prog := concatBytes(op(LoadVal), le64(v), op(Finish))
		result, err := New(prog).Interpret()
		require.NoError(t, err)
		assert.Equal(t, v, result)
	}
}

func TestWrappingArithmeticOverflow(t *testing.T) {
	// MaxInt64 + 1 wraps to MinInt64, matching two's-complement modulo
	// 2^64 arithmetic (§3 invariants).
	prog := concatBytes(
		op(LoadVal), le64(9223372036854775807),
		op(LoadVal), le64(1),
		op(Add),
		op(Finish),
	)
	result, err := New(prog).Interpret()
	require.NoError(t, err)
	assert.Equal(t, int64(-9223372036854775808), result)
}
