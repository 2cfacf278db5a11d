package wireframe

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestHeadingRoundTrip(t *testing.T) {
	t.Parallel()

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	h := Heading{
		Magic:       wire.MainNet,
		Command:     "ping",
		PayloadSize: uint32(len(payload)),
		Checksum:    Checksum(payload),
	}

	encoded, err := h.Encode()
	require.NoError(t, err)
	require.Len(t, encoded, HeadingSize)

	decoded, err := DecodeHeading(encoded)
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestHeadingCommandIsNulPadded(t *testing.T) {
	t.Parallel()

	h := Heading{Magic: wire.MainNet, Command: "ping", PayloadSize: 0}
	encoded, err := h.Encode()
	require.NoError(t, err)

	// "ping" + 8 NUL bytes.
	require.Equal(t, []byte("ping\x00\x00\x00\x00\x00\x00\x00\x00"), encoded[4:16])
}

func TestHeadingCommandTooLong(t *testing.T) {
	t.Parallel()

	h := Heading{Command: "waytoolongacommand"}
	_, err := h.Encode()
	require.Error(t, err)
}

func TestDecodeHeadingWrongSize(t *testing.T) {
	t.Parallel()

	_, err := DecodeHeading(make([]byte, HeadingSize-1))
	require.Error(t, err)
}

// payload_size == 0 is valid: empty payload, checksum of empty bytes
// (spec.md §8 boundary behaviors).
func TestChecksumOfEmptyPayload(t *testing.T) {
	t.Parallel()

	sum := Checksum(nil)
	require.Len(t, sum, ChecksumSize)
}
