// Package wireframe implements the bit-exact Bitcoin P2P frame preamble
// (spec.md §6): a 24-byte heading of magic, command, payload size, and
// checksum, plus the checksum primitive itself.
package wireframe

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// CommandSize is the width, in bytes, of the NUL-padded ASCII command
	// field (matches wire.CommandSize).
	CommandSize = 12

	// ChecksumSize is the width, in bytes, of the truncated double-SHA256
	// checksum field.
	ChecksumSize = 4

	// HeadingSize is the total width of the frame preamble: 4 (magic) +
	// 12 (command) + 4 (payload_size) + 4 (checksum).
	HeadingSize = 4 + CommandSize + 4 + ChecksumSize
)

// MaxPayloadCurrent is the payload buffer capacity the Proxy preallocates.
// It resolves the Open Question in spec.md §9: the source sizes its
// payload buffer assuming payload maxima only ever grow with protocol
// version; here the buffer is always sized from the maximum over every
// version this module supports, not the version negotiated with any one
// peer, so a future version that lowered the ceiling could never cause a
// silent under-allocation.
const MaxPayloadCurrent uint32 = 32 * 1024 * 1024

// Heading is the 24-byte frame preamble described in spec.md §6.
type Heading struct {
	Magic       wire.BitcoinNet
	Command     string
	PayloadSize uint32
	Checksum    [ChecksumSize]byte
}

// DecodeHeading parses a HeadingSize-byte buffer into a Heading. It does
// not validate magic or payload_size against any configured limits; that
// is the Proxy's job (spec.md §4.3 step 4), since the limits are
// connection-specific.
func DecodeHeading(buf []byte) (Heading, error) {
	if len(buf) != HeadingSize {
		return Heading{}, fmt.Errorf(
			"wireframe: heading must be %d bytes, got %d",
			HeadingSize, len(buf))
	}

	var h Heading
	h.Magic = wire.BitcoinNet(binary.LittleEndian.Uint32(buf[0:4]))
	h.Command = decodeCommand(buf[4 : 4+CommandSize])
	h.PayloadSize = binary.LittleEndian.Uint32(buf[16:20])
	copy(h.Checksum[:], buf[20:24])

	return h, nil
}

// Encode renders the heading back to its 24-byte wire form.
func (h Heading) Encode() ([]byte, error) {
	cmd, err := encodeCommand(h.Command)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, HeadingSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Magic))
	copy(buf[4:4+CommandSize], cmd[:])
	binary.LittleEndian.PutUint32(buf[16:20], h.PayloadSize)
	copy(buf[20:24], h.Checksum[:])

	return buf, nil
}

// Checksum computes the first four bytes of the double-SHA256 of payload,
// using chainhash.DoubleHashB as the external cryptographic primitive
// (spec.md §1, §6).
func Checksum(payload []byte) [ChecksumSize]byte {
	sum := chainhash.DoubleHashB(payload)

	var out [ChecksumSize]byte
	copy(out[:], sum[:ChecksumSize])
	return out
}

func encodeCommand(cmd string) ([CommandSize]byte, error) {
	var out [CommandSize]byte
	if len(cmd) > CommandSize {
		return out, fmt.Errorf(
			"wireframe: command %q exceeds %d bytes", cmd, CommandSize)
	}
	copy(out[:], cmd)
	return out, nil
}

func decodeCommand(buf []byte) string {
	n := bytes.IndexByte(buf, 0)
	if n < 0 {
		n = len(buf)
	}
	return string(buf[:n])
}
