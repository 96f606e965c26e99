package types

import (
	"strings"

	"github.com/anchorlabs/anchor-edge/helper/hex"
)

const HashLength = 32

var ZeroHash = Hash{}

// Hash is the content hash of a block, the only supported
// addressing mode for remote chain queries
type Hash [HashLength]byte

func min(i, j int) int {
	if i < j {
		return i
	}

	return j
}

// BytesToHash converts a raw byte slice to a Hash, left-padding
// or truncating to HashLength
func BytesToHash(b []byte) Hash {
	var h Hash

	size := len(b)
	m := min(size, HashLength)

	copy(h[HashLength-m:], b[len(b)-m:])

	return h
}

// StringToHash parses a 0x-prefixed hex string into a Hash
func StringToHash(str string) Hash {
	return BytesToHash(stringToBytes(str))
}

func stringToBytes(str string) []byte {
	str = strings.TrimPrefix(str, "0x")

	if len(str)%2 == 1 {
		str = "0" + str
	}

	b, _ := hex.DecodeString(str)

	return b
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return hex.EncodeToHex(h[:])
}

// MarshalText implements encoding.TextMarshaler
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (h *Hash) UnmarshalText(input []byte) error {
	buf, err := hex.DecodeHex(string(input))
	if err != nil {
		return err
	}

	*h = BytesToHash(buf)

	return nil
}
