package types

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/anchorlabs/anchor-edge/helper/hex"
)

// Header is an immutable snapshot of a relay chain block header.
// Headers are owned by whichever query produced them, there is no
// shared header cache
type Header struct {
	ParentHash     Hash   `json:"parentHash"`
	Number         uint64 `json:"number"`
	StateRoot      Hash   `json:"stateRoot"`
	ExtrinsicsRoot Hash   `json:"extrinsicsRoot"`
	Hash           Hash   `json:"hash"`
}

func (h *Header) Equal(hh *Header) bool {
	return h.Hash == hh.Hash
}

func (h *Header) Copy() *Header {
	newHeader := &Header{
		ParentHash:     h.ParentHash,
		Number:         h.Number,
		StateRoot:      h.StateRoot,
		ExtrinsicsRoot: h.ExtrinsicsRoot,
		Hash:           h.Hash,
	}

	return newHeader
}

// ComputeHash computes the blake2b hash of the header contents
// and stores it in the Hash field
func (h *Header) ComputeHash() *Header {
	var buf [HashLength*3 + 8]byte

	copy(buf[0:], h.ParentHash[:])
	binary.BigEndian.PutUint64(buf[HashLength:], h.Number)
	copy(buf[HashLength+8:], h.StateRoot[:])
	copy(buf[HashLength*2+8:], h.ExtrinsicsRoot[:])

	h.Hash = Hash(blake2b.Sum256(buf[:]))

	return h
}

// headerJSON is the wire representation of a header. Block numbers
// travel as 0x-prefixed hex strings
type headerJSON struct {
	ParentHash     Hash   `json:"parentHash"`
	Number         string `json:"number"`
	StateRoot      Hash   `json:"stateRoot"`
	ExtrinsicsRoot Hash   `json:"extrinsicsRoot"`
	Hash           Hash   `json:"hash"`
}

// MarshalJSON implements json.Marshaler
func (h *Header) MarshalJSON() ([]byte, error) {
	return json.Marshal(&headerJSON{
		ParentHash:     h.ParentHash,
		Number:         hex.EncodeUint64(h.Number),
		StateRoot:      h.StateRoot,
		ExtrinsicsRoot: h.ExtrinsicsRoot,
		Hash:           h.Hash,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (h *Header) UnmarshalJSON(input []byte) error {
	var raw headerJSON
	if err := json.Unmarshal(input, &raw); err != nil {
		return err
	}

	number, err := hex.DecodeUint64(raw.Number)
	if err != nil {
		return err
	}

	h.ParentHash = raw.ParentHash
	h.Number = number
	h.StateRoot = raw.StateRoot
	h.ExtrinsicsRoot = raw.ExtrinsicsRoot
	h.Hash = raw.Hash

	return nil
}
