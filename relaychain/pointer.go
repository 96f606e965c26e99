package relaychain

import (
	"fmt"

	"github.com/anchorlabs/anchor-edge/types"
)

// BlockPointer addresses a block either by content hash or by ordinal
// number. The remote-backed client only supports the hash form; a
// number-addressed pointer is a contract violation surfaced as
// ErrUnsupported before any network round trip
type BlockPointer struct {
	hash   *types.Hash
	number *uint64
}

// HashPointer creates a hash-addressed block pointer
func HashPointer(hash types.Hash) BlockPointer {
	return BlockPointer{hash: &hash}
}

// NumberPointer creates a number-addressed block pointer
func NumberPointer(number uint64) BlockPointer {
	return BlockPointer{number: &number}
}

// Hash resolves the pointer to its hash form
func (p BlockPointer) Hash() (types.Hash, error) {
	if p.hash == nil {
		return types.ZeroHash, fmt.Errorf("%w: only hash-addressed queries are available", ErrUnsupported)
	}

	return *p.hash, nil
}

func (p BlockPointer) String() string {
	if p.hash != nil {
		return p.hash.String()
	}

	if p.number != nil {
		return fmt.Sprintf("#%d", *p.number)
	}

	return "<empty>"
}
