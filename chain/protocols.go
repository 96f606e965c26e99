package chain

import (
	"fmt"

	"github.com/anchorlabs/anchor-edge/helper/hex"
	"github.com/anchorlabs/anchor-edge/types"
)

// ProtocolSet derives the wire protocol identifiers for a chain.
// All identifiers embed the genesis hash (and the fork identifier, if
// any), so peers on a different chain or fork expose disjoint protocols
// and are never treated as part of this network
type ProtocolSet struct {
	prefix string
}

// NewProtocolSet creates the protocol identifier set for the given
// genesis hash and optional fork identifier
func NewProtocolSet(genesis types.Hash, forkID string) *ProtocolSet {
	prefix := "/" + hex.EncodeToString(genesis.Bytes())
	if forkID != "" {
		prefix += "/" + forkID
	}

	return &ProtocolSet{prefix: prefix}
}

// BlockSync is the request/response protocol for block header and body fetch
func (p *ProtocolSet) BlockSync() string {
	return fmt.Sprintf("%s/block-sync/0.1", p.prefix)
}

// StateSync is the request/response protocol for state fetch
func (p *ProtocolSet) StateSync() string {
	return fmt.Sprintf("%s/state-sync/0.1", p.prefix)
}

// LightClient is the request/response protocol for light client proof fetch
func (p *ProtocolSet) LightClient() string {
	return fmt.Sprintf("%s/light/0.1", p.prefix)
}

// BlockAnnounce is the gossip topic for block announcements
func (p *ProtocolSet) BlockAnnounce() string {
	return fmt.Sprintf("%s/block-announce/0.1", p.prefix)
}

// Transactions is the gossip topic for transaction propagation
func (p *ProtocolSet) Transactions() string {
	return fmt.Sprintf("%s/transactions/0.1", p.prefix)
}
