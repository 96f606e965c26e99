package node

import (
	"github.com/anchorlabs/anchor-edge/network"
	"github.com/anchorlabs/anchor-edge/types"
	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
)

// announceCacheSize bounds the set of recently announced block hashes
const announceCacheSize = 512

// BlockAnnounce is the gossip payload for newly seen and newly
// finalized blocks
type BlockAnnounce struct {
	Hash      types.Hash `json:"hash"`
	Number    uint64     `json:"number"`
	Finalized bool       `json:"finalized"`
}

// publisher is the outbound side of a gossip topic
type publisher interface {
	Publish(obj interface{}) error
}

// Handle is the running network wrapped with the chain-facing
// notification entry points. It is safe for concurrent use.
type Handle struct {
	*network.Server

	logger        hclog.Logger
	announceTopic publisher

	// seen keeps the hashes already announced as new best blocks, so a
	// re-delivered head does not produce duplicate gossip
	seen *lru.Cache
}

func newHandle(logger hclog.Logger, server *network.Server, announceTopic publisher) (*Handle, error) {
	seen, err := lru.New(announceCacheSize)
	if err != nil {
		return nil, err
	}

	return &Handle{
		Server:        server,
		logger:        logger.Named("handle"),
		announceTopic: announceTopic,
		seen:          seen,
	}, nil
}

// AnnounceBlock gossips a newly imported best block to the network.
// Repeated announcements of the same hash are dropped.
func (h *Handle) AnnounceBlock(hash types.Hash, number uint64) error {
	if _, ok := h.seen.Get(hash); ok {
		return nil
	}

	h.seen.Add(hash, struct{}{})

	h.logger.Debug("announcing block", "hash", hash, "number", number)
	metrics.IncrCounter([]string{"node", "announced_blocks"}, 1)

	return h.announceTopic.Publish(&BlockAnnounce{
		Hash:   hash,
		Number: number,
	})
}

// AnnounceFinalized gossips a finality notification to the network
func (h *Handle) AnnounceFinalized(hash types.Hash, number uint64) error {
	h.logger.Debug("announcing finalized block", "hash", hash, "number", number)
	metrics.IncrCounter([]string{"node", "announced_finalized"}, 1)

	return h.announceTopic.Publish(&BlockAnnounce{
		Hash:      hash,
		Number:    number,
		Finalized: true,
	})
}
