package relaychain

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/anchorlabs/anchor-edge/types"
)

// defaultCallTimeout bounds a single synchronous backend call
const defaultCallTimeout = 30 * time.Second

// BlockStatus is the coarse placement of a block in the chain
type BlockStatus int

const (
	// BlockStatusUnknown means the remote node produced no header for
	// the hash. Pruned-but-known blocks are indistinguishable from
	// genuinely absent ones; this is a documented limitation of the
	// remote-backed view, not a defect to paper over
	BlockStatusUnknown BlockStatus = iota

	// BlockStatusInChainWithState means the remote node produced a
	// header for the hash
	BlockStatusInChainWithState
)

func (s BlockStatus) String() string {
	switch s {
	case BlockStatusInChainWithState:
		return "in-chain-with-state"
	default:
		return "unknown"
	}
}

// ChainInfo is a snapshot of the current chain view. It is recomputed
// in full on every Info call; the adapter has no invalidation signal
// cheaper than re-querying
type ChainInfo struct {
	BestHash        types.Hash
	BestNumber      uint64
	GenesisHash     types.Hash
	FinalizedHash   types.Hash
	FinalizedNumber uint64
}

// Backend adapts the asynchronous relay chain client to the
// synchronous blockchain-backend contract the networking and import
// machinery expects. Only hash-addressed, current-state queries are
// answerable; everything else returns ErrUnsupported.
//
// The synchronous methods block the calling goroutine for up to the
// call timeout. They must never be invoked from the network driving
// loop's own goroutine, where blocking on the chain view would
// deadlock notification delivery
type Backend struct {
	logger      hclog.Logger
	client      *Client
	callTimeout time.Duration
}

// NewBackend creates a backend view over the given relay chain client
func NewBackend(logger hclog.Logger, client *Client) *Backend {
	return &Backend{
		logger:      logger.Named("backend"),
		client:      client,
		callTimeout: defaultCallTimeout,
	}
}

// Client exposes the underlying relay chain client for the
// asynchronous validator/session/availability query surface, which is
// delegated 1:1 without a blocking bridge
func (b *Backend) Client() *Client {
	return b.client
}

func (b *Backend) blockingContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.callTimeout)
}

// Header returns the header with the given hash, or nil if the remote
// node knows no such block
func (b *Backend) Header(hash types.Hash) (*types.Header, error) {
	ctx, cancel := b.blockingContext()
	defer cancel()

	return b.client.Header(ctx, &hash)
}

// BestHeader returns the current best header of the remote node
func (b *Backend) BestHeader() (*types.Header, error) {
	ctx, cancel := b.blockingContext()
	defer cancel()

	header, err := b.client.Header(ctx, nil)
	if err != nil {
		return nil, err
	}

	if header == nil {
		return nil, fmt.Errorf("remote node returned no best header")
	}

	return header, nil
}

// Info assembles the current chain info snapshot. Four round trips are
// issued in sequence; any failed sub-query fails the whole call, there
// is no partial result
func (b *Backend) Info() (*ChainInfo, error) {
	ctx, cancel := b.blockingContext()
	defer cancel()

	best, err := b.client.Header(ctx, nil)
	if err != nil {
		return nil, err
	}

	if best == nil {
		return nil, fmt.Errorf("remote node returned no best header")
	}

	genesis, err := b.client.HeadHash(ctx, 0)
	if err != nil {
		return nil, err
	}

	finalizedHash, err := b.client.FinalizedHead(ctx)
	if err != nil {
		return nil, err
	}

	finalized, err := b.client.Header(ctx, &finalizedHash)
	if err != nil {
		return nil, err
	}

	if finalized == nil {
		return nil, fmt.Errorf("remote node returned no header for finalized head %s", finalizedHash)
	}

	return &ChainInfo{
		BestHash:        best.Hash,
		BestNumber:      best.Number,
		GenesisHash:     genesis,
		FinalizedHash:   finalizedHash,
		FinalizedNumber: finalized.Number,
	}, nil
}

// Number returns the number of the block with the given hash. The
// second return value reports whether the block is known at all
func (b *Backend) Number(hash types.Hash) (uint64, bool, error) {
	header, err := b.Header(hash)
	if err != nil {
		return 0, false, err
	}

	if header == nil {
		return 0, false, nil
	}

	return header.Number, true, nil
}

// BlockStatus reports the coarse chain placement of the given block
func (b *Backend) BlockStatus(at BlockPointer) (BlockStatus, error) {
	hash, err := at.Hash()
	if err != nil {
		return BlockStatusUnknown, err
	}

	header, err := b.Header(hash)
	if err != nil {
		return BlockStatusUnknown, err
	}

	if header == nil {
		return BlockStatusUnknown, nil
	}

	return BlockStatusInChainWithState, nil
}

// HeaderByNumber is not answerable over the remote interface; the
// adapter supports hash-addressed queries only
func (b *Backend) HeaderByNumber(number uint64) (*types.Header, error) {
	return nil, fmt.Errorf("%w: header lookup by number %d", ErrUnsupported, number)
}

// HashByNumber is not answerable over the remote interface
func (b *Backend) HashByNumber(number uint64) (types.Hash, error) {
	return types.ZeroHash, fmt.Errorf("%w: hash lookup by number %d", ErrUnsupported, number)
}

// BlockBody is not answerable; the minimal node never performs full sync
func (b *Backend) BlockBody(hash types.Hash) ([][]byte, error) {
	return nil, fmt.Errorf("%w: block body fetch for %s", ErrUnsupported, hash)
}

// ReadProof is not answerable; proof generation needs local state
func (b *Backend) ReadProof(hash types.Hash, keys [][]byte) ([][]byte, error) {
	return nil, fmt.Errorf("%w: storage proof for %s", ErrUnsupported, hash)
}

// HeaderMetadata is demanded by the generic sync plumbing but never
// used on the remote-backed path
func (b *Backend) HeaderMetadata(hash types.Hash) (*HeaderMetadata, error) {
	return nil, fmt.Errorf("%w: header metadata for %s", ErrUnsupported, hash)
}

// HeaderMetadata is the cached header digest the generic sync code works with
type HeaderMetadata struct {
	Hash       types.Hash
	ParentHash types.Hash
	Number     uint64
}
