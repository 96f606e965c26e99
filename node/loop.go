package node

import (
	"errors"

	peerEvent "github.com/anchorlabs/anchor-edge/network/event"
	"github.com/anchorlabs/anchor-edge/types"
	"github.com/hashicorp/go-hclog"
)

// ErrStreamClosed is returned by the driving loop when one of the
// chain notification streams ends. There is no recovery path: once a
// stream is gone the node's view of the chain stops advancing, so the
// whole node is torn down.
var ErrStreamClosed = errors.New("chain notification stream closed")

// announcer is the slice of the network handle the driving loop needs
type announcer interface {
	AnnounceBlock(hash types.Hash, number uint64) error
	AnnounceFinalized(hash types.Hash, number uint64) error
}

// drivingLoop relays chain notifications into network announcements
// until either chain stream is exhausted. The peer event channel is
// drained alongside so the network's event bus never backs up on a
// node that layers nothing else on top of it.
//
// The loop never issues blocking chain queries: everything it consumes
// was already pushed to it.
func drivingLoop(
	logger hclog.Logger,
	handle announcer,
	best <-chan *types.Header,
	finalized <-chan *types.Header,
	peerEvents <-chan *peerEvent.PeerEvent,
) error {
	for {
		select {
		case header, ok := <-best:
			if !ok {
				logger.Error("best block stream closed")

				return ErrStreamClosed
			}

			if err := handle.AnnounceBlock(header.Hash, header.Number); err != nil {
				logger.Error("failed to announce block", "hash", header.Hash, "err", err)
			}
		case header, ok := <-finalized:
			if !ok {
				logger.Error("finality stream closed")

				return ErrStreamClosed
			}

			if err := handle.AnnounceFinalized(header.Hash, header.Number); err != nil {
				logger.Error("failed to announce finalized block", "hash", header.Hash, "err", err)
			}
		case event, ok := <-peerEvents:
			if !ok {
				// the event bus closing is part of network shutdown,
				// not a chain-side failure; keep serving the streams
				peerEvents = nil

				continue
			}

			logger.Debug("peer event", "peer", event.PeerID, "type", event.Type)
		}
	}
}
