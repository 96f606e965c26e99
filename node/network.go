package node

import (
	"context"
	"fmt"

	"github.com/anchorlabs/anchor-edge/chain"
	"github.com/anchorlabs/anchor-edge/network"
	"github.com/anchorlabs/anchor-edge/network/grpc"
	"github.com/anchorlabs/anchor-edge/protocols"
	"github.com/anchorlabs/anchor-edge/relaychain"
	"github.com/anchorlabs/anchor-edge/types"
	"github.com/hashicorp/go-hclog"
	"github.com/libp2p/go-libp2p/core/peer"
	rawGrpc "google.golang.org/grpc"
)

// TransactionsMessage is the gossip payload of the transactions topic.
// A remote-backed node relays nothing, but the topic is joined so the
// protocol set advertised to peers stays complete.
type TransactionsMessage struct {
	Transactions [][]byte `json:"transactions"`
}

// NetworkParams collects everything network assembly needs
type NetworkParams struct {
	Logger     hclog.Logger
	Config     *network.Config
	Blockchain protocols.Blockchain
	Events     *relaychain.Events

	// ImportQueue receives headers resolved for peer announcements.
	// Nil installs the discarding queue.
	ImportQueue ImportQueue

	// Fatal receives the driving loop's exit error. Nil disables
	// reporting; the loop outcome is still logged.
	Fatal chan<- error
}

// BuildNetwork assembles the network around the chain view: it derives
// the protocol identifiers from the chain identity, registers the
// request-response services and gossip topics, and spawns the driving
// loop. The returned network is inert until the starter fires;
// protocol registration is complete before any peer can connect.
func BuildNetwork(ctx context.Context, params *NetworkParams) (*Handle, *network.Starter, error) {
	logger := params.Logger.Named("network-assembly")

	if params.Config.Chain == nil {
		return nil, nil, fmt.Errorf("network assembly requires a chain definition")
	}

	protoSet := chain.NewProtocolSet(params.Config.Chain.GenesisHash, params.Config.Chain.ForkID)

	srv, err := network.NewServer(params.Logger, params.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create network server, %w", err)
	}

	registerService := func(protoID string, desc *rawGrpc.ServiceDesc, impl interface{}) {
		stream := grpc.NewGrpcStream()
		stream.RegisterService(desc, impl)
		stream.Serve()
		srv.RegisterProtocol(protoID, stream)
	}

	registerService(protoSet.BlockSync(), &protocols.BlockSyncServiceDesc,
		protocols.NewBlockSyncService(params.Logger, params.Blockchain))
	registerService(protoSet.StateSync(), &protocols.StateSyncServiceDesc,
		protocols.NewStateSyncService(params.Logger, params.Blockchain))
	registerService(protoSet.LightClient(), &protocols.LightServiceDesc,
		protocols.NewLightService(params.Logger, params.Blockchain))

	announceTopic, err := srv.NewTopic(protoSet.BlockAnnounce(), &BlockAnnounce{})
	if err != nil {
		return nil, nil, fmt.Errorf("unable to join the block announce topic, %w", err)
	}

	importQueue := params.ImportQueue
	if importQueue == nil {
		importQueue = NewNoopImportQueue(params.Logger)
	}

	// peer announcements are resolved against the chain view and handed
	// to the import queue; unknown hashes are dropped
	selfID := srv.AddrInfo().ID

	if err := announceTopic.Subscribe(func(obj interface{}, from peer.ID) {
		if from == selfID {
			return
		}

		announce, ok := obj.(*BlockAnnounce)
		if !ok {
			return
		}

		header, err := params.Blockchain.Header(announce.Hash)
		if err != nil || header == nil {
			logger.Debug("unable to resolve announced block", "hash", announce.Hash, "err", err)

			return
		}

		importQueue.ImportHeaders([]*types.Header{header})
	}); err != nil {
		return nil, nil, fmt.Errorf("unable to subscribe to the block announce topic, %w", err)
	}

	// transaction relay stand-in: join the topic, accept and drop
	txTopic, err := srv.NewTopic(protoSet.Transactions(), &TransactionsMessage{})
	if err != nil {
		return nil, nil, fmt.Errorf("unable to join the transactions topic, %w", err)
	}

	if err := txTopic.Subscribe(func(obj interface{}, from peer.ID) {
		logger.Debug("dropping relayed transactions", "from", from)
	}); err != nil {
		return nil, nil, fmt.Errorf("unable to subscribe to the transactions topic, %w", err)
	}

	handle, err := newHandle(params.Logger, srv, announceTopic)
	if err != nil {
		return nil, nil, err
	}

	starter := network.NewStarter(params.Logger)

	go runNetwork(ctx, logger, handle, starter, params)

	return handle, starter, nil
}

// runNetwork gates the network on the starter, then drives it until a
// chain stream ends
func runNetwork(
	ctx context.Context,
	logger hclog.Logger,
	handle *Handle,
	starter *network.Starter,
	params *NetworkParams,
) {
	report := func(err error) {
		if params.Fatal != nil {
			select {
			case params.Fatal <- err:
			case <-ctx.Done():
			}
		}
	}

	select {
	case <-ctx.Done():
		return
	case <-starter.Discarded():
		return
	case <-starter.Released():
	}

	if err := handle.Server.Start(); err != nil {
		logger.Error("unable to start the network server", "err", err)
		report(err)

		return
	}

	best, err := params.Events.BestStream(ctx)
	if err != nil {
		logger.Error("unable to subscribe to best blocks", "err", err)
		report(err)

		return
	}
	defer best.Close()

	finalized, err := params.Events.FinalityStream(ctx)
	if err != nil {
		logger.Error("unable to subscribe to finalized blocks", "err", err)
		report(err)

		return
	}
	defer finalized.Close()

	peerEvents, err := handle.SubscribeCh(ctx)
	if err != nil {
		logger.Error("unable to subscribe to peer events", "err", err)
		report(err)

		return
	}

	report(drivingLoop(logger, handle, best.Headers(), finalized.Headers(), peerEvents))
}
