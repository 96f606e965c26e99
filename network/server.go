package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/multiformats/go-multiaddr"
	rawGrpc "google.golang.org/grpc"

	peerEvent "github.com/anchorlabs/anchor-edge/network/event"
)

const (
	// peerOutboundBufferSize is the size of outbound messages to a peer buffers in go-libp2p-pubsub
	// we should have enough capacity of the queue
	// because we start dropping messages to a peer if the outbound queue is full
	peerOutboundBufferSize = 1024

	// validateBufferSize is the size of validate buffers in go-libp2p-pubsub
	// we should have enough capacity of the queue
	// because when queue is full, validation is throttled and new messages are dropped.
	validateBufferSize = 1024

	// networkMetrics is a prefix used for network-related metrics
	networkMetrics = "network"
)

// Protocol is a request/response protocol served over libp2p streams
type Protocol interface {
	Client(network.Stream) (*rawGrpc.ClientConn, error)
	Handler() func(network.Stream)
}

type Server struct {
	logger hclog.Logger // the logger
	config *Config      // the base networking server configuration

	closeCh chan struct{} // the channel used for closing the networking server

	host  host.Host             // the libp2p host reference
	addrs []multiaddr.Multiaddr // the list of supported (bound) addresses

	peers     map[peer.ID]*PeerConnInfo // map of all peer connections
	peersLock sync.Mutex                // lock for the peer map

	dialQueue *dialQueue // queue used to asynchronously connect to peers

	protocols     map[string]Protocol // supported protocols
	protocolsLock sync.Mutex          // lock for the supported protocols map

	ps *pubsub.PubSub // reference to the networking PubSub service

	emitterPeerEvent event.Emitter // event emitter for listeners

	bootnodes []*peer.AddrInfo // parsed bootnode addresses
}

// PeerConnInfo holds the connection information about the peer
type PeerConnInfo struct {
	Info peer.AddrInfo
}

// NewServer returns a new instance of the networking server
func NewServer(logger hclog.Logger, config *Config) (*Server, error) {
	logger = logger.Named("network")

	key, err := ReadLibp2pKey(config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("unable to read networking private key, %w", err)
	}

	listenAddr, err := multiaddr.NewMultiaddr(
		fmt.Sprintf("/ip4/%s/tcp/%d", config.Addr.IP.String(), config.Addr.Port),
	)
	if err != nil {
		return nil, err
	}

	addrsFactory := func(addrs []multiaddr.Multiaddr) []multiaddr.Multiaddr {
		if config.NatAddr != nil {
			addr, _ := multiaddr.NewMultiaddr(
				fmt.Sprintf("/ip4/%s/tcp/%d", config.NatAddr.String(), config.Addr.Port),
			)

			if addr != nil {
				addrs = []multiaddr.Multiaddr{addr}
			}
		}

		return addrs
	}

	host, err := libp2p.New(
		// Use noise as the encryption protocol
		libp2p.Security(noise.ID, noise.New),
		libp2p.ListenAddrs(listenAddr),
		libp2p.AddrsFactory(addrsFactory),
		libp2p.Identity(key),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p stack: %w", err)
	}

	emitter, err := host.EventBus().Emitter(new(peerEvent.PeerEvent))
	if err != nil {
		return nil, err
	}

	srv := &Server{
		logger:           logger,
		config:           config,
		host:             host,
		addrs:            host.Addrs(),
		peers:            make(map[peer.ID]*PeerConnInfo),
		dialQueue:        newDialQueue(),
		closeCh:          make(chan struct{}),
		emitterPeerEvent: emitter,
		protocols:        map[string]Protocol{},
	}

	// start gossip protocol
	ps, err := pubsub.NewGossipSub(
		context.Background(),
		host,
		pubsub.WithPeerOutboundQueueSize(peerOutboundBufferSize),
		pubsub.WithValidateQueueSize(validateBufferSize),
	)
	if err != nil {
		return nil, err
	}

	srv.ps = ps

	return srv, nil
}

// Start starts the networking services: from this point on the server
// dials bootnodes and accepts peer connections
func (s *Server) Start() error {
	s.logger.Info("LibP2P server running", "addr", s.AddrInfo().String())

	if setupErr := s.setupBootnodes(); setupErr != nil {
		return fmt.Errorf("unable to parse bootnode data, %w", setupErr)
	}

	go s.runDial()

	// watch for connection updates
	s.host.Network().Notify(&network.NotifyBundle{
		ConnectedF: func(net network.Network, conn network.Conn) {
			s.addPeer(conn.RemotePeer(), conn.RemoteMultiaddr())
		},
		DisconnectedF: func(net network.Network, conn network.Conn) {
			s.removePeer(conn.RemotePeer())
		},
	})

	for _, bootnode := range s.bootnodes {
		s.addToDialQueue(bootnode, priorityBootnodeDial)
	}

	return nil
}

// setupBootnodes parses the bootnode addresses from the chain configuration
func (s *Server) setupBootnodes() error {
	if s.config.Chain == nil || len(s.config.Chain.Bootnodes) == 0 {
		// a remote-backed node may legitimately run with RPC-provided
		// peers only, joined later through JoinPeer
		return nil
	}

	bootnodes := make([]*peer.AddrInfo, 0, len(s.config.Chain.Bootnodes))

	for _, rawAddr := range s.config.Chain.Bootnodes {
		bootnode, err := StringToAddrInfo(rawAddr)
		if err != nil {
			return fmt.Errorf("failed to parse bootnode %s: %w", rawAddr, err)
		}

		if bootnode.ID == s.host.ID() {
			s.logger.Info("Omitting bootnode with same ID as host", "id", bootnode.ID)

			continue
		}

		bootnodes = append(bootnodes, bootnode)
	}

	s.bootnodes = bootnodes

	return nil
}

// runDial starts the networking server's dial loop
func (s *Server) runDial() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-s.closeCh
		cancel()
	}()

	for {
		tt := s.dialQueue.pop()
		if tt == nil {
			// queue closed, no further dial tasks are incoming
			return
		}

		peerInfo := tt.addr

		if s.IsConnected(peerInfo.ID) {
			continue
		}

		if s.numPeers() >= s.config.MaxPeers {
			s.logger.Debug("peer limit reached, skipping dial", "addr", peerInfo)

			continue
		}

		// the connection process is async since it involves the noise handshake
		go func() {
			s.logger.Debug("Dialing peer", "addr", peerInfo, "local", s.host.ID())

			if err := s.host.Connect(ctx, *peerInfo); err != nil {
				s.logger.Debug("failed to dial", "addr", peerInfo, "err", err.Error())

				s.emitEvent(peerInfo.ID, peerEvent.PeerFailedToConnect)
			}
		}()
	}
}

// numPeers returns the number of connected peers [Thread safe]
func (s *Server) numPeers() int64 {
	s.peersLock.Lock()
	defer s.peersLock.Unlock()

	return int64(len(s.peers))
}

// Peers returns a copy of the networking server's peer connection info set [Thread safe]
func (s *Server) Peers() []*PeerConnInfo {
	s.peersLock.Lock()
	defer s.peersLock.Unlock()

	peers := make([]*PeerConnInfo, 0, len(s.peers))
	for _, connectionInfo := range s.peers {
		peers = append(peers, connectionInfo)
	}

	return peers
}

// IsConnected checks if the networking server is connected to a peer
func (s *Server) IsConnected(peerID peer.ID) bool {
	return s.host.Network().Connectedness(peerID) == network.Connected
}

func (s *Server) addPeer(peerID peer.ID, addr multiaddr.Multiaddr) {
	s.logger.Info("Peer connected", "id", peerID)

	s.peersLock.Lock()
	s.peers[peerID] = &PeerConnInfo{
		Info: peer.AddrInfo{
			ID:    peerID,
			Addrs: []multiaddr.Multiaddr{addr},
		},
	}
	metrics.SetGauge([]string{networkMetrics, "peers"}, float32(len(s.peers)))
	s.peersLock.Unlock()

	s.emitEvent(peerID, peerEvent.PeerConnected)
}

func (s *Server) removePeer(peerID peer.ID) {
	s.peersLock.Lock()

	if _, ok := s.peers[peerID]; !ok {
		s.peersLock.Unlock()

		return
	}

	delete(s.peers, peerID)
	metrics.SetGauge([]string{networkMetrics, "peers"}, float32(len(s.peers)))
	s.peersLock.Unlock()

	s.logger.Info("Peer disconnected", "id", peerID)

	s.emitEvent(peerID, peerEvent.PeerDisconnected)
}

// DisconnectFromPeer disconnects the networking server from the specified peer
func (s *Server) DisconnectFromPeer(peer peer.ID, reason string) {
	if s.host.Network().Connectedness(peer) == network.Connected {
		s.logger.Info("Closing connection", "id", peer, "reason", reason)

		if err := s.host.Network().ClosePeer(peer); err != nil {
			s.logger.Error("Unable to gracefully close connection", "id", peer, "err", err)
		}
	}
}

// JoinPeer attempts to add a new peer to the networking server
func (s *Server) JoinPeer(rawPeerMultiaddr string) error {
	peerInfo, err := StringToAddrInfo(rawPeerMultiaddr)
	if err != nil {
		return err
	}

	s.logger.Info("Join request", "addr", peerInfo)
	s.addToDialQueue(peerInfo, priorityRequestedDial)

	return nil
}

func (s *Server) addToDialQueue(addr *peer.AddrInfo, priority uint64) {
	s.dialQueue.add(addr, priority)
	s.emitEvent(addr.ID, peerEvent.PeerAddedToDialQueue)
}

func (s *Server) Close() error {
	err := s.host.Close()
	s.dialQueue.Close()

	close(s.closeCh)

	return err
}

// NewProtoConnection opens up a new stream on the set protocol to the peer,
// and returns a reference to the connection
func (s *Server) NewProtoConnection(protocol string, peerID peer.ID) (*rawGrpc.ClientConn, error) {
	s.protocolsLock.Lock()
	defer s.protocolsLock.Unlock()

	p, ok := s.protocols[protocol]
	if !ok {
		return nil, fmt.Errorf("protocol not found: %s", protocol)
	}

	stream, err := s.NewStream(protocol, peerID)
	if err != nil {
		return nil, err
	}

	return p.Client(stream)
}

func (s *Server) NewStream(proto string, id peer.ID) (network.Stream, error) {
	return s.host.NewStream(context.Background(), id, protocol.ID(proto))
}

// RegisterProtocol registers a request/response protocol handler.
// Registration must complete before the network starts connecting to
// peers; the protocol table cannot be mutated once peers are live
func (s *Server) RegisterProtocol(id string, p Protocol) {
	s.protocolsLock.Lock()
	defer s.protocolsLock.Unlock()

	s.protocols[id] = p
	s.wrapStream(id, p.Handler())
}

func (s *Server) wrapStream(id string, handle func(network.Stream)) {
	s.host.SetStreamHandler(protocol.ID(id), func(stream network.Stream) {
		peerID := stream.Conn().RemotePeer()
		s.logger.Debug("open stream", "protocol", id, "peer", peerID)

		handle(stream)
	})
}

func (s *Server) AddrInfo() *peer.AddrInfo {
	return &peer.AddrInfo{
		ID:    s.host.ID(),
		Addrs: s.addrs,
	}
}

func (s *Server) emitEvent(peerID peer.ID, peerEventType peerEvent.PeerEventType) {
	// POTENTIALLY BLOCKING
	if err := s.emitterPeerEvent.Emit(peerEvent.PeerEvent{
		PeerID: peerID,
		Type:   peerEventType,
	}); err != nil {
		s.logger.Info("failed to emit event", "peer", peerID, "type", peerEventType, "err", err)
	}
}

// Subscribe is a helper method to run subscription of PeerEvents
func (s *Server) Subscribe(ctx context.Context, handler func(evnt *peerEvent.PeerEvent)) error {
	sub, err := s.host.EventBus().Subscribe(new(peerEvent.PeerEvent))
	if err != nil {
		return err
	}

	go func() {
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case <-s.closeCh:
				return

			case evnt := <-sub.Out():
				if obj, ok := evnt.(peerEvent.PeerEvent); ok {
					handler(&obj)
				}
			}
		}
	}()

	return nil
}

// SubscribeCh returns a channel of peer subscription events
func (s *Server) SubscribeCh(ctx context.Context) (<-chan *peerEvent.PeerEvent, error) {
	ch := make(chan *peerEvent.PeerEvent)
	ctx, cancel := context.WithCancel(ctx)

	err := s.Subscribe(ctx, func(evnt *peerEvent.PeerEvent) {
		select {
		case <-ctx.Done():
			return
		case ch <- evnt:
		}
	})

	cleanup := func() {
		cancel()
		close(ch)
	}

	if err != nil {
		cleanup()

		return nil, err
	}

	go func() {
		<-s.closeCh

		cleanup()
	}()

	return ch, nil
}

// StringToAddrInfo converts a raw multiaddr string to peer addr info
func StringToAddrInfo(rawAddr string) (*peer.AddrInfo, error) {
	parsedMultiaddr, err := multiaddr.NewMultiaddr(rawAddr)
	if err != nil {
		return nil, err
	}

	return peer.AddrInfoFromP2pAddr(parsedMultiaddr)
}
