package node

import (
	"context"
	"fmt"

	"github.com/anchorlabs/anchor-edge/chain"
	"github.com/anchorlabs/anchor-edge/network"
	"github.com/anchorlabs/anchor-edge/relaychain"
	"github.com/anchorlabs/anchor-edge/relaychain/rpc"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// Config is the top level node configuration
type Config struct {
	Logger hclog.Logger

	// Chain is the imported chain definition
	Chain *chain.Chain

	// RPCEndpoint overrides the chain file's relay RPC endpoint if set
	RPCEndpoint string

	// Network is the libp2p server configuration; its Chain field is
	// filled in from Chain
	Network *network.Config

	// JoinAddrs are extra peers to dial on top of the chain bootnodes
	JoinAddrs []string
}

// Node is a network-facing view over a remote chain: a relay chain
// client, the backend adapter serving the protocol handlers, and the
// assembled network behind its starter.
type Node struct {
	logger hclog.Logger
	config *Config

	client  *relaychain.Client
	backend *relaychain.Backend
	events  *relaychain.Events

	handle  *Handle
	starter *network.Starter

	authority *AuthorityDiscovery

	fatalCh chan error
	cancel  context.CancelFunc
}

// New dials the remote chain and assembles the network around it. The
// node does not serve traffic until Start is called.
func New(ctx context.Context, config *Config) (*Node, error) {
	logger := config.Logger.Named("node")

	endpoint := config.Chain.RelayRPC
	if config.RPCEndpoint != "" {
		endpoint = config.RPCEndpoint
	}

	transport, err := rpc.Dial(ctx, config.Logger, endpoint)
	if err != nil {
		return nil, fmt.Errorf("unable to dial the relay chain endpoint, %w", err)
	}

	client := relaychain.NewClient(config.Logger, relaychain.WrapTransport(transport))
	backend := relaychain.NewBackend(config.Logger, client)
	events := relaychain.NewEvents(config.Logger, client)

	authority, err := NewAuthorityDiscovery(config.Logger, client)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	fatalCh := make(chan error, 1)

	netConfig := config.Network
	if netConfig == nil {
		netConfig = network.DefaultConfig()
	}

	netConfig.Chain = config.Chain

	handle, starter, err := BuildNetwork(runCtx, &NetworkParams{
		Logger:     config.Logger,
		Config:     netConfig,
		Blockchain: backend,
		Events:     events,
		Fatal:      fatalCh,
	})
	if err != nil {
		cancel()

		if closeErr := client.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}

		return nil, err
	}

	return &Node{
		logger:    logger,
		config:    config,
		client:    client,
		backend:   backend,
		events:    events,
		handle:    handle,
		starter:   starter,
		authority: authority,
		fatalCh:   fatalCh,
		cancel:    cancel,
	}, nil
}

// Start releases the network. Extra join addresses are dialed once the
// server is live.
func (n *Node) Start() {
	n.starter.Start()

	for _, addr := range n.config.JoinAddrs {
		if err := n.handle.JoinPeer(addr); err != nil {
			n.logger.Error("unable to join peer", "addr", addr, "err", err)
		}
	}
}

// Handle returns the running network handle
func (n *Node) Handle() *Handle {
	return n.handle
}

// Backend returns the chain view adapter
func (n *Node) Backend() *relaychain.Backend {
	return n.backend
}

// Authority returns the authority discovery provider
func (n *Node) Authority() *AuthorityDiscovery {
	return n.authority
}

// Fatal delivers the first unrecoverable failure of the running node
func (n *Node) Fatal() <-chan error {
	return n.fatalCh
}

// Close tears the node down: the starter is discarded if it never
// fired, the network server and the chain transport are closed, and
// every failure is aggregated into the returned error
func (n *Node) Close() error {
	var result error

	n.starter.Discard()
	n.cancel()

	if err := n.handle.Server.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := n.client.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	return result
}
