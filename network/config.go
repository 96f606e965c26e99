package network

import (
	"net"

	"github.com/anchorlabs/anchor-edge/chain"
)

// DefaultLibp2pPort is the port the libp2p host binds to when none is given
const DefaultLibp2pPort int = 1478

// Config is the base networking server configuration
type Config struct {
	// Addr is the listen address of the libp2p host
	Addr *net.TCPAddr

	// NatAddr is the external address to advertise, if the node is behind NAT
	NatAddr net.IP

	// DataDir is the directory holding the persistent networking key.
	// An empty value uses an in-memory key
	DataDir string

	// Chain is the chain this network belongs to; its bootnodes seed the dial queue
	Chain *chain.Chain

	// MaxPeers is the soft cap on the number of peer connections
	MaxPeers int64
}

// DefaultConfig returns the default networking server configuration
func DefaultConfig() *Config {
	return &Config{
		Addr: &net.TCPAddr{
			IP:   net.ParseIP("0.0.0.0"),
			Port: DefaultLibp2pPort,
		},
		MaxPeers: 40,
	}
}
