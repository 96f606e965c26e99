package server

import (
	"fmt"
	"net"

	"github.com/anchorlabs/anchor-edge/network"
)

const (
	chainFlag       = "chain"
	rpcEndpointFlag = "rpc-endpoint"
	libp2pFlag      = "libp2p"
	natFlag         = "nat"
	dataDirFlag     = "data-dir"
	maxPeersFlag    = "max-peers"
	logLevelFlag    = "log-level"
	joinFlag        = "join"
)

var params = &serverParams{}

type serverParams struct {
	chainPath   string
	rpcEndpoint string
	libp2pAddr  string
	natAddr     string
	dataDir     string
	maxPeers    int64
	logLevel    string
	joinAddrs   []string
}

// networkConfig resolves the raw flag values into a network server
// configuration
func (p *serverParams) networkConfig() (*network.Config, error) {
	config := network.DefaultConfig()

	addr, err := net.ResolveTCPAddr("tcp", p.libp2pAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid libp2p address %s, %w", p.libp2pAddr, err)
	}

	config.Addr = addr
	config.DataDir = p.dataDir
	config.MaxPeers = p.maxPeers

	if p.natAddr != "" {
		natAddr := net.ParseIP(p.natAddr)
		if natAddr == nil {
			return nil, fmt.Errorf("invalid NAT address %s", p.natAddr)
		}

		config.NatAddr = natAddr
	}

	return config, nil
}
