package chain

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/anchorlabs/anchor-edge/types"
)

// Chain describes the relay chain this node anchors to
type Chain struct {
	Name        string     `json:"name"`
	RelayRPC    string     `json:"relayRpc"`
	GenesisHash types.Hash `json:"genesisHash"`
	ForkID      string     `json:"forkId,omitempty"`
	Bootnodes   Bootnodes  `json:"bootnodes,omitempty"`
}

type Bootnodes []string

// ImportFromFile imports a chain description from a filepath
func ImportFromFile(filename string) (*Chain, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	return importChain(data)
}

func importChain(content []byte) (*Chain, error) {
	chain := &Chain{}
	if err := json.Unmarshal(content, chain); err != nil {
		return nil, err
	}

	if chain.RelayRPC == "" {
		return nil, fmt.Errorf("chain %q does not define a relay RPC endpoint", chain.Name)
	}

	if chain.GenesisHash == types.ZeroHash {
		return nil, fmt.Errorf("chain %q does not define a genesis hash", chain.Name)
	}

	return chain, nil
}
