package chain

import (
	"testing"

	"github.com/anchorlabs/anchor-edge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		shouldErr bool
	}{
		{
			name: "valid chain",
			content: `{
				"name": "anchor-test",
				"relayRpc": "wss://rpc.example.com",
				"genesisHash": "0x0100000000000000000000000000000000000000000000000000000000000000",
				"forkId": "fork-1",
				"bootnodes": ["/ip4/127.0.0.1/tcp/1478/p2p/16Uiu2HAm6aQKjjb6DN2iZ9M9o8KZmSb4N3y8H1d3PLXJDPfzbW3k"]
			}`,
		},
		{
			name: "missing relay RPC endpoint",
			content: `{
				"name": "anchor-test",
				"genesisHash": "0x0100000000000000000000000000000000000000000000000000000000000000"
			}`,
			shouldErr: true,
		},
		{
			name: "missing genesis hash",
			content: `{
				"name": "anchor-test",
				"relayRpc": "wss://rpc.example.com"
			}`,
			shouldErr: true,
		},
		{
			name:      "malformed JSON",
			content:   `{"name": `,
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chain, err := importChain([]byte(tt.content))
			if tt.shouldErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "anchor-test", chain.Name)
			assert.Equal(t, "wss://rpc.example.com", chain.RelayRPC)
			assert.NotEqual(t, types.ZeroHash, chain.GenesisHash)
		})
	}
}

func TestProtocolSet(t *testing.T) {
	t.Parallel()

	genesis := types.StringToHash("0x01")

	t.Run("identifiers embed the genesis hash", func(t *testing.T) {
		t.Parallel()

		set := NewProtocolSet(genesis, "")

		for _, id := range []string{
			set.BlockSync(),
			set.StateSync(),
			set.LightClient(),
			set.BlockAnnounce(),
			set.Transactions(),
		} {
			assert.Contains(t, id, genesis.String()[2:])
		}

		assert.Equal(t, "/"+genesis.String()[2:]+"/block-sync/0.1", set.BlockSync())
	})

	t.Run("fork identifier separates networks", func(t *testing.T) {
		t.Parallel()

		plain := NewProtocolSet(genesis, "")
		forked := NewProtocolSet(genesis, "fork-1")

		assert.NotEqual(t, plain.BlockSync(), forked.BlockSync())
		assert.Contains(t, forked.BlockAnnounce(), "/fork-1/")
	})

	t.Run("different genesis hashes never overlap", func(t *testing.T) {
		t.Parallel()

		a := NewProtocolSet(types.StringToHash("0x01"), "")
		b := NewProtocolSet(types.StringToHash("0x02"), "")

		assert.NotEqual(t, a.BlockSync(), b.BlockSync())
	})
}
