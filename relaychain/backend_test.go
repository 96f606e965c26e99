package relaychain

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorlabs/anchor-edge/types"
)

// testChain is a fixed remote chain view answering the RPC surface the
// backend exercises
type testChain struct {
	best      *types.Header
	genesis   types.Hash
	finalized *types.Header

	headers map[types.Hash]*types.Header

	failing bool
}

func makeHeader(number uint64, parent types.Hash) *types.Header {
	header := &types.Header{
		ParentHash: parent,
		Number:     number,
	}
	header.ComputeHash()

	return header
}

// newTestChain builds a 10-block chain with the finality mark at 7
func newTestChain() *testChain {
	chain := &testChain{
		headers: map[types.Hash]*types.Header{},
	}

	parent := types.ZeroHash

	for number := uint64(0); number <= 10; number++ {
		header := makeHeader(number, parent)
		chain.headers[header.Hash] = header
		parent = header.Hash

		switch number {
		case 0:
			chain.genesis = header.Hash
		case 7:
			chain.finalized = header
		case 10:
			chain.best = header
		}
	}

	return chain
}

func (tc *testChain) transport() *mockTransport {
	return &mockTransport{
		callHandler: func(method string, result interface{}, params ...interface{}) error {
			if tc.failing {
				return fmt.Errorf("connection reset")
			}

			switch method {
			case "chain_getHeader":
				out, ok := result.(**types.Header)
				if !ok {
					return fmt.Errorf("unexpected result type for %s", method)
				}

				if len(params) == 0 {
					*out = tc.best.Copy()

					return nil
				}

				if header, known := tc.headers[params[0].(types.Hash)]; known {
					*out = header.Copy()
				}

				return nil
			case "chain_getBlockHash":
				if params[0].(uint64) != 0 {
					return fmt.Errorf("unexpected depth %v", params[0])
				}

				*result.(*types.Hash) = tc.genesis

				return nil
			case "chain_getFinalizedHead":
				*result.(*types.Hash) = tc.finalized.Hash

				return nil
			default:
				return fmt.Errorf("unexpected method %s", method)
			}
		},
	}
}

func newTestBackend(tc *testChain) *Backend {
	client := NewClient(hclog.NewNullLogger(), tc.transport())

	return NewBackend(hclog.NewNullLogger(), client)
}

func TestBackend_Info(t *testing.T) {
	t.Parallel()

	chain := newTestChain()
	backend := newTestBackend(chain)

	info, err := backend.Info()
	require.NoError(t, err)

	assert.Equal(t, chain.best.Hash, info.BestHash)
	assert.Equal(t, uint64(10), info.BestNumber)
	assert.Equal(t, chain.genesis, info.GenesisHash)
	assert.Equal(t, chain.finalized.Hash, info.FinalizedHash)
	assert.Equal(t, uint64(7), info.FinalizedNumber)

	assert.LessOrEqual(t, info.FinalizedNumber, info.BestNumber)

	// the snapshot is recomputed per call and stays consistent
	again, err := backend.Info()
	require.NoError(t, err)
	assert.Equal(t, info, again)
}

func TestBackend_BestHeaderIsIdempotent(t *testing.T) {
	t.Parallel()

	backend := newTestBackend(newTestChain())

	first, err := backend.BestHeader()
	require.NoError(t, err)

	second, err := backend.BestHeader()
	require.NoError(t, err)

	// no chain change between the calls, identical results
	assert.Equal(t, first, second)
}

func TestBackend_InfoFailsAsAWhole(t *testing.T) {
	t.Parallel()

	chain := newTestChain()
	backend := newTestBackend(chain)

	chain.failing = true

	info, err := backend.Info()
	require.Error(t, err)
	assert.Nil(t, info)

	transportErr := &TransportError{}
	assert.ErrorAs(t, err, &transportErr)
}

func TestBackend_HeaderAndNumber(t *testing.T) {
	t.Parallel()

	chain := newTestChain()
	backend := newTestBackend(chain)

	header, err := backend.Header(chain.finalized.Hash)
	require.NoError(t, err)
	require.NotNil(t, header)
	assert.True(t, header.Equal(chain.finalized))

	number, known, err := backend.Number(chain.finalized.Hash)
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, header.Number, number)

	// unknown hashes resolve to nil without an error
	unknown, err := backend.Header(types.StringToHash("0xdead"))
	require.NoError(t, err)
	assert.Nil(t, unknown)

	_, known, err = backend.Number(types.StringToHash("0xdead"))
	require.NoError(t, err)
	assert.False(t, known)
}

func TestBackend_BlockStatus(t *testing.T) {
	t.Parallel()

	chain := newTestChain()
	backend := newTestBackend(chain)

	status, err := backend.BlockStatus(HashPointer(chain.best.Hash))
	require.NoError(t, err)
	assert.Equal(t, BlockStatusInChainWithState, status)

	status, err = backend.BlockStatus(HashPointer(types.StringToHash("0xdead")))
	require.NoError(t, err)
	assert.Equal(t, BlockStatusUnknown, status)

	// number-addressed status queries violate the hash-only contract
	_, err = backend.BlockStatus(NumberPointer(3))
	require.Error(t, err)
	assert.True(t, IsUnsupported(err))
}

func TestBackend_UnsupportedOperations(t *testing.T) {
	t.Parallel()

	backend := newTestBackend(newTestChain())

	_, err := backend.HeaderByNumber(5)
	assert.True(t, IsUnsupported(err))

	_, err = backend.HashByNumber(5)
	assert.True(t, IsUnsupported(err))

	_, err = backend.BlockBody(types.ZeroHash)
	assert.True(t, IsUnsupported(err))

	_, err = backend.ReadProof(types.ZeroHash, nil)
	assert.True(t, IsUnsupported(err))

	_, err = backend.HeaderMetadata(types.ZeroHash)
	assert.True(t, IsUnsupported(err))
}

func TestBackend_ConcurrentCallers(t *testing.T) {
	t.Parallel()

	chain := newTestChain()
	backend := newTestBackend(chain)

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			header, err := backend.BestHeader()
			assert.NoError(t, err)
			assert.True(t, chain.best.Equal(header))

			info, err := backend.Info()
			assert.NoError(t, err)
			assert.Equal(t, uint64(10), info.BestNumber)
		}()
	}

	wg.Wait()
}
