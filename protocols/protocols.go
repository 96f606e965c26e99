package protocols

import (
	"errors"

	"github.com/anchorlabs/anchor-edge/relaychain"
	"github.com/anchorlabs/anchor-edge/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Blockchain is the view of the chain the protocol handlers answer from.
// A remote-backed node satisfies it with the relaychain backend, which
// means a subset of the queries is structurally unavailable.
type Blockchain interface {
	Header(hash types.Hash) (*types.Header, error)
	BestHeader() (*types.Header, error)
	Info() (*relaychain.ChainInfo, error)
	Number(hash types.Hash) (uint64, bool, error)
	BlockBody(hash types.Hash) ([][]byte, error)
	ReadProof(hash types.Hash, keys [][]byte) ([][]byte, error)
}

// toStatus maps handler errors onto grpc status codes so that remote
// peers can tell an unavailable query apart from a failed one
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, relaychain.ErrUnsupported) {
		return status.Error(codes.Unimplemented, err.Error())
	}

	return status.Error(codes.Internal, err.Error())
}
