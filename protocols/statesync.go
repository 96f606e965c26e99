package protocols

import (
	"context"

	"github.com/anchorlabs/anchor-edge/types"
	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
)

const stateSyncServiceName = "edge.StateSync"

// ReadProofRequest asks for a storage read proof at a given block
type ReadProofRequest struct {
	Hash types.Hash `json:"hash"`
	Keys [][]byte   `json:"keys"`
}

type ReadProofResponse struct {
	Proof [][]byte `json:"proof"`
}

// StateSyncServer is the handler surface of the state sync protocol
type StateSyncServer interface {
	ReadProof(ctx context.Context, req *ReadProofRequest) (*ReadProofResponse, error)
}

// StateSyncService answers state queries from the backend view. On a
// remote-backed node state is not held locally, so the handlers mostly
// refuse with Unimplemented rather than serve stale data.
type StateSyncService struct {
	logger     hclog.Logger
	blockchain Blockchain
}

func NewStateSyncService(logger hclog.Logger, blockchain Blockchain) *StateSyncService {
	return &StateSyncService{
		logger:     logger.Named("state-sync"),
		blockchain: blockchain,
	}
}

func (s *StateSyncService) ReadProof(ctx context.Context, req *ReadProofRequest) (*ReadProofResponse, error) {
	proof, err := s.blockchain.ReadProof(req.Hash, req.Keys)
	if err != nil {
		s.logger.Debug("read proof query refused", "hash", req.Hash, "err", err)

		return nil, toStatus(err)
	}

	return &ReadProofResponse{Proof: proof}, nil
}

func stateSyncReadProofHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(ReadProofRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(StateSyncServer).ReadProof(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + stateSyncServiceName + "/ReadProof",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StateSyncServer).ReadProof(ctx, req.(*ReadProofRequest))
	}

	return interceptor(ctx, in, info, handler)
}

var StateSyncServiceDesc = grpc.ServiceDesc{
	ServiceName: stateSyncServiceName,
	HandlerType: (*StateSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReadProof", Handler: stateSyncReadProofHandler},
	},
	Streams: []grpc.StreamDesc{},
}

type StateSyncClient struct {
	conn grpc.ClientConnInterface
}

func NewStateSyncClient(conn grpc.ClientConnInterface) *StateSyncClient {
	return &StateSyncClient{conn: conn}
}

func (c *StateSyncClient) ReadProof(ctx context.Context, req *ReadProofRequest) (*ReadProofResponse, error) {
	out := new(ReadProofResponse)
	if err := c.conn.Invoke(ctx, "/"+stateSyncServiceName+"/ReadProof", req, out); err != nil {
		return nil, err
	}

	return out, nil
}
