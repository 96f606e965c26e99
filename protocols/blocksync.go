package protocols

import (
	"context"

	"github.com/anchorlabs/anchor-edge/types"
	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
)

const blockSyncServiceName = "edge.BlockSync"

// HeaderRequest asks for a single header. Only hash addressing is served
// on this network: there is no canonical number index to answer from.
type HeaderRequest struct {
	Hash types.Hash `json:"hash"`
}

type HeaderResponse struct {
	Header *types.Header `json:"header"`
}

type BodyRequest struct {
	Hash types.Hash `json:"hash"`
}

type BodyResponse struct {
	Extrinsics [][]byte `json:"extrinsics"`
}

type StatusRequest struct{}

// StatusResponse is the sync handshake payload: where this node's view
// of the chain currently stands
type StatusResponse struct {
	BestHash        types.Hash `json:"bestHash"`
	BestNumber      uint64     `json:"bestNumber"`
	GenesisHash     types.Hash `json:"genesisHash"`
	FinalizedHash   types.Hash `json:"finalizedHash"`
	FinalizedNumber uint64     `json:"finalizedNumber"`
}

// BlockSyncServer is the handler surface of the block sync protocol
type BlockSyncServer interface {
	GetHeader(ctx context.Context, req *HeaderRequest) (*HeaderResponse, error)
	GetBody(ctx context.Context, req *BodyRequest) (*BodyResponse, error)
	GetStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error)
}

// BlockSyncService answers block sync queries from the backend view
type BlockSyncService struct {
	logger     hclog.Logger
	blockchain Blockchain
}

func NewBlockSyncService(logger hclog.Logger, blockchain Blockchain) *BlockSyncService {
	return &BlockSyncService{
		logger:     logger.Named("block-sync"),
		blockchain: blockchain,
	}
}

func (s *BlockSyncService) GetHeader(ctx context.Context, req *HeaderRequest) (*HeaderResponse, error) {
	header, err := s.blockchain.Header(req.Hash)
	if err != nil {
		s.logger.Debug("header query failed", "hash", req.Hash, "err", err)

		return nil, toStatus(err)
	}

	return &HeaderResponse{Header: header}, nil
}

func (s *BlockSyncService) GetBody(ctx context.Context, req *BodyRequest) (*BodyResponse, error) {
	body, err := s.blockchain.BlockBody(req.Hash)
	if err != nil {
		return nil, toStatus(err)
	}

	return &BodyResponse{Extrinsics: body}, nil
}

func (s *BlockSyncService) GetStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	info, err := s.blockchain.Info()
	if err != nil {
		return nil, toStatus(err)
	}

	return &StatusResponse{
		BestHash:        info.BestHash,
		BestNumber:      info.BestNumber,
		GenesisHash:     info.GenesisHash,
		FinalizedHash:   info.FinalizedHash,
		FinalizedNumber: info.FinalizedNumber,
	}, nil
}

func blockSyncGetHeaderHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(HeaderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(BlockSyncServer).GetHeader(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + blockSyncServiceName + "/GetHeader",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BlockSyncServer).GetHeader(ctx, req.(*HeaderRequest))
	}

	return interceptor(ctx, in, info, handler)
}

func blockSyncGetBodyHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(BodyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(BlockSyncServer).GetBody(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + blockSyncServiceName + "/GetBody",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BlockSyncServer).GetBody(ctx, req.(*BodyRequest))
	}

	return interceptor(ctx, in, info, handler)
}

func blockSyncGetStatusHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(BlockSyncServer).GetStatus(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + blockSyncServiceName + "/GetStatus",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BlockSyncServer).GetStatus(ctx, req.(*StatusRequest))
	}

	return interceptor(ctx, in, info, handler)
}

// BlockSyncServiceDesc is written by hand: the wire surface is internal
// to this network and the json codec needs no generated code
var BlockSyncServiceDesc = grpc.ServiceDesc{
	ServiceName: blockSyncServiceName,
	HandlerType: (*BlockSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetHeader", Handler: blockSyncGetHeaderHandler},
		{MethodName: "GetBody", Handler: blockSyncGetBodyHandler},
		{MethodName: "GetStatus", Handler: blockSyncGetStatusHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// BlockSyncClient issues block sync queries over an established
// protocol connection
type BlockSyncClient struct {
	conn grpc.ClientConnInterface
}

func NewBlockSyncClient(conn grpc.ClientConnInterface) *BlockSyncClient {
	return &BlockSyncClient{conn: conn}
}

func (c *BlockSyncClient) GetHeader(ctx context.Context, req *HeaderRequest) (*HeaderResponse, error) {
	out := new(HeaderResponse)
	if err := c.conn.Invoke(ctx, "/"+blockSyncServiceName+"/GetHeader", req, out); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *BlockSyncClient) GetBody(ctx context.Context, req *BodyRequest) (*BodyResponse, error) {
	out := new(BodyResponse)
	if err := c.conn.Invoke(ctx, "/"+blockSyncServiceName+"/GetBody", req, out); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *BlockSyncClient) GetStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.conn.Invoke(ctx, "/"+blockSyncServiceName+"/GetStatus", req, out); err != nil {
		return nil, err
	}

	return out, nil
}
