package protocols

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
)

const lightServiceName = "edge.Light"

// Light requests reuse the block sync header shape but live on their
// own protocol so light traffic can be prioritized separately.
type LightInfoRequest struct{}

// LightServer is the handler surface of the light client protocol
type LightServer interface {
	GetHeader(ctx context.Context, req *HeaderRequest) (*HeaderResponse, error)
	GetInfo(ctx context.Context, req *LightInfoRequest) (*StatusResponse, error)
}

// LightService serves light clients from the backend view
type LightService struct {
	logger     hclog.Logger
	blockchain Blockchain
}

func NewLightService(logger hclog.Logger, blockchain Blockchain) *LightService {
	return &LightService{
		logger:     logger.Named("light"),
		blockchain: blockchain,
	}
}

func (s *LightService) GetHeader(ctx context.Context, req *HeaderRequest) (*HeaderResponse, error) {
	header, err := s.blockchain.Header(req.Hash)
	if err != nil {
		return nil, toStatus(err)
	}

	return &HeaderResponse{Header: header}, nil
}

func (s *LightService) GetInfo(ctx context.Context, req *LightInfoRequest) (*StatusResponse, error) {
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

func lightGetHeaderHandler(
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
		return srv.(LightServer).GetHeader(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + lightServiceName + "/GetHeader",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LightServer).GetHeader(ctx, req.(*HeaderRequest))
	}

	return interceptor(ctx, in, info, handler)
}

func lightGetInfoHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(LightInfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(LightServer).GetInfo(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + lightServiceName + "/GetInfo",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LightServer).GetInfo(ctx, req.(*LightInfoRequest))
	}

	return interceptor(ctx, in, info, handler)
}

var LightServiceDesc = grpc.ServiceDesc{
	ServiceName: lightServiceName,
	HandlerType: (*LightServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetHeader", Handler: lightGetHeaderHandler},
		{MethodName: "GetInfo", Handler: lightGetInfoHandler},
	},
	Streams: []grpc.StreamDesc{},
}

type LightClient struct {
	conn grpc.ClientConnInterface
}

func NewLightClient(conn grpc.ClientConnInterface) *LightClient {
	return &LightClient{conn: conn}
}

func (c *LightClient) GetHeader(ctx context.Context, req *HeaderRequest) (*HeaderResponse, error) {
	out := new(HeaderResponse)
	if err := c.conn.Invoke(ctx, "/"+lightServiceName+"/GetHeader", req, out); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *LightClient) GetInfo(ctx context.Context, req *LightInfoRequest) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.conn.Invoke(ctx, "/"+lightServiceName+"/GetInfo", req, out); err != nil {
		return nil, err
	}

	return out, nil
}
