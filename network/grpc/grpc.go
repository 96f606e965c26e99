package grpc

import (
	"context"
	"io"
	"net"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	manet "github.com/multiformats/go-multiaddr/net"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpcPeer "google.golang.org/grpc/peer"
)

// GrpcStream serves a grpc.Server over libp2p streams by masquerading
// as a net.Listener whose connections are the incoming streams
type GrpcStream struct {
	ctx      context.Context
	streamCh chan network.Stream

	grpcServer *grpc.Server
}

func NewGrpcStream() *GrpcStream {
	g := &GrpcStream{
		ctx:        context.Background(),
		streamCh:   make(chan network.Stream),
		grpcServer: grpc.NewServer(grpc.UnaryInterceptor(interceptor)),
	}

	return g
}

// Context carries the libp2p identity of the calling peer into handlers
type Context struct {
	context.Context
	PeerID peer.ID
}

func interceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	grpcContext, _ := grpcPeer.FromContext(ctx)

	// we expect our libp2p wrapper
	addr, ok := grpcContext.Addr.(*wrapLibp2pAddr)
	if !ok {
		return handler(ctx, req)
	}

	ctx2 := &Context{
		Context: ctx,
		PeerID:  addr.id,
	}

	return handler(ctx2, req)
}

func (g *GrpcStream) Client(stream network.Stream) (*grpc.ClientConn, error) {
	return WrapClient(stream)
}

func (g *GrpcStream) Serve() {
	go func() {
		_ = g.grpcServer.Serve(g)
	}()
}

func (g *GrpcStream) Handler() func(network.Stream) {
	return func(stream network.Stream) {
		select {
		case <-g.ctx.Done():
			return
		case g.streamCh <- stream:
		}
	}
}

func (g *GrpcStream) RegisterService(sd *grpc.ServiceDesc, ss interface{}) {
	g.grpcServer.RegisterService(sd, ss)
}

func (g *GrpcStream) GrpcServer() *grpc.Server {
	return g.grpcServer
}

// --- listener ---

func (g *GrpcStream) Accept() (net.Conn, error) {
	select {
	case <-g.ctx.Done():
		return nil, io.EOF
	case stream := <-g.streamCh:
		return &streamConn{Stream: stream}, nil
	}
}

// Addr implements the net.Listener interface
func (g *GrpcStream) Addr() net.Addr {
	return fakeLocalAddr()
}

func (g *GrpcStream) Close() error {
	return nil
}

// --- conn ---

// WrapClient wraps an open libp2p stream as a grpc client connection
func WrapClient(s network.Stream) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, peerIDStr string) (net.Conn, error) {
			return &streamConn{s}, nil
		}),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}

	return grpc.Dial("", opts...)
}

// streamConn wraps a libp2p stream to be compatible with net.Conn
type streamConn struct {
	network.Stream
}

var _ net.Conn = &streamConn{}

type wrapLibp2pAddr struct {
	id peer.ID
	net.Addr
}

// LocalAddr returns the local address.
func (c *streamConn) LocalAddr() net.Addr {
	addr, err := manet.ToNetAddr(c.Stream.Conn().LocalMultiaddr())
	if err != nil {
		return fakeRemoteAddr()
	}

	return &wrapLibp2pAddr{Addr: addr, id: c.Stream.Conn().LocalPeer()}
}

// RemoteAddr returns the remote address.
func (c *streamConn) RemoteAddr() net.Addr {
	addr, err := manet.ToNetAddr(c.Stream.Conn().RemoteMultiaddr())
	if err != nil {
		return fakeRemoteAddr()
	}

	return &wrapLibp2pAddr{Addr: addr, id: c.Stream.Conn().RemotePeer()}
}

// fakeLocalAddr returns a dummy local address.
func fakeLocalAddr() net.Addr {
	localIP := net.ParseIP("127.0.0.1")

	return &net.TCPAddr{IP: localIP, Port: 0}
}

// fakeRemoteAddr returns a dummy remote address.
func fakeRemoteAddr() net.Addr {
	remoteIP := net.ParseIP("127.1.0.1")

	return &net.TCPAddr{IP: remoteIP, Port: 0}
}
