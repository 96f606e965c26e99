package network

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorlabs/anchor-edge/chain"
	"github.com/anchorlabs/anchor-edge/types"
)

// createServer creates a started networking server bound to a random
// loopback port
func createServer(t *testing.T, chainSpec *chain.Chain) *Server {
	t.Helper()

	config := DefaultConfig()
	config.Addr = &net.TCPAddr{
		IP:   net.ParseIP("127.0.0.1"),
		Port: 0,
	}
	config.Chain = chainSpec

	server, err := NewServer(hclog.NewNullLogger(), config)
	require.NoError(t, err)

	require.NoError(t, server.Start())

	t.Cleanup(func() {
		_ = server.Close()
	})

	return server
}

// multiaddrOf renders a dialable multiaddr of the given server
func multiaddrOf(t *testing.T, server *Server) string {
	t.Helper()

	info := server.AddrInfo()
	require.NotEmpty(t, info.Addrs)

	return fmt.Sprintf("%s/p2p/%s", info.Addrs[0], info.ID)
}

func connectServers(t *testing.T, a, b *Server) {
	t.Helper()

	require.NoError(t, a.JoinPeer(multiaddrOf(t, b)))

	require.Eventually(t, func() bool {
		return a.IsConnected(b.AddrInfo().ID) && b.IsConnected(a.AddrInfo().ID)
	}, 15*time.Second, 100*time.Millisecond)
}

func TestServer_PeerLifecycle(t *testing.T) {
	srv0 := createServer(t, nil)
	srv1 := createServer(t, nil)

	connectServers(t, srv0, srv1)

	assert.Len(t, srv0.Peers(), 1)
	assert.Len(t, srv1.Peers(), 1)

	srv0.DisconnectFromPeer(srv1.AddrInfo().ID, "test teardown")

	require.Eventually(t, func() bool {
		return !srv0.IsConnected(srv1.AddrInfo().ID)
	}, 15*time.Second, 100*time.Millisecond)
}

func TestServer_BootnodesSeedTheDialQueue(t *testing.T) {
	srv0 := createServer(t, nil)

	srv1 := createServer(t, &chain.Chain{
		Name:        "test",
		RelayRPC:    "wss://rpc.example.com",
		GenesisHash: types.StringToHash("0x01"),
		Bootnodes:   chain.Bootnodes{multiaddrOf(t, srv0)},
	})

	require.Eventually(t, func() bool {
		return srv1.IsConnected(srv0.AddrInfo().ID)
	}, 15*time.Second, 100*time.Millisecond)
}

type testGossipMsg struct {
	Payload string `json:"payload"`
}

func TestServer_Gossip(t *testing.T) {
	const protoID = "/gossip-test/0.1"

	srv0 := createServer(t, nil)
	srv1 := createServer(t, nil)

	connectServers(t, srv0, srv1)

	topic0, err := srv0.NewTopic(protoID, &testGossipMsg{})
	require.NoError(t, err)

	topic1, err := srv1.NewTopic(protoID, &testGossipMsg{})
	require.NoError(t, err)

	received := make(chan *testGossipMsg, 16)

	require.NoError(t, topic0.Subscribe(func(obj interface{}, from peer.ID) {
		msg, ok := obj.(*testGossipMsg)
		require.True(t, ok)

		received <- msg
	}))

	// the mesh takes a heartbeat or two to form, keep publishing until
	// the message lands
	require.Eventually(t, func() bool {
		require.NoError(t, topic1.Publish(&testGossipMsg{Payload: "hello"}))

		select {
		case msg := <-received:
			return msg.Payload == "hello"
		case <-time.After(time.Second):
			return false
		}
	}, 30*time.Second, 100*time.Millisecond)
}
