package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// testServer is a websocket JSON-RPC stub. The handler receives every
// decoded request and writes responses through the returned send func.
type testServer struct {
	t       *testing.T
	server  *httptest.Server
	handler func(req *request, send func(interface{}))

	connLock sync.Mutex
	conn     *websocket.Conn
}

func newTestServer(t *testing.T, handler func(req *request, send func(interface{}))) *testServer {
	t.Helper()

	ts := &testServer{t: t, handler: handler}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		ts.connLock.Lock()
		ts.conn = conn
		ts.connLock.Unlock()

		send := func(msg interface{}) {
			data, err := json.Marshal(msg)
			require.NoError(t, err)

			ts.connLock.Lock()
			defer ts.connLock.Unlock()

			_ = conn.WriteMessage(websocket.TextMessage, data)
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			req := &request{}
			require.NoError(t, json.Unmarshal(data, req))

			ts.handler(req, send)
		}
	}))

	t.Cleanup(ts.server.Close)

	return ts
}

func (ts *testServer) endpoint() string {
	return "ws" + strings.TrimPrefix(ts.server.URL, "http")
}

func (ts *testServer) dropConnection() {
	ts.connLock.Lock()
	defer ts.connLock.Unlock()

	if ts.conn != nil {
		_ = ts.conn.Close()
	}
}

func dialTestServer(t *testing.T, ts *testServer) *Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, hclog.NewNullLogger(), ts.endpoint())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestClient_Call(t *testing.T) {
	ts := newTestServer(t, func(req *request, send func(interface{})) {
		switch req.Method {
		case "chain_getHead":
			send(&response{JSONRPC: "2.0", ID: req.ID, Result: []byte(`"0xabc"`)})
		case "chain_explode":
			send(&response{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   &ErrorObject{Code: -32601, Message: "method not found"},
			})
		}
	})

	client := dialTestServer(t, ts)
	ctx := context.Background()

	t.Run("decodes the result", func(t *testing.T) {
		var result string

		require.NoError(t, client.Call(ctx, "chain_getHead", &result))
		assert.Equal(t, "0xabc", result)
	})

	t.Run("server errors are typed", func(t *testing.T) {
		err := client.Call(ctx, "chain_explode", nil)
		require.Error(t, err)

		errObj := &ErrorObject{}
		require.True(t, errors.As(err, &errObj))
		assert.Equal(t, -32601, errObj.Code)
	})

	t.Run("context cancellation unblocks the caller", func(t *testing.T) {
		callCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		err := client.Call(callCtx, "chain_neverAnswered", nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestClient_Subscribe(t *testing.T) {
	const subID = "sub-1"

	ts := newTestServer(t, func(req *request, send func(interface{})) {
		switch req.Method {
		case "chain_subscribeNewHeads":
			send(&response{JSONRPC: "2.0", ID: req.ID, Result: []byte(`"` + subID + `"`)})

			// one good item, one item-level error, one more good item
			send(&response{JSONRPC: "2.0", Method: "chain_newHead", Params: &notificationParams{
				Subscription: subID,
				Result:       []byte(`{"seq":1}`),
			}})
			send(&response{JSONRPC: "2.0", Method: "chain_newHead", Params: &notificationParams{
				Subscription: subID,
				Error:        &ErrorObject{Code: 1, Message: "bad item"},
			}})
			send(&response{JSONRPC: "2.0", Method: "chain_newHead", Params: &notificationParams{
				Subscription: subID,
				Result:       []byte(`{"seq":2}`),
			}})
		case "chain_unsubscribeNewHeads":
			send(&response{JSONRPC: "2.0", ID: req.ID, Result: []byte(`true`)})
		}
	})

	client := dialTestServer(t, ts)

	sub, err := client.Subscribe(context.Background(), "chain_subscribeNewHeads", "chain_unsubscribeNewHeads")
	require.NoError(t, err)
	assert.Equal(t, subID, sub.ID())

	readOne := func() *Notification {
		select {
		case n := <-sub.Out():
			require.NotNil(t, n)

			return n
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a notification")

			return nil
		}
	}

	// delivery preserves the emission order, including item errors
	first := readOne()
	assert.Nil(t, first.Err)
	assert.JSONEq(t, `{"seq":1}`, string(first.Result))

	second := readOne()
	require.NotNil(t, second.Err)
	assert.Equal(t, "bad item", second.Err.Message)

	third := readOne()
	assert.Nil(t, third.Err)
	assert.JSONEq(t, `{"seq":2}`, string(third.Result))

	// unsubscribing closes the delivery channel
	sub.Unsubscribe()

	_, ok := <-sub.Out()
	assert.False(t, ok)

	// a second unsubscribe is a no-op
	sub.Unsubscribe()
}

func TestClient_ConnectionLossIsFatal(t *testing.T) {
	ts := newTestServer(t, func(req *request, send func(interface{})) {
		if req.Method == "chain_subscribeNewHeads" {
			send(&response{JSONRPC: "2.0", ID: req.ID, Result: []byte(`"sub-dead"`)})
		}
	})

	client := dialTestServer(t, ts)

	sub, err := client.Subscribe(context.Background(), "chain_subscribeNewHeads", "chain_unsubscribeNewHeads")
	require.NoError(t, err)

	ts.dropConnection()

	// the transport tears down: the subscription channel closes and
	// later calls fail fast
	select {
	case _, ok := <-sub.Out():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription channel was not closed on connection loss")
	}

	require.Eventually(t, func() bool {
		err := client.Call(context.Background(), "chain_getHead", nil)

		return errors.Is(err, ErrClosed)
	}, 5*time.Second, 50*time.Millisecond)
}
