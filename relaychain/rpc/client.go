package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/armon/go-metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	jsoniter "github.com/json-iterator/go"
	"github.com/sethvargo/go-retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// notificationBufferSize is the size of a subscription's delivery buffer.
	// If the consumer does not keep up, new notifications are dropped
	notificationBufferSize = 128

	// rpcMetrics is a prefix used for transport-related metrics
	rpcMetrics = "relay_rpc"

	dialRetryLimit = 5
	dialRetryWait  = 500 * time.Millisecond
)

// ErrClosed is returned for calls issued after the transport shut down
var ErrClosed = errors.New("rpc transport closed")

// ErrorObject is a JSON-RPC error response payload
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *ErrorObject) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id,omitempty"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type response struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      string              `json:"id,omitempty"`
	Result  jsoniter.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject        `json:"error,omitempty"`

	// push notification fields
	Method string              `json:"method,omitempty"`
	Params *notificationParams `json:"params,omitempty"`
}

type notificationParams struct {
	Subscription string              `json:"subscription"`
	Result       jsoniter.RawMessage `json:"result,omitempty"`
	Error        *ErrorObject        `json:"error,omitempty"`
}

// Notification is a single push delivery on a subscription. Either
// Result or Err is set; an Err entry is an item-level failure the
// consumer is expected to drop, not a stream terminator
type Notification struct {
	Result jsoniter.RawMessage
	Err    *ErrorObject
}

// Client is a websocket JSON-RPC 2.0 transport supporting
// request/response calls and push subscriptions. Calls are never
// retried internally, the retry policy belongs to the caller
type Client struct {
	logger hclog.Logger

	conn      *websocket.Conn
	writeLock sync.Mutex

	pendingLock sync.Mutex
	pending     map[string]chan *response

	subsLock sync.Mutex
	subs     map[string]*Subscription

	closeCh   chan struct{}
	closeOnce sync.Once
}

// Dial connects to the given websocket endpoint. The initial dial is
// retried with fibonacci backoff since the remote node may still be
// starting up; once connected, any failure is fatal to the transport
func Dial(ctx context.Context, logger hclog.Logger, endpoint string) (*Client, error) {
	fib, err := retry.NewFibonacci(dialRetryWait)
	if err != nil {
		return nil, err
	}

	var conn *websocket.Conn

	err = retry.Do(ctx, retry.WithMaxRetries(dialRetryLimit, fib),
		func(ctx context.Context) error {
			c, _, dialErr := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
			if dialErr != nil {
				logger.Debug("relay RPC dial failed, retrying", "endpoint", endpoint, "err", dialErr)

				return retry.RetryableError(dialErr)
			}

			conn = c

			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay RPC endpoint %s: %w", endpoint, err)
	}

	client := &Client{
		logger:  logger.Named("rpc"),
		conn:    conn,
		pending: map[string]chan *response{},
		subs:    map[string]*Subscription{},
		closeCh: make(chan struct{}),
	}

	go client.readLoop()

	return client, nil
}

// Call issues a single request and decodes the response into result.
// A nil result discards the response payload
func (c *Client) Call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	id := uuid.New().String()

	respCh := make(chan *response, 1)

	c.pendingLock.Lock()
	c.pending[id] = respCh
	c.pendingLock.Unlock()

	defer func() {
		c.pendingLock.Lock()
		delete(c.pending, id)
		c.pendingLock.Unlock()
	}()

	if err := c.write(&request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closeCh:
		return ErrClosed
	case resp := <-respCh:
		if resp.Error != nil {
			return resp.Error
		}

		if result == nil || len(resp.Result) == 0 {
			return nil
		}

		return json.Unmarshal(resp.Result, result)
	}
}

// Subscribe starts a push subscription. The returned subscription's
// channel is closed when the transport goes away; this is the sole
// exhaustion signal for consumers
func (c *Client) Subscribe(
	ctx context.Context,
	method string,
	unsubscribeMethod string,
	params ...interface{},
) (*Subscription, error) {
	var subID string
	if err := c.Call(ctx, method, &subID, params...); err != nil {
		return nil, err
	}

	sub := &Subscription{
		id:                subID,
		unsubscribeMethod: unsubscribeMethod,
		out:               make(chan *Notification, notificationBufferSize),
		client:            c,
	}

	c.subsLock.Lock()
	c.subs[subID] = sub
	c.subsLock.Unlock()

	return sub, nil
}

// Close tears the transport down, failing pending calls and closing
// all subscription channels
func (c *Client) Close() error {
	c.teardown()

	return c.conn.Close()
}

func (c *Client) write(req *request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	select {
	case <-c.closeCh:
		return ErrClosed
	default:
	}

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop is the single reader of the websocket connection. It
// dispatches responses to pending calls and notifications to their
// subscriptions. A read failure is fatal and tears the transport down
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
			default:
				c.logger.Error("relay RPC connection lost", "err", err)
			}

			c.teardown()

			return
		}

		resp := &response{}
		if err := json.Unmarshal(data, resp); err != nil {
			c.logger.Warn("dropping malformed RPC message", "err", err)
			metrics.IncrCounter([]string{rpcMetrics, "malformed_messages"}, 1)

			continue
		}

		switch {
		case resp.ID != "":
			c.dispatchResponse(resp)
		case resp.Params != nil:
			c.dispatchNotification(resp.Params)
		default:
			c.logger.Warn("dropping RPC message with no id and no subscription")
		}
	}
}

func (c *Client) dispatchResponse(resp *response) {
	c.pendingLock.Lock()
	respCh, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.pendingLock.Unlock()

	if !ok {
		c.logger.Warn("dropping RPC response with unknown id", "id", resp.ID)

		return
	}

	respCh <- resp
}

func (c *Client) dispatchNotification(params *notificationParams) {
	// the subscriptions lock is held across the delivery attempt so the
	// channel cannot be closed out from under the send. Delivery is
	// non-blocking, so the lock is never held for long
	c.subsLock.Lock()
	defer c.subsLock.Unlock()

	sub, ok := c.subs[params.Subscription]
	if !ok {
		c.logger.Debug("dropping notification for unknown subscription", "id", params.Subscription)

		return
	}

	notification := &Notification{
		Result: params.Result,
		Err:    params.Error,
	}

	select {
	case sub.out <- notification:
	default:
		c.logger.Warn("subscription buffer full, dropping notification", "id", params.Subscription)
		metrics.IncrCounter([]string{rpcMetrics, "dropped_notifications"}, 1)
	}
}

func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		close(c.closeCh)

		c.subsLock.Lock()
		for id, sub := range c.subs {
			close(sub.out)
			delete(c.subs, id)
		}
		c.subsLock.Unlock()
	})
}

// Subscription is a single push subscription on the transport
type Subscription struct {
	id                string
	unsubscribeMethod string
	out               chan *Notification
	client            *Client

	unsubOnce sync.Once
}

// ID returns the server-assigned subscription id
func (s *Subscription) ID() string {
	return s.id
}

// Out is the delivery channel. It is closed when the transport
// connection is lost or the subscription is cancelled
func (s *Subscription) Out() <-chan *Notification {
	return s.out
}

// Unsubscribe cancels the subscription on the remote node and closes
// the delivery channel
func (s *Subscription) Unsubscribe() {
	s.unsubOnce.Do(func() {
		s.client.subsLock.Lock()
		_, active := s.client.subs[s.id]
		delete(s.client.subs, s.id)
		s.client.subsLock.Unlock()

		if !active {
			// the transport already tore the subscription down
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := s.client.Call(ctx, s.unsubscribeMethod, nil, s.id); err != nil {
			s.client.logger.Warn("failed to unsubscribe", "id", s.id, "err", err)
		}

		close(s.out)
	})
}
