package relaychain

import (
	"context"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	jsoniter "github.com/json-iterator/go"

	"github.com/anchorlabs/anchor-edge/relaychain/rpc"
	"github.com/anchorlabs/anchor-edge/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// relayMetrics is a prefix used for relay-chain-client metrics
	relayMetrics = "relaychain"
)

// Subscription is the push subscription surface consumed by the client
type Subscription interface {
	Out() <-chan *rpc.Notification
	Unsubscribe()
}

// Transport is the remote procedure transport the client runs on.
// Every call is fallible and asynchronous; the transport never retries
type Transport interface {
	Call(ctx context.Context, method string, result interface{}, params ...interface{}) error
	Subscribe(ctx context.Context, method, unsubscribeMethod string, params ...interface{}) (Subscription, error)
	Close() error
}

// wsTransport adapts the concrete websocket client to the Transport surface
type wsTransport struct {
	client *rpc.Client
}

// WrapTransport exposes a websocket RPC client as a Transport
func WrapTransport(client *rpc.Client) Transport {
	return &wsTransport{client: client}
}

func (w *wsTransport) Call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	return w.client.Call(ctx, method, result, params...)
}

func (w *wsTransport) Subscribe(
	ctx context.Context,
	method, unsubscribeMethod string,
	params ...interface{},
) (Subscription, error) {
	return w.client.Subscribe(ctx, method, unsubscribeMethod, params...)
}

func (w *wsTransport) Close() error {
	return w.client.Close()
}

// Client is a thin typed wrapper over the relay chain RPC transport.
// All methods are context-driven and return typed results or an error;
// failed calls are never retried here, the caller decides
type Client struct {
	logger    hclog.Logger
	transport Transport
}

// NewClient creates a typed relay chain client on top of a transport
func NewClient(logger hclog.Logger, transport Transport) *Client {
	return &Client{
		logger:    logger.Named("relaychain"),
		transport: transport,
	}
}

// Close shuts down the underlying transport
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	if err := c.transport.Call(ctx, method, result, params...); err != nil {
		return newTransportError(method, err)
	}

	return nil
}

// callAt issues a call evaluated at a specific block. The hash-only
// contract is enforced locally, before any network round trip
func (c *Client) callAt(
	ctx context.Context,
	method string,
	at BlockPointer,
	result interface{},
	extra ...interface{},
) error {
	hash, err := at.Hash()
	if err != nil {
		return err
	}

	params := append([]interface{}{hash}, extra...)

	return c.call(ctx, method, result, params...)
}

// Header fetches the header with the given hash. A nil hash fetches
// the current best header. A nil result with no error means the remote
// node knows no such block
func (c *Client) Header(ctx context.Context, hash *types.Hash) (*types.Header, error) {
	var header *types.Header

	var err error
	if hash == nil {
		err = c.call(ctx, "chain_getHeader", &header)
	} else {
		err = c.call(ctx, "chain_getHeader", &header, *hash)
	}

	if err != nil {
		return nil, err
	}

	return header, nil
}

// HeadHash returns the hash of the chain head at the given depth.
// Depth 0 is the genesis block
func (c *Client) HeadHash(ctx context.Context, depth uint64) (types.Hash, error) {
	var hash types.Hash
	if err := c.call(ctx, "chain_getBlockHash", &hash, depth); err != nil {
		return types.ZeroHash, err
	}

	return hash, nil
}

// FinalizedHead returns the hash of the most recently finalized block
func (c *Client) FinalizedHead(ctx context.Context) (types.Hash, error) {
	var hash types.Hash
	if err := c.call(ctx, "chain_getFinalizedHead", &hash); err != nil {
		return types.ZeroHash, err
	}

	return hash, nil
}

// Validators returns the validator set active at the given block
func (c *Client) Validators(ctx context.Context, at BlockPointer) ([]ValidatorID, error) {
	var validators []ValidatorID
	if err := c.callAt(ctx, "parachainHost_validators", at, &validators); err != nil {
		return nil, err
	}

	return validators, nil
}

// ValidatorGroups returns the validator group assignment at the given block
func (c *Client) ValidatorGroups(ctx context.Context, at BlockPointer) (*ValidatorGroups, error) {
	groups := &ValidatorGroups{}
	if err := c.callAt(ctx, "parachainHost_validatorGroups", at, groups); err != nil {
		return nil, err
	}

	return groups, nil
}

// AvailabilityCores returns the state of the availability cores at the given block
func (c *Client) AvailabilityCores(ctx context.Context, at BlockPointer) ([]CoreState, error) {
	var cores []CoreState
	if err := c.callAt(ctx, "parachainHost_availabilityCores", at, &cores); err != nil {
		return nil, err
	}

	return cores, nil
}

// SessionIndexForChild returns the session index a child of the given block would have
func (c *Client) SessionIndexForChild(ctx context.Context, at BlockPointer) (SessionIndex, error) {
	var index SessionIndex
	if err := c.callAt(ctx, "parachainHost_sessionIndexForChild", at, &index); err != nil {
		return 0, err
	}

	return index, nil
}

// SessionInfo returns the information for the given session, evaluated at the given block
func (c *Client) SessionInfo(ctx context.Context, at BlockPointer, index SessionIndex) (*SessionInfo, error) {
	var info *SessionInfo
	if err := c.callAt(ctx, "parachainHost_sessionInfo", at, &info, index); err != nil {
		return nil, err
	}

	return info, nil
}

// PersistedValidationData returns the validation data for the given
// secondary chain under the given core assumption
func (c *Client) PersistedValidationData(
	ctx context.Context,
	at BlockPointer,
	paraID uint64,
	assumption CoreAssumption,
) (*PersistedValidationData, error) {
	var data *PersistedValidationData
	if err := c.callAt(ctx, "parachainHost_persistedValidationData", at, &data, paraID, assumption); err != nil {
		return nil, err
	}

	return data, nil
}

// ValidationCodeHash returns the validation code hash for the given
// secondary chain under the given core assumption
func (c *Client) ValidationCodeHash(
	ctx context.Context,
	at BlockPointer,
	paraID uint64,
	assumption CoreAssumption,
) (*types.Hash, error) {
	var hash *types.Hash
	if err := c.callAt(ctx, "parachainHost_validationCodeHash", at, &hash, paraID, assumption); err != nil {
		return nil, err
	}

	return hash, nil
}

// CandidatePendingAvailability returns the receipt of the candidate
// pending availability for the given secondary chain, if any
func (c *Client) CandidatePendingAvailability(
	ctx context.Context,
	at BlockPointer,
	paraID uint64,
) (*CommittedCandidate, error) {
	var candidate *CommittedCandidate
	if err := c.callAt(ctx, "parachainHost_candidatePendingAvailability", at, &candidate, paraID); err != nil {
		return nil, err
	}

	return candidate, nil
}

// CandidateEvents returns the candidate inclusion events recorded in the given block
func (c *Client) CandidateEvents(ctx context.Context, at BlockPointer) ([]CandidateEvent, error) {
	var events []CandidateEvent
	if err := c.callAt(ctx, "parachainHost_candidateEvents", at, &events); err != nil {
		return nil, err
	}

	return events, nil
}

// RuntimeVersion returns the runtime version active at the given block
func (c *Client) RuntimeVersion(ctx context.Context, at BlockPointer) (*RuntimeVersion, error) {
	version := &RuntimeVersion{}
	if err := c.callAt(ctx, "state_getRuntimeVersion", at, version); err != nil {
		return nil, err
	}

	return version, nil
}

// Authorities returns the authority discovery identifiers of the
// validator set at the given block
func (c *Client) Authorities(ctx context.Context, at BlockPointer) ([]AuthorityID, error) {
	var authorities []AuthorityID
	if err := c.callAt(ctx, "authorityDiscovery_authorities", at, &authorities); err != nil {
		return nil, err
	}

	return authorities, nil
}

// SubscribeNewHeads subscribes to best-head announcements of the remote node
func (c *Client) SubscribeNewHeads(ctx context.Context) (*HeaderStream, error) {
	sub, err := c.transport.Subscribe(ctx, "chain_subscribeNewHeads", "chain_unsubscribeNewHeads")
	if err != nil {
		return nil, newTransportError("chain_subscribeNewHeads", err)
	}

	return c.newHeaderStream("best", sub), nil
}

// SubscribeFinalizedHeads subscribes to finalized-head announcements
// of the remote node
func (c *Client) SubscribeFinalizedHeads(ctx context.Context) (*HeaderStream, error) {
	sub, err := c.transport.Subscribe(ctx, "chain_subscribeFinalizedHeads", "chain_unsubscribeFinalizedHeads")
	if err != nil {
		return nil, newTransportError("chain_subscribeFinalizedHeads", err)
	}

	return c.newHeaderStream("finalized", sub), nil
}

// HeaderStream is an ordered sequence of headers produced by a push
// subscription. The channel is closed when the subscription dies; a
// closed channel is the sole exhaustion signal, there is no error value
type HeaderStream struct {
	ch  chan *types.Header
	sub Subscription
}

// Headers returns the stream's delivery channel
func (s *HeaderStream) Headers() <-chan *types.Header {
	return s.ch
}

// Close cancels the subscription; the delivery channel closes once the
// remaining buffered items are drained
func (s *HeaderStream) Close() {
	s.sub.Unsubscribe()
}

// newHeaderStream pumps raw notifications into typed headers.
// Item-level failures (malformed payloads, per-delivery errors) are
// logged and dropped so the stream degrades gracefully; only a fatal
// subscription failure ends it
func (c *Client) newHeaderStream(name string, sub Subscription) *HeaderStream {
	stream := &HeaderStream{
		ch:  make(chan *types.Header),
		sub: sub,
	}

	go func() {
		defer close(stream.ch)

		for notification := range sub.Out() {
			if notification.Err != nil {
				c.logger.Error("error in header notification stream",
					"stream", name, "err", notification.Err)
				metrics.IncrCounter([]string{relayMetrics, "dropped_headers"}, 1)

				continue
			}

			header := &types.Header{}
			if err := json.Unmarshal(notification.Result, header); err != nil {
				c.logger.Error("malformed header in notification stream",
					"stream", name, "err", err)
				metrics.IncrCounter([]string{relayMetrics, "dropped_headers"}, 1)

				continue
			}

			if header.Hash == types.ZeroHash {
				header.ComputeHash()
			}

			stream.ch <- header
		}
	}()

	return stream
}
