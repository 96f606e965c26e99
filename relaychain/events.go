package relaychain

import (
	"context"

	"github.com/hashicorp/go-hclog"
)

// Events bridges the remote node's push subscriptions to the generic
// notification-stream contract consumed by networking and consensus.
// Streams carry no buffering or replay; a consumer that needs to
// recover from a gap must re-subscribe and tolerate missed headers
type Events struct {
	logger hclog.Logger
	client *Client
}

// NewEvents creates the notification bridge for the given client
func NewEvents(logger hclog.Logger, client *Client) *Events {
	return &Events{
		logger: logger.Named("events"),
		client: client,
	}
}

// BestStream is the stream of new best headers, ordered by increasing
// chain position
func (e *Events) BestStream(ctx context.Context) (*HeaderStream, error) {
	return e.client.SubscribeNewHeads(ctx)
}

// FinalityStream is the stream of finalized headers, ordered by
// finalization order
func (e *Events) FinalityStream(ctx context.Context) (*HeaderStream, error) {
	return e.client.SubscribeFinalizedHeads(ctx)
}

// ImportStream is the stream of imported headers. The remote-backed
// node never imports blocks itself, so "imported" and "became best"
// are the same event and this is an alias of BestStream
func (e *Events) ImportStream(ctx context.Context) (*HeaderStream, error) {
	return e.client.SubscribeNewHeads(ctx)
}
