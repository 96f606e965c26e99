package network

import (
	"context"
	"reflect"

	"github.com/hashicorp/go-hclog"
	jsoniter "github.com/json-iterator/go"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// subscribeOutputBufferSize is the size of subscribe output buffer in go-libp2p-pubsub
	// we should have enough capacity of the queue
	// because when queue is full, if the consumer does not read fast enough, new messages are dropped
	subscribeOutputBufferSize = 1024
)

// Topic is a gossip topic scoped to this network's protocol identifiers
type Topic struct {
	logger hclog.Logger

	topic   *pubsub.Topic
	typ     reflect.Type
	closeCh chan struct{}
}

func (t *Topic) createObj() interface{} {
	return reflect.New(t.typ).Interface()
}

func (t *Topic) Close() {
	close(t.closeCh)
}

// Publish gossips the given message on the topic
func (t *Topic) Publish(obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	return t.topic.Publish(context.Background(), data)
}

// Subscribe starts delivering topic messages to the handler
func (t *Topic) Subscribe(handler func(obj interface{}, from peer.ID)) error {
	sub, err := t.topic.Subscribe(pubsub.WithBufferSize(subscribeOutputBufferSize))
	if err != nil {
		return err
	}

	go t.readLoop(sub, handler)

	return nil
}

func (t *Topic) readLoop(sub *pubsub.Subscription, handler func(obj interface{}, from peer.ID)) {
	ctx, cancelFn := context.WithCancel(context.Background())

	go func() {
		<-t.closeCh
		cancelFn()
	}()

	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			t.logger.Error("failed to get topic message", "err", err)

			continue
		}

		go func() {
			obj := t.createObj()
			if err := json.Unmarshal(msg.Data, obj); err != nil {
				t.logger.Error("failed to unmarshal topic message", "err", err)

				return
			}

			handler(obj, msg.GetFrom())
		}()
	}
}

// NewTopic joins the gossip topic with the given protocol identifier.
// obj is a pointer to the message type carried on the topic
func (s *Server) NewTopic(protoID string, obj interface{}) (*Topic, error) {
	topic, err := s.ps.Join(protoID)
	if err != nil {
		return nil, err
	}

	tt := &Topic{
		logger:  s.logger.Named(protoID),
		topic:   topic,
		typ:     reflect.TypeOf(obj).Elem(),
		closeCh: make(chan struct{}),
	}

	return tt, nil
}
