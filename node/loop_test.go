package node

import (
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	peerEvent "github.com/anchorlabs/anchor-edge/network/event"
	"github.com/anchorlabs/anchor-edge/types"
)

type announceCall struct {
	hash      types.Hash
	number    uint64
	finalized bool
}

type recordingAnnouncer struct {
	lock  sync.Mutex
	calls []announceCall
}

func (r *recordingAnnouncer) AnnounceBlock(hash types.Hash, number uint64) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.calls = append(r.calls, announceCall{hash: hash, number: number})

	return nil
}

func (r *recordingAnnouncer) AnnounceFinalized(hash types.Hash, number uint64) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.calls = append(r.calls, announceCall{hash: hash, number: number, finalized: true})

	return nil
}

func (r *recordingAnnouncer) snapshot() []announceCall {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]announceCall{}, r.calls...)
}

func header(number uint64) *types.Header {
	h := &types.Header{Number: number}
	h.ComputeHash()

	return h
}

func TestDrivingLoop_RelaysNotifications(t *testing.T) {
	t.Parallel()

	announcer := &recordingAnnouncer{}

	best := make(chan *types.Header, 4)
	finalized := make(chan *types.Header, 4)
	peerEvents := make(chan *peerEvent.PeerEvent, 4)

	exited := make(chan error, 1)

	go func() {
		exited <- drivingLoop(hclog.NewNullLogger(), announcer, best, finalized, peerEvents)
	}()

	bestHeader := header(10)
	finalHeader := header(7)

	best <- bestHeader
	finalized <- finalHeader

	// peer events are drained without affecting the announcements
	peerEvents <- &peerEvent.PeerEvent{Type: peerEvent.PeerConnected}

	require.Eventually(t, func() bool {
		return len(announcer.snapshot()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	calls := announcer.snapshot()
	assert.Equal(t, announceCall{hash: bestHeader.Hash, number: 10}, calls[0])
	assert.Equal(t, announceCall{hash: finalHeader.Hash, number: 7, finalized: true}, calls[1])

	// exhausting the best stream terminates the loop
	close(best)

	select {
	case err := <-exited:
		assert.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("the loop did not exit on stream exhaustion")
	}

	// nothing is announced after the loop exits
	assert.Len(t, announcer.snapshot(), 2)
}

func TestDrivingLoop_ExitsWhenFinalityStreamCloses(t *testing.T) {
	t.Parallel()

	best := make(chan *types.Header)
	finalized := make(chan *types.Header)

	exited := make(chan error, 1)

	go func() {
		exited <- drivingLoop(hclog.NewNullLogger(), &recordingAnnouncer{}, best, finalized, nil)
	}()

	close(finalized)

	select {
	case err := <-exited:
		assert.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("the loop did not exit on stream exhaustion")
	}
}

func TestDrivingLoop_SurvivesPeerEventBusShutdown(t *testing.T) {
	t.Parallel()

	announcer := &recordingAnnouncer{}

	best := make(chan *types.Header, 1)
	finalized := make(chan *types.Header)
	peerEvents := make(chan *peerEvent.PeerEvent)

	exited := make(chan error, 1)

	go func() {
		exited <- drivingLoop(hclog.NewNullLogger(), announcer, best, finalized, peerEvents)
	}()

	// the event bus closing is not fatal, chain streams keep flowing
	close(peerEvents)

	best <- header(1)

	require.Eventually(t, func() bool {
		return len(announcer.snapshot()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	close(best)

	select {
	case err := <-exited:
		assert.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("the loop did not exit on stream exhaustion")
	}
}
