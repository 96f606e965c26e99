package network

import (
	"container/heap"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
)

const (
	priorityRequestedDial uint64 = 1
	priorityBootnodeDial  uint64 = 10
)

// dialQueue is a queue holding the peer targets the server should
// connect to, ordered by dial priority
type dialQueue struct {
	heap     dialQueueImpl
	lock     sync.Mutex
	items    map[peer.ID]*dialTask
	updateCh chan struct{}
	closeCh  chan struct{}
}

func newDialQueue() *dialQueue {
	return &dialQueue{
		heap:     dialQueueImpl{},
		items:    map[peer.ID]*dialTask{},
		updateCh: make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
	}
}

func (d *dialQueue) Close() {
	close(d.closeCh)
}

// pop blocks until a dial task is available, or returns nil when the
// queue is closed
func (d *dialQueue) pop() *dialTask {
	for {
		if tt := d.popImpl(); tt != nil {
			return tt
		}

		select {
		case <-d.updateCh:
		case <-d.closeCh:
			return nil
		}
	}
}

func (d *dialQueue) popImpl() *dialTask {
	d.lock.Lock()
	defer d.lock.Unlock()

	if len(d.heap) != 0 {
		tt, ok := heap.Pop(&d.heap).(*dialTask)
		if !ok {
			return nil
		}

		delete(d.items, tt.addr.ID)

		return tt
	}

	return nil
}

func (d *dialQueue) add(addr *peer.AddrInfo, priority uint64) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if _, ok := d.items[addr.ID]; ok {
		// already queued
		return
	}

	task := &dialTask{
		addr:     addr,
		priority: priority,
	}
	d.items[addr.ID] = task
	heap.Push(&d.heap, task)

	select {
	case d.updateCh <- struct{}{}:
	default:
	}
}

type dialTask struct {
	index int

	addr *peer.AddrInfo

	// priority of the task (the higher the better)
	priority uint64
}

// dialQueueImpl is a priority queue over dial tasks, implemented on the
// standard library heap
type dialQueueImpl []*dialTask

func (t dialQueueImpl) Len() int { return len(t) }

func (t dialQueueImpl) Less(i, j int) bool {
	return t[i].priority > t[j].priority
}

func (t dialQueueImpl) Swap(i, j int) {
	t[i], t[j] = t[j], t[i]
	t[i].index = i
	t[j].index = j
}

func (t *dialQueueImpl) Push(x interface{}) {
	n := len(*t)
	item, ok := x.(*dialTask)

	if !ok {
		return
	}

	item.index = n
	*t = append(*t, item)
}

func (t *dialQueueImpl) Pop() interface{} {
	old := *t
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*t = old[0 : n-1]

	return item
}
