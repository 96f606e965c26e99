package network

import (
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Starter is the one-shot gate between network assembly and the
// network going live. Protocol registration by subsystems layering on
// top must be able to complete strictly before any peer connects, and
// the protocol table cannot be mutated once live, so the assembled
// network stays inert until the starter fires.
//
// A starter that is discarded without firing leaves the network
// permanently stopped; this is a misuse of the API, surfaced as a
// warning rather than an error
type Starter struct {
	logger hclog.Logger

	once      sync.Once
	startCh   chan struct{}
	discardCh chan struct{}
}

// NewStarter creates an unfired network starter
func NewStarter(logger hclog.Logger) *Starter {
	return &Starter{
		logger:    logger.Named("starter"),
		startCh:   make(chan struct{}),
		discardCh: make(chan struct{}),
	}
}

// Start releases the network. Only the first call has any effect;
// double-firing is structurally impossible
func (s *Starter) Start() {
	fired := false

	s.once.Do(func() {
		close(s.startCh)

		fired = true
	})

	if !fired {
		s.logger.Warn("network starter already resolved, ignoring start")
	}
}

// Discard marks the starter as dropped without firing. The network
// will never start serving traffic
func (s *Starter) Discard() {
	s.once.Do(func() {
		s.logger.Warn("network starter discarded without firing; the network will never start")

		close(s.discardCh)
	})
}

// Released is closed once the starter has fired
func (s *Starter) Released() <-chan struct{} {
	return s.startCh
}

// Discarded is closed if the starter was dropped without firing
func (s *Starter) Discarded() <-chan struct{} {
	return s.discardCh
}
