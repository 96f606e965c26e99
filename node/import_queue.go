package node

import (
	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/anchorlabs/anchor-edge/types"
)

// ImportQueue accepts headers learned from peers. The network hands
// over whatever it can resolve for an announced block; the queue
// decides what to do with it.
type ImportQueue interface {
	ImportHeaders(headers []*types.Header)
}

// noopImportQueue discards everything. A remote-backed node never
// imports blocks: its chain view advances through the remote
// subscription streams alone.
type noopImportQueue struct {
	logger hclog.Logger
}

// NewNoopImportQueue creates an import queue that accepts and drops
func NewNoopImportQueue(logger hclog.Logger) ImportQueue {
	return &noopImportQueue{
		logger: logger.Named("import-queue"),
	}
}

func (q *noopImportQueue) ImportHeaders(headers []*types.Header) {
	for _, header := range headers {
		q.logger.Debug("discarding peer-announced header", "hash", header.Hash, "number", header.Number)
	}

	metrics.IncrCounter([]string{"node", "discarded_imports"}, float32(len(headers)))
}
