package node

import (
	"context"

	"github.com/anchorlabs/anchor-edge/relaychain"
	"github.com/anchorlabs/anchor-edge/types"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
)

const authorityCacheSize = 32

// AuthorityDiscovery resolves the authority discovery set through the
// chain client. Sets are immutable per block, so responses are cached
// by block hash.
type AuthorityDiscovery struct {
	logger hclog.Logger
	client *relaychain.Client
	cache  *lru.Cache
}

func NewAuthorityDiscovery(logger hclog.Logger, client *relaychain.Client) (*AuthorityDiscovery, error) {
	cache, err := lru.New(authorityCacheSize)
	if err != nil {
		return nil, err
	}

	return &AuthorityDiscovery{
		logger: logger.Named("authority-discovery"),
		client: client,
		cache:  cache,
	}, nil
}

// AuthoritiesAt returns the authority discovery set at the given block
func (a *AuthorityDiscovery) AuthoritiesAt(ctx context.Context, hash types.Hash) ([]relaychain.AuthorityID, error) {
	if cached, ok := a.cache.Get(hash); ok {
		return cached.([]relaychain.AuthorityID), nil
	}

	authorities, err := a.client.Authorities(ctx, relaychain.HashPointer(hash))
	if err != nil {
		return nil, err
	}

	a.cache.Add(hash, authorities)

	return authorities, nil
}
