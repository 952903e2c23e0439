package technology

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// ErrNotFound is returned when a technology or order does not exist.
var ErrNotFound = errors.New("not found")

// Resolver looks up the root operation node of a technology by id.
type Resolver interface {
	ResolveTree(ctx context.Context, technologyID int64) (*OperationNode, error)
}

// MapResolver resolves trees from an in-memory map.
type MapResolver map[int64]*OperationNode

// ResolveTree returns the tree registered under technologyID.
func (m MapResolver) ResolveTree(_ context.Context, technologyID int64) (*OperationNode, error) {
	root, ok := m[technologyID]
	if !ok || root == nil {
		return nil, fmt.Errorf("technology %d: %w", technologyID, ErrNotFound)
	}
	return root, nil
}

// CachedResolver keeps resolved trees for a while so repeated references to the
// same technology share one materialised tree.
type CachedResolver struct {
	next  Resolver
	ttl   time.Duration
	cache *cache.Cache
}

// NewCachedResolver wraps next with an expiring cache.
func NewCachedResolver(next Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		next:  next,
		ttl:   ttl,
		cache: cache.New(ttl, 2*ttl),
	}
}

// ResolveTree returns a cached tree or loads it through the wrapped resolver.
func (c *CachedResolver) ResolveTree(ctx context.Context, technologyID int64) (*OperationNode, error) {
	key := strconv.FormatInt(technologyID, 10)
	if v, ok := c.cache.Get(key); ok {
		return v.(*OperationNode), nil
	}

	root, err := c.next.ResolveTree(ctx, technologyID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, root, c.ttl)
	return root, nil
}

// Invalidate drops a cached technology tree.
func (c *CachedResolver) Invalidate(technologyID int64) {
	c.cache.Delete(strconv.FormatInt(technologyID, 10))
}
