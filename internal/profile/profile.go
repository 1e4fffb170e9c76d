// Package profile resolves identity metadata through a cached lookup. Fetch
// failures never propagate: the caller gets a placeholder and the failure is
// not cached, so the next lookup retries.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/fernwick/chatter/pkg/protocol"
)

// PlaceholderName is the display value substituted when a fetch fails.
const PlaceholderName = "Unknown"

// Source resolves an identity to a profile summary. It always succeeds.
type Source interface {
	Lookup(ctx context.Context, id uuid.UUID) protocol.User
}

// Fetcher is the fallible backend behind a Source.
type Fetcher interface {
	Fetch(ctx context.Context, id uuid.UUID) (protocol.User, error)
}

// HTTPFetcher reads profiles from the metadata service: GET <endpoint>/<id>.
type HTTPFetcher struct {
	client   *http.Client
	endpoint string
	token    string
}

func NewHTTPFetcher(endpoint, token string) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: 5 * time.Second},
		endpoint: endpoint,
		token:    token,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, id uuid.UUID) (protocol.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"/"+id.String(), nil)
	if err != nil {
		return protocol.User{}, err
	}
	req.Header.Set("Token", f.token)

	resp, err := f.client.Do(req)
	if err != nil {
		return protocol.User{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return protocol.User{}, fmt.Errorf("profile fetch: status %d", resp.StatusCode)
	}

	var u protocol.User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return protocol.User{}, fmt.Errorf("profile fetch: %w", err)
	}
	return u, nil
}

// Cache is an LRU-backed Source over a Fetcher.
type Cache struct {
	fetcher Fetcher
	cache   *lru.Cache[uuid.UUID, protocol.User]
	log     *zap.Logger
}

func NewCache(fetcher Fetcher, size int, log *zap.Logger) *Cache {
	if size < 1 {
		size = 1
	}
	c, _ := lru.New[uuid.UUID, protocol.User](size)
	return &Cache{fetcher: fetcher, cache: c, log: log}
}

func (c *Cache) Lookup(ctx context.Context, id uuid.UUID) protocol.User {
	if u, ok := c.cache.Get(id); ok {
		return u
	}
	u, err := c.fetcher.Fetch(ctx, id)
	if err != nil {
		c.log.Debug("profile fetch failed, using placeholder",
			zap.String("id", id.String()), zap.Error(err))
		return protocol.User{ID: id.String(), Name: PlaceholderName}
	}
	c.cache.Add(id, u)
	return u
}
