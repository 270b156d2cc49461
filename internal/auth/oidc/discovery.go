package oidc

import (
	"context"
	"sync"

	"github.com/marcogenualdo/notes-gate/internal/config"
	"golang.org/x/sync/singleflight"
)

// Discoverer resolves the provider client once per process. Concurrent first
// calls share a single metadata fetch; later calls return the cached client.
type Discoverer struct {
	cfg config.OIDCConfig

	mu     sync.RWMutex
	client *Client

	group     singleflight.Group
	newClient func(ctx context.Context, cfg config.OIDCConfig) (*Client, error)
}

func NewDiscoverer(cfg config.OIDCConfig) *Discoverer {
	return &Discoverer{cfg: cfg, newClient: NewClient}
}

func (d *Discoverer) cached() *Client {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.client
}

// Discover returns the cached client or fetches provider metadata. Errors
// wrap auth.ErrDiscovery and are not cached, so a later call may retry.
func (d *Discoverer) Discover(ctx context.Context) (*Client, error) {
	if c := d.cached(); c != nil {
		return c, nil
	}

	result, err, _ := d.group.Do(d.cfg.Issuer, func() (any, error) {
		if c := d.cached(); c != nil {
			return c, nil
		}

		if d.cfg.DiscoveryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.cfg.DiscoveryTimeout)
			defer cancel()
		}

		c, err := d.newClient(ctx, d.cfg)
		if err != nil {
			return nil, err
		}

		d.mu.Lock()
		d.client = c
		d.mu.Unlock()

		return c, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*Client), nil
}
