package syncer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mpaulsen/keepup/internal/graph"
	"github.com/mpaulsen/keepup/internal/model"
)

// MasterClient is the single provider call the resolver needs.
type MasterClient interface {
	SeriesMaster(ctx context.Context, masterID string) (*graph.Master, error)
}

// MasterCache memoizes series-master lookups for the life of the process.
// It is owned by whoever constructs the resolver, never a package global.
// Unbounded on purpose: the event horizon bounds the number of distinct
// series.
type MasterCache struct {
	mu      sync.Mutex
	entries map[string]graph.Master
}

func NewMasterCache() *MasterCache {
	return &MasterCache{entries: make(map[string]graph.Master)}
}

func (c *MasterCache) get(id string) (graph.Master, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[id]
	return m, ok
}

func (c *MasterCache) put(id string, m graph.Master) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = m
}

// Len reports the number of cached masters.
func (c *MasterCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Resolver applies series-master inheritance to recurring instances that
// carry no subject or attendees of their own. Resolution happens at fold
// and read time; stored events keep the fields the provider sent.
type Resolver struct {
	client MasterClient
	cache  *MasterCache
	logger *slog.Logger
}

func NewResolver(client MasterClient, cache *MasterCache, logger *slog.Logger) *Resolver {
	return &Resolver{client: client, cache: cache, logger: logger}
}

// Resolve returns the event with inherited subject and attendees filled
// in where the instance lacks them. A failed master lookup degrades to
// the event as stored; the failure is cached so it is not retried on
// every read.
func (r *Resolver) Resolve(ctx context.Context, ev model.Event) model.Event {
	if ev.SeriesMasterID == "" {
		return ev
	}
	if ev.Subject != "" && len(ev.Attendees) > 0 {
		return ev
	}

	master, ok := r.cache.get(ev.SeriesMasterID)
	if !ok {
		m, err := r.client.SeriesMaster(ctx, ev.SeriesMasterID)
		if err != nil {
			r.logger.Warn("series master lookup failed", "master_id", ev.SeriesMasterID, "error", err)
			m = &graph.Master{}
		}
		master = *m
		r.cache.put(ev.SeriesMasterID, master)
	}

	if ev.Subject == "" {
		ev.Subject = master.Subject
	}
	if len(ev.Attendees) == 0 {
		ev.Attendees = master.Attendees
	}
	return ev
}
