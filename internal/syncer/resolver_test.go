package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/mpaulsen/keepup/internal/graph"
	"github.com/mpaulsen/keepup/internal/model"
)

type fakeMasterClient struct {
	masters map[string]*graph.Master
	calls   int
}

func (f *fakeMasterClient) SeriesMaster(ctx context.Context, id string) (*graph.Master, error) {
	f.calls++
	m, ok := f.masters[id]
	if !ok {
		return nil, fmt.Errorf("master %s not found", id)
	}
	return m, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestResolveInheritsAndCaches(t *testing.T) {
	client := &fakeMasterClient{masters: map[string]*graph.Master{
		"master-1": {
			Subject:   "Weekly 1:1",
			Attendees: []model.Attendee{{Email: "alice@example.com", DisplayName: "Alice"}},
		},
	}}
	r := NewResolver(client, NewMasterCache(), quietLogger())

	ev := model.Event{ID: "inst-1", SeriesMasterID: "master-1"}
	got := r.Resolve(context.Background(), ev)
	if got.Subject != "Weekly 1:1" {
		t.Errorf("subject = %q, want inherited", got.Subject)
	}
	if len(got.Attendees) != 1 || got.Attendees[0].Email != "alice@example.com" {
		t.Errorf("attendees = %+v, want inherited", got.Attendees)
	}

	// Second instance of the same series hits the cache, not the client.
	r.Resolve(context.Background(), model.Event{ID: "inst-2", SeriesMasterID: "master-1"})
	if client.calls != 1 {
		t.Errorf("client calls = %d, want 1", client.calls)
	}
}

func TestResolveKeepsOwnFields(t *testing.T) {
	client := &fakeMasterClient{masters: map[string]*graph.Master{
		"master-1": {Subject: "Series Subject"},
	}}
	r := NewResolver(client, NewMasterCache(), quietLogger())

	ev := model.Event{
		ID:             "inst-1",
		SeriesMasterID: "master-1",
		Subject:        "Own Subject",
		Attendees:      []model.Attendee{{Email: "bob@example.com"}},
	}
	got := r.Resolve(context.Background(), ev)
	if got.Subject != "Own Subject" {
		t.Errorf("subject = %q, instance fields must win", got.Subject)
	}
	if client.calls != 0 {
		t.Errorf("client calls = %d, complete instances must not trigger a lookup", client.calls)
	}
}

func TestResolveNoSeriesMaster(t *testing.T) {
	client := &fakeMasterClient{}
	r := NewResolver(client, NewMasterCache(), quietLogger())

	ev := model.Event{ID: "solo"}
	if got := r.Resolve(context.Background(), ev); got.Subject != "" || client.calls != 0 {
		t.Errorf("standalone event must pass through untouched, got %+v", got)
	}
}

func TestResolveFailedLookupCachedNotRetried(t *testing.T) {
	client := &fakeMasterClient{masters: map[string]*graph.Master{}}
	cache := NewMasterCache()
	r := NewResolver(client, cache, quietLogger())

	ev := model.Event{ID: "inst-1", SeriesMasterID: "gone"}
	got := r.Resolve(context.Background(), ev)
	if got.Subject != "" {
		t.Errorf("subject = %q, want empty after failed lookup", got.Subject)
	}
	if cache.Len() != 1 {
		t.Errorf("cache len = %d, failed lookups must be cached", cache.Len())
	}

	r.Resolve(context.Background(), ev)
	if client.calls != 1 {
		t.Errorf("client calls = %d, failed lookups must not be retried", client.calls)
	}
}
