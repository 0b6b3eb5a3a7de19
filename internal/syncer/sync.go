package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mpaulsen/keepup/internal/graph"
	"github.com/mpaulsen/keepup/internal/ledger"
	"github.com/mpaulsen/keepup/internal/store"
	"github.com/mpaulsen/keepup/internal/timeutil"
)

// ErrSyncInProgress is returned when a pass is started while another is
// still running. Passes never overlap; the caller retries later.
var ErrSyncInProgress = errors.New("sync already in progress")

const bootstrapLookbackDays = 365

// Config carries the sync policy knobs.
type Config struct {
	// FutureWindowDays bounds the forward edge of a bootstrap sync.
	FutureWindowDays int
	// IgnoreOrganizer and IgnorePhrase suppress events whose organizer
	// matches the address and whose subject contains the phrase, both
	// case-insensitive. Both must be set for the filter to apply.
	IgnoreOrganizer string
	IgnorePhrase    string
}

// Stats summarizes one sync pass.
type Stats struct {
	Pages     int
	Processed int
	Ignored   int
	Skipped   int
}

// Engine drives one-directional sync: provider pages in, event store and
// attendee ledger out. A pass either runs to completion and persists the
// provider's resume cursor, or aborts leaving the cursor untouched and
// partial upserts in place.
type Engine struct {
	client   *graph.Client
	events   *store.EventStore
	cursors  *store.CursorStore
	ledger   *ledger.Ledger
	resolver *Resolver
	norm     *timeutil.Normalizer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	running  atomic.Bool
}

type Option func(*Engine)

// WithClock fixes the engine's notion of now. Test harnesses use it to
// freeze the fold reference instant.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(client *graph.Client, events *store.EventStore, cursors *store.CursorStore,
	ldg *ledger.Ledger, resolver *Resolver, norm *timeutil.Normalizer,
	cfg Config, logger *slog.Logger, opts ...Option) *Engine {

	e := &Engine{
		client:   client,
		events:   events,
		cursors:  cursors,
		ledger:   ldg,
		resolver: resolver,
		norm:     norm,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one sync pass: bootstrap over the full historical window
// when no cursor exists, incremental from the stored cursor otherwise.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if !e.running.CompareAndSwap(false, true) {
		return stats, ErrSyncInProgress
	}
	defer e.running.Store(false)

	ref := e.now()

	pageURL, err := e.cursors.Load()
	if err != nil {
		return stats, fmt.Errorf("load cursor: %w", err)
	}
	if pageURL == "" {
		from := ref.AddDate(0, 0, -bootstrapLookbackDays)
		to := ref.AddDate(0, 0, e.cfg.FutureWindowDays)
		pageURL = e.client.BootstrapURL(from, to)
		e.logger.Info("no cursor stored, running full bootstrap sync",
			"from", from.Format(time.RFC3339), "to", to.Format(time.RFC3339))
	} else {
		e.logger.Info("resuming incremental sync from stored cursor")
	}

	for pageURL != "" {
		page, err := e.client.FetchPage(ctx, pageURL)
		if err != nil {
			// Abort without touching the cursor. Upserts already applied
			// stay; the next pass replays them safely.
			return stats, fmt.Errorf("fetch page: %w", err)
		}
		stats.Pages++

		for _, raw := range page.Events {
			if e.shouldIgnore(raw) {
				stats.Ignored++
				e.logger.Debug("ignoring suppressed event", "id", raw.ID, "subject", raw.Subject)
				continue
			}

			ev, err := graph.Adapt(raw, e.norm)
			if err != nil {
				// One bad payload never aborts the batch.
				stats.Skipped++
				e.logger.Warn("skipping malformed event", "error", err)
				continue
			}

			// Upsert before fold so the ledger never references an event
			// missing from the store.
			if err := e.events.Upsert(ev); err != nil {
				return stats, fmt.Errorf("upsert event %s: %w", ev.ID, err)
			}
			resolved := e.resolver.Resolve(ctx, ev)
			if err := e.ledger.Fold(resolved, ref); err != nil {
				return stats, fmt.Errorf("fold event %s: %w", ev.ID, err)
			}
			stats.Processed++
		}

		switch {
		case page.NextLink != "":
			pageURL = page.NextLink
		case page.DeltaLink != "":
			if err := e.cursors.Save(page.DeltaLink); err != nil {
				return stats, fmt.Errorf("save cursor: %w", err)
			}
			e.logger.Info("sync pass complete, cursor updated",
				"pages", stats.Pages, "processed", stats.Processed,
				"ignored", stats.Ignored, "skipped", stats.Skipped)
			pageURL = ""
		default:
			e.logger.Warn("stream ended without a delta link, cursor unchanged")
			pageURL = ""
		}
	}
	return stats, nil
}

func (e *Engine) shouldIgnore(raw graph.RawEvent) bool {
	if e.cfg.IgnoreOrganizer == "" || e.cfg.IgnorePhrase == "" {
		return false
	}
	organizer := strings.ToLower(strings.TrimSpace(raw.OrganizerEmail()))
	subject := strings.ToLower(raw.Subject)
	return organizer == strings.ToLower(e.cfg.IgnoreOrganizer) &&
		strings.Contains(subject, strings.ToLower(e.cfg.IgnorePhrase))
}
