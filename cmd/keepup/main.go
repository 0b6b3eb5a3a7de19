package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/mpaulsen/keepup/internal/auth"
	"github.com/mpaulsen/keepup/internal/config"
	"github.com/mpaulsen/keepup/internal/database"
	"github.com/mpaulsen/keepup/internal/graph"
	"github.com/mpaulsen/keepup/internal/ledger"
	"github.com/mpaulsen/keepup/internal/logging"
	"github.com/mpaulsen/keepup/internal/schedule"
	"github.com/mpaulsen/keepup/internal/server"
	"github.com/mpaulsen/keepup/internal/store"
	"github.com/mpaulsen/keepup/internal/summary"
	"github.com/mpaulsen/keepup/internal/syncer"
	"github.com/mpaulsen/keepup/internal/timeutil"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	cliApp := &cli.App{
		Name:  "keepup",
		Usage: "Mirror a Microsoft 365 calendar locally and keep up with the people in it.",
		Commands: []*cli.Command{
			syncCommand(),
			scheduleCommand(),
			contactsCommand(),
			staleCommand(),
			openingsCommand(),
			ignoreCommand(),
			serveCommand(),
			sendSummaryCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("keepup failed", "error", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs. Commands build it lazily so
// read-only commands never touch the network.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	norm      *timeutil.Normalizer
	events    *store.EventStore
	attendees *store.AttendeeStore
	cursors   *store.CursorStore
	masters   *syncer.MasterCache
	view      *schedule.View
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	norm, err := timeutil.NewNormalizer(cfg.Timezone)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		norm:      norm,
		events:    store.NewEventStore(db),
		attendees: store.NewAttendeeStore(db),
		cursors:   store.NewCursorStore(db),
		masters:   syncer.NewMasterCache(),
	}
	a.view = schedule.New(a.events, norm, nil)
	return a, nil
}

func (a *app) Close() {
	a.db.Close()
}

// graphClient wires the device-flow token source into the provider
// client. Only commands that reach the provider call this.
func (a *app) graphClient() (*graph.Client, error) {
	if a.cfg.ClientID == "" {
		return nil, fmt.Errorf("KEEPUP_CLIENT_ID is required for provider access")
	}
	tokens := auth.NewDeviceFlow(a.cfg.ClientID, a.cfg.Tenant, a.cfg.TokenCache, a.logger.With("component", "auth"))
	return graph.NewClient(tokens, a.cfg.ProviderZone), nil
}

// attachResolver rebuilds the view so recurring instances inherit their
// series-master subject and attendees at render time. The master cache
// is shared with the sync engine, so a summary rendered right after a
// sync pass reuses its lookups.
func (a *app) attachResolver(client *graph.Client) {
	resolver := syncer.NewResolver(client, a.masters, a.logger.With("component", "resolver"))
	a.view = schedule.New(a.events, a.norm, resolver)
}

// attachResolverIfConfigured upgrades read-only commands when provider
// credentials are present. Without them the view renders stored fields
// only.
func (a *app) attachResolverIfConfigured() {
	client, err := a.graphClient()
	if err != nil {
		a.logger.Debug("rendering stored fields only", "reason", err)
		return
	}
	a.attachResolver(client)
}

func (a *app) engine(client *graph.Client) *syncer.Engine {
	resolver := syncer.NewResolver(client, a.masters, a.logger.With("component", "resolver"))
	ldg := ledger.New(a.attendees, a.cfg.OwnerEmail, a.logger.With("component", "ledger"))
	return syncer.NewEngine(client, a.events, a.cursors, ldg, resolver, a.norm, syncer.Config{
		FutureWindowDays: a.cfg.FutureWindowDays,
		IgnoreOrganizer:  a.cfg.IgnoreOrganizer,
		IgnorePhrase:     a.cfg.IgnorePhrase,
	}, a.logger.With("component", "sync"))
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Pull calendar changes from the provider into the local mirror.",
		Action: func(c *cli.Context) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := a.graphClient()
			if err != nil {
				return err
			}
			stats, err := a.engine(client).Run(c.Context)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			a.logger.Info("sync complete",
				"pages", stats.Pages,
				"processed", stats.Processed,
				"ignored", stats.Ignored,
				"skipped", stats.Skipped)
			return nil
		},
	}
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Print the schedule for a day.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "Day to show (YYYY-MM-DD). Defaults to today."},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			a.attachResolverIfConfigured()

			day := a.norm.LocalDate(time.Now())
			if raw := c.String("date"); raw != "" {
				day, err = time.ParseInLocation("2006-01-02", raw, a.norm.Location())
				if err != nil {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", raw)
				}
			}

			events, err := a.view.EventsForDay(c.Context, day)
			if err != nil {
				return err
			}
			fmt.Printf("Schedule for %s\n\n", day.Format("Monday, January 2, 2006"))
			if len(events) == 0 {
				fmt.Println("No meetings.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tLOCATION\tSUBJECT")
			for _, ev := range events {
				timeRange := "All Day"
				if !ev.AllDay && a.norm.SameLocalDay(ev.Start, ev.End) {
					timeRange = summary.FormatClock(a.norm.Localize(ev.Start)) + " - " + summary.FormatClock(a.norm.Localize(ev.End))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", timeRange, ev.Location, summary.SubjectOrPlaceholder(ev.Subject))
			}
			w.Flush()

			groups := schedule.GroupConflicts(events, a.norm)
			if len(groups) > 0 {
				fmt.Println("\nConflicts:")
				for _, g := range groups {
					fmt.Printf("  %s - %s:\n", summary.FormatClock(g.Start), summary.FormatClock(g.End))
					for _, ev := range g.Events {
						fmt.Printf("    %s\n", summary.SubjectOrPlaceholder(ev.Subject))
					}
				}
			}
			return nil
		},
	}
}

func contactsCommand() *cli.Command {
	return &cli.Command{
		Name:  "contacts",
		Usage: "List everyone you have met with, most frequent first.",
		Action: func(c *cli.Context) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.attendees.All()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEMAIL\tLAST MEETING\tNEXT MEETING\tTIMES MET")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					rec.DisplayName, rec.Email,
					stamp(a.norm, rec.LastMeeting), stamp(a.norm, rec.NextMeeting), rec.TimesMet)
			}
			return w.Flush()
		},
	}
}

func staleCommand() *cli.Command {
	return &cli.Command{
		Name:  "stale",
		Usage: "List contacts you have not met with in the longest time.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 0, Usage: "Number of contacts to show. Defaults to KEEPUP_STALE_LIMIT."},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			limit := c.Int("limit")
			if limit <= 0 {
				limit = a.cfg.StaleLimit
			}
			records, err := a.attendees.RankStale(true, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEMAIL\tLAST MEETING")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\n", rec.DisplayName, rec.Email, stamp(a.norm, rec.LastMeeting))
			}
			return w.Flush()
		},
	}
}

func openingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "openings",
		Usage: "List weekdays with a free 4-6 PM window.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Value: 14, Usage: "How many days ahead to scan, in addition to today."},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			open, err := a.view.OpenWindows(16*time.Hour, 18*time.Hour, schedule.Weekdays, c.Int("days"), time.Now())
			if err != nil {
				return err
			}
			if len(open) == 0 {
				fmt.Println("No open 4-6 PM windows in range.")
				return nil
			}
			for _, day := range open {
				fmt.Println(day.Format("Monday, January 2, 2006"))
			}
			return nil
		},
	}
}

func ignoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "ignore",
		Usage:     "Drop a contact from stale reports.",
		ArgsUsage: "<email>",
		Action: func(c *cli.Context) error {
			email := c.Args().First()
			if email == "" {
				return fmt.Errorf("usage: keepup ignore <email>")
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.attendees.MarkOkToIgnore(email); err != nil {
				return err
			}
			fmt.Printf("%s will no longer appear in stale reports.\n", email)
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the schedule web page.",
		Action: func(c *cli.Context) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			a.attachResolverIfConfigured()

			srv := server.New(a.view, a.attendees, a.norm, a.cfg.StaleLimit, a.logger)
			addr := ":" + a.cfg.Port
			a.logger.Info("serving schedule", "addr", addr)
			return http.ListenAndServe(addr, srv.Router())
		},
	}
}

func sendSummaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "send-summary",
		Usage: "Sync, then email today's schedule summary.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-sync", Usage: "Skip the sync pass and summarize the current mirror."},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.SummaryTo == "" {
				return fmt.Errorf("KEEPUP_SUMMARY_TO is required for send-summary")
			}
			client, err := a.graphClient()
			if err != nil {
				return err
			}
			a.attachResolver(client)

			if !c.Bool("no-sync") {
				if _, err := a.engine(client).Run(c.Context); err != nil {
					return fmt.Errorf("sync before summary: %w", err)
				}
			}

			now := time.Now()
			builder := summary.NewBuilder(a.view, a.attendees, a.norm, 5, a.cfg.StaleLimit)
			html, err := builder.BuildDaily(c.Context, now)
			if err != nil {
				return err
			}

			subject := "Daily Summary for " + a.norm.Localize(now).Format("Monday, January 2, 2006")
			if err := client.SendMail(c.Context, subject, html, a.cfg.SummaryTo); err != nil {
				return err
			}
			a.logger.Info("summary sent", "to", a.cfg.SummaryTo)
			return nil
		},
	}
}

func stamp(norm *timeutil.Normalizer, t *time.Time) string {
	if t == nil {
		return ""
	}
	return norm.Localize(*t).Format("01/02/2006 3:04 PM")
}
