package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/mastodon/mastodon-ios-sub005/internal/config"
	"github.com/mastodon/mastodon-ios-sub005/internal/engine"
	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
	"github.com/mastodon/mastodon-ios-sub005/internal/gateway"
	"github.com/mastodon/mastodon-ios-sub005/internal/gateway/rss"
	"github.com/mastodon/mastodon-ios-sub005/internal/pagination"
	"github.com/mastodon/mastodon-ios-sub005/internal/store"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	DB          string
	Once        bool
	OnceTimeout time.Duration
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync <feeds.cue>",
		Short: "Mirror feeds into the local store",
		Long: `Open one controller per feed definition over a shared SQLite store,
refresh every feed and keep refreshing on each feed's cron schedule until
interrupted.

rss feeds are fetched over HTTP. timeline feeds use an in-process
simulated timeline and never touch the network.

Exit codes:
  0 - Sync ran (with --once: every feed settled without failure)
  1 - Feed definitions invalid, or with --once a feed failed
  2 - Command error (database not writable, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSync(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "database path (default $FEEDSYNC_DB or feedsync.db)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "exit after the first refresh of every feed settles")
	cmd.Flags().DurationVar(&opts.OnceTimeout, "once-timeout", 2*time.Minute, "upper bound on --once")

	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// syncedFeed is one running controller and its definition.
type syncedFeed struct {
	def  config.FeedDef
	ctrl *engine.Controller
}

func runSync(ctx context.Context, opts *SyncOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger()

	defs, err := config.LoadFeeds(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	dbPath := opts.dbPath(opts.DB)
	st, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()
	formatter.VerboseLog("store %s, %d feed(s)", dbPath, len(defs))

	timeout := opts.Env.FetchTimeout
	if timeout <= 0 {
		timeout = rss.DefaultTimeout
	}
	rt := newRouter(defs, timeout, time.Now())
	eng := engine.New(st, rt, engine.WithLogger(logger))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := &lockedFormatter{f: formatter}
	var printers sync.WaitGroup
	feeds := make([]syncedFeed, len(defs))
	for i, def := range defs {
		ctrl := eng.Open(def.Params())
		events, _ := ctrl.Subscribe()
		printers.Add(1)
		go func() {
			defer printers.Done()
			for ev := range events {
				out.event(def.Name, ev)
			}
		}()
		go ctrl.Run(runCtx)
		feeds[i] = syncedFeed{def: def, ctrl: ctrl}
	}
	shutdown := func() {
		for _, f := range feeds {
			f.ctrl.Close()
			<-f.ctrl.Done()
		}
		printers.Wait()
	}

	for _, f := range feeds {
		f.ctrl.Refresh()
	}

	if opts.Once {
		failed := settleOnce(ctx, feeds, opts.OnceTimeout, logger)
		shutdown()
		if len(failed) > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("%d feed(s) failed: %v", len(failed), failed))
		}
		return nil
	}

	scheduler := cron.New()
	for _, f := range feeds {
		ctrl, name := f.ctrl, f.def.Name
		if _, err := scheduler.AddFunc(f.def.Refresh, func() {
			if !ctrl.Refresh() {
				logger.Debug("scheduled refresh rejected", "feed", name, "state", ctrl.State().String())
			}
		}); err != nil {
			shutdown()
			return WrapExitError(ExitFailure, fmt.Sprintf("invalid schedule for %s", name), err)
		}
		if f.def.Publish == "" {
			continue
		}
		if _, err := scheduler.AddFunc(f.def.Publish, func() {
			if id, ok := rt.publish(name, time.Now()); ok {
				logger.Debug("simulated post published", "feed", name, "id", id)
			}
		}); err != nil {
			shutdown()
			return WrapExitError(ExitFailure, fmt.Sprintf("invalid publish schedule for %s", name), err)
		}
	}
	scheduler.Start()
	logger.Info("sync running", "feeds", len(feeds))

	<-ctx.Done()
	<-scheduler.Stop().Done()
	shutdown()
	logger.Info("sync stopped")
	return nil
}

// settleOnce waits for every feed's first refresh and returns the names of
// the feeds that ended in Fail.
func settleOnce(ctx context.Context, feeds []syncedFeed, timeout time.Duration, logger *slog.Logger) []string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var failed []string
	for _, f := range feeds {
		if err := f.ctrl.Drain(ctx); err != nil {
			logger.Warn("feed did not settle", "feed", f.def.Name, "error", err)
			failed = append(failed, f.def.Name)
			continue
		}
		if f.ctrl.State().Phase == pagination.PhaseFail {
			failed = append(failed, f.def.Name)
		}
	}
	return failed
}

// lockedFormatter serializes event output from the per-feed printers.
type lockedFormatter struct {
	mu sync.Mutex
	f  *OutputFormatter
}

func (l *lockedFormatter) event(name string, ev engine.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.f.Event(name, ev)
}

// router sends each call to the gateway of the feed it targets. rss feeds
// share one HTTP gateway; each timeline feed gets its own simulated remote,
// filled from the definition's seed and grown by publish.
type router struct {
	routes    map[string]gateway.Gateway
	simulated map[string]*simulatedFeed // by feed name
	fallback  gateway.Gateway
}

type simulatedFeed struct {
	domain    string
	name      string
	timeline  *gateway.Timeline
	published atomic.Int64
}

// newRouter builds the routes for defs. Seeded posts are dated a minute
// apart, the newest at now.
func newRouter(defs []config.FeedDef, timeout time.Duration, now time.Time) *router {
	r := &router{
		routes:    make(map[string]gateway.Gateway),
		simulated: make(map[string]*simulatedFeed),
		fallback:  rss.New(rss.WithTimeout(timeout)),
	}
	for _, d := range defs {
		if d.Kind != config.KindTimeline {
			continue
		}
		seed := make([]feed.RawEntity, len(d.Seed))
		for i, id := range d.Seed {
			seed[i] = simulatedPost(d.Domain, id, now.Add(-time.Duration(i)*time.Minute))
		}
		sim := &simulatedFeed{domain: d.Domain, name: d.Name, timeline: gateway.NewTimeline(d.PageSize, seed...)}
		r.simulated[d.Name] = sim
		r.routes[d.Params().String()] = sim.timeline
	}
	return r
}

// publish puts one new post on top of the named simulated feed and returns
// its id. ok is false for feeds that are not simulated.
func (r *router) publish(name string, now time.Time) (id string, ok bool) {
	sim, ok := r.simulated[name]
	if !ok {
		return "", false
	}
	id = fmt.Sprintf("%s-pub-%d", sim.name, sim.published.Add(1))
	sim.timeline.Publish(simulatedPost(sim.domain, id, now))
	return id, true
}

func simulatedPost(domain, id string, created time.Time) feed.RawEntity {
	return feed.RawEntity{
		Ref:       feed.NewRef(domain, id),
		Kind:      feed.KindPost,
		CreatedAt: created.UTC(),
		Payload:   feed.Payload{"text": "simulated post " + id},
	}
}

func (r *router) route(p feed.Params) gateway.Gateway {
	if gw, ok := r.routes[p.String()]; ok {
		return gw
	}
	return r.fallback
}

func (r *router) FetchNewest(ctx context.Context, p feed.Params) (feed.Page, error) {
	return r.route(p).FetchNewest(ctx, p)
}

func (r *router) FetchOlder(ctx context.Context, p feed.Params, cursor string) (feed.Page, error) {
	return r.route(p).FetchOlder(ctx, p, cursor)
}

func (r *router) FetchBetween(ctx context.Context, p feed.Params, newerThan, olderThan string) (feed.Page, error) {
	return r.route(p).FetchBetween(ctx, p, newerThan, olderThan)
}
