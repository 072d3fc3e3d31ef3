package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"plannercolors/internal/aggregator"
	"plannercolors/internal/browser"
	"plannercolors/internal/config"
	"plannercolors/internal/intercept"
	"plannercolors/internal/palette"
	"plannercolors/internal/render"
)

var attachTarget string

// runCmd drives a live planner page
var runCmd = &cobra.Command{
	Use:   "run [url]",
	Short: "Open the planner in Chrome and keep its timeline colored",
	Long: `Launches Chrome (or attaches to browser.debugger_url), opens the plan and
routes its API calls through the interceptor. Once tasks, buckets, labels
and label associations have all been seen, the render loop starts and runs
until interrupted.

With --target, an already open tab is hijacked instead of opening a new one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlanner,
}

func init() {
	runCmd.Flags().StringVar(&attachTarget, "target", "", "Attach to an existing tab by DevTools target id")
}

// browserConfig maps the config file section onto the session manager's.
func browserConfig(c *config.Config) browser.Config {
	bc := browser.DefaultConfig()
	bc.DebuggerURL = c.Browser.DebuggerURL
	bc.Launch = c.Browser.Launch
	bc.Headless = c.Browser.Headless
	if c.Browser.ViewportWidth > 0 {
		bc.Viewport.Width = c.Browser.ViewportWidth
	}
	if c.Browser.ViewportHeight > 0 {
		bc.Viewport.Height = c.Browser.ViewportHeight
	}
	bc.NavigationTimeout = c.GetNavigationTimeout()
	bc.SessionStore = c.Browser.SessionStore
	return bc
}

// renderOptions maps the config file section onto the loop's.
func renderOptions(c *config.Config) render.Options {
	return render.Options{
		Interval:    c.GetRenderInterval(),
		MarkerClass: c.GetMarkerClass(),
		Debug:       c.Logging.DebugMode,
	}
}

func runPlanner(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	url := cfg.Planner.URL
	if len(args) > 0 {
		url = args[0]
	}

	ready := make(chan struct{})
	agg := aggregator.New(aggregator.WithReadyHook(func(s *aggregator.Snapshot) {
		c := s.Counts()
		logger.Info("Planner data loaded",
			zap.Int("tasks", c.Tasks),
			zap.Int("buckets", c.Buckets),
			zap.Int("labels", c.Labels),
			zap.Int("associations", c.Associations))
		close(ready)
	}))
	transport := intercept.NewTransport(http.DefaultTransport, agg)
	client := &http.Client{Transport: transport}

	mgr := browser.NewSessionManager(browserConfig(cfg))
	defer func() {
		if err := mgr.Shutdown(context.Background()); err != nil {
			logger.Warn("Browser shutdown", zap.Error(err))
		}
	}()

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	logger.Info("Browser connected", zap.String("control_url", mgr.ControlURL()))

	var session *browser.Session
	var err error
	if attachTarget != "" {
		session, err = mgr.Attach(ctx, attachTarget, client)
	} else {
		session, err = mgr.OpenPlanner(ctx, url, client)
	}
	if err != nil {
		return err
	}
	surface, err := mgr.Surface(session.ID)
	if err != nil {
		return err
	}
	logger.Info("Planner session open", zap.String("session", session.ID), zap.String("url", session.PlanURL))

	loop := render.New(agg, palette.NewAllocator(), surface, renderOptions(cfg))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-ready:
		case <-gctx.Done():
			logger.Info("Interrupted before planner data was complete", zap.String("seen", collectionCounts(agg.Snapshot())))
			return nil
		}
		loop.Start(gctx)
		<-loop.Done()
		return nil
	})
	g.Go(func() error {
		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-heartbeat.C:
				s := agg.Snapshot()
				logger.Debug("Status",
					zap.Bool("ready", s.Ready()),
					zap.Uint64("version", s.Version()),
					zap.Uint64("ticks", loop.Ticks()))
			}
		}
	})

	err = g.Wait()
	logger.Info("Stopped", zap.Uint64("ticks", loop.Ticks()))
	return err
}

// collectionCounts summarises what a snapshot holds.
func collectionCounts(s *aggregator.Snapshot) string {
	c := s.Counts()
	return fmt.Sprintf("tasks=%d buckets=%d labels=%d associations=%d", c.Tasks, c.Buckets, c.Labels, c.Associations)
}
