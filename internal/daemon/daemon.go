// Package daemon runs the background control loops: one scheduler loop per
// enabled project, plus periodic review and timeout sweeps.
package daemon

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"autoboard/internal/domain"
	"autoboard/internal/engine"
	"autoboard/internal/repo"
)

type Daemon struct {
	Engine engine.Engine
	Logger *log.Logger

	// PollInterval paces the reconciler that starts scheduler loops for
	// newly enabled projects.
	PollInterval time.Duration
	// SweepInterval paces the review and timeout sweeps.
	SweepInterval time.Duration
	// StageTimeout is the stalled-stage threshold applied by the timeout
	// sweep.
	StageTimeout time.Duration

	mu      sync.Mutex
	running map[string]bool
}

// Run blocks until ctx is cancelled, supervising all loops. Loop errors are
// logged and absorbed; only context cancellation stops the daemon.
func (d *Daemon) Run(ctx context.Context) error {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.PollInterval <= 0 {
		d.PollInterval = 10 * time.Second
	}
	if d.SweepInterval <= 0 {
		d.SweepInterval = 30 * time.Second
	}
	if d.StageTimeout <= 0 {
		d.StageTimeout = 20 * time.Minute
	}
	d.running = map[string]bool{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.reconcileLoop(ctx, g) })
	g.Go(func() error { return d.reviewLoop(ctx) })
	g.Go(func() error { return d.timeoutLoop(ctx) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// reconcileLoop keeps exactly one scheduler loop alive per enabled project.
// A loop exits on its own when its project is disabled or deleted; the
// reconciler restarts it if the project comes back.
func (d *Daemon) reconcileLoop(ctx context.Context, g *errgroup.Group) error {
	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()
	for {
		enabled, err := d.Engine.Repo.ListEnabledAgentSettings(ctx)
		if err != nil {
			d.Logger.Printf("daemon: list agent settings: %v", err)
		}
		for _, settings := range enabled {
			d.startSchedulerLoop(ctx, g, settings)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Daemon) startSchedulerLoop(ctx context.Context, g *errgroup.Group, settings domain.AgentSettings) {
	d.mu.Lock()
	if d.running[settings.ProjectID] {
		d.mu.Unlock()
		return
	}
	d.running[settings.ProjectID] = true
	d.mu.Unlock()

	projectID := settings.ProjectID
	interval := time.Duration(settings.IntervalSeconds) * time.Second
	g.Go(func() error {
		defer func() {
			d.mu.Lock()
			delete(d.running, projectID)
			d.mu.Unlock()
		}()
		return d.schedulerLoop(ctx, projectID, interval)
	})
}

// schedulerLoop ticks one project until cancelled or disabled. Settings are
// re-read at every tick so a disable takes effect by the next tick, and an
// interval change retunes the ticker.
func (d *Daemon) schedulerLoop(ctx context.Context, projectID string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		settings, err := d.Engine.Repo.GetAgentSettings(ctx, projectID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				d.Logger.Printf("daemon: project %s settings gone; stopping scheduler loop", projectID)
				return nil
			}
			d.Logger.Printf("daemon: read agent settings for %s: %v", projectID, err)
			continue
		}
		if !settings.Enabled {
			d.Logger.Printf("daemon: project %s disabled; stopping scheduler loop", projectID)
			return nil
		}
		if next := time.Duration(settings.IntervalSeconds) * time.Second; next != interval {
			interval = next
			ticker.Reset(interval)
		}
		result, err := d.Engine.Tick(ctx, projectID)
		if err != nil {
			d.Logger.Printf("daemon: tick %s: %v", projectID, err)
			continue
		}
		if result.Action == domain.AgentSelected && result.TaskID != nil {
			d.Logger.Printf("daemon: project %s selected task %s", projectID, *result.TaskID)
		}
	}
}

func (d *Daemon) reviewLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		enabled, err := d.Engine.Repo.ListEnabledReviewSettings(ctx)
		if err != nil {
			d.Logger.Printf("daemon: list review settings: %v", err)
			continue
		}
		for _, settings := range enabled {
			if err := d.Engine.SweepReviews(ctx, settings.ProjectID); err != nil {
				d.Logger.Printf("daemon: review sweep %s: %v", settings.ProjectID, err)
			}
		}
	}
}

func (d *Daemon) timeoutLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		projects, err := d.Engine.Repo.ListProjects(ctx)
		if err != nil {
			d.Logger.Printf("daemon: list projects: %v", err)
			continue
		}
		for _, p := range projects {
			stalled, err := d.Engine.SweepTimeouts(ctx, p.ID, d.StageTimeout)
			if err != nil {
				d.Logger.Printf("daemon: timeout sweep %s: %v", p.ID, err)
				continue
			}
			for _, t := range stalled {
				d.Logger.Printf("daemon: cancelled stalled task %s in project %s", t.ID, p.ID)
			}
		}
	}
}
