package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/battlefield/internal/config"
	"github.com/zeusync/battlefield/internal/core/battlefield"
	"github.com/zeusync/battlefield/internal/core/camera"
	"github.com/zeusync/battlefield/internal/core/models"
	"github.com/zeusync/battlefield/internal/core/observability/log"
	"github.com/zeusync/battlefield/internal/core/scene"
	"github.com/zeusync/battlefield/internal/server"
)

// App owns one battlefield and drives it at the configured tick rate.
type App struct {
	Config     *config.Config
	Logger     log.Log
	Graph      *scene.Graph
	Controller *battlefield.Controller
	Camera     *camera.Layout
	Feed       *server.Feed
	Deliveries *DeliveryLog
}

// Seed creates the scenario nodes and enqueues them for the first tick.
// The returned map is keyed by entity name; unnamed entities are left out.
func (a *App) Seed() map[string]models.EntityID {
	seeded := make(map[string]models.EntityID, len(a.Config.Scenario.Entities))
	for _, e := range a.Config.Scenario.Entities {
		attrs := scene.Attrs{}
		if e.Name != "" {
			attrs[scene.AttrName] = e.Name
		}
		if e.Overlay {
			attrs[scene.AttrBounds] = scene.Rect{X: e.Pose.X, Y: e.Pose.Y, Width: e.Size.Width, Height: e.Size.Height}
		} else {
			attrs[scene.AttrPhysicalShape] = e.Shape()
		}

		id := a.Graph.Create(attrs)
		a.Controller.AddEntity(e.Layer, id, e.Pose)
		if !e.Overlay && (e.Velocity.X != 0 || e.Velocity.Y != 0) {
			a.Controller.SetEntityVelocity(id, e.Velocity)
		}
		if e.Name != "" {
			seeded[e.Name] = id
		}
	}
	a.Logger.Info("Scenario seeded", log.Int("entities", len(a.Config.Scenario.Entities)))
	return seeded
}

// Tick runs one update, lays the camera out and broadcasts the report.
// Rejected commands are carried by the report and do not fail the tick.
func (a *App) Tick() (battlefield.Report, camera.Frame, error) {
	report, err := a.Controller.Update()
	if errors.Is(err, battlefield.ErrReentrantUpdate) {
		return report, camera.Frame{}, err
	}

	if _, err = a.Camera.Measure(); err != nil {
		return report, camera.Frame{}, fmt.Errorf("measure: %w", err)
	}
	frame, err := a.Camera.Arrange()
	if err != nil {
		return report, frame, fmt.Errorf("arrange: %w", err)
	}

	if a.Config.Feed.Enabled {
		if err = a.Feed.Broadcast(report); err != nil && !errors.Is(err, server.ErrServerClosed) {
			a.Logger.Warn("Broadcast failed", log.Uint64("tick", report.Tick), log.Error(err))
		}
	}
	return report, frame, nil
}

// Run ticks until ctx is done, serving the feed alongside when enabled.
func (a *App) Run(ctx context.Context) error {
	events := a.Controller.Bus()
	events.AddObserver(a.Deliveries)
	defer events.RemoveObserver(a.Deliveries)

	group, ctx := errgroup.WithContext(ctx)

	if a.Config.Feed.Enabled {
		group.Go(func() error {
			return a.Feed.ListenAndServe(ctx, a.Config.Feed.Addr, a.Config.Feed.Path)
		})
	}
	group.Go(func() error {
		return a.loop(ctx)
	})

	return group.Wait()
}

func (a *App) loop(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / a.Config.Physics.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.Logger.Info("Battlefield running", log.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			m := a.Controller.Bus().GetMetrics()
			a.Logger.Info("Battlefield stopped",
				log.Uint64("ticks", a.Controller.Tick()),
				log.Uint64("events", m.Published),
				log.Uint64("handler_errors", m.Errors),
				log.Uint64("slow_deliveries", a.Deliveries.SlowDeliveries()),
			)
			return nil
		case <-ticker.C:
			if _, _, err := a.Tick(); err != nil {
				return err
			}
		}
	}
}
