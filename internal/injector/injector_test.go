package injector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/battlefield/internal/config"
	"github.com/zeusync/battlefield/internal/core/battlefield"
	"github.com/zeusync/battlefield/internal/core/models"
	"github.com/zeusync/battlefield/internal/core/scene"
	"github.com/zeusync/battlefield/internal/core/systems/physics"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Scenario.Entities = []config.EntityConfig{
		{Name: "scout", Layer: "ground", Pose: physics.NewIsometry(500, 500, 0), Radius: 2, Velocity: physics.Vec2{X: 60}},
		{Name: "hud", Layer: "ground", Pose: physics.NewIsometry(5, 5, 0), Overlay: true, Size: config.ViewportSize{Width: 50, Height: 10}},
	}
	return cfg
}

func TestInitializeApp(t *testing.T) {
	a, err := InitializeApp(testConfig())
	require.NoError(t, err)

	layers := a.Controller.Layers().Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, "ground", layers[0].Name)

	parent, err := a.Graph.Parent(a.Controller.Node())
	require.NoError(t, err)
	assert.Equal(t, a.Graph.Root(), parent)
	assert.Equal(t, a.Controller.Node(), a.Camera.Node())
}

func TestSeedAndTick(t *testing.T) {
	a, err := InitializeApp(testConfig())
	require.NoError(t, err)

	seeded := a.Seed()
	require.Len(t, seeded, 2)
	scout, hud := seeded["scout"], seeded["hud"]

	report, frame, err := a.Tick()
	require.NoError(t, err)
	assert.True(t, report.Stepped)
	assert.Empty(t, report.Errors)
	assert.Equal(t, []models.EntityID{scout}, a.Controller.Entities())

	var moved []battlefield.EntityMoved
	for _, e := range report.Events {
		if m, ok := e.(battlefield.EntityMoved); ok {
			moved = append(moved, m)
		}
	}
	require.Len(t, moved, 1)
	assert.Equal(t, scout, moved[0].Entity)
	assert.InDelta(t, 501, moved[0].Pose.X, 1e-6)

	// camera centered on (500, 500) with an 800x600 viewport
	assert.Equal(t, scene.Rect{X: 100, Y: 200, Width: 800, Height: 600}, frame.View)
	assert.Contains(t, frame.Visible, scout)
	bounds, err := scene.Bounds(a.Graph, scout)
	require.NoError(t, err)
	assert.InDelta(t, 401, bounds.X, 1e-6)
	assert.InDelta(t, 300, bounds.Y, 1e-6)

	overlay, err := scene.Bounds(a.Graph, hud)
	require.NoError(t, err)
	assert.Equal(t, scene.Rect{X: 5, Y: 5, Width: 50, Height: 10}, overlay)
}

func TestRunStopsWithContext(t *testing.T) {
	cfg := testConfig()
	cfg.Physics.TickRate = 500
	a, err := InitializeApp(cfg)
	require.NoError(t, err)
	a.Seed()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Run(ctx))
	assert.Positive(t, a.Controller.Tick())
	assert.Positive(t, a.Controller.Bus().GetMetrics().Published, "deliveries are observed while running")
	assert.Zero(t, a.Deliveries.FailedDeliveries())
}
