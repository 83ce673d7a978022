package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/battlefield/internal/core/observability/log"
)

func newTestWorld(t *testing.T, mutate ...func(*Settings)) *World {
	t.Helper()
	settings := DefaultSettings()
	for _, m := range mutate {
		m(&settings)
	}
	return NewWorld(settings, log.NewNop())
}

func TestWorldAddEntityKeepsPose(t *testing.T) {
	w := newTestWorld(t)

	pose := NewIsometry(10, -4, 0.5)
	bh, ch, err := w.AddEntity(Ball{Radius: 5}, pose)
	require.NoError(t, err)
	assert.False(t, bh.IsZero())
	assert.False(t, ch.IsZero())
	assert.Equal(t, 1, w.BodyCount())
	assert.Equal(t, 1, w.ColliderCount())

	got, err := w.Pose(bh)
	require.NoError(t, err)
	assert.Equal(t, pose, got)
}

func TestWorldAddEntityRollsBackRejectedShape(t *testing.T) {
	w := newTestWorld(t)

	tests := []struct {
		name  string
		shape Shape
	}{
		{"zero radius", Ball{Radius: 0}},
		{"negative radius", Ball{Radius: -1}},
		{"nil shape", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bh, ch, err := w.AddEntity(tt.shape, Isometry{})
			require.ErrorIs(t, err, ErrShapeRejected)
			assert.True(t, bh.IsZero())
			assert.True(t, ch.IsZero())
			assert.Zero(t, w.BodyCount())
			assert.Zero(t, w.ColliderCount())
		})
	}
}

func TestWorldAddEntityRejectsNonFinitePose(t *testing.T) {
	w := newTestWorld(t)
	_, _, err := w.AddEntity(Ball{Radius: 1}, NewIsometry(nan(), 0, 0))
	require.ErrorIs(t, err, ErrInvalidPose)
	assert.Zero(t, w.BodyCount())
}

func TestWorldStepLeavesRestingBodyInPlace(t *testing.T) {
	w := newTestWorld(t)
	pose := NewIsometry(42, 17, 0)
	bh, _, err := w.AddEntity(Ball{Radius: 2}, pose)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		assert.Empty(t, w.Step())
	}
	got, err := w.Pose(bh)
	require.NoError(t, err)
	assert.Equal(t, pose, got)
	assert.Equal(t, uint64(10), w.Steps())
}

func TestWorldStepClampsNonFiniteBody(t *testing.T) {
	w := newTestWorld(t, func(s *Settings) { s.Gravity = Vec2{X: math.MaxFloat64} })
	bh, _, err := w.AddEntity(Ball{Radius: 1}, NewIsometry(1, 2, 0))
	require.NoError(t, err)
	require.NoError(t, w.SetVelocity(bh, Vec2{X: math.MaxFloat64}))

	for i := 0; i < 3; i++ {
		assert.NotPanics(t, func() { w.Step() })
	}

	pose, err := w.Pose(bh)
	require.NoError(t, err)
	assert.Equal(t, NewIsometry(1, 2, 0), pose)
	v, err := w.Velocity(bh)
	require.NoError(t, err)
	assert.Equal(t, Vec2{}, v)
	assert.Equal(t, uint64(3), w.Steps())
}

func TestWorldSetPoseTeleports(t *testing.T) {
	w := newTestWorld(t)
	bh, _, err := w.AddEntity(Ball{Radius: 1}, Isometry{})
	require.NoError(t, err)

	require.NoError(t, w.SetPose(bh, NewIsometry(3, 4, 1)))
	got, err := w.Pose(bh)
	require.NoError(t, err)
	assert.Equal(t, NewIsometry(3, 4, 1), got)

	require.ErrorIs(t, w.SetPose(bh, NewIsometry(0, inf(), 0)), ErrInvalidPose)
}

func TestWorldVelocityIntegrates(t *testing.T) {
	w := newTestWorld(t)
	bh, _, err := w.AddEntity(Ball{Radius: 1}, Isometry{})
	require.NoError(t, err)

	require.NoError(t, w.SetVelocity(bh, Vec2{X: 60}))
	w.Step()

	got, err := w.Pose(bh)
	require.NoError(t, err)
	assert.InDelta(t, 60*w.TimeStep(), got.X, 1e-9)
	assert.InDelta(t, 0, got.Y, 1e-9)

	v, err := w.Velocity(bh)
	require.NoError(t, err)
	assert.InDelta(t, 60, v.X, 1e-9)
}

func TestWorldRemoveEntity(t *testing.T) {
	w := newTestWorld(t)
	bh, ch, err := w.AddEntity(Ball{Radius: 1}, Isometry{})
	require.NoError(t, err)

	require.NoError(t, w.RemoveEntity(bh, ch))
	assert.Zero(t, w.BodyCount())
	assert.Zero(t, w.ColliderCount())

	_, err = w.Pose(bh)
	require.ErrorIs(t, err, ErrBodyNotFound)
	require.ErrorIs(t, w.RemoveEntity(bh, ch), ErrBodyNotFound)

	// the recycled slot must not answer to the old handle
	bh2, _, err := w.AddEntity(Ball{Radius: 1}, NewIsometry(1, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, bh.Index, bh2.Index)
	_, err = w.Pose(bh)
	require.ErrorIs(t, err, ErrBodyNotFound)
}

func TestWorldRemoveEntityMismatchKeepsBoth(t *testing.T) {
	w := newTestWorld(t)
	bh1, _, err := w.AddEntity(Ball{Radius: 1}, Isometry{})
	require.NoError(t, err)
	_, ch2, err := w.AddEntity(Ball{Radius: 1}, NewIsometry(50, 50, 0))
	require.NoError(t, err)

	require.ErrorIs(t, w.RemoveEntity(bh1, ch2), ErrHandleMismatch)
	assert.Equal(t, 2, w.BodyCount())
	assert.Equal(t, 2, w.ColliderCount())
}

func TestWorldContactEvents(t *testing.T) {
	w := newTestWorld(t)
	_, ch1, err := w.AddEntity(Ball{Radius: 5}, NewIsometry(0, 0, 0))
	require.NoError(t, err)
	bh2, ch2, err := w.AddEntity(Ball{Radius: 5}, NewIsometry(6, 0, 0))
	require.NoError(t, err)

	events := w.Step()
	require.Len(t, events, 1)
	assert.Equal(t, ContactStarted, events[0].Kind)
	assert.ElementsMatch(t, []ColliderHandle{ch1, ch2}, []ColliderHandle{events[0].A, events[0].B})
	assert.False(t, events[0].WithWall())

	require.NoError(t, w.SetPose(bh2, NewIsometry(100, 0, 0)))
	require.NoError(t, w.SetVelocity(bh2, Vec2{}))
	events = w.Step()
	require.Len(t, events, 1)
	assert.Equal(t, ContactEnded, events[0].Kind)
}

func TestWorldSensorReportsProximity(t *testing.T) {
	w := newTestWorld(t)
	_, _, err := w.AddEntity(Ball{Radius: 5, Sensor: true}, NewIsometry(0, 0, 0))
	require.NoError(t, err)
	_, _, err = w.AddEntity(Ball{Radius: 1}, NewIsometry(2, 0, 0))
	require.NoError(t, err)

	events := w.Step()
	require.Len(t, events, 1)
	assert.Equal(t, ProximityEntered, events[0].Kind)
}

func TestWorldWallContact(t *testing.T) {
	w := newTestWorld(t, func(s *Settings) {
		s.Walls = true
		s.Width, s.Height = 100, 100
	})
	_, ch, err := w.AddEntity(Ball{Radius: 5}, NewIsometry(50, 3, 0))
	require.NoError(t, err)

	events := w.Step()
	require.NotEmpty(t, events)
	assert.Equal(t, ContactStarted, events[0].Kind)
	assert.Equal(t, ch, events[0].A)
	assert.True(t, events[0].WithWall())
}
