package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/battlefield/internal/core/battlefield"
	"github.com/zeusync/battlefield/internal/core/camera"
	"github.com/zeusync/battlefield/internal/core/observability/log"
	"github.com/zeusync/battlefield/internal/core/scene"
	"github.com/zeusync/battlefield/internal/core/systems/physics"
)

var (
	ErrInvalidConfig     = errors.New("config: invalid")
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
)

type Config struct {
	World    WorldConfig    `yaml:"world" json:"world"`
	Camera   CameraConfig   `yaml:"camera" json:"camera"`
	Layers   []string       `yaml:"layers" json:"layers"`
	Physics  PhysicsConfig  `yaml:"physics" json:"physics"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Feed     FeedConfig     `yaml:"feed" json:"feed"`
	Scenario ScenarioConfig `yaml:"scenario" json:"scenario"`
}

type WorldConfig struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
	// Walls encloses the world with static boundaries.
	Walls bool `yaml:"walls" json:"walls"`
}

type CameraConfig struct {
	Center   camera.Center `yaml:"center" json:"center"`
	Viewport ViewportSize  `yaml:"viewport" json:"viewport"`
	// Anchor is "top_left" or "center".
	Anchor string `yaml:"anchor" json:"anchor"`
}

type ViewportSize struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

type PhysicsConfig struct {
	Gravity    physics.Vec2 `yaml:"gravity" json:"gravity"`
	Damping    float64      `yaml:"damping" json:"damping"`
	Iterations uint         `yaml:"iterations" json:"iterations"`
	TickRate   float64      `yaml:"tick_rate" json:"tick_rate"`
	BodyMass   float64      `yaml:"body_mass" json:"body_mass"`
	Friction   float64      `yaml:"friction" json:"friction"`
	Elasticity float64      `yaml:"elasticity" json:"elasticity"`
	WallRadius float64      `yaml:"wall_radius" json:"wall_radius"`
	// AlwaysStep steps every tick instead of only after adds and moves.
	AlwaysStep bool `yaml:"always_step" json:"always_step"`
}

type LoggingConfig struct {
	Level    string   `yaml:"level" json:"level"`
	Encoding string   `yaml:"encoding" json:"encoding"`
	Outputs  []string `yaml:"outputs" json:"outputs"`
}

type FeedConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

type ScenarioConfig struct {
	Entities []EntityConfig `yaml:"entities" json:"entities"`
}

// EntityConfig seeds one entity before the first tick. Overlay entities
// have no physics; their Pose is the origin of the declared rectangle.
type EntityConfig struct {
	Name     string           `yaml:"name" json:"name"`
	Layer    string           `yaml:"layer" json:"layer"`
	Pose     physics.Isometry `yaml:"pose" json:"pose"`
	Radius   float64          `yaml:"radius" json:"radius"`
	Sensor   bool             `yaml:"sensor" json:"sensor"`
	Velocity physics.Vec2     `yaml:"velocity" json:"velocity"`
	Overlay  bool             `yaml:"overlay" json:"overlay"`
	Size     ViewportSize     `yaml:"size" json:"size"`
}

func Default() *Config {
	settings := physics.DefaultSettings()
	return &Config{
		World: WorldConfig{Width: 1000, Height: 1000},
		Camera: CameraConfig{
			Center:   camera.Center{X: 500, Y: 500},
			Viewport: ViewportSize{Width: 800, Height: 600},
			Anchor:   "top_left",
		},
		Layers: []string{"ground"},
		Physics: PhysicsConfig{
			Gravity:    settings.Gravity,
			Damping:    settings.Damping,
			Iterations: settings.Iterations,
			TickRate:   settings.TickRate,
			BodyMass:   settings.BodyMass,
			Friction:   settings.Friction,
			Elasticity: settings.Elasticity,
			WallRadius: settings.WallRadius,
		},
		Logging: LoggingConfig{Level: "info", Encoding: "json"},
		Feed:    FeedConfig{Addr: ":8088", Path: "/feed"},
	}
}

// Load reads a YAML or JSON file, chosen by extension, over Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(bytes.NewReader(data))
	case ".json":
		return LoadJSON(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func LoadYAML(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, cfg.Validate()
}

func LoadJSON(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if err := c.WorldSize().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if !positive(c.Camera.Viewport.Width) || !positive(c.Camera.Viewport.Height) {
		invalid("viewport %gx%g", c.Camera.Viewport.Width, c.Camera.Viewport.Height)
	}
	if _, err := c.Anchor(); err != nil {
		errs = append(errs, err)
	}
	if !positive(c.Physics.TickRate) {
		invalid("physics.tick_rate %g", c.Physics.TickRate)
	}
	if !positive(c.Physics.BodyMass) {
		invalid("physics.body_mass %g", c.Physics.BodyMass)
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	layers := make(map[string]struct{}, len(c.Layers))
	for _, name := range c.Layers {
		if name == "" {
			invalid("unnamed layer")
			continue
		}
		if _, dup := layers[name]; dup {
			invalid("duplicate layer %q", name)
		}
		layers[name] = struct{}{}
	}
	for i, e := range c.Scenario.Entities {
		if _, ok := layers[e.Layer]; !ok {
			invalid("scenario entity %d (%s): unknown layer %q", i, e.Name, e.Layer)
		}
		if !e.Overlay && e.Radius != 0 {
			if err := (physics.Ball{Radius: e.Radius}).Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%w: scenario entity %d (%s): %w", ErrInvalidConfig, i, e.Name, err))
			}
		}
	}
	if c.Feed.Enabled && c.Feed.Addr == "" {
		invalid("feed.addr is empty")
	}

	return errors.Join(errs...)
}

func (c *Config) WorldSize() battlefield.WorldSize {
	return battlefield.WorldSize{Width: c.World.Width, Height: c.World.Height}
}

func (c *Config) Viewport() scene.Rect {
	return scene.Rect{Width: c.Camera.Viewport.Width, Height: c.Camera.Viewport.Height}
}

func (c *Config) Anchor() (camera.Anchor, error) {
	switch c.Camera.Anchor {
	case "", "top_left":
		return camera.AnchorTopLeft, nil
	case "center":
		return camera.AnchorCenter, nil
	default:
		return 0, fmt.Errorf("%w: camera.anchor %q", ErrInvalidConfig, c.Camera.Anchor)
	}
}

func (c *Config) PhysicsSettings() physics.Settings {
	return physics.Settings{
		Gravity:    c.Physics.Gravity,
		Damping:    c.Physics.Damping,
		Iterations: c.Physics.Iterations,
		TickRate:   c.Physics.TickRate,
		BodyMass:   c.Physics.BodyMass,
		Friction:   c.Physics.Friction,
		Elasticity: c.Physics.Elasticity,
		Walls:      c.World.Walls,
		Width:      c.World.Width,
		Height:     c.World.Height,
		WallRadius: c.Physics.WallRadius,
	}
}

func (c *Config) LogOptions() (log.Options, error) {
	level, err := log.ParseLevel(c.Logging.Level)
	if err != nil {
		return log.Options{}, err
	}
	return log.Options{Level: level, Encoding: c.Logging.Encoding, Outputs: c.Logging.Outputs}, nil
}

// Shape returns the physical shape of a scenario entity; zero radius means
// the default shape.
func (e EntityConfig) Shape() physics.Shape {
	if e.Radius == 0 {
		if e.Sensor {
			b := physics.DefaultShape().(physics.Ball)
			b.Sensor = true
			return b
		}
		return physics.DefaultShape()
	}
	return physics.Ball{Radius: e.Radius, Sensor: e.Sensor}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
