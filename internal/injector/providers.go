package injector

import (
	"fmt"

	"github.com/google/wire"

	"github.com/zeusync/battlefield/internal/app"
	"github.com/zeusync/battlefield/internal/config"
	"github.com/zeusync/battlefield/internal/core/battlefield"
	"github.com/zeusync/battlefield/internal/core/camera"
	"github.com/zeusync/battlefield/internal/core/events/bus"
	"github.com/zeusync/battlefield/internal/core/models"
	"github.com/zeusync/battlefield/internal/core/observability/log"
	"github.com/zeusync/battlefield/internal/core/scene"
	"github.com/zeusync/battlefield/internal/core/systems/physics"
	"github.com/zeusync/battlefield/internal/server"
)

// BattlefieldNode is the scene node holding the layers and the camera center.
type BattlefieldNode models.EntityID

// LayerNodes are the configured layer nodes, in configuration order.
type LayerNodes []models.EntityID

var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideGraph,
	wire.Bind(new(scene.Tree), new(*scene.Graph)),
	ProvideBattlefieldNode,
	ProvideLayerNodes,
	ProvideWorld,
	bus.New,
	ProvideController,
	ProvideCamera,
	server.NewFeed,
	app.NewDeliveryLog,
	wire.Struct(new(app.App), "*"),
)

func ProvideLogger(cfg *config.Config) (*log.Logger, error) {
	opts, err := cfg.LogOptions()
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(opts)
}

func ProvideGraph(cfg *config.Config) *scene.Graph {
	return scene.NewGraph(cfg.Viewport())
}

func ProvideBattlefieldNode(g *scene.Graph) (BattlefieldNode, error) {
	node := g.Create(scene.Attrs{scene.AttrName: "battlefield", scene.AttrBounds: scene.Rect{}})
	if err := g.AppendChild(g.Root(), node); err != nil {
		return 0, fmt.Errorf("attach battlefield node: %w", err)
	}
	return BattlefieldNode(node), nil
}

// ProvideLayerNodes creates one detached node per configured layer; the
// controller attaches them.
func ProvideLayerNodes(cfg *config.Config, g *scene.Graph) LayerNodes {
	nodes := make(LayerNodes, len(cfg.Layers))
	for i, name := range cfg.Layers {
		nodes[i] = g.Create(scene.Attrs{scene.AttrName: name})
	}
	return nodes
}

func ProvideWorld(cfg *config.Config, logger log.Log) *physics.World {
	return physics.NewWorld(cfg.PhysicsSettings(), logger)
}

func ProvideController(
	cfg *config.Config,
	node BattlefieldNode,
	layers LayerNodes,
	tree scene.Tree,
	world *physics.World,
	events bus.EventBus,
	logger log.Log,
) (*battlefield.Controller, error) {
	return battlefield.New(battlefield.Options{
		Size:       cfg.WorldSize(),
		Camera:     cfg.Camera.Center,
		Layers:     layers,
		AlwaysStep: cfg.Physics.AlwaysStep,
	}, models.EntityID(node), tree, world, events, logger)
}

func ProvideCamera(cfg *config.Config, tree scene.Tree, node BattlefieldNode, logger log.Log) (*camera.Layout, error) {
	anchor, err := cfg.Anchor()
	if err != nil {
		return nil, err
	}
	return camera.NewLayout(tree, models.EntityID(node), anchor, logger), nil
}
