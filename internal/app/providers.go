package app

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/wire"

	"github.com/zeusync/virtualcam/internal/config"
	"github.com/zeusync/virtualcam/internal/core/animation"
	"github.com/zeusync/virtualcam/internal/core/camera"
	"github.com/zeusync/virtualcam/internal/core/controls"
	"github.com/zeusync/virtualcam/internal/core/display"
	"github.com/zeusync/virtualcam/internal/core/events"
	"github.com/zeusync/virtualcam/internal/core/events/bus"
	"github.com/zeusync/virtualcam/internal/core/fps"
	"github.com/zeusync/virtualcam/internal/core/loop"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
	"github.com/zeusync/virtualcam/internal/core/pacer"
	"github.com/zeusync/virtualcam/internal/core/render"
	"github.com/zeusync/virtualcam/internal/core/scene"
	"github.com/zeusync/virtualcam/internal/core/session"
	"github.com/zeusync/virtualcam/internal/server"
)

// ProviderSet builds an App from a Config.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideBoard,
	ProvideEventBus,
	ProvideControlServer,
	ProvideDisplaySink,
	ProvideScene,
	ProvideLoop,
	New,
)

// Scene is the populated scene graph and the handles of its moving
// entities.
type Scene struct {
	Graph   *scene.Graph
	Handles scene.Handles
}

func ProvideLogger(cfg config.Config) log.Log {
	return log.NewWithOptions(cfg.LogLevel(), log.Options{Development: cfg.Log.Development})
}

func ProvideBoard(cfg config.Config) (*controls.Board, error) {
	return controls.NewBoard(controls.Layout(cfg.Camera.Eye, cfg.Camera.LookAt, cfg.Loop.TargetFPS)...)
}

// ProvideEventBus returns a bus whose status events land in the panel's
// Status control.
func ProvideEventBus(board *controls.Board, logger log.Log) (bus.EventBus, error) {
	b := bus.New()
	b.AddObserver(events.LogObserver{Logger: logger.With(log.String("component", "events"))})
	if _, err := events.BindStatus(b, board); err != nil {
		return nil, fmt.Errorf("bind status: %w", err)
	}
	return b, nil
}

func ProvideControlServer(cfg config.Config, board *controls.Board, logger log.Log) *server.ControlServer {
	sc := server.DefaultServerConfig()
	sc.ListenAddr = cfg.Control.ListenAddr
	sc.WaitTimeout = cfg.Control.WaitTimeout
	return server.NewControlServer(sc, board, logger)
}

func ProvideDisplaySink(cfg config.Config, logger log.Log) *display.MJPEGSink {
	return display.NewMJPEGSink(display.MJPEGConfig{
		Addr:    cfg.Display.ListenAddr,
		Quality: cfg.Display.Quality,
		Title:   cfg.Display.Title,
	}, logger)
}

func ProvideScene(cfg config.Config) (Scene, error) {
	g := scene.NewGraph()
	h, err := scene.Populate(g, scene.FrustumSpec{
		Eye:    mgl64.Vec3(cfg.Camera.Eye),
		FOV:    mgl64.DegToRad(cfg.Camera.FOVDegrees),
		Aspect: cfg.Camera.Aspect,
	})
	if err != nil {
		return Scene{}, fmt.Errorf("populate scene: %w", err)
	}
	return Scene{Graph: g, Handles: h}, nil
}

// ProvideLoop assembles the animator, the camera, the streaming session and
// the renderer around one control loop.
func ProvideLoop(
	cfg config.Config,
	board *controls.Board,
	srv *server.ControlServer,
	sink *display.MJPEGSink,
	sc Scene,
	b bus.EventBus,
	logger log.Log,
) (*loop.Loop, error) {
	h := sc.Handles
	animator := animation.New(animation.Entities{
		OrbitA:   h.OrbitA,
		OrbitB:   h.OrbitB,
		Rotating: h.Rotating,
		Bouncing: h.Bouncing,
	})

	cam, err := camera.New(
		mgl64.Vec3(cfg.Camera.Eye),
		mgl64.Vec3(cfg.Camera.LookAt),
		mgl64.DegToRad(cfg.Camera.FOVDegrees),
		cfg.Camera.Aspect,
		h.Frustum,
	)
	if err != nil {
		return nil, fmt.Errorf("camera: %w", err)
	}

	sess := session.New(sink, fps.NewCumulative(nil), b, logger)

	return loop.New(loop.Config{
		TickDT: cfg.Loop.TickDT,
		Width:  cfg.Display.Width,
		Height: cfg.Display.Height,
	}, loop.Deps{
		Panel:    board,
		Presence: srv,
		Animator: animator,
		Camera:   cam,
		Session:  sess,
		Capturer: render.NewRasterizer(sc.Graph, render.DefaultOptions()),
		Pacer:    pacer.New(cfg.Loop.MinDelay, cfg.Loop.IdleDelay),
		SimFPS:   fps.NewWindowed(cfg.Loop.SimWindow, nil),
		Bus:      b,
		Logger:   logger,
	}), nil
}
