// Package app wires the control panel, the display window and the control
// loop into one runnable process.
package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/virtualcam/internal/config"
	"github.com/zeusync/virtualcam/internal/core/controls"
	"github.com/zeusync/virtualcam/internal/core/display"
	"github.com/zeusync/virtualcam/internal/core/events"
	"github.com/zeusync/virtualcam/internal/core/events/bus"
	"github.com/zeusync/virtualcam/internal/core/loop"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
	"github.com/zeusync/virtualcam/internal/server"
)

const (
	eventSource = "app"
	stopTimeout = 5 * time.Second
)

type App struct {
	cfg    config.Config
	logger log.Log
	board  *controls.Board
	bus    bus.EventBus
	server *server.ControlServer
	sink   *display.MJPEGSink
	scene  Scene
	loop   *loop.Loop
}

func New(
	cfg config.Config,
	logger log.Log,
	board *controls.Board,
	b bus.EventBus,
	srv *server.ControlServer,
	sink *display.MJPEGSink,
	sc Scene,
	l *loop.Loop,
) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(log.String("component", "app")),
		board:  board,
		bus:    b,
		server: srv,
		sink:   sink,
		scene:  sc,
		loop:   l,
	}
}

func (a *App) Logger() log.Log               { return a.logger }
func (a *App) Board() *controls.Board        { return a.board }
func (a *App) Server() *server.ControlServer { return a.server }
func (a *App) Loop() *loop.Loop              { return a.loop }

// DisplayURL is where the streamed window can be watched once streaming
// is enabled.
func (a *App) DisplayURL() string {
	if addr := a.sink.Addr(); addr != nil {
		return "http://" + addr.String() + "/"
	}
	return "http://" + a.cfg.Display.ListenAddr + "/"
}

// Run starts the control panel, waits for the first client and then runs
// the control loop until ctx ends or a fatal error occurs. The panel server
// is stopped before Run returns.
func (a *App) Run(ctx context.Context) error {
	if err := a.server.Start(ctx); err != nil {
		return err
	}
	defer a.stopServer()

	a.banner()

	a.publishStatus(events.StatusWaiting)
	a.logger.Info("Waiting for control client", log.String("url", a.server.URL()))
	if err := a.server.WaitForClient(ctx); err != nil {
		return err
	}
	a.publishStatus(events.StatusConnected)
	a.logger.Info("Control client connected, enable streaming to start")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.loop.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.stopServer()
		return nil
	})

	err := g.Wait()
	a.logger.Info("Control loop finished",
		log.Uint64("ticks", a.loop.Ticks()),
		log.Any("reason", err))
	return err
}

func (a *App) banner() {
	a.logger.Info("Virtual camera started",
		log.String("control_panel", a.server.URL()),
		log.String("display", a.DisplayURL()),
		log.Int("width", a.cfg.Display.Width),
		log.Int("height", a.cfg.Display.Height),
	)
	for _, name := range []string{
		"Red and blue spheres orbiting in circles",
		"Yellow box rotating",
		"Pink sphere bouncing up and down",
	} {
		a.logger.Info("Moving object", log.String("object", name))
	}
	a.logger.Info("Enable 'Stream Camera' to open the display window, press 'q' there to close it",
		log.String("window", a.cfg.Display.Title))
}

func (a *App) publishStatus(msg string) {
	if err := a.bus.Publish(events.NewStatus(eventSource, msg)); err != nil {
		a.logger.Warn("Failed to publish status", log.Error(err))
	}
}

func (a *App) stopServer() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := a.server.Stop(ctx); err != nil && !errors.Is(err, server.ErrServerNotRunning) {
		a.logger.Warn("Failed to stop control server", log.Error(err))
	}
}
