// Package config holds the runtime settings of the virtual camera and loads
// them from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/virtualcam/internal/core/observability/log"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Control ControlConfig `yaml:"control"`
	Display DisplayConfig `yaml:"display"`
	Loop    LoopConfig    `yaml:"loop"`
	Camera  CameraConfig  `yaml:"camera"`
	Log     LogConfig     `yaml:"log"`
}

// ControlConfig is the control panel server.
type ControlConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// WaitTimeout bounds the wait for the first client. Zero waits until
	// interrupted.
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

// DisplayConfig is the streaming window and the capture size.
type DisplayConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Quality    int    `yaml:"jpeg_quality"`
	Title      string `yaml:"title"`
}

type LoopConfig struct {
	TickDT    float64       `yaml:"tick_dt"`
	TargetFPS float64       `yaml:"target_fps"`
	MinDelay  time.Duration `yaml:"min_delay"`
	IdleDelay time.Duration `yaml:"idle_delay"`
	SimWindow time.Duration `yaml:"sim_fps_window"`
}

type CameraConfig struct {
	Eye        [3]float64 `yaml:"eye"`
	LookAt     [3]float64 `yaml:"look_at"`
	FOVDegrees float64    `yaml:"fov_degrees"`
	Aspect     float64    `yaml:"aspect"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the settings of the demo scene.
func Default() Config {
	return Config{
		Control: ControlConfig{
			ListenAddr: "127.0.0.1:8080",
		},
		Display: DisplayConfig{
			ListenAddr: "127.0.0.1:8081",
			Width:      800,
			Height:     600,
			Quality:    80,
			Title:      "Virtual Camera View",
		},
		Loop: LoopConfig{
			TickDT:    0.016,
			TargetFPS: 30,
			MinDelay:  time.Millisecond,
			IdleDelay: 16 * time.Millisecond,
			SimWindow: 500 * time.Millisecond,
		},
		Camera: CameraConfig{
			Eye:        [3]float64{5, 5, 4},
			LookAt:     [3]float64{0, 0, 0.5},
			FOVDegrees: 60,
			Aspect:     16.0 / 9.0,
		},
		Log: LogConfig{
			Level: log.LevelInfo.String(),
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// LoadYAML decodes r over the defaults and validates the result. Unknown
// keys are rejected.
func LoadYAML(r io.Reader) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(c.Control.ListenAddr != "", "control.listen_addr is empty")
	check(c.Control.WaitTimeout >= 0, "control.wait_timeout %v is negative", c.Control.WaitTimeout)

	check(c.Display.ListenAddr != "", "display.listen_addr is empty")
	check(c.Display.Width > 0 && c.Display.Height > 0, "display size %dx%d", c.Display.Width, c.Display.Height)
	check(c.Display.Quality >= 1 && c.Display.Quality <= 100, "display.jpeg_quality %d not in 1..100", c.Display.Quality)

	check(c.Loop.TickDT > 0 && !math.IsInf(c.Loop.TickDT, 0), "loop.tick_dt %v must be positive", c.Loop.TickDT)
	check(c.Loop.TargetFPS >= 1 && c.Loop.TargetFPS <= 60, "loop.target_fps %v not in 1..60", c.Loop.TargetFPS)
	check(c.Loop.MinDelay > 0, "loop.min_delay must be positive")
	check(c.Loop.IdleDelay > 0, "loop.idle_delay must be positive")
	check(c.Loop.SimWindow > 0, "loop.sim_fps_window must be positive")

	check(c.Camera.Eye != c.Camera.LookAt, "camera.eye equals camera.look_at")
	check(c.Camera.FOVDegrees > 0 && c.Camera.FOVDegrees < 180, "camera.fov_degrees %v not in (0,180)", c.Camera.FOVDegrees)
	check(c.Camera.Aspect > 0, "camera.aspect must be positive")

	_, err := log.ParseLevel(c.Log.Level)
	check(err == nil, "log.level %q", c.Log.Level)

	return errors.Join(errs...)
}

// LogLevel is the parsed log level; Validate guarantees it parses.
func (c Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.LevelInfo
	}
	return lvl
}
