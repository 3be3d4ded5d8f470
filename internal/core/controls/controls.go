// Package controls models the user-facing control panel: named sliders,
// checkboxes and text fields that are the single source of truth for the
// camera, the animation speed and the streaming toggle.
package controls

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownControl = errors.New("unknown control")
	ErrTypeMismatch   = errors.New("control value has the wrong type")
	ErrReadOnly       = errors.New("control is read-only")
	ErrDuplicate      = errors.New("control already defined")
)

// Control names, as shown in the panel.
const (
	StreamCamera = "Stream Camera"
	TargetFPS    = "Target FPS"
	CameraX      = "Camera X"
	CameraY      = "Camera Y"
	CameraZ      = "Camera Z"
	LookAtX      = "Look At X"
	LookAtY      = "Look At Y"
	LookAtZ      = "Look At Z"
	Speed        = "Speed"
	Pause        = "Pause"
	Status       = "Status"
	RenderFPS    = "Render FPS"
	SimFPS       = "Simulation FPS"
)

// Folders group controls in the panel.
const (
	FolderCamera    = "Virtual Camera"
	FolderAnimation = "Animation"
	FolderStatus    = "Status"
)

type Kind string

const (
	KindSlider   Kind = "slider"
	KindCheckbox Kind = "checkbox"
	KindText     Kind = "text"
)

// Control is one panel entry. Value holds a float64 for sliders, a bool for
// checkboxes and a string for text fields.
type Control struct {
	Name     string  `json:"name"`
	Folder   string  `json:"folder"`
	Kind     Kind    `json:"kind"`
	Min      float64 `json:"min,omitempty"`
	Max      float64 `json:"max,omitempty"`
	Step     float64 `json:"step,omitempty"`
	Disabled bool    `json:"disabled,omitempty"`
	Value    any     `json:"value"`
}

func Slider(folder, name string, lo, hi, step, initial float64) Control {
	return Control{Name: name, Folder: folder, Kind: KindSlider, Min: lo, Max: hi, Step: step, Value: initial}
}

func Checkbox(folder, name string, initial bool) Control {
	return Control{Name: name, Folder: folder, Kind: KindCheckbox, Value: initial}
}

// Text fields are read-only for clients; only the server writes them.
func Text(folder, name, initial string) Control {
	return Control{Name: name, Folder: folder, Kind: KindText, Disabled: true, Value: initial}
}

// Layout returns the panel of the virtual camera demo. eye and lookAt seed
// the camera sliders.
func Layout(eye, lookAt [3]float64, targetFPS float64) []Control {
	return []Control{
		Checkbox(FolderCamera, StreamCamera, false),
		Slider(FolderCamera, TargetFPS, 1, 60, 1, targetFPS),
		Slider(FolderCamera, CameraX, -10, 10, 0.1, eye[0]),
		Slider(FolderCamera, CameraY, -10, 10, 0.1, eye[1]),
		Slider(FolderCamera, CameraZ, 0.1, 10, 0.1, eye[2]),
		Slider(FolderCamera, LookAtX, -5, 5, 0.1, lookAt[0]),
		Slider(FolderCamera, LookAtY, -5, 5, 0.1, lookAt[1]),
		Slider(FolderCamera, LookAtZ, -5, 5, 0.1, lookAt[2]),

		Slider(FolderAnimation, Speed, 0.1, 3, 0.1, 1),
		Checkbox(FolderAnimation, Pause, false),

		Text(FolderStatus, Status, "Waiting for connection..."),
		Text(FolderStatus, RenderFPS, "0.0"),
		Text(FolderStatus, SimFPS, "0.0"),
	}
}

// Panel is the accessor the control loop reads and writes controls through.
type Panel interface {
	Value(name string) (any, error)
	SetValue(name string, value any) error
}

func Float(p Panel, name string) (float64, error) {
	v, err := p.Value(name)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T", ErrTypeMismatch, name, v)
	}
	return f, nil
}

func Bool(p Panel, name string) (bool, error) {
	v, err := p.Value(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s is %T", ErrTypeMismatch, name, v)
	}
	return b, nil
}
