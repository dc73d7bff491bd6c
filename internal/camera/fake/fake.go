// Package fake provides a simulated camera backend: a camera that
// always connects instantly and returns a fixed-size blank frame.
package fake

import (
	"context"

	"github.com/skywatch/altaz-mount/internal/camera"
)

// Backend is a simulated camera that always succeeds.
type Backend struct {
	width, height int
}

// New constructs a simulated camera of the given frame size.
func New(width, height int) *Backend {
	return &Backend{width: width, height: height}
}

// Register installs this backend under tag "fake" in the camera
// registry.
func Register() {
	camera.Register("fake", func(config map[string]any) (camera.Camera, error) {
		width, _ := config["width"].(float64)
		height, _ := config["height"].(float64)
		if width <= 0 {
			width = 640
		}
		if height <= 0 {
			height = 480
		}
		return New(int(width), int(height)), nil
	})
}

func (b *Backend) Connect(ctx context.Context) error    { return nil }
func (b *Backend) Disconnect(ctx context.Context) error { return nil }

// Capture returns a blank frame of the configured size.
func (b *Backend) Capture(ctx context.Context) (camera.Frame, error) {
	return camera.Frame{
		Width:  b.width,
		Height: b.height,
		Data:   make([]byte, b.width*b.height),
	}, nil
}
