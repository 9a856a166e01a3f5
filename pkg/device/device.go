// Package device drives an SSD1306 OLED panel over I2C and resolves GPIO
// triggers, using periph.io.
package device

import (
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"

	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
)

// panel is the part of *ssd1306.Dev the backend uses.
type panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// Backend is an open SSD1306 panel plus its GPIO trigger resolver.
type Backend struct {
	log      zerolog.Logger
	dev      panel
	bus      io.Closer
	fb       *render.Framebuffer
	triggers *GPIOTriggers

	closeOnce sync.Once
	closeErr  error
}

// Open initializes the host drivers and the panel on the named I2C bus
// ("1", "I2C1"); an empty name takes the first bus found. width and height
// must match the panel.
func Open(bus string, width, height int, log zerolog.Logger) (*Backend, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("device: host init: %w", err)
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("device: open i2c bus %q: %w", bus, err)
	}
	opts := ssd1306.DefaultOpts
	opts.W, opts.H = width, height
	dev, err := ssd1306.NewI2C(b, &opts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("device: ssd1306 on bus %q: %w", bus, err)
	}
	log.Info().Str("bus", b.String()).Int("width", width).Int("height", height).Msg("ssd1306 ready")
	return newBackend(dev, b, NewGPIOTriggers(gpioreg.ByName, log), log), nil
}

func newBackend(dev panel, bus io.Closer, triggers *GPIOTriggers, log zerolog.Logger) *Backend {
	b := &Backend{
		log:      log.With().Str("component", "device").Logger(),
		dev:      dev,
		bus:      bus,
		triggers: triggers,
	}
	size := dev.Bounds().Size()
	b.fb = render.NewFramebuffer(size.X, size.Y, render.PanelFunc(b.show))
	return b
}

func (b *Backend) show(frame *image.RGBA) error {
	return b.dev.Draw(b.dev.Bounds(), frame, image.Point{})
}

// Display returns the offscreen frame applets draw into.
func (b *Backend) Display() render.Display { return b.fb }

// Triggers resolves "gpio:<pin>" trigger specs.
func (b *Backend) Triggers() applet.TriggerResolver { return b.triggers }

// Close stops the trigger watchers, blanks and halts the panel and releases
// the bus. It is safe to call more than once.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		if b.triggers != nil {
			b.triggers.Close()
		}
		blank := image.NewGray(b.dev.Bounds())
		if err := b.dev.Draw(b.dev.Bounds(), blank, image.Point{}); err != nil {
			errs = append(errs, fmt.Errorf("blank: %w", err))
		}
		if err := b.dev.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt: %w", err))
		}
		if b.bus != nil {
			if err := b.bus.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close bus: %w", err))
			}
		}
		b.closeErr = errors.Join(errs...)
		if b.closeErr != nil {
			b.log.Warn().Err(b.closeErr).Msg("device close")
		}
	})
	return b.closeErr
}
