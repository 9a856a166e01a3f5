// Package applets holds the stock screens: system info, clock, static text
// and image. Register adds them to a registry under their module names.
package applets

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
)

// DefaultFont is the family used when an applet has no font option.
const DefaultFont = "DejaVuSansMono"

// Env is what the stock applets need from the host.
type Env struct {
	// Fs is used to read image files. Nil means the OS filesystem.
	Fs afero.Fs

	// Now is the time source for the clock. Nil means time.Now.
	Now func() time.Time

	// Sampler feeds the info applet. Nil means the live system.
	Sampler Sampler
}

func (e Env) withDefaults() Env {
	if e.Fs == nil {
		e.Fs = afero.NewOsFs()
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Sampler == nil {
		e.Sampler = NewSystemSampler("/", "w")
	}
	return e
}

// Register adds info, clock, text and image to reg.
func Register(reg *applet.Registry, env Env) error {
	env = env.withDefaults()
	factories := map[string]applet.Factory{
		"info":  func(o applet.Options) (applet.Applet, error) { return newInfo(o, env) },
		"clock": func(o applet.Options) (applet.Applet, error) { return newClock(o, env) },
		"text":  newText,
		"image": func(o applet.Options) (applet.Applet, error) { return newImage(o, env) },
	}
	for _, name := range []string{"info", "clock", "text", "image"} {
		if err := reg.Register(name, factories[name]); err != nil {
			return fmt.Errorf("applets: %w", err)
		}
	}
	return nil
}

// face looks a font up, falling back to a fixed bitmap face when the
// context has no font source.
func face(rc *render.Context, name string, size float64) font.Face {
	if rc.Fonts == nil {
		return basicfont.Face7x13
	}
	if f := rc.Fonts.Face(name, size); f != nil {
		return f
	}
	return basicfont.Face7x13
}

// textWidth is the advance of s in pixels.
func textWidth(f font.Face, s string) int {
	return font.MeasureString(f, s).Ceil()
}

// lineHeight is the face's line spacing in pixels.
func lineHeight(f font.Face) int {
	h := f.Metrics().Height
	if h <= 0 {
		return 1
	}
	return h.Ceil()
}

// fontOptions reads the shared font and size options.
func fontOptions(o applet.Options, defSize float64) (string, float64, error) {
	name, err := o.String("font", DefaultFont)
	if err != nil {
		return "", 0, err
	}
	size, err := o.Float("size", defSize)
	if err != nil {
		return "", 0, err
	}
	if size <= 0 {
		return "", 0, fmt.Errorf("size %v must be positive", size)
	}
	return name, size, nil
}
