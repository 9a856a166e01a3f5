package applets

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"

	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
)

// picture draws an image file, loaded once in Configure. A threshold turns
// it into pure black and white before it reaches the panel.
type picture struct {
	fs        afero.Fs
	path      string
	x, y      int
	threshold int // -1 disables
	img       image.Image
}

func newImage(o applet.Options, env Env) (applet.Applet, error) {
	path, err := o.String("path", "")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.New("option path is required")
	}
	p := &picture{fs: env.Fs, path: path}
	if p.x, err = o.Int("x", 0); err != nil {
		return nil, err
	}
	if p.y, err = o.Int("y", 0); err != nil {
		return nil, err
	}
	if p.threshold, err = o.Int("threshold", -1); err != nil {
		return nil, err
	}
	if p.threshold < -1 || p.threshold > 255 {
		return nil, fmt.Errorf("option threshold %d out of range 0-255", p.threshold)
	}
	return p, nil
}

func (p *picture) Configure(*render.Context) error {
	f, err := p.fs.Open(p.path)
	if err != nil {
		return err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", p.path, err)
	}
	p.img = img
	return nil
}

func (p *picture) Render(rc *render.Context) error {
	if p.img == nil {
		return fmt.Errorf("image %s not loaded", p.path)
	}
	var filter func(image.Image) image.Image
	if p.threshold >= 0 {
		filter = p.monochrome
	}
	rc.Display.DrawImage(p.img, p.x, p.y, filter)
	return nil
}

func (p *picture) monochrome(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	level := uint8(p.threshold)
	return imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		if c.R >= level {
			return color.NRGBA{255, 255, 255, c.A}
		}
		return color.NRGBA{0, 0, 0, c.A}
	})
}
