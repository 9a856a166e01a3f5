package render

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Panel receives finished frames from a Framebuffer. Device and simulator
// backends implement it.
type Panel interface {
	Show(frame *image.RGBA) error
}

// PanelFunc adapts a plain function to the Panel interface.
type PanelFunc func(frame *image.RGBA) error

// Show calls f(frame).
func (f PanelFunc) Show(frame *image.RGBA) error { return f(frame) }

// Framebuffer is an offscreen RGBA frame at panel resolution implementing
// Display. Magnification for the simulator happens when the frame is
// painted, not here.
type Framebuffer struct {
	buf   *image.RGBA
	panel Panel
}

// NewFramebuffer allocates a width x height frame that flushes to panel.
func NewFramebuffer(width, height int, panel Panel) *Framebuffer {
	fb := &Framebuffer{
		buf:   image.NewRGBA(image.Rect(0, 0, width, height)),
		panel: panel,
	}
	fb.Clear()
	return fb
}

// Size returns the panel resolution.
func (fb *Framebuffer) Size() image.Point { return fb.buf.Bounds().Size() }

// Frame returns the backing buffer. Callers must not retain it across
// Present calls.
func (fb *Framebuffer) Frame() *image.RGBA { return fb.buf }

// Clear fills the frame with black.
func (fb *Framebuffer) Clear() {
	xdraw.Draw(fb.buf, fb.buf.Bounds(), image.NewUniform(Black), image.Point{}, xdraw.Src)
}

// Present hands the frame to the panel.
func (fb *Framebuffer) Present() error {
	if fb.panel == nil {
		return nil
	}
	return fb.panel.Show(fb.buf)
}

// WriteText draws text in white with its top-left corner at (x, y).
func (fb *Framebuffer) WriteText(text string, x, y int, face font.Face) {
	if face == nil || text == "" {
		return
	}
	ascent := face.Metrics().Ascent.Ceil()
	d := font.Drawer{
		Dst:  fb.buf,
		Src:  image.NewUniform(White),
		Face: face,
		Dot:  fixed.P(x, y+ascent),
	}
	d.DrawString(text)
}

// DrawImage flattens transparency onto white, shrinks img to fit the frame
// (never enlarging it), applies filter and draws it at (x, y).
func (fb *Framebuffer) DrawImage(img image.Image, x, y int, filter func(image.Image) image.Image) {
	if img == nil {
		return
	}
	if !isOpaque(img) {
		b := img.Bounds()
		bg := imaging.New(b.Dx(), b.Dy(), White)
		img = imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
	}
	size := fb.buf.Bounds().Size()
	img = imaging.Fit(img, size.X, size.Y, imaging.Lanczos)
	if filter != nil {
		img = filter(img)
	}
	b := img.Bounds()
	at := image.Pt(x, y)
	xdraw.Draw(fb.buf, image.Rectangle{Min: at, Max: at.Add(b.Size())}, img, b.Min, xdraw.Src)
}

// SetPixel sets pixel (x, y); points outside the frame are ignored.
func (fb *Framebuffer) SetPixel(x, y int, c color.Color) {
	fb.buf.Set(x, y, c)
}

func isOpaque(img image.Image) bool {
	o, ok := img.(interface{ Opaque() bool })
	return ok && o.Opaque()
}
