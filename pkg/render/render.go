// Package render defines the boundary between the scheduling engine, the
// applets and the display backends. The engine only needs Clear and
// Present; applets draw through the rest of the Display interface; backends
// supply a Panel that receives finished frames.
package render

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
)

// Common panel colours. The physical panel is monochrome, anything that is
// not Black lights the pixel.
var (
	Black  = color.RGBA{0, 0, 0, 255}
	White  = color.RGBA{255, 255, 255, 255}
	Blue   = color.RGBA{0, 100, 255, 255}
	Yellow = color.RGBA{255, 255, 0, 255}
)

// Display is an offscreen frame plus the means to push it to a surface.
type Display interface {
	// Clear resets the offscreen frame to black. Calling it twice is the
	// same as calling it once.
	Clear()

	// Present pushes the offscreen frame to the physical or simulated
	// surface. It blocks only briefly.
	Present() error

	// Size returns the logical resolution applets draw against.
	Size() image.Point

	// WriteText draws text with its top-left corner at (x, y).
	WriteText(text string, x, y int, face font.Face)

	// DrawImage draws img with its top-left corner at (x, y), shrinking it
	// to fit the frame. A non-nil filter is applied after resizing.
	DrawImage(img image.Image, x, y int, filter func(image.Image) image.Image)

	// SetPixel sets a single pixel.
	SetPixel(x, y int, c color.Color)
}

// FontSource hands out font faces by family name and point size.
type FontSource interface {
	Face(name string, size float64) font.Face
}

// Context is what every applet operation receives.
type Context struct {
	Display Display
	Fonts   FontSource
}

// NewContext bundles a display and a font source.
func NewContext(d Display, fonts FontSource) *Context {
	return &Context{Display: d, Fonts: fonts}
}
