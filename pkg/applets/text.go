package applets

import (
	"errors"

	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
)

// text draws fixed lines, for intro and shutdown banners. With center set
// each line and the block as a whole are centred.
type text struct {
	lines  []string
	font   string
	size   float64
	x, y   int
	center bool
}

func newText(o applet.Options) (applet.Applet, error) {
	lines, err := o.Strings("lines", nil)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errors.New("option lines is required")
	}
	name, size, err := fontOptions(o, 12)
	if err != nil {
		return nil, err
	}
	t := &text{lines: lines, font: name, size: size}
	if t.x, err = o.Int("x", 0); err != nil {
		return nil, err
	}
	if t.y, err = o.Int("y", 0); err != nil {
		return nil, err
	}
	align, err := o.String("align", "left")
	if err != nil {
		return nil, err
	}
	switch align {
	case "left":
	case "center":
		t.center = true
	default:
		return nil, errors.New("option align must be left or center")
	}
	return t, nil
}

func (t *text) Render(rc *render.Context) error {
	f := face(rc, t.font, t.size)
	h := lineHeight(f)
	size := rc.Display.Size()

	y := t.y
	if t.center {
		y = max((size.Y-h*len(t.lines))/2, 0)
	}
	for _, line := range t.lines {
		x := t.x
		if t.center {
			x = max((size.X-textWidth(f, line))/2, 0)
		}
		rc.Display.WriteText(line, x, y, f)
		y += h
	}
	return nil
}
