package applets

import (
	"time"

	"golang.org/x/image/font"

	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
)

// clock shows the time, and optionally the date below it, centred. It is
// meant to run with an update interval so the seconds move.
type clock struct {
	now        func() time.Time
	font       string
	size       float64
	timeLayout string
	dateLayout string
	loc        *time.Location
}

func newClock(o applet.Options, env Env) (applet.Applet, error) {
	name, size, err := fontOptions(o, 20)
	if err != nil {
		return nil, err
	}
	c := &clock{now: env.Now, font: name, size: size, loc: time.Local}
	if c.timeLayout, err = o.String("format", "15:04:05"); err != nil {
		return nil, err
	}
	if c.dateLayout, err = o.String("date_format", "Mon 02 Jan 2006"); err != nil {
		return nil, err
	}
	tz, err := o.String("timezone", "")
	if err != nil {
		return nil, err
	}
	if tz != "" {
		if c.loc, err = time.LoadLocation(tz); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *clock) Render(rc *render.Context) error {
	now := c.now().In(c.loc)
	big := face(rc, c.font, c.size)
	small := face(rc, c.font, c.size/2)
	size := rc.Display.Size()

	type line struct {
		text string
		face font.Face
	}
	lines := []line{{now.Format(c.timeLayout), big}}
	if c.dateLayout != "" {
		lines = append(lines, line{now.Format(c.dateLayout), small})
	}

	total := 0
	for _, l := range lines {
		total += lineHeight(l.face)
	}
	y := max((size.Y-total)/2, 0)
	for _, l := range lines {
		x := max((size.X-textWidth(l.face, l.text))/2, 0)
		rc.Display.WriteText(l.text, x, y, l.face)
		y += lineHeight(l.face)
	}
	return nil
}
