package simulator

import (
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xdraw "golang.org/x/image/draw"
)

// Two-colour OLED tints: the top quarter of the panel is yellow, the rest
// blue.
var (
	tintTop    = lipgloss.Color("#FFFF00")
	tintBottom = lipgloss.Color("#0064FF")
	tintOff    = lipgloss.Color("#000000")
)

// painter turns frames into terminal text, two pixel rows per line using
// half-block glyphs.
type painter struct {
	r     *lipgloss.Renderer
	scale int
}

type cell struct {
	glyph  string
	fg, bg lipgloss.Color
}

// lit reports whether a pixel is on. Anything at or above half intensity
// lights, like the panel's own one-bit conversion.
func lit(img image.Image, x, y int) bool {
	if !(image.Point{x, y}.In(img.Bounds())) {
		return false
	}
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y >= 0x80
}

// Paint scales frame by the painter's scale and renders it.
func (p *painter) Paint(frame image.Image) string {
	src := frame.Bounds()
	scale := max(p.scale, 1)
	w, h := src.Dx()*scale, src.Dy()*scale
	img := image.Image(frame)
	if scale > 1 {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), frame, src, xdraw.Src, nil)
		img = dst
	} else if src.Min != (image.Point{}) {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.Draw(dst, dst.Bounds(), frame, src.Min, xdraw.Src)
		img = dst
	}
	yellowRows := h / 4

	tint := func(y int) lipgloss.Color {
		if y < yellowRows {
			return tintTop
		}
		return tintBottom
	}

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		var run cell
		n := 0
		flush := func() {
			if n == 0 {
				return
			}
			text := strings.Repeat(run.glyph, n)
			if run.glyph == " " {
				sb.WriteString(text)
			} else {
				sb.WriteString(p.r.NewStyle().Foreground(run.fg).Background(run.bg).Render(text))
			}
			n = 0
		}
		for x := 0; x < w; x++ {
			c := cellAt(lit(img, x, y), lit(img, x, y+1), tint(y), tint(y+1))
			if n > 0 && c != run {
				flush()
			}
			run = c
			n++
		}
		flush()
		if y+2 < h {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func cellAt(top, bottom bool, topTint, bottomTint lipgloss.Color) cell {
	switch {
	case top && bottom && topTint == bottomTint:
		return cell{glyph: "█", fg: topTint, bg: tintOff}
	case top && bottom:
		return cell{glyph: "▀", fg: topTint, bg: bottomTint}
	case top:
		return cell{glyph: "▀", fg: topTint, bg: tintOff}
	case bottom:
		return cell{glyph: "▄", fg: bottomTint, bg: tintOff}
	}
	return cell{glyph: " "}
}
