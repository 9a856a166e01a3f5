package simulator

import (
	"errors"
	"image"
	"io"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"

	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
)

func plainPainter(scale int) *painter {
	return &painter{r: lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.Ascii)), scale: scale}
}

func frameWith(w, h int, on ...image.Point) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		if i%4 == 3 {
			img.Pix[i] = 0xff
		}
	}
	for _, p := range on {
		img.Set(p.X, p.Y, render.White)
	}
	return img
}

// --- painter ---

func TestPaintHalfBlocks(t *testing.T) {
	img := frameWith(4, 8,
		image.Pt(0, 0),
		image.Pt(1, 1),
		image.Pt(2, 0), image.Pt(2, 1),
		image.Pt(0, 2), image.Pt(0, 3),
	)
	got := plainPainter(1).Paint(img)
	want := strings.Join([]string{
		"▀▄█ ",
		"█   ",
		"    ",
		"    ",
	}, "\n")
	if got != want {
		t.Errorf("Paint =\n%q\nwant\n%q", got, want)
	}
}

func TestPaintSplitsTintBoundary(t *testing.T) {
	// Height 4: row 0 is yellow, row 1 blue, so a lit pair straddles
	// the boundary and cannot be a full block.
	img := frameWith(1, 4, image.Pt(0, 0), image.Pt(0, 1))
	if got := plainPainter(1).Paint(img); got != "▀\n " {
		t.Errorf("Paint = %q, want %q", got, "▀\n ")
	}
}

func TestPaintScales(t *testing.T) {
	img := frameWith(2, 1, image.Pt(0, 0))
	if got := plainPainter(2).Paint(img); got != "██  " {
		t.Errorf("Paint = %q, want %q", got, "██  ")
	}
}

func TestLitThreshold(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 1))
	img.Pix[0], img.Pix[1], img.Pix[2] = 0x00, 0x7f, 0x80
	for x, want := range []bool{false, false, true} {
		if got := lit(img, x, 0); got != want {
			t.Errorf("lit(%d) = %v, want %v", x, got, want)
		}
	}
	if lit(img, 5, 5) {
		t.Error("out of bounds pixels are off")
	}
}

// --- model ---

func TestModelKeys(t *testing.T) {
	interrupts := 0
	var fired []string
	m := newModel(lipgloss.NewRenderer(io.Discard), func() { interrupts++ }, func(n string) { fired = append(fired, n) })

	step := func(msg tea.Msg) {
		next, cmd := m.Update(msg)
		if cmd != nil {
			t.Errorf("Update(%v) returned a command", msg)
		}
		m = next.(model)
	}

	step(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'3'}})
	step(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	step(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	step(tea.KeyMsg{Type: tea.KeyCtrlC})

	if len(fired) != 1 || fired[0] != "3" {
		t.Errorf("fired = %v, want [3]", fired)
	}
	if interrupts != 1 {
		t.Errorf("interrupts = %d, want 1", interrupts)
	}
	if !strings.Contains(m.View(), "shutting down") {
		t.Error("view should show the shutdown status after quit")
	}
}

func TestModelShowsFrame(t *testing.T) {
	m := newModel(lipgloss.NewRenderer(io.Discard), nil, nil)
	next, _ := m.Update(frameMsg("▀▄"))
	if v := next.(model).View(); !strings.Contains(v, "▀▄") {
		t.Errorf("View() = %q, want the frame", v)
	}
}

// --- Simulator ---

func TestSimulatorWithoutTerminal(t *testing.T) {
	out, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	s := New(Options{Width: 128, Height: 64, Scale: 2, Output: out, Input: strings.NewReader(""), Logger: zerolog.Nop()})
	if err := s.Start(); !errors.Is(err, ErrNotTerminal) {
		t.Errorf("Start = %v, want ErrNotTerminal", err)
	}
	if got := s.Display().Size(); got != image.Pt(128, 64) {
		t.Errorf("Size() = %v, want 128x64", got)
	}
	if err := s.Display().Present(); err != nil {
		t.Errorf("Present without a program: %v", err)
	}

	trig, err := s.Triggers().Trigger("key:1")
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	s.fire("1")
	if !trig.Triggered() {
		t.Error("key 1 should latch key:1")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
