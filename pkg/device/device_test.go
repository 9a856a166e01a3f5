package device

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
)

type fakePanel struct {
	draws   []image.Image
	halted  bool
	drawErr error
}

func (p *fakePanel) Bounds() image.Rectangle { return image.Rect(0, 0, 128, 64) }

func (p *fakePanel) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	p.draws = append(p.draws, src)
	return p.drawErr
}

func (p *fakePanel) Halt() error {
	p.halted = true
	return nil
}

type fakeBus struct{ closed int }

func (b *fakeBus) Close() error {
	b.closed++
	return nil
}

// --- Backend ---

func TestPresentDrawsFrame(t *testing.T) {
	p := &fakePanel{}
	b := newBackend(p, &fakeBus{}, nil, zerolog.Nop())

	d := b.Display()
	if got := d.Size(); got != image.Pt(128, 64) {
		t.Fatalf("Size() = %v, want 128x64", got)
	}
	d.SetPixel(3, 4, render.White)
	if err := d.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if len(p.draws) != 1 {
		t.Fatalf("draws = %d, want 1", len(p.draws))
	}
	got := color.RGBAModel.Convert(p.draws[0].At(3, 4)).(color.RGBA)
	if got != render.White {
		t.Errorf("pixel (3,4) = %v, want white", got)
	}
}

func TestPresentReportsPanelError(t *testing.T) {
	p := &fakePanel{drawErr: errors.New("nack")}
	b := newBackend(p, &fakeBus{}, nil, zerolog.Nop())
	if err := b.Display().Present(); err == nil {
		t.Error("Present should return the panel error")
	}
}

func TestCloseBlanksHaltsAndReleases(t *testing.T) {
	p := &fakePanel{}
	bus := &fakeBus{}
	b := newBackend(p, bus, NewGPIOTriggers(func(string) gpio.PinIO { return nil }, zerolog.Nop()), zerolog.Nop())

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if len(p.draws) != 1 {
		t.Fatalf("draws = %d, want one blank frame", len(p.draws))
	}
	r, g, bl, _ := p.draws[0].At(10, 10).RGBA()
	if r|g|bl != 0 {
		t.Error("close frame should be black")
	}
	if !p.halted {
		t.Error("panel not halted")
	}
	if bus.closed != 1 {
		t.Errorf("bus closed %d times, want 1", bus.closed)
	}
}

// --- GPIO triggers ---

func pins(ps ...*gpiotest.Pin) func(string) gpio.PinIO {
	return func(name string) gpio.PinIO {
		for _, p := range ps {
			if p.N == name {
				return p
			}
		}
		return nil
	}
}

func TestGPIOTriggerLatchesFallingEdge(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17", EdgesChan: make(chan gpio.Level, 1)}
	g := NewGPIOTriggers(pins(pin), zerolog.Nop())
	defer g.Close()

	trig, err := g.Trigger("gpio:GPIO17")
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if again, _ := g.Trigger("gpio:GPIO17"); again != trig {
		t.Error("same pin should resolve to the same trigger")
	}
	if trig.Triggered() {
		t.Fatal("trigger fired before any edge")
	}

	pin.EdgesChan <- gpio.Low
	deadline := time.Now().Add(2 * time.Second)
	for !trig.Triggered() {
		if time.Now().After(deadline) {
			t.Fatal("edge was not latched")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if trig.Triggered() {
		t.Error("latch should clear after being read")
	}
}

func TestGPIOTriggerErrors(t *testing.T) {
	g := NewGPIOTriggers(pins(&gpiotest.Pin{N: "GPIO17", EdgesChan: make(chan gpio.Level)}), zerolog.Nop())
	defer g.Close()

	for spec, want := range map[string]string{
		"key:1":       "unsupported trigger",
		"gpio:":       "unsupported trigger",
		"gpio:GPIO99": "no such gpio pin",
	} {
		_, err := g.Trigger(spec)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("Trigger(%q) = %v, want error containing %q", spec, err, want)
		}
	}
}

func TestGPIOTriggersCloseStopsWatchers(t *testing.T) {
	g := NewGPIOTriggers(pins(&gpiotest.Pin{N: "GPIO4", EdgesChan: make(chan gpio.Level)}), zerolog.Nop())
	if _, err := g.Trigger("gpio:GPIO4"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	done := make(chan struct{})
	go func() {
		g.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the watcher")
	}
	if _, err := g.Trigger("gpio:GPIO4"); err == nil {
		t.Error("Trigger after Close should fail")
	}
}
