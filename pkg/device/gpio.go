package device

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"

	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
)

// watchTimeout bounds each WaitForEdge so watchers notice Close.
const watchTimeout = 200 * time.Millisecond

// GPIOTriggers resolves "gpio:<pin>" specs. Each pin is configured as a
// pulled-up input and watched for falling edges (a button to ground) by its
// own goroutine, which latches the trigger.
type GPIOTriggers struct {
	byName func(string) gpio.PinIO
	log    zerolog.Logger

	mu       sync.Mutex
	triggers map[string]*applet.ManualTrigger
	done     chan struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewGPIOTriggers looks pins up with byName, normally gpioreg.ByName.
func NewGPIOTriggers(byName func(string) gpio.PinIO, log zerolog.Logger) *GPIOTriggers {
	return &GPIOTriggers{
		byName:   byName,
		log:      log.With().Str("component", "gpio").Logger(),
		triggers: make(map[string]*applet.ManualTrigger),
		done:     make(chan struct{}),
	}
}

// Trigger implements applet.TriggerResolver.
func (g *GPIOTriggers) Trigger(spec string) (applet.Trigger, error) {
	scheme, name, ok := strings.Cut(spec, ":")
	if !ok || !strings.EqualFold(scheme, "gpio") || name == "" {
		return nil, fmt.Errorf("unsupported trigger %q (want gpio:<pin>)", spec)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, fmt.Errorf("trigger %q: gpio watchers closed", spec)
	}
	if t, ok := g.triggers[name]; ok {
		return t, nil
	}
	pin := g.byName(name)
	if pin == nil {
		return nil, fmt.Errorf("trigger %q: no such gpio pin", spec)
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("trigger %q: configure pin: %w", spec, err)
	}

	t := &applet.ManualTrigger{}
	g.triggers[name] = t
	g.wg.Add(1)
	go g.watch(pin, t)
	g.log.Debug().Str("pin", pin.Name()).Msg("watching for falling edges")
	return t, nil
}

func (g *GPIOTriggers) watch(pin gpio.PinIO, t *applet.ManualTrigger) {
	defer g.wg.Done()
	for {
		select {
		case <-g.done:
			return
		default:
		}
		if pin.WaitForEdge(watchTimeout) {
			t.Fire()
		}
	}
}

// Close stops every watcher and waits for them to exit.
func (g *GPIOTriggers) Close() {
	g.mu.Lock()
	if !g.closed {
		g.closed = true
		close(g.done)
	}
	g.mu.Unlock()
	g.wg.Wait()
}
