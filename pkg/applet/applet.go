// Package applet defines the capability interfaces every screen implements,
// the immutable Descriptor the scheduler works with, triggers, and the
// registry that maps configured module names to applet factories.
package applet

import (
	"fmt"
	"time"

	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
)

// Applet is a self-contained screen. Render paints one frame into the
// context's display; the engine clears before and presents after.
type Applet interface {
	Render(rc *render.Context) error
}

// Configurer is implemented by applets that need one-time setup.
type Configurer interface {
	Configure(rc *render.Context) error
}

// Updater is implemented by applets with a cheaper or different repaint
// path for update ticks. Applets without it are re-rendered.
type Updater interface {
	Update(rc *render.Context) error
}

// Shutdowner is implemented by applets that release resources at teardown.
type Shutdowner interface {
	Shutdown(rc *render.Context) error
}

// Descriptor is one configured screen: the applet, its resolved optional
// capabilities and its timing. Descriptors are built once at startup and
// never modified.
type Descriptor struct {
	// Name is the configured module name, used in logs and metrics.
	Name string

	// Applet is the render capability.
	Applet Applet

	// Rotation is how long the applet stays visible in normal rotation.
	Rotation time.Duration

	// Update is the repaint interval while visible; zero paints once.
	Update time.Duration

	// Trigger forces activation when it fires. Nil means none.
	Trigger Trigger

	configurer Configurer
	updater    Updater
	shutdowner Shutdowner
}

// NewDescriptor resolves a's optional capabilities and validates timing:
// rotation must be positive and no shorter than update.
func NewDescriptor(name string, a Applet, rotation, update time.Duration, trig Trigger) (*Descriptor, error) {
	if a == nil {
		return nil, fmt.Errorf("applet %q: nil applet", name)
	}
	if rotation <= 0 {
		return nil, fmt.Errorf("applet %q: rotation duration %v must be positive", name, rotation)
	}
	if update < 0 {
		return nil, fmt.Errorf("applet %q: negative update interval %v", name, update)
	}
	if rotation < update {
		return nil, fmt.Errorf("applet %q: rotation duration %v shorter than update interval %v", name, rotation, update)
	}
	d := &Descriptor{
		Name:     name,
		Applet:   a,
		Rotation: rotation,
		Update:   update,
		Trigger:  trig,
	}
	d.configurer, _ = a.(Configurer)
	d.updater, _ = a.(Updater)
	d.shutdowner, _ = a.(Shutdowner)
	return d, nil
}

// Ticks reports whether the applet repaints while visible.
func (d *Descriptor) Ticks() bool { return d.Update > 0 }

// Render paints a full frame. Panics are returned as errors.
func (d *Descriptor) Render(rc *render.Context) error {
	return Call(d.Name, "render", func() error { return d.Applet.Render(rc) })
}

// Tick repaints for an update tick, preferring Updater over Render.
func (d *Descriptor) Tick(rc *render.Context) error {
	if d.updater == nil {
		return d.Render(rc)
	}
	return Call(d.Name, "update", func() error { return d.updater.Update(rc) })
}

// Configure runs the optional one-time setup.
func (d *Descriptor) Configure(rc *render.Context) error {
	if d.configurer == nil {
		return nil
	}
	return Call(d.Name, "configure", func() error { return d.configurer.Configure(rc) })
}

// Shutdown runs the optional teardown.
func (d *Descriptor) Shutdown(rc *render.Context) error {
	if d.shutdowner == nil {
		return nil
	}
	return Call(d.Name, "shutdown", func() error { return d.shutdowner.Shutdown(rc) })
}

// Error is an applet operation failure.
type Error struct {
	Applet string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("applet %q: %s: %v", e.Applet, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Call runs fn, wrapping a returned error or a recovered panic in *Error.
func Call(name, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Applet: name, Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if ferr := fn(); ferr != nil {
		return &Error{Applet: name, Op: op, Err: ferr}
	}
	return nil
}
