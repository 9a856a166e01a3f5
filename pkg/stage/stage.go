// Package stage resolves a configuration document into the set of applets
// the engine schedules: an optional intro, an optional shutdown applet and
// the ordered rotation list.
package stage

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
	"gitlab.com/tinyland/lab/minidisplay/pkg/config"
	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
)

// Set is the resolved, immutable stage configuration.
type Set struct {
	Intro    *applet.Descriptor
	Shutdown *applet.Descriptor
	Rotation []*applet.Descriptor

	// ScreenSaver is nil when no screen saver is configured.
	ScreenSaver *ScreenSaver

	// TriggerPoll is how often triggers are sampled between rotation
	// boundaries.
	TriggerPoll time.Duration
}

// ScreenSaver timing.
type ScreenSaver struct {
	After   time.Duration
	Timeout time.Duration
}

// Build resolves every stage in doc through reg and resolver. Validation
// happens here, once: each module must be registered, time must be positive
// and not shorter than update, and triggers must resolve. Any failure yields
// a configuration error and no Set.
func Build(doc *config.Document, reg *applet.Registry, resolver applet.TriggerResolver) (*Set, error) {
	var errs []error
	set := &Set{TriggerPoll: doc.TriggerPoll}
	if set.TriggerPoll <= 0 {
		set.TriggerPoll = config.DefaultTriggerPoll
	}

	build := func(st *config.Stage) *applet.Descriptor {
		d, err := buildStage(st, reg, resolver)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	if doc.Intro != nil {
		set.Intro = build(doc.Intro)
	}
	if doc.Shutdown != nil {
		set.Shutdown = build(doc.Shutdown)
	}
	for i := range doc.Stages {
		if d := build(&doc.Stages[i]); d != nil {
			set.Rotation = append(set.Rotation, d)
		}
	}
	if doc.ScreenSaver != nil {
		set.ScreenSaver = &ScreenSaver{After: doc.ScreenSaver.After, Timeout: doc.ScreenSaver.Timeout}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return set, nil
}

// Validate runs every Build check that does not need a backend: modules,
// timings and applet options. Trigger specs are accepted as written and only
// resolved by Build.
func Validate(doc *config.Document, reg *applet.Registry) error {
	_, err := Build(doc, reg, anyTrigger{})
	return err
}

type anyTrigger struct{}

func (anyTrigger) Trigger(string) (applet.Trigger, error) { return &applet.ManualTrigger{}, nil }

func buildStage(st *config.Stage, reg *applet.Registry, resolver applet.TriggerResolver) (*applet.Descriptor, error) {
	if _, ok := reg.Lookup(st.Module); !ok {
		return nil, config.Errorf(st.Path, "module", st.Module, "no such applet module")
	}
	if st.Time <= 0 {
		return nil, config.Errorf(st.Path, "time", st.Time, "must be positive")
	}
	if st.Time < st.Update {
		return nil, config.Errorf(st.Path, "time", st.Time, "must not be shorter than update (%v)", st.Update)
	}

	var trig applet.Trigger
	if st.Trigger != "" {
		if resolver == nil {
			return nil, config.Errorf(st.Path, "trigger", st.Trigger, "triggers are not supported by this display")
		}
		t, err := resolver.Trigger(st.Trigger)
		if err != nil {
			return nil, config.Errorf(st.Path, "trigger", st.Trigger, "%v", err)
		}
		trig = t
	}

	a, err := reg.New(st.Module, applet.Options(st.Options))
	if err != nil {
		return nil, config.Errorf(st.Path, "options", nil, "%v", err)
	}
	d, err := applet.NewDescriptor(st.Module, a, st.Time, st.Update, trig)
	if err != nil {
		return nil, config.Errorf(st.Path, "", nil, "%v", err)
	}
	return d, nil
}

// All returns every applet in teardown order: rotation, shutdown, intro.
func (s *Set) All() []*applet.Descriptor {
	all := make([]*applet.Descriptor, 0, len(s.Rotation)+2)
	all = append(all, s.Rotation...)
	if s.Shutdown != nil {
		all = append(all, s.Shutdown)
	}
	if s.Intro != nil {
		all = append(all, s.Intro)
	}
	return all
}

// HasTriggers reports whether any applet has a trigger.
func (s *Set) HasTriggers() bool {
	for _, d := range s.All() {
		if d.Trigger != nil {
			return true
		}
	}
	return false
}

// Configure runs each applet's one-time setup: intro, shutdown, then the
// rotation. Failures are logged and the applet stays scheduled.
func (s *Set) Configure(rc *render.Context, log zerolog.Logger) {
	var order []*applet.Descriptor
	if s.Intro != nil {
		order = append(order, s.Intro)
	}
	if s.Shutdown != nil {
		order = append(order, s.Shutdown)
	}
	order = append(order, s.Rotation...)
	for _, d := range order {
		if err := d.Configure(rc); err != nil {
			log.Error().Err(err).Str("applet", d.Name).Msg("configure failed")
		}
	}
}

// Teardown calls each applet's shutdown hook, best-effort.
func (s *Set) Teardown(rc *render.Context, log zerolog.Logger) {
	for _, d := range s.All() {
		if err := d.Shutdown(rc); err != nil {
			log.Warn().Err(err).Str("applet", d.Name).Msg("shutdown hook failed")
		}
	}
}
