// Package engine is the applet scheduler. It decides which applet is on
// screen, when it repaints, when rotation advances and how the screen saver
// and shutdown phases preempt rotation.
//
// Everything runs on the goroutine that calls Run: every state change
// happens inside a timer queue callback, and there is at most one pending
// update tick at any time. Inputs from other goroutines arrive only as
// context cancellation (the operator interrupt) and latched triggers, both
// consumed at the next wake-up.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
	"gitlab.com/tinyland/lab/minidisplay/pkg/metrics"
	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
	"gitlab.com/tinyland/lab/minidisplay/pkg/stage"
	"gitlab.com/tinyland/lab/minidisplay/pkg/timerqueue"
)

// Options configures an Engine.
type Options struct {
	Stages  *stage.Set
	Render  *render.Context
	Clock   timerqueue.Clock // nil means the wall clock
	Logger  zerolog.Logger
	Metrics *metrics.Metrics // optional
}

// Engine schedules applets. It is not safe for concurrent use.
type Engine struct {
	log     zerolog.Logger
	stages  *stage.Set
	rc      *render.Context
	metrics *metrics.Metrics
	clock   timerqueue.Clock
	queue   *timerqueue.Queue[event]

	phase    Phase
	active   *applet.Descriptor
	next     int
	started  bool
	stopping bool

	boundary timerqueue.Token
	update   timerqueue.Token
	saver    timerqueue.Token
	poll     timerqueue.Token
}

// New builds an engine in the Stopped phase.
func New(opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = timerqueue.RealClock{}
	}
	stages := opts.Stages
	if stages == nil {
		stages = &stage.Set{}
	}
	e := &Engine{
		log:     opts.Logger.With().Str("component", "engine").Logger(),
		stages:  stages,
		rc:      opts.Render,
		metrics: opts.Metrics,
		clock:   clock,
	}
	e.queue = timerqueue.New(clock, e.dispatch)
	return e
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase { return e.phase }

// Active returns the applet on screen, or nil.
func (e *Engine) Active() *applet.Descriptor { return e.active }

// UpdatePending reports whether an update tick is waiting to fire.
func (e *Engine) UpdatePending() bool { return e.queue.Pending(e.update) }

// Pending returns the number of queued events.
func (e *Engine) Pending() int { return e.queue.Len() }

// NextDue returns when the earliest queued event is due.
func (e *Engine) NextDue() (time.Time, bool) { return e.queue.NextDue() }

// Start leaves the Stopped phase: the intro is painted now and rotation
// begins when its duration has elapsed, or rotation begins now when there
// is no intro. Calling Start again has no effect.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true
	now := e.clock.Now()

	if intro := e.stages.Intro; intro != nil {
		e.setPhase(Intro)
		e.queue.ScheduleAt(now, prioBoundary, event{kind: evIntro})
		e.next = 0
		e.boundary = e.queue.ScheduleAt(now.Add(intro.Rotation), prioBoundary, event{kind: evBoundary, index: 0})
	} else {
		e.beginRotation(now)
	}
	e.schedulePoll(now)
	e.log.Info().
		Bool("intro", e.stages.Intro != nil).
		Int("stages", len(e.stages.Rotation)).
		Msg("scheduler started")
}

// RunPending fires due events and, if blocking, waits for the next one.
func (e *Engine) RunPending(ctx context.Context, blocking bool) error {
	return e.queue.RunPending(ctx, blocking)
}

// Run starts the engine and drives it until it reaches Stopped. Cancelling
// ctx requests shutdown; the shutdown applet is still held for its full
// duration afterwards.
func (e *Engine) Run(ctx context.Context) error {
	e.Start()
	hold := context.WithoutCancel(ctx)

	for e.phase != Stopped {
		if ctx.Err() != nil && !e.stopping {
			e.log.Info().Msg("interrupt received")
			e.RequestShutdown()
		}
		wait := ctx
		if e.stopping {
			wait = hold
		}
		if e.queue.Len() == 0 {
			if e.stopping {
				e.setPhase(Stopped)
				break
			}
			<-ctx.Done()
			continue
		}
		err := e.queue.RunPending(wait, true)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	e.log.Info().Msg("scheduler stopped")
	return nil
}

// RequestShutdown queues the shutdown sequence. It must be called on the
// scheduling goroutine; other goroutines cancel Run's context instead.
func (e *Engine) RequestShutdown() {
	if e.stopping || e.phase == Stopped {
		return
	}
	e.stopping = true
	e.queue.Schedule(0, prioControl, event{kind: evShutdownBegin})
}

// Advance queues a forced rotation to the next applet. Like
// RequestShutdown it only enqueues; the switch happens in a callback.
func (e *Engine) Advance() {
	if e.stopping {
		return
	}
	e.queue.Schedule(0, prioBoundary, event{kind: evAdvance})
}

func (e *Engine) dispatch(due time.Time, ev event) {
	e.log.Trace().Stringer("event", ev.kind).Time("due", due).Msg("fire")
	switch ev.kind {
	case evIntro:
		e.onIntro(due)
	case evBoundary:
		e.boundary = 0
		e.onBoundary(due, ev.index)
	case evUpdate:
		e.onUpdate(due, ev.applet)
	case evAdvance:
		e.onAdvance(due)
	case evSaverEnter:
		e.saver = 0
		e.onSaverEnter(due)
	case evSaverExit:
		e.saver = 0
		e.onSaverExit(due)
	case evTriggerPoll:
		e.poll = 0
		e.onPoll(due)
	case evShutdownBegin:
		e.onShutdownBegin(due)
	case evShutdownEnd:
		e.onShutdownEnd()
	}
}

// --- rotation ---

func (e *Engine) onIntro(due time.Time) {
	if e.phase != Intro {
		return
	}
	e.show(e.stages.Intro, due)
}

func (e *Engine) beginRotation(now time.Time) {
	e.setPhase(Rotating)
	e.next = 0
	e.boundary = e.queue.ScheduleAt(now, prioBoundary, event{kind: evBoundary, index: 0})
	e.armScreenSaver(now)
}

// onBoundary switches to rotation slot index, unless a rotation trigger
// fired, in which case that applet is shown instead.
func (e *Engine) onBoundary(due time.Time, index int) {
	e.cancelUpdate()

	if e.phase == Intro {
		e.log.Debug().Msg("intro finished")
		e.setPhase(Rotating)
		e.armScreenSaver(due)
	}
	if e.phase != Rotating {
		return
	}

	n := len(e.stages.Rotation)
	if n == 0 {
		e.setActive(nil)
		return
	}
	idx := index % n
	if t := e.triggered(); t >= 0 {
		e.log.Debug().Str("applet", e.stages.Rotation[t].Name).Msg("trigger fired")
		idx = t
		e.activity(due)
	}

	d := e.stages.Rotation[idx]
	e.metrics.Rotation()
	e.show(d, due)
	e.next = (idx + 1) % n
	e.boundary = e.queue.ScheduleAt(e.after(due, d.Rotation), prioBoundary, event{kind: evBoundary, index: e.next})
}

func (e *Engine) onAdvance(due time.Time) {
	if e.phase != Rotating && e.phase != Intro {
		return
	}
	e.queue.Cancel(e.boundary)
	e.boundary = 0
	e.activity(due)
	e.onBoundary(due, e.next)
}

// show makes d the active applet, paints it and starts its update ticks.
func (e *Engine) show(d *applet.Descriptor, due time.Time) {
	e.setActive(d)
	e.log.Debug().Str("applet", d.Name).Msg("show")
	e.paint(d, d.Render)
	if d.Ticks() {
		e.update = e.queue.ScheduleAt(e.after(due, d.Update), prioUpdate, event{kind: evUpdate, applet: d})
	}
}

func (e *Engine) onUpdate(due time.Time, d *applet.Descriptor) {
	e.update = 0
	if d == nil || d != e.active || (e.phase != Rotating && e.phase != Intro) {
		return
	}
	e.paint(d, d.Tick)
	e.update = e.queue.ScheduleAt(e.after(due, d.Update), prioUpdate, event{kind: evUpdate, applet: d})
}

func (e *Engine) cancelUpdate() {
	e.queue.Cancel(e.update)
	e.update = 0
}

// after returns due+d, or now+d when the queue has fallen behind, so a
// stall never turns into a burst of catch-up events.
func (e *Engine) after(due time.Time, d time.Duration) time.Time {
	next := due.Add(d)
	if now := e.clock.Now(); next.Before(now) {
		return now.Add(d)
	}
	return next
}

// paint clears the frame, runs op and presents the result. A failing
// applet is logged and its frame dropped; the schedule is unaffected.
func (e *Engine) paint(d *applet.Descriptor, op func(*render.Context) error) {
	if e.rc == nil || e.rc.Display == nil {
		return
	}
	e.rc.Display.Clear()
	if err := op(e.rc); err != nil {
		name := "render"
		var aerr *applet.Error
		if errors.As(err, &aerr) {
			name = aerr.Op
		}
		e.log.Error().Err(err).Str("applet", d.Name).Str("op", name).Msg("applet failed")
		e.metrics.Failure(d.Name, name)
		return
	}
	if err := e.rc.Display.Present(); err != nil {
		e.log.Error().Err(err).Str("applet", d.Name).Msg("present failed")
		return
	}
	e.metrics.Paint(d.Name)
}

// blank presents an empty frame.
func (e *Engine) blank() {
	if e.rc == nil || e.rc.Display == nil {
		return
	}
	e.rc.Display.Clear()
	if err := e.rc.Display.Present(); err != nil {
		e.log.Error().Err(err).Msg("present failed")
	}
}

// --- state helpers ---

func (e *Engine) setPhase(p Phase) {
	if e.phase != p {
		e.log.Debug().Stringer("from", e.phase).Stringer("to", p).Msg("phase")
	}
	e.phase = p
	e.metrics.Phase(int(p))
}

func (e *Engine) setActive(d *applet.Descriptor) {
	e.active = d
	if d == nil {
		e.metrics.Active("")
		return
	}
	e.metrics.Active(d.Name)
}

func (e *Engine) cancelAll() {
	e.queue.CancelAll()
	e.boundary, e.update, e.saver, e.poll = 0, 0, 0, 0
}
