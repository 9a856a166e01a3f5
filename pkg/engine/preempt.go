package engine

import (
	"time"
)

// --- screen saver ---

// armScreenSaver (re)starts the idle countdown from now.
func (e *Engine) armScreenSaver(now time.Time) {
	ss := e.stages.ScreenSaver
	if ss == nil || ss.After <= 0 {
		return
	}
	e.queue.Cancel(e.saver)
	e.saver = e.queue.ScheduleAt(now.Add(ss.After), prioControl, event{kind: evSaverEnter})
}

// activity records trigger or forced-rotation activity, which postpones the
// screen saver.
func (e *Engine) activity(now time.Time) {
	if e.phase == Rotating {
		e.armScreenSaver(now)
	}
}

func (e *Engine) onSaverEnter(due time.Time) {
	if e.phase != Rotating || e.stopping {
		return
	}
	e.cancelAll()
	e.setPhase(ScreenSaver)
	e.setActive(nil)
	e.blank()
	e.metrics.ScreenSaver()
	e.log.Info().Msg("screen saver on")

	if t := e.stages.ScreenSaver.Timeout; t > 0 {
		e.saver = e.queue.ScheduleAt(due.Add(t), prioControl, event{kind: evSaverExit})
	}
	e.schedulePoll(due)
}

// onSaverExit resumes rotation from the first applet; the interrupted
// position is not kept.
func (e *Engine) onSaverExit(due time.Time) {
	if e.phase != ScreenSaver || e.stopping {
		return
	}
	e.cancelAll()
	e.log.Info().Msg("screen saver off")
	e.beginRotation(due)
	e.schedulePoll(due)
}

// --- triggers ---

// triggered returns the first rotation applet whose trigger fired, or -1.
// Later applets keep their latch for the following boundary.
func (e *Engine) triggered() int {
	for i, d := range e.stages.Rotation {
		if d.Trigger != nil && d.Trigger.Triggered() {
			return i
		}
	}
	return -1
}

// anyTriggered consumes every rotation trigger and reports whether one
// had fired.
func (e *Engine) anyTriggered() bool {
	fired := false
	for _, d := range e.stages.Rotation {
		if d.Trigger != nil && d.Trigger.Triggered() {
			fired = true
		}
	}
	return fired
}

// pollNeeded reports whether some trigger can act between boundaries in
// the current phase: the intro trigger, the shutdown trigger, or any
// trigger while the screen saver is on.
func (e *Engine) pollNeeded() bool {
	shutdownTrigger := e.stages.Shutdown != nil && e.stages.Shutdown.Trigger != nil
	switch e.phase {
	case Intro:
		return shutdownTrigger || (e.stages.Intro != nil && e.stages.Intro.Trigger != nil)
	case Rotating:
		return shutdownTrigger
	case ScreenSaver:
		if shutdownTrigger {
			return true
		}
		for _, d := range e.stages.Rotation {
			if d.Trigger != nil {
				return true
			}
		}
	}
	return false
}

func (e *Engine) schedulePoll(now time.Time) {
	e.queue.Cancel(e.poll)
	e.poll = 0
	if e.stopping || !e.pollNeeded() {
		return
	}
	e.poll = e.queue.ScheduleAt(now.Add(e.stages.TriggerPoll), prioPoll, event{kind: evTriggerPoll})
}

func (e *Engine) onPoll(due time.Time) {
	if sd := e.stages.Shutdown; sd != nil && sd.Trigger != nil && sd.Trigger.Triggered() {
		e.log.Info().Msg("shutdown trigger fired")
		e.RequestShutdown()
		return
	}

	switch e.phase {
	case Intro:
		if in := e.stages.Intro; in != nil && in.Trigger != nil && in.Trigger.Triggered() {
			e.log.Debug().Msg("intro skipped")
			e.queue.Cancel(e.boundary)
			e.boundary = e.queue.ScheduleAt(due, prioBoundary, event{kind: evBoundary, index: 0})
		}
	case ScreenSaver:
		if e.anyTriggered() {
			e.queue.Cancel(e.saver)
			e.saver = e.queue.ScheduleAt(due, prioControl, event{kind: evSaverExit})
		}
	}
	e.schedulePoll(due)
}

// --- shutdown ---

func (e *Engine) onShutdownBegin(due time.Time) {
	if e.phase == Shutdown || e.phase == Stopped {
		return
	}
	e.cancelAll()
	e.setPhase(Shutdown)

	sd := e.stages.Shutdown
	if sd == nil {
		e.setActive(nil)
		e.setPhase(Stopped)
		return
	}
	e.log.Info().Str("applet", sd.Name).Dur("hold", sd.Rotation).Msg("shutting down")
	e.setActive(sd)
	e.paint(sd, sd.Render)
	e.queue.ScheduleAt(due.Add(sd.Rotation), prioControl, event{kind: evShutdownEnd})
}

func (e *Engine) onShutdownEnd() {
	if e.phase != Shutdown {
		return
	}
	e.setActive(nil)
	e.setPhase(Stopped)
}
