package engine

import (
	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
)

// Phase is the engine's coarse state.
type Phase int

// Engine phases. The numeric values are exported as the phase gauge.
const (
	Stopped Phase = iota
	Intro
	Rotating
	ScreenSaver
	Shutdown
)

func (p Phase) String() string {
	switch p {
	case Stopped:
		return "stopped"
	case Intro:
		return "intro"
	case Rotating:
		return "rotating"
	case ScreenSaver:
		return "screensaver"
	case Shutdown:
		return "shutdown"
	}
	return "unknown"
}

// Event priorities. At equal due times lower values fire first, so control
// transitions run before a rotation boundary, and a boundary always runs
// before the update tick it is about to cancel.
const (
	prioControl  = 0
	prioBoundary = 1
	prioPoll     = 2
	prioUpdate   = 3
)

type eventKind int

const (
	evIntro eventKind = iota
	evBoundary
	evUpdate
	evAdvance
	evSaverEnter
	evSaverExit
	evTriggerPoll
	evShutdownBegin
	evShutdownEnd
)

func (k eventKind) String() string {
	switch k {
	case evIntro:
		return "intro"
	case evBoundary:
		return "boundary"
	case evUpdate:
		return "update"
	case evAdvance:
		return "advance"
	case evSaverEnter:
		return "screensaver-enter"
	case evSaverExit:
		return "screensaver-exit"
	case evTriggerPoll:
		return "trigger-poll"
	case evShutdownBegin:
		return "shutdown-begin"
	case evShutdownEnd:
		return "shutdown-end"
	}
	return "unknown"
}

// event is the queue payload. index is the rotation slot for boundaries;
// applet is the applet an update tick belongs to.
type event struct {
	kind   eventKind
	index  int
	applet *applet.Descriptor
}
