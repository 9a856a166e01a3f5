package applet

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Trigger is an external condition that can force an applet on screen.
// Triggered reports whether it fired since the last call and clears the
// latch; it is only called from the scheduling goroutine.
type Trigger interface {
	Triggered() bool
}

// TriggerResolver turns a configured trigger string such as "gpio:GPIO17"
// into a Trigger. Backends provide one.
type TriggerResolver interface {
	Trigger(spec string) (Trigger, error)
}

// ManualTrigger is latched by Fire, from any goroutine, and consumed by
// Triggered.
type ManualTrigger struct {
	fired atomic.Bool
}

// Fire latches the trigger.
func (t *ManualTrigger) Fire() { t.fired.Store(true) }

// Triggered reports and clears the latch.
func (t *ManualTrigger) Triggered() bool { return t.fired.Swap(false) }

// ManualTriggers resolves "<scheme>:<name>" specs to ManualTriggers, one per
// distinct name, so something outside the scheduler (a key press) can fire
// them by name.
type ManualTriggers struct {
	scheme string

	mu       sync.Mutex
	triggers map[string]*ManualTrigger
}

// NewManualTriggers returns a resolver accepting specs of the given scheme.
func NewManualTriggers(scheme string) *ManualTriggers {
	return &ManualTriggers{scheme: scheme, triggers: make(map[string]*ManualTrigger)}
}

// Trigger resolves spec, creating the named trigger on first use.
func (m *ManualTriggers) Trigger(spec string) (Trigger, error) {
	scheme, name, ok := strings.Cut(spec, ":")
	if !ok || scheme != m.scheme || name == "" {
		return nil, fmt.Errorf("unsupported trigger %q (want %s:<name>)", spec, m.scheme)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.triggers[name]
	if !ok {
		t = &ManualTrigger{}
		m.triggers[name] = t
	}
	return t, nil
}

// Fire latches the named trigger. It reports false if nothing resolved it.
func (m *ManualTriggers) Fire(name string) bool {
	m.mu.Lock()
	t, ok := m.triggers[name]
	m.mu.Unlock()
	if ok {
		t.Fire()
	}
	return ok
}
