package stage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
	"gitlab.com/tinyland/lab/minidisplay/pkg/config"
	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
)

type hookApplet struct {
	name  string
	calls *[]string
	fail  bool
}

func (a *hookApplet) Render(*render.Context) error { return nil }

func (a *hookApplet) Configure(*render.Context) error {
	*a.calls = append(*a.calls, "configure:"+a.name)
	if a.fail {
		return errors.New("configure failed")
	}
	return nil
}

func (a *hookApplet) Shutdown(*render.Context) error {
	*a.calls = append(*a.calls, "shutdown:"+a.name)
	if a.fail {
		return errors.New("shutdown failed")
	}
	return nil
}

func newRegistry(t *testing.T, calls *[]string) *applet.Registry {
	t.Helper()
	reg := applet.NewRegistry()
	for _, name := range []string{"intro", "bye", "a", "b", "flaky"} {
		name := name
		if err := reg.Register(name, func(applet.Options) (applet.Applet, error) {
			return &hookApplet{name: name, calls: calls, fail: name == "flaky"}, nil
		}); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	_ = reg.Register("needs-options", func(o applet.Options) (applet.Applet, error) {
		if _, err := o.String("path", ""); err != nil {
			return nil, err
		}
		return &hookApplet{name: "needs-options", calls: calls}, nil
	})
	return reg
}

func stage(path, module string, tm, upd time.Duration) config.Stage {
	return config.Stage{Path: path, Module: module, Time: tm, Update: upd}
}

func buildErr(t *testing.T, doc *config.Document, resolver applet.TriggerResolver) error {
	t.Helper()
	var calls []string
	set, err := Build(doc, newRegistry(t, &calls), resolver)
	if err == nil {
		t.Fatal("expected Build to fail")
	}
	if set != nil {
		t.Error("Build returned a partial set alongside an error")
	}
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("error %v does not match config.ErrInvalid", err)
	}
	return err
}

// --- Build ---

func TestBuildResolvesStages(t *testing.T) {
	intro := stage("intro", "intro", 2*time.Second, 0)
	doc := &config.Document{
		Intro:       &intro,
		Stages:      []config.Stage{stage("stages[0]", "a", 2*time.Second, 500*time.Millisecond), stage("stages[1]", "b", time.Second, 0)},
		ScreenSaver: &config.ScreenSaver{After: time.Minute, Timeout: 30 * time.Second},
		TriggerPoll: 50 * time.Millisecond,
	}
	var calls []string
	set, err := Build(doc, newRegistry(t, &calls), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if set.Intro == nil || set.Intro.Rotation != 2*time.Second {
		t.Errorf("Intro = %+v", set.Intro)
	}
	if set.Shutdown != nil {
		t.Error("Shutdown set without configuration")
	}
	if len(set.Rotation) != 2 || set.Rotation[0].Name != "a" || set.Rotation[1].Name != "b" {
		t.Fatalf("Rotation = %+v", set.Rotation)
	}
	if set.Rotation[0].Update != 500*time.Millisecond {
		t.Errorf("a.Update = %v", set.Rotation[0].Update)
	}
	if set.ScreenSaver == nil || set.ScreenSaver.After != time.Minute {
		t.Errorf("ScreenSaver = %+v", set.ScreenSaver)
	}
	if set.TriggerPoll != 50*time.Millisecond {
		t.Errorf("TriggerPoll = %v", set.TriggerPoll)
	}
	if set.HasTriggers() {
		t.Error("HasTriggers() = true without triggers")
	}
}

func TestBuildRejectsUpdateLongerThanTime(t *testing.T) {
	doc := &config.Document{Stages: []config.Stage{stage("stages[0]", "a", time.Second, 2*time.Second)}}
	err := buildErr(t, doc, nil)
	if !strings.Contains(err.Error(), "stages[0]: time=1s") {
		t.Errorf("error %q does not name the stage and value", err)
	}
}

func TestValidateChecksWithoutBackend(t *testing.T) {
	var calls []string
	reg := newRegistry(t, &calls)

	ok := stage("stages[0]", "a", time.Second, 0)
	ok.Trigger = "gpio:GPIO17"
	if err := Validate(&config.Document{Stages: []config.Stage{ok}}, reg); err != nil {
		t.Errorf("Validate with an unresolved trigger = %v, want nil", err)
	}

	for name, st := range map[string]config.Stage{
		"unknown module":  stage("stages[0]", "weather", time.Second, 0),
		"update too long": stage("stages[0]", "a", time.Second, 2*time.Second),
		"zero time":       stage("stages[0]", "a", 0, 0),
	} {
		err := Validate(&config.Document{Stages: []config.Stage{st}}, reg)
		if !errors.Is(err, config.ErrInvalid) {
			t.Errorf("%s: Validate = %v, want a configuration error", name, err)
		}
	}
	if len(calls) != 0 {
		t.Errorf("Validate configured applets: %v", calls)
	}
}

func TestBuildRejectsZeroTime(t *testing.T) {
	doc := &config.Document{Stages: []config.Stage{stage("stages[0]", "a", 0, 0)}}
	buildErr(t, doc, nil)
}

func TestBuildRejectsUnknownModule(t *testing.T) {
	doc := &config.Document{Stages: []config.Stage{
		stage("stages[0]", "a", time.Second, 0),
		stage("stages[1]", "weather", time.Second, 0),
	}}
	err := buildErr(t, doc, nil)
	if !strings.Contains(err.Error(), "stages[1]: module=weather") {
		t.Errorf("error %q does not name the stage", err)
	}
}

func TestBuildRejectsBadIntroAndShutdown(t *testing.T) {
	intro := stage("intro", "missing", time.Second, 0)
	bye := stage("shutdown", "bye", time.Second, 2*time.Second)
	err := buildErr(t, &config.Document{Intro: &intro, Shutdown: &bye}, nil)
	for _, want := range []string{"intro:", "shutdown:"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestBuildReportsFactoryError(t *testing.T) {
	st := stage("stages[0]", "needs-options", time.Second, 0)
	st.Options = map[string]any{"path": 3}
	buildErr(t, &config.Document{Stages: []config.Stage{st}}, nil)
}

func TestBuildResolvesTriggers(t *testing.T) {
	st := stage("stages[0]", "a", time.Second, 0)
	st.Trigger = "key:1"
	triggers := applet.NewManualTriggers("key")

	var calls []string
	set, err := Build(&config.Document{Stages: []config.Stage{st}}, newRegistry(t, &calls), triggers)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if set.Rotation[0].Trigger == nil {
		t.Fatal("trigger not resolved")
	}
	if !set.HasTriggers() {
		t.Error("HasTriggers() = false")
	}
	triggers.Fire("1")
	if !set.Rotation[0].Trigger.Triggered() {
		t.Error("resolved trigger does not see Fire")
	}
}

func TestBuildRejectsUnresolvableTrigger(t *testing.T) {
	st := stage("stages[0]", "a", time.Second, 0)
	st.Trigger = "gpio:GPIO17"
	buildErr(t, &config.Document{Stages: []config.Stage{st}}, applet.NewManualTriggers("key"))
	buildErr(t, &config.Document{Stages: []config.Stage{st}}, nil)
}

func TestBuildDefaultsTriggerPoll(t *testing.T) {
	var calls []string
	set, err := Build(&config.Document{}, newRegistry(t, &calls), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if set.TriggerPoll != config.DefaultTriggerPoll {
		t.Errorf("TriggerPoll = %v, want %v", set.TriggerPoll, config.DefaultTriggerPoll)
	}
}

// --- Lifecycle hooks ---

func lifecycleSet(t *testing.T, calls *[]string) *Set {
	t.Helper()
	intro := stage("intro", "intro", time.Second, 0)
	bye := stage("shutdown", "bye", time.Second, 0)
	doc := &config.Document{
		Intro:    &intro,
		Shutdown: &bye,
		Stages:   []config.Stage{stage("stages[0]", "a", time.Second, 0), stage("stages[1]", "flaky", time.Second, 0)},
	}
	set, err := Build(doc, newRegistry(t, calls), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return set
}

func TestConfigureAndTeardownOrder(t *testing.T) {
	var calls []string
	set := lifecycleSet(t, &calls)

	set.Configure(&render.Context{}, zerolog.Nop())
	set.Teardown(&render.Context{}, zerolog.Nop())

	want := []string{
		"configure:intro", "configure:bye", "configure:a", "configure:flaky",
		"shutdown:a", "shutdown:flaky", "shutdown:bye", "shutdown:intro",
	}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestAllTeardownOrder(t *testing.T) {
	var calls []string
	set := lifecycleSet(t, &calls)
	var names []string
	for _, d := range set.All() {
		names = append(names, d.Name)
	}
	if got := strings.Join(names, ","); got != "a,flaky,bye,intro" {
		t.Errorf("All() = %s, want a,flaky,bye,intro", got)
	}
}
