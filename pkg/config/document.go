package config

import (
	"fmt"
	"maps"
	"math"
	"sort"
	"time"
)

// Defaults applied when a stage or document leaves a setting out.
const (
	DefaultTime        = 2000 * time.Millisecond
	DefaultUpdate      = time.Second / 60
	DefaultTriggerPoll = 100 * time.Millisecond
)

// Document is a parsed configuration.
type Document struct {
	Intro       *Stage
	Shutdown    *Stage
	Stages      []Stage
	ScreenSaver *ScreenSaver
	Resolution  Resolution
	TriggerPoll time.Duration
}

// Stage is one applet entry, after stage_configuration defaults have been
// merged in.
type Stage struct {
	// Path locates the stage in the document for error messages.
	Path string

	Module  string
	Time    time.Duration
	Update  time.Duration
	Trigger string
	Options map[string]any
}

// ScreenSaver blanks the display after a period without activity.
type ScreenSaver struct {
	// After is the idle time before the screen saver starts.
	After time.Duration

	// Timeout is how long the screen saver holds; zero holds until a
	// trigger fires.
	Timeout time.Duration
}

// Resolution describes the panel and the simulator magnification.
type Resolution struct {
	Width  int
	Height int
	DPI    int
	Scale  int
}

// DefaultResolution is a 128x64 SSD1306 panel.
func DefaultResolution() Resolution {
	return Resolution{Width: 128, Height: 64, DPI: 122, Scale: 2}
}

var (
	topLevelKeys   = []string{"intro", "shutdown", "stages", "stage_configuration", "screensaver", "resolution", "trigger_poll"}
	stageKeys      = []string{"module", "time", "update", "trigger", "options"}
	screenKeys     = []string{"after", "timeout"}
	resolutionKeys = []string{"width", "height", "dpi", "simulator_scale"}
)

// Parse validates a decoded document. Every problem found is reported;
// the returned error matches ErrInvalid.
func Parse(raw map[string]any) (*Document, error) {
	var errs errorList
	doc := &Document{
		Resolution:  DefaultResolution(),
		TriggerPoll: DefaultTriggerPoll,
	}

	for _, k := range unknownKeys(raw, topLevelKeys) {
		errs.add(Errorf("", k, nil, "unknown key"))
	}

	var defaults map[string]any
	if v, ok := raw["stage_configuration"]; ok {
		m, ok := asMap(v)
		if !ok {
			errs.add(Errorf("stage_configuration", "", nil, "want mapping, got %T", v))
		} else {
			for _, k := range unknownKeys(m, stageKeys) {
				errs.add(Errorf("stage_configuration", k, nil, "unknown key"))
			}
			defaults = m
		}
	}

	if v, ok := raw["intro"]; ok && v != nil {
		st, err := parseStage("intro", v, nil)
		errs.add(err)
		doc.Intro = st
	}
	if v, ok := raw["shutdown"]; ok && v != nil {
		st, err := parseStage("shutdown", v, nil)
		errs.add(err)
		doc.Shutdown = st
	}

	if v, ok := raw["stages"]; ok && v != nil {
		list, ok := asList(v)
		if !ok {
			errs.add(Errorf("", "stages", nil, "want list, got %T", v))
		}
		for i, entry := range list {
			st, err := parseStage(fmt.Sprintf("stages[%d]", i), entry, defaults)
			errs.add(err)
			if st != nil {
				doc.Stages = append(doc.Stages, *st)
			}
		}
	}

	if v, ok := raw["screensaver"]; ok && v != nil {
		ss, err := parseScreenSaver(v)
		errs.add(err)
		doc.ScreenSaver = ss
	}

	if v, ok := raw["resolution"]; ok && v != nil {
		res, err := parseResolution(v)
		errs.add(err)
		doc.Resolution = res
	}

	if v, ok := raw["trigger_poll"]; ok {
		d, err := Millis(v)
		switch {
		case err != nil:
			errs.add(Errorf("", "trigger_poll", v, "%v", err))
		case d <= 0:
			errs.add(Errorf("", "trigger_poll", v, "must be positive"))
		default:
			doc.TriggerPoll = d
		}
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	return doc, nil
}

// parseStage merges defaults under the stage's own keys and parses the
// result. A nil Stage is returned only when the entry is unusable.
func parseStage(path string, v any, defaults map[string]any) (*Stage, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, Errorf(path, "", nil, "want mapping, got %T", v)
	}

	var errs errorList
	for _, k := range unknownKeys(m, stageKeys) {
		errs.add(Errorf(path, k, nil, "unknown key"))
	}

	merged := make(map[string]any, len(defaults)+len(m))
	maps.Copy(merged, defaults)
	maps.Copy(merged, m)

	st := &Stage{Path: path, Time: DefaultTime, Update: DefaultUpdate}

	switch mod := merged["module"].(type) {
	case string:
		if mod == "" {
			errs.add(Errorf(path, "module", nil, "must not be empty"))
		}
		st.Module = mod
	case nil:
		errs.add(Errorf(path, "module", nil, "missing module reference"))
	default:
		errs.add(Errorf(path, "module", mod, "want string, got %T", mod))
	}

	if tv, ok := merged["time"]; ok {
		d, err := Millis(tv)
		if err != nil {
			errs.add(Errorf(path, "time", tv, "%v", err))
		} else {
			st.Time = d
		}
	}
	if uv, ok := merged["update"]; ok {
		d, err := Millis(uv)
		if err != nil {
			errs.add(Errorf(path, "update", uv, "%v", err))
		} else {
			st.Update = d
		}
	}

	switch tr := merged["trigger"].(type) {
	case nil:
	case string:
		st.Trigger = tr
	default:
		errs.add(Errorf(path, "trigger", tr, "want string, got %T", tr))
	}

	opts := map[string]any{}
	for _, src := range []map[string]any{defaults, m} {
		ov, ok := src["options"]
		if !ok || ov == nil {
			continue
		}
		om, ok := asMap(ov)
		if !ok {
			errs.add(Errorf(path, "options", nil, "want mapping, got %T", ov))
			continue
		}
		maps.Copy(opts, om)
	}
	st.Options = opts

	return st, errs.err()
}

func parseScreenSaver(v any) (*ScreenSaver, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, Errorf("screensaver", "", nil, "want mapping, got %T", v)
	}
	var errs errorList
	for _, k := range unknownKeys(m, screenKeys) {
		errs.add(Errorf("screensaver", k, nil, "unknown key"))
	}
	ss := &ScreenSaver{}
	av, ok := m["after"]
	if !ok {
		errs.add(Errorf("screensaver", "after", nil, "missing"))
	} else if d, err := Minutes(av); err != nil {
		errs.add(Errorf("screensaver", "after", av, "%v", err))
	} else if d <= 0 {
		errs.add(Errorf("screensaver", "after", av, "must be positive"))
	} else {
		ss.After = d
	}
	if tv, ok := m["timeout"]; ok {
		d, err := Minutes(tv)
		if err != nil {
			errs.add(Errorf("screensaver", "timeout", tv, "%v", err))
		} else {
			ss.Timeout = d
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return ss, nil
}

// parseResolution accepts a mapping or a [width, height, dpi, scale] list;
// missing entries keep their defaults.
func parseResolution(v any) (Resolution, error) {
	res := DefaultResolution()
	fields := []*int{&res.Width, &res.Height, &res.DPI, &res.Scale}
	var errs errorList

	set := func(key string, val any, dst *int) {
		n, ok := asInt(val)
		if !ok || n <= 0 {
			errs.add(Errorf("resolution", key, val, "want positive integer"))
			return
		}
		*dst = n
	}

	if list, ok := asList(v); ok {
		if len(list) > len(fields) {
			return res, Errorf("resolution", "", nil, "want at most %d values, got %d", len(fields), len(list))
		}
		for i, val := range list {
			set(resolutionKeys[i], val, fields[i])
		}
		return res, errs.err()
	}

	m, ok := asMap(v)
	if !ok {
		return res, Errorf("resolution", "", nil, "want mapping or list, got %T", v)
	}
	for _, k := range unknownKeys(m, resolutionKeys) {
		errs.add(Errorf("resolution", k, nil, "unknown key"))
	}
	for i, k := range resolutionKeys {
		if val, ok := m[k]; ok {
			set(k, val, fields[i])
		}
	}
	return res, errs.err()
}

// --- decoder value helpers ---

func unknownKeys(m map[string]any, allowed []string) []string {
	var out []string
	for k := range m {
		known := false
		for _, a := range allowed {
			if k == a {
				known = true
				break
			}
		}
		if !known {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// asList normalises the list shapes produced by yaml.v3 ([]any) and
// BurntSushi/toml ([]map[string]any for arrays of tables).
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []map[string]any:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}
