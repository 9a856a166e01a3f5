package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"gitlab.com/tinyland/lab/minidisplay/pkg/config"
)

func TestVersionFlag(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(&out, io.Discard)
	cmd.SetArgs([]string{"--version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); !strings.HasPrefix(got, "minidisplay "+version) {
		t.Errorf("version output = %q", got)
	}
}

func TestConfigArgumentRequired(t *testing.T) {
	cmd := newRootCmd(io.Discard, io.Discard)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Error("running without CONFIG should fail")
	}
}

func TestFlagsRegistered(t *testing.T) {
	cmd := newRootCmd(io.Discard, io.Discard)
	for _, name := range []string{"device", "simulator", "verbose", "log-file", "metrics-addr"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s missing", name)
		}
	}
	if f := cmd.Flags().ShorthandLookup("d"); f == nil || f.DefValue != "-1" {
		t.Errorf("-d = %v, want default -1", f)
	}
}

func TestRunRejectsBadConfigBeforeOpeningDisplay(t *testing.T) {
	for name, doc := range map[string]string{
		"negative time":   "stages:\n  - module: info\n    time: -5\n",
		"unknown module":  "stages:\n  - module: weather\n",
		"update too long": "stages:\n  - module: clock\n    time: 1000\n    update: 2000\n",
	} {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			_ = afero.WriteFile(fs, "/etc/minidisplay.yaml", []byte(doc), 0o644)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			var logs bytes.Buffer
			// device -1 without --simulator would init periph and scan I2C.
			err := run(ctx, cancel, fs, "/etc/minidisplay.yaml", options{device: -1}, &logs)
			if !errors.Is(err, config.ErrInvalid) {
				t.Fatalf("run = %v, want a configuration error", err)
			}
			if strings.Contains(err.Error(), "--simulator") {
				t.Errorf("run opened the display before rejecting the config: %v", err)
			}
		})
	}
}

func TestRunMissingConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := run(ctx, cancel, afero.NewMemMapFs(), "/nope.yaml", options{}, io.Discard); err == nil {
		t.Error("run with a missing config should fail")
	}
}

func TestOpenLogFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, closeLog, err := openLog(fs, options{logFile: "/var/log/minidisplay/run.log"}, io.Discard)
	if err != nil {
		t.Fatalf("openLog: %v", err)
	}
	log := newLogger(w, false)
	log.Info().Msg("hello")
	log.Debug().Msg("hidden")
	closeLog()

	data, err := afero.ReadFile(fs, "/var/log/minidisplay/run.log")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "hello") || strings.Contains(string(data), "hidden") {
		t.Errorf("log file = %q", data)
	}
}

func TestOpenLogDefaults(t *testing.T) {
	var stderr bytes.Buffer
	w, _, _ := openLog(afero.NewMemMapFs(), options{}, &stderr)
	if w != &stderr {
		t.Error("without a log file logs go to stderr")
	}
	w, _, _ = openLog(afero.NewMemMapFs(), options{simulator: true}, &stderr)
	if w != io.Discard {
		t.Error("the simulator owns the terminal; logs should be discarded")
	}
}
