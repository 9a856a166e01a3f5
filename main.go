// minidisplay drives a small SSD1306 OLED panel, rotating through a
// configured set of applets with optional intro, shutdown and screen saver
// stages.
//
// Usage:
//
//	minidisplay [flags] CONFIG
//
// Flags:
//
//	-d, --device int         I2C bus number (default: first bus found)
//	-s, --simulator          Draw in the terminal instead of on the panel
//	-v, --verbose            Enable debug logging
//	    --log-file string    Append logs to this file
//	    --metrics-addr str   Serve Prometheus metrics on this address
//	    --version            Print version and exit
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
	"gitlab.com/tinyland/lab/minidisplay/pkg/applets"
	"gitlab.com/tinyland/lab/minidisplay/pkg/config"
	"gitlab.com/tinyland/lab/minidisplay/pkg/device"
	"gitlab.com/tinyland/lab/minidisplay/pkg/engine"
	"gitlab.com/tinyland/lab/minidisplay/pkg/fontmanager"
	"gitlab.com/tinyland/lab/minidisplay/pkg/metrics"
	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
	"gitlab.com/tinyland/lab/minidisplay/pkg/simulator"
	"gitlab.com/tinyland/lab/minidisplay/pkg/stage"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

type options struct {
	device      int
	simulator   bool
	verbose     bool
	logFile     string
	metricsAddr string
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "minidisplay: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "minidisplay [flags] CONFIG",
		Short:         "Control an SSD1306 I2C display",
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, unix.SIGTERM)
			defer stop()
			return run(ctx, stop, afero.NewOsFs(), args[0], opts, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("minidisplay {{.Version}}\n")

	f := cmd.Flags()
	f.IntVarP(&opts.device, "device", "d", -1, "I2C bus number (default: first bus found)")
	f.BoolVarP(&opts.simulator, "simulator", "s", false, "Draw in the terminal instead of on the panel")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	f.StringVar(&opts.logFile, "log-file", "", "Append logs to this file")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9102)")
	return cmd
}

// backend is a display surface plus the triggers it can resolve.
type backend interface {
	Display() render.Display
	Triggers() applet.TriggerResolver
	Close() error
}

// run is the whole program once flags are parsed. interrupt cancels ctx
// and is handed to the simulator for its quit key.
func run(ctx context.Context, interrupt context.CancelFunc, fsys afero.Fs, path string, opts options, stderr io.Writer) error {
	logOut, closeLog, err := openLog(fsys, opts, stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	log := newLogger(logOut, opts.verbose)

	doc, err := config.Load(fsys, path)
	if err != nil {
		return err
	}
	res := doc.Resolution
	log.Debug().Str("config", path).Int("stages", len(doc.Stages)).Msg("configuration loaded")

	reg := applet.NewRegistry()
	if err := applets.Register(reg, applets.Env{Fs: fsys}); err != nil {
		return err
	}
	// Stage errors must not touch the panel or the terminal.
	if err := stage.Validate(doc, reg); err != nil {
		return err
	}

	be, err := openBackend(opts, res, interrupt, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Close(); err != nil {
			log.Warn().Err(err).Msg("closing display")
		}
	}()

	set, err := stage.Build(doc, reg, be.Triggers())
	if err != nil {
		return err
	}

	rc := render.NewContext(be.Display(), fontmanager.New(fsys, res.DPI, log))

	var m *metrics.Metrics
	if opts.metricsAddr != "" {
		preg := prometheus.NewRegistry()
		preg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(preg)

		// The endpoint stays up through the shutdown hold.
		mctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		go func() {
			if err := metrics.Serve(mctx, opts.metricsAddr, metrics.NewRouter(preg), log); err != nil {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	set.Configure(rc, log)
	eng := engine.New(engine.Options{Stages: set, Render: rc, Logger: log, Metrics: m})
	err = eng.Run(ctx)
	set.Teardown(rc, log)
	return err
}

func openBackend(opts options, res config.Resolution, interrupt func(), log zerolog.Logger) (backend, error) {
	if opts.simulator {
		sim := simulator.New(simulator.Options{
			Width:     res.Width,
			Height:    res.Height,
			Scale:     res.Scale,
			Interrupt: interrupt,
			Logger:    log,
		})
		if err := sim.Start(); err != nil {
			return nil, err
		}
		return sim, nil
	}

	bus := ""
	if opts.device >= 0 {
		bus = strconv.Itoa(opts.device)
	}
	dev, err := device.Open(bus, res.Width, res.Height, log)
	if err != nil {
		return nil, fmt.Errorf("%w (did you want --simulator?)", err)
	}
	return dev, nil
}

// openLog picks the log destination: the log file if given, stderr
// otherwise, and nowhere while the simulator owns the terminal.
func openLog(fsys afero.Fs, opts options, stderr io.Writer) (io.Writer, func(), error) {
	if opts.logFile == "" {
		if opts.simulator {
			return io.Discard, func() {}, nil
		}
		return stderr, func() {}, nil
	}
	if err := fsys.MkdirAll(filepath.Dir(opts.logFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("log file: %w", err)
	}
	f, err := fsys.OpenFile(opts.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: !isTerminal(w)}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
