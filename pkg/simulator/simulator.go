// Package simulator shows the display in a terminal. It stands in for the
// SSD1306 panel during development: frames are drawn with half-block
// characters and number keys fire "key:<n>" triggers.
package simulator

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"

	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
)

// TriggerScheme is the trigger prefix key presses fire.
const TriggerScheme = "key"

// ErrNotTerminal is returned by Start when output is not a terminal.
var ErrNotTerminal = errors.New("simulator: output is not a terminal")

// Options configures a Simulator.
type Options struct {
	Width, Height int
	Scale         int

	// Interrupt is called when the operator quits, normally the cancel
	// function of the scheduler's context.
	Interrupt func()

	Logger zerolog.Logger

	// Input and Output default to stdin and stdout.
	Input  io.Reader
	Output *os.File
}

// Simulator is a terminal display backend.
type Simulator struct {
	log      zerolog.Logger
	out      *os.File
	in       io.Reader
	fb       *render.Framebuffer
	painter  *painter
	triggers *applet.ManualTriggers
	model    model

	mu   sync.Mutex
	prog *tea.Program
	done chan struct{}
	err  error
}

// New builds a simulator. Nothing is drawn until Start.
func New(opts Options) *Simulator {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	in := opts.Input
	if in == nil {
		in = os.Stdin
	}
	profile := termenv.Ascii
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		profile = termenv.NewOutput(out).EnvColorProfile()
	}
	renderer := lipgloss.NewRenderer(out, termenv.WithProfile(profile))

	s := &Simulator{
		log:      opts.Logger.With().Str("component", "simulator").Logger(),
		out:      out,
		in:       in,
		painter:  &painter{r: renderer, scale: opts.Scale},
		triggers: applet.NewManualTriggers(TriggerScheme),
	}
	s.fb = render.NewFramebuffer(opts.Width, opts.Height, render.PanelFunc(s.show))
	s.model = newModel(renderer, opts.Interrupt, s.fire)
	s.log.Debug().Str("profile", profileName(profile)).Msg("colour profile")
	return s
}

// Display returns the offscreen frame applets draw into.
func (s *Simulator) Display() render.Display { return s.fb }

// Triggers resolves "key:<n>" triggers fired by number keys.
func (s *Simulator) Triggers() applet.TriggerResolver { return s.triggers }

// Start runs the terminal program in the background.
func (s *Simulator) Start() error {
	if !isatty.IsTerminal(s.out.Fd()) && !isatty.IsCygwinTerminal(s.out.Fd()) {
		return ErrNotTerminal
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prog != nil {
		return nil
	}
	s.prog = tea.NewProgram(s.model,
		tea.WithAltScreen(),
		tea.WithInput(s.in),
		tea.WithOutput(s.out),
		tea.WithoutSignalHandler(),
	)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if _, err := s.prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			s.log.Error().Err(err).Msg("terminal program failed")
			s.err = err
			if s.model.interrupt != nil {
				s.model.interrupt()
			}
		}
	}()
	return nil
}

func (s *Simulator) fire(name string) {
	if s.triggers.Fire(name) {
		s.log.Debug().Str("trigger", TriggerScheme+":"+name).Msg("fired")
	}
}

func (s *Simulator) show(frame *image.RGBA) error {
	text := s.painter.Paint(frame)
	s.mu.Lock()
	prog := s.prog
	s.mu.Unlock()
	if prog != nil {
		prog.Send(frameMsg(text))
	}
	return nil
}

// Close stops the terminal program and restores the terminal.
func (s *Simulator) Close() error {
	s.mu.Lock()
	prog, done := s.prog, s.done
	s.mu.Unlock()
	if prog == nil {
		return nil
	}
	prog.Quit()
	<-done
	if s.err != nil {
		return fmt.Errorf("simulator: %w", s.err)
	}
	return nil
}

func profileName(p termenv.Profile) string {
	switch p {
	case termenv.TrueColor:
		return "truecolor"
	case termenv.ANSI256:
		return "ansi256"
	case termenv.ANSI:
		return "ansi"
	}
	return "ascii"
}
