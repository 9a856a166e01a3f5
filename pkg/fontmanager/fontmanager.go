// Package fontmanager finds TrueType fonts on disk and hands out faces by
// family name and size.
package fontmanager

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// DefaultDir is scanned when no directories are given.
const DefaultDir = "/usr/share/fonts"

// Face sizes are given in points relative to a 128-pixel-wide panel at
// 96% scale; this is the DPI at which the ratio is exactly one.
const referenceDPI = 128 * 0.96

// Fallback is returned for fonts that cannot be found or parsed.
var Fallback font.Face = basicfont.Face7x13

type faceKey struct {
	name string
	size float64
}

// Manager implements render.FontSource. It is safe for concurrent use.
type Manager struct {
	fs    afero.Fs
	log   zerolog.Logger
	ratio float64
	files []string

	mu     sync.Mutex
	parsed map[string]*opentype.Font
	faces  map[faceKey]font.Face
	missed map[string]bool
}

// New scans dirs (DefaultDir if none) on fsys for .ttf files. Missing
// directories are skipped.
func New(fsys afero.Fs, dpi int, log zerolog.Logger, dirs ...string) *Manager {
	if len(dirs) == 0 {
		dirs = []string{DefaultDir}
	}
	if dpi <= 0 {
		dpi = 122
	}
	m := &Manager{
		fs:     fsys,
		log:    log.With().Str("component", "fonts").Logger(),
		ratio:  float64(dpi) / referenceDPI,
		parsed: make(map[string]*opentype.Font),
		faces:  make(map[faceKey]font.Face),
		missed: make(map[string]bool),
	}
	for _, dir := range dirs {
		m.scan(dir)
	}
	sort.Strings(m.files)
	m.log.Debug().Int("fonts", len(m.files)).Strs("dirs", dirs).Msg("font scan complete")
	return m
}

func (m *Manager) scan(dir string) {
	err := afero.Walk(m.fs, dir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if info.Mode().IsRegular() && strings.EqualFold(path.Ext(p), ".ttf") {
			m.files = append(m.files, p)
		}
		return nil
	})
	if err != nil {
		m.log.Debug().Err(err).Str("dir", dir).Msg("font directory skipped")
	}
}

// Files returns the discovered font files, sorted.
func (m *Manager) Files() []string {
	return append([]string(nil), m.files...)
}

// PixelSize converts a requested size to the size faces are built at.
func (m *Manager) PixelSize(size float64) int {
	return int(size * m.ratio)
}

// Face returns the named font at size, matching the file name without its
// extension case-insensitively. Faces are cached per (name, size).
func (m *Manager) Face(name string, size float64) font.Face {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := faceKey{name: strings.ToLower(name), size: size}
	if f, ok := m.faces[k]; ok {
		return f
	}

	face, err := m.load(k.name, size)
	if err != nil {
		if !m.missed[k.name] {
			m.log.Warn().Err(err).Str("font", name).Msg("using fallback font")
			m.missed[k.name] = true
		}
		face = Fallback
	}
	m.faces[k] = face
	return face
}

func (m *Manager) load(name string, size float64) (font.Face, error) {
	file := m.lookup(name)
	if file == "" {
		return nil, errNotFound(name)
	}
	otf, ok := m.parsed[file]
	if !ok {
		data, err := afero.ReadFile(m.fs, file)
		if err != nil {
			return nil, err
		}
		otf, err = opentype.Parse(data)
		if err != nil {
			return nil, err
		}
		m.parsed[file] = otf
	}
	px := m.PixelSize(size)
	if px < 1 {
		px = 1
	}
	return opentype.NewFace(otf, &opentype.FaceOptions{
		Size:    float64(px),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func (m *Manager) lookup(name string) string {
	want := name + ".ttf"
	for _, f := range m.files {
		if strings.EqualFold(path.Base(f), want) {
			return f
		}
	}
	return ""
}

type errNotFound string

func (e errNotFound) Error() string { return "font " + string(e) + " not found" }
