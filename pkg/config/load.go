package config

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file syntax.
type Format string

// Supported formats.
const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

// FormatFor picks the format from a file extension: .yaml/.yml or .toml.
func FormatFor(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("unsupported config extension %q", ext)
	}
}

// Load reads and parses the configuration file at path on fs.
func Load(fs afero.Fs, path string) (*Document, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := LoadFromReader(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// LoadFromReader decodes r in the given format and parses the result.
func LoadFromReader(r io.Reader, format Format) (*Document, error) {
	raw, err := Decode(r, format)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Decode reads r into a generic map without validating it. An empty
// document decodes to an empty map.
func Decode(r io.Reader, format Format) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw := map[string]any{}
	switch format {
	case YAML:
		if len(bytes.TrimSpace(data)) == 0 {
			return raw, nil
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case TOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	return raw, nil
}
