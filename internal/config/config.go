// Package config loads tabsync settings from YAML, TOML or JSON and checks
// them against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverPebble = "pebble"
	DriverMemory = "memory"
)

// Config is the full tabsync configuration.
type Config struct {
	Channel string  `json:"channel" yaml:"channel" toml:"channel"`
	TabID   string  `json:"tab_id" yaml:"tab_id" toml:"tab_id"`
	Queue   Queue   `json:"queue" yaml:"queue" toml:"queue"`
	Journal Journal `json:"journal" yaml:"journal" toml:"journal"`
	Storage Storage `json:"storage" yaml:"storage" toml:"storage"`
	Relay   Relay   `json:"relay" yaml:"relay" toml:"relay"`
	Log     Log     `json:"log" yaml:"log" toml:"log"`
}

type Queue struct {
	Capacity       int  `json:"capacity" yaml:"capacity" toml:"capacity"`
	RestoreOnStart bool `json:"restore_on_start" yaml:"restore_on_start" toml:"restore_on_start"`
}

type Journal struct {
	Capacity int `json:"capacity" yaml:"capacity" toml:"capacity"`
}

// Storage selects the durable slot backend. Path is a file for sqlite and
// a directory for pebble.
type Storage struct {
	Driver string `json:"driver" yaml:"driver" toml:"driver"`
	Path   string `json:"path" yaml:"path" toml:"path"`
}

type Relay struct {
	URL    string `json:"url" yaml:"url" toml:"url"`
	Listen string `json:"listen" yaml:"listen" toml:"listen"`
}

type Log struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Channel: "on-tour-app-sync",
		Queue:   Queue{Capacity: 1000},
		Journal: Journal{Capacity: 500},
		Storage: Storage{Driver: DriverMemory, Path: "./tabsync.db"},
		Relay: Relay{
			URL:    "ws://127.0.0.1:8787/ws",
			Listen: "127.0.0.1:8787",
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and validates the result. The format
// follows the extension: .yaml/.yml, .toml or .json. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cfg against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.Unify(ctx.Encode(c))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel maps the configured level onto slog.
func (l Log) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
