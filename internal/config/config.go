// Package config loads drawbot's YAML configuration and validates it against
// an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Backend names.
const (
	BackendMemory = "memory"
	BackendFiles  = "files"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config is the process configuration shared by every command.
type Config struct {
	// Listen is the hub's HTTP address.
	Listen string `yaml:"listen"`

	// Peers are websocket URLs of hubs to connect to.
	Peers []string `yaml:"peers"`

	// Backend selects the persistence backend of the hub.
	Backend string `yaml:"backend"`

	// DataDir holds the backend's files. Required unless Backend is memory.
	DataDir string `yaml:"data_dir"`

	// Epsilon is the numeric tie-break distance for equal states.
	Epsilon float64 `yaml:"epsilon"`

	// KeepAlive is how long created nodes stay observed.
	KeepAlive time.Duration `yaml:"keep_alive"`

	// FilterPrefixes lists root segments that are neither replicated to the
	// hub's peers nor persisted.
	FilterPrefixes []string `yaml:"filter_prefixes"`

	// Lookback is how many received tuples each connection remembers to
	// suppress echoes.
	Lookback int `yaml:"lookback"`

	PingInterval time.Duration `yaml:"ping_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:         "127.0.0.1:8765",
		Peers:          []string{},
		Backend:        BackendMemory,
		Epsilon:        0.0001,
		KeepAlive:      time.Second,
		FilterPrefixes: []string{"tmp"},
		Lookback:       50,
		PingInterval:   15 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
	}
}

// Load reads path on top of the defaults and validates the result. An empty
// path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, Validate(cfg)
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes YAML on top of the defaults and validates the result.
// Unknown fields are rejected.
func Parse(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the schema.
func Validate(cfg Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(cfg.fields()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// fields is the schema's view of cfg.
func (c Config) fields() map[string]any {
	return map[string]any{
		"listen":          c.Listen,
		"peers":           append([]string{}, c.Peers...),
		"backend":         c.Backend,
		"data_dir":        c.DataDir,
		"epsilon":         c.Epsilon,
		"keep_alive":      int64(c.KeepAlive),
		"filter_prefixes": append([]string{}, c.FilterPrefixes...),
		"lookback":        c.Lookback,
		"ping_interval":   int64(c.PingInterval),
		"write_timeout":   int64(c.WriteTimeout),
		"read_timeout":    int64(c.ReadTimeout),
	}
}
