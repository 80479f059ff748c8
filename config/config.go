// Package config loads the mod host configuration.
//
// Values come from defaults, then an optional YAML file, then MODHOST_*
// environment variables. Command-line flags are applied last by the
// binary. The result is validated before use.
package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/mod-runtime/errors"
	"github.com/wippyai/mod-runtime/logging"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "MODHOST_"

// Config is the complete host configuration.
type Config struct {
	Mods         []string       `yaml:"mods" env:"MODS" envSeparator:"," validate:"dive,required" jsonschema:"description=Module files loaded in order"`
	AssetDir     string         `yaml:"asset_dir" env:"ASSET_DIR" validate:"required" jsonschema:"description=Directory sounds and sprites are loaded from"`
	DataDir      string         `yaml:"data_dir" env:"DATA_DIR" validate:"required" jsonschema:"description=Root of the per-mod save directories"`
	SnapshotAddr string         `yaml:"snapshot_addr" env:"SNAPSHOT_ADDR" validate:"omitempty,hostname_port" jsonschema:"description=Listen address of the frame snapshot websocket"`
	Log          logging.Config `yaml:"log" envPrefix:"LOG_"`
	Watch        time.Duration  `yaml:"watch" env:"WATCH" validate:"min=0" jsonschema:"description=Hot reload poll interval; zero disables"`
	Seed         uint64         `yaml:"seed" env:"SEED" jsonschema:"description=RNG seed for mods; zero picks one at startup"`
	FrameRate    int            `yaml:"frame_rate" env:"FRAME_RATE" validate:"min=1,max=1000"`
	MemoryPages  uint32         `yaml:"memory_pages" env:"MEMORY_PAGES" validate:"max=65536" jsonschema:"description=Guest memory limit in 64KiB pages; zero uses the engine default"`
	AudioQueue   int            `yaml:"audio_queue" env:"AUDIO_QUEUE" validate:"min=1"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		AssetDir:   "assets",
		DataDir:    "data",
		FrameRate:  60,
		AudioQueue: 64,
		Log:        logging.Config{Level: "info", Format: "console"},
	}
}

// FrameInterval returns the duration of one tick.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}

var validate = validator.New()

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, errors.New(errors.PhaseConfig, errors.KindIO).Path(path).Detail("open config").Cause(err).Build()
		}
		defer f.Close()
		if err := Decode(f, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode reads YAML into cfg, keeping fields the document leaves out.
// Unknown keys are rejected.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).Detail("decode yaml").Cause(err).Build()
	}
	return nil
}

// ApplyEnv overrides cfg from MODHOST_* variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).Detail("parse env").Cause(err).Build()
	}
	return nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).Detail("validate").Cause(err).Build()
	}
	return nil
}

// Schema returns the JSON schema of the YAML file format.
func Schema() ([]byte, error) {
	r := jsonschema.Reflector{
		FieldNameTag:   "yaml",
		ExpandedStruct: true,
	}
	s := r.Reflect(&Config{})
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
