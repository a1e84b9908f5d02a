// Package config loads the optional converter configuration file. YAML and
// HCL files are accepted; the file extension picks the syntax.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	"canlogconvert/internal/trace"
	"canlogconvert/internal/trc"
)

// Writer configures rendered trace files.
type Writer struct {
	Columns string `yaml:"columns"` // comma form, as in $COLUMNS
	Comment string `yaml:"comment"`
}

// Config holds every setting that can come from a file. Command-line flags
// override it field by field.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Writer    Writer `yaml:"writer"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Writer:    Writer{Columns: trace.DefaultColumns.String()},
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeYAML(src, &cfg)
	case ".hcl":
		err = decodeHCL(src, path, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(src []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode YAML config: %w", err)
	}
	return nil
}

// hclFile is the HCL shape of Config. Every attribute is optional, so unset
// ones keep their defaults.
type hclFile struct {
	LogLevel  *string    `hcl:"log_level,optional"`
	LogFormat *string    `hcl:"log_format,optional"`
	Writer    *hclWriter `hcl:"writer,block"`
}

type hclWriter struct {
	Columns *string `hcl:"columns,optional"`
	Comment *string `hcl:"comment,optional"`
}

func decodeHCL(src []byte, path string, cfg *Config) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL config %s: %w", path, diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL config %s: %w", path, diags)
	}

	set(&cfg.LogLevel, parsed.LogLevel)
	set(&cfg.LogFormat, parsed.LogFormat)
	if w := parsed.Writer; w != nil {
		set(&cfg.Writer.Columns, w.Columns)
		set(&cfg.Writer.Comment, w.Comment)
	}
	return nil
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Validate checks the enumerated settings and the writer column layout.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q: must be 'debug', 'info', 'warn', or 'error'", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: must be 'text' or 'json'", c.LogFormat)
	}
	if _, err := c.Columns(); err != nil {
		return err
	}
	return nil
}

// Columns returns the writer layout.
func (c Config) Columns() (trace.Columns, error) {
	cols, err := trc.ParseColumnList(c.Writer.Columns)
	if err != nil {
		return "", fmt.Errorf("invalid writer columns: %w", err)
	}
	return cols, nil
}
