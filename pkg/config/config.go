// Package config holds the conversion settings. Values are layered:
// defaults, then an optional TOML file, then a .env file and OUXML_*
// environment variables. Command-line flags are applied last by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/japaniel/ouxml2md/pkg/reconcile"
	"github.com/japaniel/ouxml2md/pkg/toc"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OUXML_"

// Config is the complete set of conversion options.
type Config struct {
	DBPath string `toml:"db_path"`
	// ImageDir is the image directory name inside each output tree.
	ImageDir string `toml:"image_dir"`
	// DirStub names chapter directories.
	DirStub string `toml:"dir_stub"`
	// Prefix is the Markdown filename prefix produced by the stylesheet.
	Prefix    string `toml:"prefix"`
	TOCMode   string `toml:"toc_mode"`
	TOCFormat string `toml:"toc_format"`
	// TOCPath is relative to the output directory; empty picks the format's
	// conventional name.
	TOCPath       string `toml:"toc_path"`
	ReconcileMode string `toml:"reconcile_mode"`
	Stylesheet    string `toml:"stylesheet"`
	XSLTProc      string `toml:"xsltproc"`
	// HTMLImageFilter selects rendered-page images by URL substring.
	HTMLImageFilter string `toml:"html_image_filter"`
	LogLevel        string `toml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:          "ouxml.db",
		ImageDir:        "images",
		DirStub:         "session",
		Prefix:          "Section",
		TOCMode:         string(toc.ModeMinimal),
		TOCFormat:       string(toc.FormatRST),
		ReconcileMode:   string(reconcile.ModeJoined),
		Stylesheet:      "ouxml2md.xslt",
		XSLTProc:        "xsltproc",
		HTMLImageFilter: "mod_oucontent",
		LogLevel:        "info",
	}
}

// Load builds a Config from the defaults, the TOML file at path (skipped when
// path is empty) and the environment. envFile, when it exists, is loaded into
// the process environment first; variables already set take precedence.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// LoadFile overlays the TOML file at path. Unknown keys are an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays OUXML_* variables, e.g. OUXML_IMAGE_DIR.
func (c *Config) ApplyEnv() {
	for name, field := range c.fields() {
		if v, ok := os.LookupEnv(EnvPrefix + strings.ToUpper(name)); ok && v != "" {
			*field = v
		}
	}
}

func (c *Config) fields() map[string]*string {
	return map[string]*string{
		"db_path":           &c.DBPath,
		"image_dir":         &c.ImageDir,
		"dir_stub":          &c.DirStub,
		"prefix":            &c.Prefix,
		"toc_mode":          &c.TOCMode,
		"toc_format":        &c.TOCFormat,
		"toc_path":          &c.TOCPath,
		"reconcile_mode":    &c.ReconcileMode,
		"stylesheet":        &c.Stylesheet,
		"xsltproc":          &c.XSLTProc,
		"html_image_filter": &c.HTMLImageFilter,
		"log_level":         &c.LogLevel,
	}
}

// Validate checks the enumerated options and directory names.
func (c Config) Validate() error {
	if _, err := toc.ParseMode(c.TOCMode); err != nil {
		return err
	}
	if _, err := toc.ParseFormat(c.TOCFormat); err != nil {
		return err
	}
	if _, err := reconcile.ParseMode(c.ReconcileMode); err != nil {
		return err
	}
	if c.ImageDir == "" || strings.ContainsAny(c.ImageDir, `/\`) || c.ImageDir == "." || c.ImageDir == ".." {
		return fmt.Errorf("image_dir must be a single directory name, got %q", c.ImageDir)
	}
	if strings.ContainsAny(c.DirStub, `/\`) {
		return fmt.Errorf("dir_stub must not contain a path separator, got %q", c.DirStub)
	}
	return nil
}

// TOCFile returns the table of contents file name.
func (c Config) TOCFile() string {
	if c.TOCPath != "" {
		return c.TOCPath
	}
	if c.TOCFormatValue() == toc.FormatJupyterBook {
		return "_toc.yml"
	}
	return "index.rst"
}

// TOCModeValue returns the parsed ToC mode. Call Validate first.
func (c Config) TOCModeValue() toc.Mode {
	m, _ := toc.ParseMode(c.TOCMode)
	return m
}

// TOCFormatValue returns the parsed ToC format. Call Validate first.
func (c Config) TOCFormatValue() toc.Format {
	f, _ := toc.ParseFormat(c.TOCFormat)
	return f
}

// ReconcileModeValue returns the parsed reconcile mode. Call Validate first.
func (c Config) ReconcileModeValue() reconcile.Mode {
	m, _ := reconcile.ParseMode(c.ReconcileMode)
	return m
}
