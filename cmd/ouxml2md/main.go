// Command ouxml2md converts OU-XML course documents into trees of Markdown
// files with local images and a generated table of contents.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/japaniel/ouxml2md/pkg/config"
	"github.com/japaniel/ouxml2md/pkg/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ouxml2md:", err)
		os.Exit(1)
	}
}

// app is the state shared by all subcommands of one invocation.
type app struct {
	cfgFile  string
	envFile  string
	cfg      config.Config
	logger   *slog.Logger
	settings map[string]*string
}

func newRootCmd() *cobra.Command {
	a := &app{settings: make(map[string]*string)}
	root := &cobra.Command{
		Use:           "ouxml2md",
		Short:         "Convert OU-XML course documents into Markdown trees",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "TOML configuration file")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file with OUXML_* overrides")
	a.stringSetting(root, "db", "db_path", "SQLite figure store")
	a.stringSetting(root, "log-level", "log_level", "debug, info, warn or error")
	a.stringSetting(root, "image-dir", "image_dir", "image directory name inside each output tree")
	a.stringSetting(root, "dir-stub", "dir_stub", "chapter directory name stub")
	a.stringSetting(root, "prefix", "prefix", "Markdown filename prefix")
	a.stringSetting(root, "toc-mode", "toc_mode", "table of contents detail: minimal or simple")
	a.stringSetting(root, "toc-format", "toc_format", "table of contents format: rst or jupyterbook")
	a.stringSetting(root, "toc-path", "toc_path", "table of contents path relative to the output directory")
	a.stringSetting(root, "reconcile-mode", "reconcile_mode", "image join: joined or xmlonly")
	a.stringSetting(root, "stylesheet", "stylesheet", "XSLT stylesheet producing Markdown")
	a.stringSetting(root, "xsltproc", "xsltproc", "XSLT processor binary")
	a.stringSetting(root, "html-filter", "html_image_filter", "keep rendered images whose URL contains this")

	root.AddCommand(
		newIngestCmd(a),
		newUnitsCmd(a),
		newConvertCmd(a),
		newImagesCmd(a),
		newTOCCmd(a),
	)
	return root
}

// stringSetting registers a persistent flag that overrides the config key.
func (a *app) stringSetting(root *cobra.Command, flag, key, usage string) {
	v := new(string)
	root.PersistentFlags().StringVar(v, flag, "", usage+" (config: "+key+")")
	a.settings[flag] = v
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, a.envFile)
	if err != nil {
		return err
	}
	fields := map[string]*string{
		"db":             &cfg.DBPath,
		"log-level":      &cfg.LogLevel,
		"image-dir":      &cfg.ImageDir,
		"dir-stub":       &cfg.DirStub,
		"prefix":         &cfg.Prefix,
		"toc-mode":       &cfg.TOCMode,
		"toc-format":     &cfg.TOCFormat,
		"toc-path":       &cfg.TOCPath,
		"reconcile-mode": &cfg.ReconcileMode,
		"stylesheet":     &cfg.Stylesheet,
		"xsltproc":       &cfg.XSLTProc,
		"html-filter":    &cfg.HTMLImageFilter,
	}
	for flag, v := range a.settings {
		if cmd.Flags().Changed(flag) {
			*fields[flag] = *v
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = newLogger(cmd.ErrOrStderr(), level)
	slog.SetDefault(a.logger)
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return l, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// newLogger writes coloured output to terminals and plain text elsewhere.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Drop empty string attributes.
			if v, ok := a.Value.Any().(string); ok && v == "" && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func (a *app) openDB() (*sql.DB, error) {
	conn, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open figure store %s: %w", a.cfg.DBPath, err)
	}
	return conn, nil
}
