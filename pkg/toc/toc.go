// Package toc writes the table of contents for a partitioned document tree.
package toc

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adrg/frontmatter"

	"github.com/japaniel/ouxml2md/pkg/fsutil"
	"github.com/japaniel/ouxml2md/pkg/rewrite"
)

// Mode controls how much detail each chapter's outline carries.
type Mode string

const (
	// ModeMinimal emits one glob entry per chapter directory.
	ModeMinimal Mode = "minimal"
	// ModeSimple emits one captioned entry per Markdown file.
	ModeSimple Mode = "simple"
)

// Format selects the output document type.
type Format string

const (
	FormatRST         Format = "rst"
	FormatJupyterBook Format = "jupyterbook"
)

// DefaultPreamble opens every generated index.
const DefaultPreamble = ".. This index is generated by ouxml2md. Local edits are overwritten.\n\n"

// ParseMode validates a mode name. The empty string selects ModeMinimal.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMinimal:
		return ModeMinimal, nil
	case ModeSimple:
		return ModeSimple, nil
	}
	return "", fmt.Errorf("unknown toc mode %q", s)
}

// ParseFormat validates a format name. The empty string selects FormatRST.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatRST:
		return FormatRST, nil
	case FormatJupyterBook, "jb", "yml", "yaml":
		return FormatJupyterBook, nil
	}
	return "", fmt.Errorf("unknown toc format %q", s)
}

// Meta describes the source document.
type Meta struct {
	Title     string
	SourceURL string
}

// Synthesizer builds tables of contents.
type Synthesizer struct {
	Mode     Mode
	Format   Format
	ImageDir string
	Preamble string
	// Logger is used for informational messages. nil means no logging.
	Logger *slog.Logger
}

// New creates a Synthesizer producing reStructuredText with the default preamble.
func New(mode Mode, imageDir string) *Synthesizer {
	return &Synthesizer{Mode: mode, Format: FormatRST, ImageDir: imageDir, Preamble: DefaultPreamble}
}

func (s *Synthesizer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

// entry is one Markdown file of a chapter.
type entry struct {
	Caption string
	// Target is the slash separated path relative to the root, without extension.
	Target string
}

type chapter struct {
	Dir     string
	Heading string
	Entries []entry
}

// Heading turns a chapter directory name into a section heading:
// session_00 becomes "Session 00".
func Heading(dir string) string {
	h := strings.TrimSpace(strings.ReplaceAll(dir, "_", " "))
	r, size := utf8.DecodeRuneInString(h)
	if r == utf8.RuneError {
		return h
	}
	return string(unicode.ToUpper(r)) + h[size:]
}

// chapters lists the chapter directories of root in lexical order.
func (s *Synthesizer) chapters(root string) ([]chapter, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", root, err)
	}
	imageDir := s.ImageDir
	if imageDir == "" {
		imageDir = "images"
	}
	var out []chapter
	for _, e := range entries {
		if !e.IsDir() || e.Name() == imageDir || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ch := chapter{Dir: e.Name(), Heading: Heading(e.Name())}
		files, err := markdownTree(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		for _, fn := range files {
			rel, err := filepath.Rel(root, fn)
			if err != nil {
				return nil, err
			}
			rel = filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
			caption, err := Caption(fn)
			if err != nil {
				s.logger().Warn("Using file name as caption", "file", fn, "err", err)
				caption = filepath.Base(rel)
			}
			ch.Entries = append(ch.Entries, entry{Caption: caption, Target: rel})
		}
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })
	return out, nil
}

// markdownTree returns the Markdown files under dir, recursively, in lexical order.
func markdownTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(p), rewrite.MarkdownExt) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Caption returns the caption for a Markdown file: the front matter title
// when present, otherwise the first non-blank line with leading # markers
// removed. An empty file yields its base name without extension.
func Caption(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var fm struct {
		Title string `yaml:"title" toml:"title" json:"title"`
	}
	body, err := frontmatter.Parse(bytes.NewReader(raw), &fm)
	if err != nil {
		body = raw
	}
	if t := strings.TrimSpace(fm.Title); t != "" {
		return t, nil
	}
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return line, nil
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)), nil
}

// Build renders the reStructuredText index for the tree at root.
func (s *Synthesizer) Build(root string, meta Meta) (string, error) {
	chapters, err := s.chapters(root)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(s.Preamble)
	title := meta.Title
	if title == "" {
		title = filepath.Base(root)
	}
	underline(&b, title, '=')
	b.WriteString("\n")
	if meta.SourceURL != "" {
		fmt.Fprintf(&b, "This material was generated from the source document at %s.\n\n", meta.SourceURL)
	} else {
		b.WriteString("This material was generated from an OU-XML source document.\n\n")
	}

	for _, ch := range chapters {
		underline(&b, ch.Heading, '-')
		b.WriteString("\n.. toctree::\n   :maxdepth: 1\n")
		switch s.Mode {
		case ModeSimple:
			b.WriteString("\n")
			for _, e := range ch.Entries {
				b.WriteString("   " + tocEntry(e.Caption, e.Target) + "\n")
			}
		default:
			fmt.Fprintf(&b, "   :glob:\n\n   %s/*\n", ch.Dir)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// tocEntry renders one toctree line. Sphinx reads an entry ending in <...> as
// "title <target>" and has no escape for angle brackets, so a caption that
// contains them falls back to the bare target and the document's own title.
func tocEntry(caption, target string) string {
	if caption == "" || strings.ContainsAny(caption, "<>") {
		return target
	}
	return caption + " <" + target + ">"
}

func underline(b *strings.Builder, text string, rule rune) {
	b.WriteString(text)
	b.WriteString("\n")
	b.WriteString(strings.Repeat(string(rule), utf8.RuneCountInString(text)))
	b.WriteString("\n")
}

// Write builds the table of contents in the configured format and replaces
// the file at path in one operation.
func (s *Synthesizer) Write(root, path string, meta Meta) error {
	var data []byte
	switch s.Format {
	case FormatJupyterBook:
		out, err := s.BuildJupyterBook(root, meta)
		if err != nil {
			return err
		}
		data = out
	default:
		out, err := s.Build(root, meta)
		if err != nil {
			return err
		}
		data = []byte(out)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write table of contents: %w", err)
	}
	s.logger().Info("Wrote table of contents", "file", path, "format", string(s.Format))
	return nil
}
