// Package rewrite replaces image references in generated Markdown with the
// paths of locally materialized images.
package rewrite

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/japaniel/ouxml2md/pkg/fsutil"
)

// MarkdownExt is the extension of files considered by RewriteDir.
const MarkdownExt = ".md"

// Rewriter rewrites references found in Map to their mapped paths.
type Rewriter struct {
	// Map holds reference -> local relative path.
	Map map[string]string
	// Logger receives one line per rewritten file. nil means no logging.
	Logger *slog.Logger
}

// New creates a Rewriter for the given reference map.
func New(refs map[string]string, logger *slog.Logger) *Rewriter {
	return &Rewriter{Map: refs, Logger: logger}
}

func (rw *Rewriter) logger() *slog.Logger {
	if rw.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rw.Logger
}

// orderedKeys returns the map keys longest first so that a reference that is
// a suffix of another one cannot clobber it.
func (rw *Rewriter) orderedKeys() []string {
	keys := make([]string, 0, len(rw.Map))
	for k := range rw.Map {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// RewriteText returns text with every mapped reference replaced.
func (rw *Rewriter) RewriteText(text string) string {
	for _, key := range rw.orderedKeys() {
		core := strings.TrimLeft(key, `\`)
		if core == "" {
			continue
		}
		text = replaceGuarded(text, core, rw.Map[key], len(core) < len(key))
	}
	return text
}

// replaceGuarded replaces occurrences of old with repl, except where the
// occurrence already sits inside a copy of repl. That keeps a second pass over
// rewritten text a no-op even when repl contains old (images/x.png for x.png).
// When eatBackslashes is set, backslashes directly before an occurrence are
// consumed too; they belong to a UNC path prefix that was stripped from old.
func replaceGuarded(text, old, repl string, eatBackslashes bool) string {
	if !strings.Contains(text, old) {
		return text
	}
	var offsets []int
	for o := 0; o+len(old) <= len(repl); o++ {
		if repl[o:o+len(old)] == old {
			offsets = append(offsets, o)
		}
	}
	insideRepl := func(at int) bool {
		for _, o := range offsets {
			s := at - o
			if s >= 0 && s+len(repl) <= len(text) && text[s:s+len(repl)] == repl {
				return true
			}
		}
		return false
	}

	var b strings.Builder
	last, i := 0, 0
	for {
		j := strings.Index(text[i:], old)
		if j < 0 {
			break
		}
		j += i
		i = j + len(old)
		if insideRepl(j) {
			continue
		}
		start := j
		if eatBackslashes {
			for start > last && text[start-1] == '\\' {
				start--
			}
		}
		b.WriteString(text[last:start])
		b.WriteString(repl)
		last = i
	}
	b.WriteString(text[last:])
	return b.String()
}

// RewriteFile rewrites references in path. The file is only written back
// when its content changed; it reports whether it was.
func (rw *Rewriter) RewriteFile(path string) (bool, error) {
	return rewriteFile(path, rw.RewriteText, rw.logger())
}

func rewriteFile(path string, fn func(string) string, logger *slog.Logger) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	txt := fn(string(raw))
	if txt == string(raw) {
		return false, nil
	}
	logger.Info("Rewriting", "file", path)
	if err := fsutil.WriteFileAtomic(path, []byte(txt), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("rewrite %s: %w", path, err)
	}
	return true, nil
}

// RewriteDir rewrites every Markdown file directly inside dir whose name
// starts with prefix (empty prefix matches all). It returns the files that
// changed. Unreadable files are logged and skipped; write failures abort.
func (rw *Rewriter) RewriteDir(dir, prefix string) ([]string, error) {
	files, err := MarkdownFiles(dir, prefix)
	if err != nil {
		return nil, err
	}
	var changed []string
	for _, fn := range files {
		ok, err := rw.RewriteFile(fn)
		if err != nil {
			if os.IsNotExist(err) {
				rw.logger().Warn("Skipping unreadable file", "file", fn, "err", err)
				continue
			}
			return changed, err
		}
		if ok {
			changed = append(changed, fn)
		}
	}
	return changed, nil
}

// MarkdownFiles lists the Markdown files directly inside dir whose name
// starts with prefix, sorted by name.
func MarkdownFiles(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, MarkdownExt) || !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}
