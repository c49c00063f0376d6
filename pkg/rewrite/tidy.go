package rewrite

import (
	"io"
	"log/slog"
	"regexp"
)

var (
	reExcessBreaks = regexp.MustCompile(`[\r\n][\r\n]{2,}`)
	reFenceBreaks  = regexp.MustCompile("(```[A-Za-z0-9_+-]+)[\r\n]{2,}")
)

// Tidy collapses the blank-line runs the XSLT transform leaves behind: three
// or more line breaks become a single blank line, and blank lines directly
// after a code fence opener are dropped.
func Tidy(text string) string {
	text = reExcessBreaks.ReplaceAllString(text, "\n\n")
	text = reFenceBreaks.ReplaceAllString(text, "$1\n")
	return text
}

// TidyDir applies Tidy to every Markdown file directly inside dir and returns
// the files that changed.
func TidyDir(dir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	files, err := MarkdownFiles(dir, "")
	if err != nil {
		return nil, err
	}
	var changed []string
	for _, fn := range files {
		ok, err := rewriteFile(fn, Tidy, logger)
		if err != nil {
			return changed, err
		}
		if ok {
			changed = append(changed, fn)
		}
	}
	return changed, nil
}
