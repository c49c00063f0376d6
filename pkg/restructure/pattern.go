package restructure

import (
	"fmt"
	"regexp"
	"strings"
)

// NamingPattern extracts the chapter ordinal from a flat filename.
type NamingPattern interface {
	// Chapter returns the chapter of name and whether name follows the pattern.
	Chapter(name string) (string, bool)
}

// SeparatorPattern matches names like <prefix>_<chapter>_<section><Ext> by
// splitting on Separator and taking the component at Position.
type SeparatorPattern struct {
	Separator string
	Position  int
	Ext       string
	// Prefix, when set, must equal the first component.
	Prefix string
}

// DefaultPattern matches <prefix>_<NN>_<MM>.md.
var DefaultPattern = SeparatorPattern{Separator: "_", Position: 1, Ext: ".md"}

// Chapter implements NamingPattern.
func (p SeparatorPattern) Chapter(name string) (string, bool) {
	if p.Ext != "" {
		if !strings.HasSuffix(name, p.Ext) {
			return "", false
		}
		name = strings.TrimSuffix(name, p.Ext)
	}
	sep := p.Separator
	if sep == "" {
		sep = "_"
	}
	parts := strings.Split(name, sep)
	// A chapter and a section component must both follow the prefix.
	if len(parts) < 3 || p.Position < 1 || p.Position >= len(parts) {
		return "", false
	}
	if p.Prefix != "" && parts[0] != p.Prefix {
		return "", false
	}
	chapter := parts[p.Position]
	if chapter == "" {
		return "", false
	}
	return chapter, true
}

// RegexpPattern takes the chapter from the named group "chapter" (or the
// first group) of a regular expression matched against the whole filename.
type RegexpPattern struct {
	re    *regexp.Regexp
	group int
}

// NewRegexpPattern compiles expr into a RegexpPattern.
func NewRegexpPattern(expr string) (*RegexpPattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile naming pattern: %w", err)
	}
	group := re.SubexpIndex("chapter")
	if group < 0 {
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("naming pattern %q has no capture group", expr)
		}
		group = 1
	}
	return &RegexpPattern{re: re, group: group}, nil
}

// Chapter implements NamingPattern.
func (p *RegexpPattern) Chapter(name string) (string, bool) {
	m := p.re.FindStringSubmatch(name)
	if m == nil || m[p.group] == "" {
		return "", false
	}
	return m[p.group], true
}
