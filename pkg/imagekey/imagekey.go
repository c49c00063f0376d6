// Package imagekey finds the image references in generated Markdown and
// derives the stub keys used to join them against the figure store.
package imagekey

import (
	"bytes"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/go-shiori/dom"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// Keys maps each image reference found in a document to its stub.
type Keys map[string]string

// Merge adds every entry of other to k.
func (k Keys) Merge(other Keys) {
	for ref, stub := range other {
		k[ref] = stub
	}
}

// Stubs returns the distinct stubs, sorted.
func (k Keys) Stubs() []string {
	return distinct(k, func(s string) string { return s })
}

// MinStubs returns the distinct min stubs, sorted.
func (k Keys) MinStubs() []string {
	return distinct(k, MinStub)
}

func distinct(k Keys, f func(string) string) []string {
	seen := make(map[string]bool, len(k))
	var out []string
	for _, stub := range k {
		v := f(stub)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Stub returns the final path segment of ref. Paths may come from Windows
// file shares or from URLs, so a backslash takes precedence over a slash.
func Stub(ref string) string {
	if i := strings.LastIndex(ref, `\`); i >= 0 {
		return ref[i+1:]
	}
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// MinStub strips the extension from stub. Everything from the first dot is
// dropped, so "fig1.small.png" becomes "fig1".
func MinStub(stub string) string {
	if i := strings.Index(stub, "."); i >= 0 {
		return stub[:i]
	}
	return stub
}

var mdParser = goldmark.New().Parser()

var (
	inlineImage = regexp.MustCompile(`!\[([^\]\n]*)\]\(([^)\n]*)\)`)
	linkTitle   = regexp.MustCompile(`^(.*?)(\s+(?:"[^"\n]*"|'[^'\n]*'))?\s*$`)
)

// bracketSpacedDestinations wraps inline image destinations that contain
// spaces in angle brackets. File share paths such as
// \\DCTM_FSS\content\Teaching and curriculum\fig.eps are written unquoted
// by the transform, and CommonMark would otherwise not read them as images.
// Offsets change, so the result must be parsed on its own.
func bracketSpacedDestinations(src []byte) []byte {
	return inlineImage.ReplaceAllFunc(src, func(m []byte) []byte {
		sub := inlineImage.FindSubmatch(m)
		inner := sub[2]
		parts := linkTitle.FindSubmatch(inner)
		if parts == nil {
			return m
		}
		dest := bytes.TrimSpace(parts[1])
		if len(dest) == 0 || dest[0] == '<' || !bytes.ContainsAny(dest, " \t") || bytes.ContainsAny(dest, "<>") {
			return m
		}
		var b bytes.Buffer
		b.WriteString("![")
		b.Write(sub[1])
		b.WriteString("](<")
		b.Write(dest)
		b.WriteByte('>')
		b.Write(parts[2])
		b.WriteByte(')')
		return b.Bytes()
	})
}

// Extract parses src as Markdown and returns every image reference with its
// stub. Both Markdown image syntax (inline and reference style) and <img>
// tags embedded as raw HTML are recognised. Inline destinations may contain
// unescaped spaces.
func Extract(src []byte) Keys {
	src = bracketSpacedDestinations(src)
	keys := make(Keys)
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return
		}
		keys[ref] = Stub(ref)
	}

	doc := mdParser.Parse(text.NewReader(src))
	var rawHTML bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Image:
			add(string(node.Destination))
		case *ast.HTMLBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				rawHTML.Write(seg.Value(src))
			}
			if node.HasClosure() {
				rawHTML.Write(node.ClosureLine.Value(src))
			}
			rawHTML.WriteByte('\n')
		case *ast.RawHTML:
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				rawHTML.Write(seg.Value(src))
			}
			rawHTML.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})

	if rawHTML.Len() > 0 {
		for _, ref := range htmlImageSources(rawHTML.Bytes()) {
			add(ref)
		}
	}
	return keys
}

// ExtractFile reads a Markdown file and extracts its image keys.
func ExtractFile(path string) (Keys, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Extract(src), nil
}

func htmlImageSources(fragment []byte) []string {
	doc, err := html.Parse(bytes.NewReader(fragment))
	if err != nil {
		return nil
	}
	var out []string
	for _, img := range dom.GetElementsByTagName(doc, "img") {
		if src := dom.GetAttribute(img, "src"); src != "" {
			out = append(out, src)
		}
	}
	return out
}
