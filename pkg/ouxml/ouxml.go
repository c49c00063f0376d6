// Package ouxml reads the parts of an OU-XML course document needed to
// populate the figure store: document metadata and figure elements.
package ouxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"
)

// ErrMalformed is returned when a document is not well-formed XML.
var ErrMalformed = errors.New("malformed OU-XML document")

// Element is a node of a parsed document. Text holds the concatenated
// character data of the element and all its descendants.
type Element struct {
	Name     string
	Attr     map[string]string
	Children []*Element

	text strings.Builder
}

// Parse reads a complete document. Character sets other than UTF-8 are
// converted according to the XML declaration; HTML named entities are
// accepted.
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	var root *Element
	var stack []*Element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local, Attr: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				el.Attr[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else if root == nil {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			for _, el := range stack {
				el.text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	return root, nil
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) (*Element, error) {
	return Parse(bytes.NewReader(data))
}

// Validate reports whether data is a well-formed document.
func Validate(data []byte) error {
	_, err := ParseBytes(data)
	return err
}

// Text returns the flattened, NFKD-normalised text of e. A nil element has
// no text.
func (e *Element) Text() string {
	if e == nil {
		return ""
	}
	return norm.NFKD.String(e.text.String())
}

// Child returns the first direct child named name, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Find returns the first descendant named name in document order, or nil.
func (e *Element) Find(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant whose name is in names, in document order.
func (e *Element) FindAll(names ...string) []*Element {
	var out []*Element
	var walk func(*Element)
	walk = func(el *Element) {
		for _, c := range el.Children {
			for _, n := range names {
				if c.Name == n {
					out = append(out, c)
					break
				}
			}
			walk(c)
		}
	}
	if e != nil {
		walk(e)
	}
	return out
}
