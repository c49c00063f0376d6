package toc

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Section is one entry of a Jupyter-Book _toc.yml.
type Section struct {
	Title       string    `yaml:"title"`
	URL         string    `yaml:"url"`
	NotNumbered bool      `yaml:"not_numbered"`
	Sections    []Section `yaml:"sections,omitempty"`
}

// JupyterBook returns the outline of the tree at root as Jupyter-Book
// sections: one per chapter, opening on its first file, with the remaining
// files nested below it. Chapters without Markdown files are omitted.
func (s *Synthesizer) JupyterBook(root string, meta Meta) ([]Section, error) {
	chapters, err := s.chapters(root)
	if err != nil {
		return nil, err
	}
	var out []Section
	if meta.Title != "" {
		out = append(out, Section{Title: meta.Title, URL: "/index", NotNumbered: true})
	}
	for _, ch := range chapters {
		if len(ch.Entries) == 0 {
			continue
		}
		sec := Section{Title: ch.Heading, URL: "/" + ch.Entries[0].Target, NotNumbered: true}
		for _, e := range ch.Entries[1:] {
			sec.Sections = append(sec.Sections, Section{Title: e.Caption, URL: "/" + e.Target, NotNumbered: true})
		}
		out = append(out, sec)
	}
	return out, nil
}

// BuildJupyterBook renders JupyterBook as YAML.
func (s *Synthesizer) BuildJupyterBook(root string, meta Meta) ([]byte, error) {
	sections, err := s.JupyterBook(root, meta)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("marshal toc: %w", err)
	}
	return out, nil
}
