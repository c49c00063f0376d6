package ingest

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/dom"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Page is what ingestion keeps from a rendered HTML page.
type Page struct {
	Title    string
	SiteName string
	// Images are absolute image URLs in document order, without duplicates.
	Images []string
}

// ParsePage extracts the title and the image URLs of a rendered page. Image
// sources are resolved against pageURL; only those containing filter are
// kept (all of them when filter is empty).
func ParsePage(raw []byte, pageURL, filter string) (Page, error) {
	var base *url.URL
	if pageURL != "" {
		u, err := url.Parse(pageURL)
		if err != nil {
			return Page{}, fmt.Errorf("parse page url: %w", err)
		}
		base = u
	}

	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	var page Page
	seen := make(map[string]bool)
	for _, img := range dom.GetElementsByTagName(root, "img") {
		src := strings.TrimSpace(dom.GetAttribute(img, "src"))
		if src == "" || strings.HasPrefix(src, "data:") {
			continue
		}
		if base != nil {
			if ref, err := url.Parse(src); err == nil {
				src = base.ResolveReference(ref).String()
			}
		}
		if filter != "" && !strings.Contains(src, filter) {
			continue
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		page.Images = append(page.Images, src)
	}

	// Readability only contributes metadata; a page it cannot make sense of
	// still yields its images.
	articleURL := base
	if articleURL == nil {
		articleURL = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}
	}
	if article, err := readability.FromReader(bytes.NewReader(raw), articleURL); err == nil {
		page.Title = strings.TrimSpace(article.Title)
		page.SiteName = strings.TrimSpace(article.SiteName)
	}
	if page.Title == "" {
		if t := dom.GetElementsByTagName(root, "title"); len(t) > 0 {
			page.Title = strings.TrimSpace(dom.TextContent(t[0]))
		}
	}
	return page, nil
}
