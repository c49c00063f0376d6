package ouxml

import (
	"net/url"
	"path"
	"strings"
)

// FigureElements are the element names that carry an Image.
var FigureElements = []string{"Figure", "InlineFigure", "Equation", "InlineEquation"}

// DefaultAlt is used when a figure has no Alternative text.
const DefaultAlt = "Figure"

// Meta is the course metadata of a document.
type Meta struct {
	// CourseCode has any presentation suffix (e.g. "-20J") removed.
	CourseCode   string
	Presentation string
	CourseTitle  string
	ItemTitle    string
}

// Figure is one image-bearing element.
type Figure struct {
	Kind string
	// SourceURL is the Image src attribute, as written in the document.
	SourceURL string
	// ImageURL is the hashed content location, when the document provides one.
	ImageURL    string
	Caption     string
	Alt         string
	Description string
	Owner       string
	ItemRef     string
	ItemAck     string
}

// Document is a parsed OU-XML document.
type Document struct {
	Root    *Element
	Meta    Meta
	Figures []Figure
}

// Read parses data and extracts its metadata and figures.
func Read(data []byte) (*Document, error) {
	root, err := ParseBytes(data)
	if err != nil {
		return nil, err
	}
	return &Document{Root: root, Meta: ParseMeta(root), Figures: ExtractFigures(root)}, nil
}

// ParseMeta reads CourseCode, CourseTitle and ItemTitle.
func ParseMeta(root *Element) Meta {
	code := strings.TrimSpace(root.Find("CourseCode").Text())
	m := Meta{
		CourseTitle: strings.TrimSpace(root.Find("CourseTitle").Text()),
		ItemTitle:   strings.TrimSpace(root.Find("ItemTitle").Text()),
	}
	m.CourseCode, m.Presentation, _ = strings.Cut(code, "-")
	return m
}

// ExtractFigures returns every figure or equation that carries an Image with
// a src attribute, in document order.
func ExtractFigures(root *Element) []Figure {
	var out []Figure
	for _, el := range root.FindAll(FigureElements...) {
		img := el.Child("Image")
		if img == nil {
			continue
		}
		src, ok := img.Attr["src"]
		if !ok || src == "" {
			continue
		}
		f := Figure{
			Kind:        el.Name,
			SourceURL:   src,
			ImageURL:    contentURL(src, img.Attr["x_folderhash"], img.Attr["x_contenthash"], img.Attr["x_imagesrc"]),
			Caption:     strings.TrimSpace(el.Child("Caption").Text()),
			Alt:         strings.TrimSpace(el.Child("Alternative").Text()),
			Description: strings.TrimSpace(el.Child("Description").Text()),
		}
		if f.Alt == "" {
			f.Alt = DefaultAlt
		}
		if rights := el.Child("SourceReference").Child("ItemRights"); rights != nil {
			f.Owner = strings.TrimSpace(rights.Child("OwnerRef").Text())
			f.ItemRef = strings.TrimSpace(rights.Child("ItemRef").Text())
			f.ItemAck = strings.TrimSpace(rights.Child("ItemAcknowledgement").Text())
		}
		out = append(out, f)
	}
	return out
}

// contentURL rebuilds the resolvable image location from the hash attributes
// that OpenLearn documents attach to an Image: the last path segment of src
// is replaced by folderhash/contenthash/imagesrc.
func contentURL(src, folderHash, contentHash, imageSrc string) string {
	if folderHash == "" || contentHash == "" || imageSrc == "" {
		return ""
	}
	u, err := url.Parse(src)
	if err != nil || u.Scheme == "" {
		return ""
	}
	u.Path = path.Join(path.Dir(u.Path), folderHash, contentHash, imageSrc)
	return u.String()
}
