package db

import "time"

// Document is the originating metadata record for one scraped OU-XML page.
type Document struct {
	ID                 int64
	SourceLink         string
	DocType            string
	HTMLURL            string
	XML                string
	HTMLSource         string
	CoursePresentation string
	CourseCode         string
	CourseTitle        string
	ItemTitle          string
	AddedAt            time.Time
}

// FigureRecord is an image as declared in the source XML.
type FigureRecord struct {
	ID          int64
	DocumentID  int64
	SourceURL   string
	ImageURL    string
	Caption     string
	Alt         string
	Description string
	Owner       string
	ItemAck     string
	CourseCode  string
	Stub        string
	MinStub     string
}

// RenderedFigureRecord is an image as referenced from the rendered HTML page.
type RenderedFigureRecord struct {
	ID          int64
	DocumentID  int64
	RenderedURL string
	PageURL     string
	CourseCode  string
	Stub        string
	MinStub     string
}

// ImageBlob holds the base64 encoded bytes of an image, keyed by MinStub.
type ImageBlob struct {
	ID      int64
	MinStub string
	Stub    string
	Encoded string
}

// Resolution is one row of a reconciliation join: the reference key used in
// the generated Markdown, the filename the image is stored under locally and
// the encoded payload.
type Resolution struct {
	ReferenceKey string
	LocalStub    string
	Encoded      string
}
