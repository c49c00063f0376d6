// Package ingest populates the figure store from OU-XML documents, their
// rendered pages and local image files.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/japaniel/ouxml2md/pkg/db"
	"github.com/japaniel/ouxml2md/pkg/imagekey"
	"github.com/japaniel/ouxml2md/pkg/ouxml"
)

// DefaultHTMLImageFilter selects the course-content images of a rendered page.
const DefaultHTMLImageFilter = "mod_oucontent"

// Ingester populates the figure store from local copies of source documents.
type Ingester struct {
	DB        *sql.DB
	BatchSize int
	// HTMLImageFilter keeps only rendered images whose URL contains it. Empty keeps all.
	HTMLImageFilter string
	// Logger is used for informational messages. nil means no logging.
	Logger *slog.Logger
	// OnProgress is called after each committed batch with the number of
	// records written so far and the total for the current call.
	OnProgress func(current, total int)
}

// NewIngester creates a new Ingester.
func NewIngester(conn *sql.DB) *Ingester {
	return &Ingester{
		DB:              conn,
		BatchSize:       50,
		HTMLImageFilter: DefaultHTMLImageFilter,
	}
}

func (ig *Ingester) logger() *slog.Logger {
	if ig.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return ig.Logger
}

func (ig *Ingester) newBatchWriter(total int) *BatchWriter {
	bw := NewBatchWriter(ig.DB, ig.BatchSize)
	done := 0
	bw.OnFlush = func(n int) {
		done += n
		if ig.OnProgress != nil {
			ig.OnProgress(done, total)
		}
	}
	return bw
}

// Source is one document to ingest.
type Source struct {
	// SourceLink is where the XML came from.
	SourceLink string
	DocType    string
	XML        []byte
	// HTMLURL and HTML are the rendered page, when available.
	HTMLURL string
	HTML    []byte
}

// Result summarises an ingested document.
type Result struct {
	DocumentID      int64
	Meta            ouxml.Meta
	Figures         int
	RenderedFigures int
}

// IngestDocument stores the document record, its XML figures and the
// course images of its rendered page in as few transactions as BatchSize
// allows. A document that is not well-formed XML is rejected before anything
// is written.
func (ig *Ingester) IngestDocument(ctx context.Context, src Source) (Result, error) {
	doc, err := ouxml.Read(src.XML)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", src.SourceLink, err)
	}
	res := Result{Meta: doc.Meta}

	var rendered []string
	if len(src.HTML) > 0 {
		page, err := ParsePage(src.HTML, src.HTMLURL, ig.HTMLImageFilter)
		if err != nil {
			ig.logger().Warn("Skipping rendered page", "url", src.HTMLURL, "err", err)
		} else {
			rendered = page.Images
			if res.Meta.ItemTitle == "" {
				res.Meta.ItemTitle = page.Title
			}
		}
	}

	docType := src.DocType
	if docType == "" {
		docType = "ouxml"
	}
	record := db.Document{
		SourceLink:         src.SourceLink,
		DocType:            docType,
		HTMLURL:            src.HTMLURL,
		XML:                string(src.XML),
		HTMLSource:         string(src.HTML),
		CoursePresentation: res.Meta.Presentation,
		CourseCode:         res.Meta.CourseCode,
		CourseTitle:        res.Meta.CourseTitle,
		ItemTitle:          res.Meta.ItemTitle,
	}

	bw := ig.newBatchWriter(1 + len(doc.Figures) + len(rendered))
	if err := bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
		id, err := db.InsertDocument(tx, record)
		if err != nil {
			return err
		}
		res.DocumentID = id
		return nil
	}); err != nil {
		return res, err
	}

	for _, f := range doc.Figures {
		stub := imagekey.Stub(f.SourceURL)
		rec := db.FigureRecord{
			SourceURL:   f.SourceURL,
			ImageURL:    f.ImageURL,
			Caption:     f.Caption,
			Alt:         f.Alt,
			Description: f.Description,
			Owner:       f.Owner,
			ItemAck:     f.ItemAck,
			CourseCode:  res.Meta.CourseCode,
			Stub:        stub,
			MinStub:     imagekey.MinStub(stub),
		}
		if err := bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
			rec.DocumentID = res.DocumentID
			if _, err := db.InsertFigure(tx, rec); err != nil {
				return fmt.Errorf("failed to persist figure %s: %w", rec.Stub, err)
			}
			res.Figures++
			return nil
		}); err != nil {
			return res, err
		}
	}

	for _, u := range rendered {
		stub := imagekey.Stub(u)
		rec := db.RenderedFigureRecord{
			RenderedURL: u,
			PageURL:     src.HTMLURL,
			CourseCode:  res.Meta.CourseCode,
			Stub:        stub,
			MinStub:     imagekey.MinStub(stub),
		}
		if err := bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
			rec.DocumentID = res.DocumentID
			if _, err := db.InsertRenderedFigure(tx, rec); err != nil {
				return fmt.Errorf("failed to persist rendered figure %s: %w", rec.Stub, err)
			}
			res.RenderedFigures++
			return nil
		}); err != nil {
			return res, err
		}
	}

	if err := bw.Close(ctx); err != nil {
		return res, err
	}
	ig.logger().Info("Ingested document",
		"id", res.DocumentID,
		"course", res.Meta.CourseCode,
		"title", res.Meta.ItemTitle,
		"figures", res.Figures,
		"rendered", res.RenderedFigures)
	return res, nil
}
