package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/japaniel/ouxml2md/pkg/db"
	"github.com/japaniel/ouxml2md/pkg/ouxml"
	"github.com/japaniel/ouxml2md/pkg/pipeline"
	"github.com/japaniel/ouxml2md/pkg/transform"
)

func newConvertCmd(a *app) *cobra.Command {
	var outDir, term string
	var ids []int64
	cmd := &cobra.Command{
		Use:   "convert [xml-file...]",
		Short: "Convert documents into partitioned Markdown trees",
		Long: `Runs the full conversion: XSLT transform, image reconciliation against the
figure store, link rewriting, chapter partitioning and table of contents.
Documents come from XML files, from stored documents selected with --id, or
from stored documents whose title matches --term. Several documents are each
written to their own directory below --out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			docs, err := loadDocuments(conn, args, ids, term)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return errors.New("no documents to convert")
			}

			tr := &transform.XSLTProc{Binary: a.cfg.XSLTProc, Stylesheet: a.cfg.Stylesheet, Logger: a.logger}
			p := pipeline.New(conn, tr, a.cfg)
			p.Logger = a.logger
			reports, err := p.RunAll(cmd.Context(), docs, outDir)
			for _, r := range reports {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d files\t%d images\n", r.OutDir, r.State, len(r.Files), len(r.References))
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&outDir, "out", "o", ".", "output directory")
	f.Int64SliceVar(&ids, "id", nil, "stored document id (repeatable)")
	f.StringVar(&term, "term", "", "convert every stored document whose title contains term")
	return cmd
}

// loadDocuments gathers the documents named by files, ids and term, in that order.
func loadDocuments(conn db.DBExecutor, files []string, ids []int64, term string) ([]pipeline.Document, error) {
	var docs []pipeline.Document
	for _, fn := range files {
		raw, err := os.ReadFile(fn)
		if err != nil {
			return nil, err
		}
		doc := pipeline.Document{SourceURL: fn, XML: raw}
		if root, err := ouxml.ParseBytes(raw); err == nil {
			doc.Title = ouxml.ParseMeta(root).ItemTitle
		}
		docs = append(docs, doc)
	}
	for _, id := range ids {
		d, err := db.GetDocument(conn, id)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", id, err)
		}
		docs = append(docs, pipeline.FromRecord(d))
	}
	if term != "" {
		stored, err := db.ListDocuments(conn, term)
		if err != nil {
			return nil, err
		}
		for _, d := range stored {
			docs = append(docs, pipeline.FromRecord(d))
		}
	}
	return docs, nil
}
