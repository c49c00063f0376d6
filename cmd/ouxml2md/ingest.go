package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/japaniel/ouxml2md/pkg/ingest"
)

func newIngestCmd(a *app) *cobra.Command {
	var htmlFile, htmlURL, imageDir, sourceLink string
	var batch int
	cmd := &cobra.Command{
		Use:   "ingest [xml-file...]",
		Short: "Load OU-XML documents, rendered pages and images into the figure store",
		Long: `Reads each OU-XML file and stores its metadata and figures. A rendered
HTML copy of a single document can be given with --html; its course images
are stored as the rendered view. --images imports a directory of image files
as base64 blobs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && imageDir == "" {
				return errors.New("nothing to ingest: give XML files or --images")
			}
			if htmlFile != "" && len(args) != 1 {
				return errors.New("--html needs exactly one XML file")
			}
			if sourceLink != "" && len(args) != 1 {
				return errors.New("--source needs exactly one XML file")
			}

			conn, err := a.openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			ig := ingest.NewIngester(conn)
			ig.Logger = a.logger
			ig.HTMLImageFilter = a.cfg.HTMLImageFilter
			if batch > 0 {
				ig.BatchSize = batch
			}
			out := cmd.OutOrStdout()

			for _, fn := range args {
				xml, err := os.ReadFile(fn)
				if err != nil {
					return err
				}
				src := ingest.Source{SourceLink: fn, XML: xml, HTMLURL: htmlURL}
				if sourceLink != "" {
					src.SourceLink = sourceLink
				}
				if htmlFile != "" {
					if src.HTML, err = os.ReadFile(htmlFile); err != nil {
						return err
					}
				}
				res, err := ig.IngestDocument(cmd.Context(), src)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d\t%s\t%s\tfigures=%d rendered=%d\n", res.DocumentID, res.Meta.CourseCode, res.Meta.ItemTitle, res.Figures, res.RenderedFigures)
			}

			if imageDir != "" {
				res, err := ig.IngestImages(cmd.Context(), imageDir)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "images stored=%d duplicates=%d\n", res.Stored, res.Duplicates)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&htmlFile, "html", "", "rendered HTML page of the document")
	f.StringVar(&htmlURL, "html-url", "", "URL the rendered page was fetched from")
	f.StringVar(&sourceLink, "source", "", "original location of the XML (defaults to the file path)")
	f.StringVar(&imageDir, "images", "", "directory of image files to store as blobs")
	f.IntVar(&batch, "batch", 0, "records per transaction")
	return cmd
}
