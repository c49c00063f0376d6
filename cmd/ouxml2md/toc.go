package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/japaniel/ouxml2md/pkg/db"
	"github.com/japaniel/ouxml2md/pkg/pipeline"
	"github.com/japaniel/ouxml2md/pkg/toc"
)

func newTOCCmd(a *app) *cobra.Command {
	var meta toc.Meta
	var id int64
	cmd := &cobra.Command{
		Use:   "toc <dir>",
		Short: "Write the table of contents of a partitioned tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]
			if id > 0 {
				conn, err := a.openDB()
				if err != nil {
					return err
				}
				defer conn.Close()
				d, err := db.GetDocument(conn, id)
				if err != nil {
					return fmt.Errorf("document %d: %w", id, err)
				}
				stored := pipeline.FromRecord(d)
				if meta.Title == "" {
					meta.Title = stored.Title
				}
				if meta.SourceURL == "" {
					meta.SourceURL = stored.SourceURL
				}
			}

			syn := toc.New(a.cfg.TOCModeValue(), a.cfg.ImageDir)
			syn.Format = a.cfg.TOCFormatValue()
			syn.Logger = a.logger
			path := a.cfg.TOCFile()
			if !filepath.IsAbs(path) {
				path = filepath.Join(root, path)
			}
			if err := syn.Write(root, path, meta); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&meta.Title, "title", "", "document title")
	f.StringVar(&meta.SourceURL, "source-url", "", "source document URL")
	f.Int64Var(&id, "id", 0, "take title and source URL from this stored document")
	return cmd
}
