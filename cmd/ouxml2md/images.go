package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/japaniel/ouxml2md/pkg/reconcile"
	"github.com/japaniel/ouxml2md/pkg/rewrite"
)

func newImagesCmd(a *app) *cobra.Command {
	var tidy bool
	cmd := &cobra.Command{
		Use:   "images <dir>",
		Short: "Resolve and rewrite the image links of a flat Markdown directory",
		Long: `Collects the image references of every Markdown file in dir whose name
starts with the configured prefix, writes the matching images from the figure
store into dir/<image-dir> and points the links at them. Files are not moved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			conn, err := a.openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			if tidy {
				if _, err := rewrite.TidyDir(dir, a.logger); err != nil {
					return err
				}
			}
			rec := reconcile.NewReconciler(conn, filepath.Join(dir, a.cfg.ImageDir), a.cfg.ImageDir, a.cfg.ReconcileModeValue())
			rec.Logger = a.logger
			refs, err := rec.ReconcileDir(cmd.Context(), dir, a.cfg.Prefix)
			if err != nil {
				return err
			}
			changed, err := rewrite.New(refs, a.logger).RewriteDir(dir, a.cfg.Prefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resolved %d references, rewrote %d files\n", len(refs), len(changed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&tidy, "tidy", false, "collapse excess blank lines before rewriting")
	return cmd
}
