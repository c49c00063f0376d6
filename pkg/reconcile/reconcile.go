// Package reconcile matches the image references found in generated Markdown
// against the figure store, writes the matched images to disk and builds the
// reference map used to rewrite the Markdown links.
package reconcile

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/japaniel/ouxml2md/pkg/db"
	"github.com/japaniel/ouxml2md/pkg/fsutil"
	"github.com/japaniel/ouxml2md/pkg/imagekey"
	"github.com/japaniel/ouxml2md/pkg/rewrite"
)

// Mode selects which store views take part in the join.
type Mode string

const (
	// ModeJoined joins the XML, rendered HTML and blob views.
	ModeJoined Mode = "joined"
	// ModeXMLOnly joins the XML and blob views on min stub only.
	ModeXMLOnly Mode = "xmlonly"
)

// ParseMode validates a mode name. The empty string selects ModeJoined.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeJoined:
		return ModeJoined, nil
	case ModeXMLOnly:
		return ModeXMLOnly, nil
	}
	return "", fmt.Errorf("unknown reconcile mode %q", s)
}

// ReferenceMap maps a reference string, as it appears in the Markdown, to the
// slash separated path of the local image relative to the document directory.
type ReferenceMap map[string]string

// Reconciler resolves image references for one document.
type Reconciler struct {
	DB db.DBExecutor
	// ImageDir is where images are written.
	ImageDir string
	// LinkDir is the path of ImageDir as seen from the Markdown files, e.g. "images".
	LinkDir string
	Mode    Mode
	// Logger is used for informational messages. nil means no logging.
	Logger *slog.Logger

	// materialized tracks local stubs written (or found on disk) during this run.
	materialized map[string]bool
}

// NewReconciler creates a Reconciler writing into imageDir and linking to it as linkDir.
func NewReconciler(conn db.DBExecutor, imageDir, linkDir string, mode Mode) *Reconciler {
	return &Reconciler{
		DB:       conn,
		ImageDir: imageDir,
		LinkDir:  linkDir,
		Mode:     mode,
	}
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

// CollectKeys extracts the image keys of every file. Files that cannot be
// read are logged and skipped.
func (r *Reconciler) CollectKeys(files []string) imagekey.Keys {
	keys := make(imagekey.Keys)
	for _, fn := range files {
		k, err := imagekey.ExtractFile(fn)
		if err != nil {
			r.logger().Warn("Skipping file for image keys", "file", fn, "err", err)
			continue
		}
		r.logger().Debug("Collected image keys", "file", fn, "count", len(k))
		keys.Merge(k)
	}
	return keys
}

// Resolve looks up keys in the store, writes every matched image that is not
// on disk yet and returns the reference map. A store error is logged and
// yields an empty map; a failure to write an image is returned. References
// whose image could not be decoded are left out of the map.
func (r *Reconciler) Resolve(ctx context.Context, keys imagekey.Keys) (ReferenceMap, error) {
	refs := make(ReferenceMap)
	if len(keys) == 0 {
		return refs, nil
	}

	var rows []db.Resolution
	var err error
	switch r.Mode {
	case ModeXMLOnly:
		rows, err = db.ResolveXMLOnly(ctx, r.DB, keys.MinStubs())
	default:
		rows, err = db.ResolveJoined(ctx, r.DB, keys.Stubs())
	}
	if err != nil {
		if ctx.Err() != nil {
			return refs, ctx.Err()
		}
		r.logger().Warn("Figure store lookup failed; continuing with partial results", "err", err, "resolved", len(rows))
	}

	for _, row := range rows {
		ok, err := r.materialize(row)
		if err != nil {
			return refs, err
		}
		if !ok {
			continue
		}
		refs[row.ReferenceKey] = path.Join(r.LinkDir, row.LocalStub)
	}
	r.logger().Info("Resolved image references", "keys", len(keys), "resolved", len(refs))
	return refs, nil
}

// materialize writes the decoded blob for row unless the image is already
// present, and reports whether the image is on disk afterwards. The same stub
// always carries the same bytes, so skipping is safe. A blob that does not
// decode is logged and reported as missing.
func (r *Reconciler) materialize(row db.Resolution) (bool, error) {
	if r.materialized == nil {
		r.materialized = make(map[string]bool)
	}
	stub := filepath.Base(filepath.FromSlash(row.LocalStub))
	if stub == "." || stub == ".." || stub == string(filepath.Separator) {
		return false, fmt.Errorf("invalid local image name %q", row.LocalStub)
	}
	if r.materialized[stub] {
		return true, nil
	}
	dest := filepath.Join(r.ImageDir, stub)
	if fsutil.Exists(dest) {
		r.materialized[stub] = true
		return true, nil
	}
	data, err := decodeImage(row.Encoded)
	if err != nil {
		r.logger().Warn("Skipping undecodable image", "stub", stub, "ref", row.ReferenceKey, "err", err)
		return false, nil
	}
	if err := fsutil.WriteFileAtomic(dest, data, 0o644); err != nil {
		return false, fmt.Errorf("save image %s: %w", stub, err)
	}
	r.logger().Debug("Saved image", "file", dest)
	r.materialized[stub] = true
	return true, nil
}

// decodeImage accepts standard base64 with or without line breaks.
func decodeImage(encoded string) ([]byte, error) {
	cleaned := strings.Map(func(c rune) rune {
		switch c {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return c
	}, encoded)
	return base64.StdEncoding.DecodeString(cleaned)
}

// ReconcileFiles runs the two passes over files: all keys are collected
// first, then resolved once, so an image shared by several files resolves for
// all of them.
func (r *Reconciler) ReconcileFiles(ctx context.Context, files []string) (ReferenceMap, error) {
	keys := r.CollectKeys(files)
	return r.Resolve(ctx, keys)
}

// ReconcileDir reconciles every Markdown file directly inside dir whose name
// starts with prefix.
func (r *Reconciler) ReconcileDir(ctx context.Context, dir, prefix string) (ReferenceMap, error) {
	files, err := rewrite.MarkdownFiles(dir, prefix)
	if err != nil {
		return nil, err
	}
	return r.ReconcileFiles(ctx, files)
}
