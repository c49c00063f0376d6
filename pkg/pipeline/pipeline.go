// Package pipeline runs the conversion of one or more source documents into
// partitioned, indexed Markdown trees.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/japaniel/ouxml2md/pkg/config"
	"github.com/japaniel/ouxml2md/pkg/db"
	"github.com/japaniel/ouxml2md/pkg/fsutil"
	"github.com/japaniel/ouxml2md/pkg/reconcile"
	"github.com/japaniel/ouxml2md/pkg/restructure"
	"github.com/japaniel/ouxml2md/pkg/rewrite"
	"github.com/japaniel/ouxml2md/pkg/toc"
	"github.com/japaniel/ouxml2md/pkg/transform"
)

// State is the stage a document's output tree has reached.
type State int

const (
	// Flat: the transformer has written <prefix>_NN_MM.md files.
	Flat State = iota
	// ImagesResolved: images are on disk and links point at them.
	ImagesResolved
	// Partitioned: files sit in one directory per chapter.
	Partitioned
	// Indexed: the table of contents has been written.
	Indexed
)

func (s State) String() string {
	switch s {
	case Flat:
		return "flat"
	case ImagesResolved:
		return "images-resolved"
	case Partitioned:
		return "partitioned"
	case Indexed:
		return "indexed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Document is one source document to convert.
type Document struct {
	ID        int64
	Title     string
	SourceURL string
	XML       []byte
}

// FromRecord converts a stored document.
func FromRecord(d db.Document) Document {
	src := d.HTMLURL
	if src == "" {
		src = d.SourceLink
	}
	return Document{ID: d.ID, Title: d.ItemTitle, SourceURL: src, XML: []byte(d.XML)}
}

// Report describes one document run.
type Report struct {
	RunID  string
	OutDir string
	State  State
	// Files are the flat Markdown files produced by the transformer.
	Files       []string
	References  reconcile.ReferenceMap
	Rewritten   []string
	Restructure restructure.Result
	TOCPath     string
}

// Pipeline converts documents. DB may be nil, in which case no image is resolved.
type Pipeline struct {
	DB          db.DBExecutor
	Transformer transform.Transformer
	Config      config.Config
	// Logger is used for informational messages. nil means no logging.
	Logger *slog.Logger
}

// New creates a Pipeline.
func New(conn db.DBExecutor, tr transform.Transformer, cfg config.Config) *Pipeline {
	return &Pipeline{DB: conn, Transformer: tr, Config: cfg}
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

// Run converts doc into outDir. Stages run in order: transform, tidy,
// reconcile images across all files, rewrite links, partition, index. A
// failure stops the document at the state reached so far.
func (p *Pipeline) Run(ctx context.Context, doc Document, outDir string) (Report, error) {
	cfg := p.Config
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	rep := Report{RunID: uuid.NewString(), OutDir: outDir, State: Flat}
	log := p.logger().With("run", rep.RunID, "doc", doc.Title)

	if err := fsutil.EnsureDir(outDir); err != nil {
		return rep, err
	}
	if err := p.Transformer.Transform(ctx, doc.XML, filepath.Join(outDir, cfg.Prefix)); err != nil {
		return rep, fmt.Errorf("transform %q: %w", doc.Title, err)
	}
	files, err := rewrite.MarkdownFiles(outDir, cfg.Prefix)
	if err != nil {
		return rep, err
	}
	rep.Files = files
	log.Info("Transformed document", "dir", outDir, "files", len(files))
	if _, err := rewrite.TidyDir(outDir, log); err != nil {
		return rep, err
	}

	if p.DB != nil {
		rec := reconcile.NewReconciler(p.DB, filepath.Join(outDir, cfg.ImageDir), cfg.ImageDir, cfg.ReconcileModeValue())
		rec.Logger = log
		refs, err := rec.ReconcileDir(ctx, outDir, cfg.Prefix)
		if err != nil {
			return rep, err
		}
		rep.References = refs
		rep.Rewritten, err = rewrite.New(refs, log).RewriteDir(outDir, cfg.Prefix)
		if err != nil {
			return rep, err
		}
	} else {
		log.Warn("No figure store; image references left as they are")
	}
	rep.State = ImagesResolved

	rs := restructure.New(cfg.DirStub, cfg.ImageDir)
	rs.Pattern = restructure.SeparatorPattern{Separator: "_", Position: 1, Ext: restructure.DefaultPattern.Ext, Prefix: cfg.Prefix}
	rs.Logger = log
	rep.Restructure, err = rs.Partition(outDir)
	if err != nil {
		return rep, err
	}
	rep.State = Partitioned

	syn := toc.New(cfg.TOCModeValue(), cfg.ImageDir)
	syn.Format = cfg.TOCFormatValue()
	syn.Logger = log
	rep.TOCPath = cfg.TOCFile()
	if !filepath.IsAbs(rep.TOCPath) {
		rep.TOCPath = filepath.Join(outDir, rep.TOCPath)
	}
	if err := syn.Write(outDir, rep.TOCPath, toc.Meta{Title: doc.Title, SourceURL: doc.SourceURL}); err != nil {
		return rep, err
	}
	rep.State = Indexed
	log.Info("Converted document", "dir", outDir, "images", len(rep.References), "chapters", len(rep.Restructure.Created)+len(rep.Restructure.Reused))
	return rep, nil
}

// RunAll converts docs in order. A single document is written straight into
// outDir; several each get their own SessionDir below it. The first failure
// stops the run; trees already written stay in place.
func (p *Pipeline) RunAll(ctx context.Context, docs []Document, outDir string) ([]Report, error) {
	var reports []Report
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		dir := outDir
		if len(docs) > 1 {
			dir = filepath.Join(outDir, SessionDir(i, doc.Title))
		}
		rep, err := p.Run(ctx, doc, dir)
		reports = append(reports, rep)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// SessionDir names the output directory of the i-th document of a
// multi-document run: a two digit index followed by the first two words of
// the title, e.g. "01_Getting_started".
func SessionDir(i int, title string) string {
	words := strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) > 2 {
		words = words[:2]
	}
	name := fmt.Sprintf("%02d", i)
	if len(words) > 0 {
		name += "_" + strings.Join(words, "_")
	}
	return name
}
