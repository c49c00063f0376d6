// Package transform turns an OU-XML document into a flat directory of
// Markdown files by way of an external XSLT processor.
package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/japaniel/ouxml2md/pkg/fsutil"
	"github.com/japaniel/ouxml2md/pkg/ouxml"
)

// ErrMalformedDocument is returned when the source document cannot be parsed.
var ErrMalformedDocument = errors.New("malformed document")

// Transformer writes the Markdown rendering of one source document. Output
// files are named from outStub, e.g. outStub="out/Section" produces
// out/Section_00_01.md and so on.
type Transformer interface {
	Transform(ctx context.Context, xml []byte, outStub string) error
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(ctx context.Context, xml []byte, outStub string) error

// Transform implements Transformer.
func (f TransformerFunc) Transform(ctx context.Context, xml []byte, outStub string) error {
	return f(ctx, xml, outStub)
}

// DefaultBinary is the XSLT processor looked up on PATH.
const DefaultBinary = "xsltproc"

// XSLTProc runs xsltproc with a stylesheet that emits one Markdown file per
// session. The stylesheet receives the output stub as the filestub parameter.
type XSLTProc struct {
	Binary     string
	Stylesheet string
	// Logger is used for informational messages. nil means no logging.
	Logger *slog.Logger
}

// NewXSLTProc creates an XSLTProc for stylesheet using the default binary.
func NewXSLTProc(stylesheet string) *XSLTProc {
	return &XSLTProc{Binary: DefaultBinary, Stylesheet: stylesheet}
}

func (x *XSLTProc) logger() *slog.Logger {
	if x.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return x.Logger
}

// Transform validates the document, writes it to a temporary file and runs
// the processor against it. A document that is not well-formed returns an
// error wrapping ErrMalformedDocument without invoking the processor.
func (x *XSLTProc) Transform(ctx context.Context, doc []byte, outStub string) error {
	if err := ouxml.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if x.Stylesheet == "" {
		return errors.New("transform: no stylesheet configured")
	}
	if err := fsutil.EnsureDir(filepath.Dir(outStub)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "ouxml-*.xml")
	if err != nil {
		return fmt.Errorf("create temp source: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp source: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp source: %w", err)
	}

	bin := x.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	cmd := exec.CommandContext(ctx, bin, "--stringparam", "filestub", outStub, x.Stylesheet, tmp.Name())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = io.Discard
	x.logger().Debug("Running XSLT processor", "binary", bin, "stylesheet", x.Stylesheet, "stub", outStub)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", bin, err, msg)
		}
		return fmt.Errorf("%s: %w", bin, err)
	}
	return nil
}
