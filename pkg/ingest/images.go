package ingest

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/japaniel/ouxml2md/pkg/db"
	"github.com/japaniel/ouxml2md/pkg/imagekey"
)

// ImageExts are the file extensions imported as image blobs.
var ImageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".tif", ".tiff", ".webp", ".bmp", ".eps"}

func isImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExts {
		if ext == e {
			return true
		}
	}
	return false
}

// ImportResult counts the outcome of an image import.
type ImportResult struct {
	Stored int
	// Duplicates were skipped because a blob with the same min stub exists.
	Duplicates int
}

// IngestImages stores every image file directly inside dir as a base64 blob
// keyed by its file name. The first file seen for a min stub wins; files are
// visited in name order.
func (ig *Ingester) IngestImages(ctx context.Context, dir string) (ImportResult, error) {
	var res ImportResult
	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("read image dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && isImage(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	bw := ig.newBatchWriter(len(files))
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read image %s: %w", name, err)
			}
			stored, err := db.InsertImageBlob(tx, db.ImageBlob{
				Stub:    name,
				MinStub: imagekey.MinStub(name),
				Encoded: base64.StdEncoding.EncodeToString(data),
			})
			if err != nil {
				return fmt.Errorf("failed to persist image %s: %w", name, err)
			}
			if stored {
				res.Stored++
			} else {
				res.Duplicates++
			}
			return nil
		}); err != nil {
			return res, err
		}
	}
	if err := bw.Close(ctx); err != nil {
		return res, err
	}
	ig.logger().Info("Imported images", "dir", dir, "stored", res.Stored, "duplicates", res.Duplicates)
	return res, nil
}
