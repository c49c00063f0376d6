// Package restructure regroups a flat directory of chapter/section Markdown
// files into one subdirectory per chapter.
package restructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/japaniel/ouxml2md/pkg/fsutil"
)

// Restructurer partitions flat document trees.
type Restructurer struct {
	// DirStub names chapter directories: DirStub_<chapter>.
	DirStub string
	// ImageDir is the image directory name used in relative links.
	ImageDir string
	Pattern  NamingPattern
	// Logger is used for informational messages. nil means no logging.
	Logger *slog.Logger
}

// Result summarises a Partition run.
type Result struct {
	// Created lists the chapter directories made by this run.
	Created []string
	// Reused lists chapter directories that already existed.
	Reused []string
	// Moved maps each moved file's old path to its new one.
	Moved map[string]string
	// Repaired lists moved files whose image links were rewritten.
	Repaired []string
}

// New creates a Restructurer with the default naming pattern.
func New(dirStub, imageDir string) *Restructurer {
	return &Restructurer{DirStub: dirStub, ImageDir: imageDir, Pattern: DefaultPattern}
}

func (r *Restructurer) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

// ChapterDir returns the directory name for chapter.
func (r *Restructurer) ChapterDir(chapter string) string {
	if r.DirStub == "" || strings.HasSuffix(r.DirStub, "_") {
		return r.DirStub + chapter
	}
	return r.DirStub + "_" + chapter
}

// Partition moves every file of dir that matches the naming pattern into its
// chapter directory and repairs the image links of moved files. Existing
// chapter directories are reused. Entries that do not match are left alone,
// so running Partition on an already partitioned tree moves nothing.
func (r *Restructurer) Partition(dir string) (Result, error) {
	res := Result{Moved: make(map[string]string)}
	pattern := r.Pattern
	if pattern == nil {
		pattern = DefaultPattern
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("read dir %s: %w", dir, err)
	}

	chapterOf := make(map[string]string)
	var chapters []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ch, ok := pattern.Chapter(e.Name())
		if !ok {
			continue
		}
		if !slices.Contains(chapters, ch) {
			chapters = append(chapters, ch)
		}
		chapterOf[e.Name()] = ch
	}
	sort.Strings(chapters)

	for _, ch := range chapters {
		target := filepath.Join(dir, r.ChapterDir(ch))
		info, err := os.Stat(target)
		switch {
		case err == nil && info.IsDir():
			r.logger().Info("Chapter directory already exists", "dir", target)
			res.Reused = append(res.Reused, target)
			continue
		case err == nil:
			return res, fmt.Errorf("chapter path %s exists and is not a directory", target)
		case !os.IsNotExist(err):
			return res, err
		}
		if err := fsutil.EnsureDir(target); err != nil {
			return res, err
		}
		res.Created = append(res.Created, target)
	}

	names := make([]string, 0, len(chapterOf))
	for name := range chapterOf {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		from := filepath.Join(dir, name)
		to := filepath.Join(dir, r.ChapterDir(chapterOf[name]), name)
		if err := os.Rename(from, to); err != nil {
			return res, fmt.Errorf("move %s: %w", name, err)
		}
		res.Moved[from] = to
		repaired, err := r.repairLinks(to)
		if err != nil {
			return res, err
		}
		if repaired {
			res.Repaired = append(res.Repaired, to)
		}
	}
	r.logger().Info("Partitioned document tree", "dir", dir, "chapters", len(chapters), "moved", len(res.Moved))
	return res, nil
}

// repairLinks compensates for the extra nesting level of a moved file:
// ](images/ becomes ](../images/, and src="images/ in embedded <img> tags
// becomes src="../images/. Files without an old pattern are untouched.
func (r *Restructurer) repairLinks(path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	pairs := r.linkPatterns()
	found := false
	for i := 0; i < len(pairs); i += 2 {
		if strings.Contains(string(raw), pairs[i]) {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	txt := strings.NewReplacer(pairs...).Replace(string(raw))
	if err := fsutil.WriteFileAtomic(path, []byte(txt), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("repair links in %s: %w", path, err)
	}
	return true, nil
}

// linkPatterns returns old, new pairs for strings.NewReplacer.
func (r *Restructurer) linkPatterns() []string {
	imgDir := r.ImageDir
	if imgDir == "" {
		imgDir = "images"
	}
	var pairs []string
	for _, lead := range []string{"](", `src="`, "src='"} {
		pairs = append(pairs, lead+imgDir+"/", lead+"../"+imgDir+"/")
	}
	return pairs
}
