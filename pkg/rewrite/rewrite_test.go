package rewrite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteText(t *testing.T) {
	rw := New(map[string]string{
		"https://openuniv.sharepoint.com/sites/tm112/tm112_blk02_pt04_f07.tif": "images/tm112_blk02_pt04_f07.png",
		`\\DCTM_FSS\content\Assets\fig1.eps`:                                    "images/fig1.png",
	}, nil)

	in := "![A](https://openuniv.sharepoint.com/sites/tm112/tm112_blk02_pt04_f07.tif)\n" +
		`![B](\\DCTM_FSS\content\Assets\fig1.eps)` + "\n" +
		"![C](https://x/unresolved.png)\n"
	want := "![A](images/tm112_blk02_pt04_f07.png)\n" +
		"![B](images/fig1.png)\n" +
		"![C](https://x/unresolved.png)\n"

	assert.Equal(t, want, rw.RewriteText(in))
}

func TestRewriteTextIdempotentWhenTargetContainsKey(t *testing.T) {
	rw := New(map[string]string{"fig1.png": "images/fig1.png"}, nil)

	once := rw.RewriteText("![](fig1.png) and ![](fig1.png)")
	assert.Equal(t, "![](images/fig1.png) and ![](images/fig1.png)", once)
	assert.Equal(t, once, rw.RewriteText(once))
}

func TestRewriteFileOnlyWritesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Section_00_01.md")
	require.NoError(t, os.WriteFile(path, []byte("# Intro\n\n![](https://x/y/fig1.tif)\n"), 0o644))

	rw := New(map[string]string{"https://x/y/fig1.tif": "images/fig1.png"}, nil)

	changed, err := rw.RewriteFile(path)
	require.NoError(t, err)
	assert.True(t, changed)

	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Intro\n\n![](images/fig1.png)\n", string(first))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	changed, err = rw.RewriteFile(path)
	require.NoError(t, err)
	assert.False(t, changed, "second run must be a no-op")

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "unchanged file must not be rewritten")
}

func TestRewriteDirFiltersByExtensionAndPrefix(t *testing.T) {
	dir := t.TempDir()
	body := []byte("![](https://x/fig1.tif)\n")
	for _, name := range []string{"Section_00_01.md", "Other_00_01.md", "Section_00_02.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), body, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Section_dir.md"), 0o755))

	rw := New(map[string]string{"https://x/fig1.tif": "images/fig1.png"}, nil)
	changed, err := rw.RewriteDir(dir, "Section")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "Section_00_01.md")}, changed)

	other, err := os.ReadFile(filepath.Join(dir, "Other_00_01.md"))
	require.NoError(t, err)
	assert.Equal(t, body, other)
	txt, err := os.ReadFile(filepath.Join(dir, "Section_00_02.txt"))
	require.NoError(t, err)
	assert.Equal(t, body, txt)
}

func TestTidy(t *testing.T) {
	in := "# Title\n\n\n\nPara\r\n\r\n\r\nNext\n\n```python\n\n\nprint(1)\n```\n\nAfter\n"
	want := "# Title\n\nPara\n\nNext\n\n```python\nprint(1)\n```\n\nAfter\n"
	assert.Equal(t, want, Tidy(in))
	assert.Equal(t, want, Tidy(want))
}

func TestTidyDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("a\n\n\n\nb\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("clean\n"), 0o644))

	changed, err := TidyDir(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.md")}, changed)
}
