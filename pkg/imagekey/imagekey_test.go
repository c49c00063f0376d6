package imagekey

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStub(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{`\\a\\b\\c.png`, "c.png"},
		{`\\DCTM_FSS\content\Teaching\TM112\_Assets\tm112_intro_table_01.eps`, "tm112_intro_table_01.eps"},
		{"https://x/y/z.tif", "z.tif"},
		{"bare.png", "bare.png"},
		{`mixed/dir\file.gif`, "file.gif"},
		{"trailing/", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Stub(tt.ref), "Stub(%q)", tt.ref)
	}
}

func TestMinStub(t *testing.T) {
	assert.Equal(t, "fig1", MinStub("fig1.png"))
	assert.Equal(t, "fig1", MinStub("fig1.small.png"))
	assert.Equal(t, "fig1", MinStub("fig1"))
}

func TestExtract(t *testing.T) {
	src := []byte(`# Heading

Some text with an inline figure ![Figure 1](https://openuniv.sharepoint.com/sites/tm112/tm112_blk02_pt04_f07.tif).

![Alt][ref]

And the same figure again: ![Figure 1 again](https://openuniv.sharepoint.com/sites/tm112/tm112_blk02_pt04_f07.tif)

<div class="figure"><img src="https://x/y/raw_block.png" alt=""></div>

Inline html <img src="inline.gif"> in a paragraph.

[ref]: https://x/ref/referenced.jpg
`)
	keys := Extract(src)

	assert.Equal(t, Keys{
		"https://openuniv.sharepoint.com/sites/tm112/tm112_blk02_pt04_f07.tif": "tm112_blk02_pt04_f07.tif",
		"https://x/ref/referenced.jpg": "referenced.jpg",
		"https://x/y/raw_block.png":    "raw_block.png",
		"inline.gif":                   "inline.gif",
	}, keys)
	assert.Equal(t, []string{"inline.gif", "raw_block.png", "referenced.jpg", "tm112_blk02_pt04_f07.tif"}, keys.Stubs())
	assert.Equal(t, []string{"inline", "raw_block", "referenced", "tm112_blk02_pt04_f07"}, keys.MinStubs())
}

func TestExtractSpacedDestinations(t *testing.T) {
	const share = `\\DCTM_FSS\content\Teaching and curriculum\Modules\TM112\tm112_intro_table_01.eps`
	tests := []struct {
		name string
		src  string
		want Keys
	}{
		{"file share path", "![Figure](" + share + ")", Keys{share: "tm112_intro_table_01.eps"}},
		{"with title", "![Figure](" + share + ` "Table 1")`, Keys{share: "tm112_intro_table_01.eps"}},
		{"inside paragraph", "See ![](" + share + ") below.", Keys{share: "tm112_intro_table_01.eps"}},
		{"already bracketed", "![x](<a dir/fig 2.png>)", Keys{"a dir/fig 2.png": "fig 2.png"}},
		{"spaceless with title", `![x](https://x/a.png "Fig 1")`, Keys{"https://x/a.png": "a.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract([]byte(tt.src)))
		})
	}
}

func TestExtractIgnoresLinks(t *testing.T) {
	keys := Extract([]byte("A [link](https://x/doc.pdf) is not an image."))
	assert.Empty(t, keys)
}

func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Section_00_01.md")
	require.NoError(t, os.WriteFile(path, []byte("![](images/fig1.png)\n"), 0o644))

	keys, err := ExtractFile(path)
	require.NoError(t, err)
	assert.Equal(t, Keys{"images/fig1.png": "fig1.png"}, keys)

	_, err = ExtractFile(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

func TestKeysMerge(t *testing.T) {
	k := Keys{"a/x.png": "x.png"}
	k.Merge(Keys{"b/y.png": "y.png", "a/x.png": "x.png"})
	assert.Len(t, k, 2)
}
