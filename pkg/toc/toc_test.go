package toc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// makeTree lays out a partitioned tree with two chapters and an image directory.
func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "session_01", "Section_01_01.md"), "# Working with data\n\nBody.\n")
	writeFile(t, filepath.Join(root, "session_00", "Section_00_02.md"), "## Second part\n")
	writeFile(t, filepath.Join(root, "session_00", "Section_00_01.md"), "---\ntitle: Getting started\n---\n# Ignored heading\n")
	writeFile(t, filepath.Join(root, "images", "fig1.png"), "png")
	writeFile(t, filepath.Join(root, "session_00", "notes.txt"), "not markdown")
	return root
}

func TestParseModeAndFormat(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeMinimal, m)
	m, err = ParseMode("Simple")
	require.NoError(t, err)
	assert.Equal(t, ModeSimple, m)
	_, err = ParseMode("verbose")
	assert.Error(t, err)

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatRST, f)
	f, err = ParseFormat("jupyterbook")
	require.NoError(t, err)
	assert.Equal(t, FormatJupyterBook, f)
	_, err = ParseFormat("docx")
	assert.Error(t, err)
}

func TestHeading(t *testing.T) {
	assert.Equal(t, "Session 00", Heading("session_00"))
	assert.Equal(t, "Part 03", Heading("part_03"))
	assert.Equal(t, "", Heading(""))
}

func TestCaption(t *testing.T) {
	root := makeTree(t)
	c, err := Caption(filepath.Join(root, "session_00", "Section_00_01.md"))
	require.NoError(t, err)
	assert.Equal(t, "Getting started", c)

	c, err = Caption(filepath.Join(root, "session_00", "Section_00_02.md"))
	require.NoError(t, err)
	assert.Equal(t, "Second part", c)

	empty := filepath.Join(root, "empty.md")
	writeFile(t, empty, "\n\n")
	c, err = Caption(empty)
	require.NoError(t, err)
	assert.Equal(t, "empty", c)
}

func TestBuildMinimal(t *testing.T) {
	root := makeTree(t)
	s := New(ModeMinimal, "images")
	s.Preamble = ""
	out, err := s.Build(root, Meta{Title: "Introducing computing", SourceURL: "https://learn.example/tm112"})
	require.NoError(t, err)

	want := "Introducing computing\n" +
		"=====================\n\n" +
		"This material was generated from the source document at https://learn.example/tm112.\n\n" +
		"Session 00\n----------\n\n" +
		".. toctree::\n   :maxdepth: 1\n   :glob:\n\n   session_00/*\n\n" +
		"Session 01\n----------\n\n" +
		".. toctree::\n   :maxdepth: 1\n   :glob:\n\n   session_01/*\n\n"
	assert.Equal(t, want, out)
	assert.NotContains(t, out, "images")
}

func TestBuildSimpleListsCaptionsInOrder(t *testing.T) {
	root := makeTree(t)
	out, err := New(ModeSimple, "images").Build(root, Meta{Title: "Ünïcode title"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, DefaultPreamble))
	assert.Contains(t, out, "Ünïcode title\n=============\n")
	assert.Contains(t, out, "   Getting started <session_00/Section_00_01>\n   Second part <session_00/Section_00_02>\n")
	assert.Contains(t, out, "   Working with data <session_01/Section_01_01>\n")
	assert.NotContains(t, out, "notes")
	assert.Less(t, strings.Index(out, "Session 00"), strings.Index(out, "Session 01"))
}

func TestBuildSimpleAngleBracketCaption(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "session_00", "Section_00_01.md"), "# Using <img> tags\n")
	writeFile(t, filepath.Join(root, "session_00", "Section_00_02.md"), "# a > b\n")
	writeFile(t, filepath.Join(root, "session_00", "Section_00_03.md"), "# Plain\n")

	out, err := New(ModeSimple, "images").Build(root, Meta{Title: "T"})
	require.NoError(t, err)
	assert.Contains(t, out, "\n   session_00/Section_00_01\n   session_00/Section_00_02\n   Plain <session_00/Section_00_03>\n")
	assert.NotContains(t, out, "<img>")
}

func TestWriteJupyterBook(t *testing.T) {
	root := makeTree(t)
	s := New(ModeSimple, "images")
	s.Format = FormatJupyterBook
	path := filepath.Join(root, "_toc.yml")
	require.NoError(t, s.Write(root, path, Meta{Title: "Introducing computing"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []Section
	require.NoError(t, yaml.Unmarshal(raw, &got))
	require.Len(t, got, 3)
	assert.Equal(t, Section{Title: "Introducing computing", URL: "/index", NotNumbered: true}, got[0])
	assert.Equal(t, "Session 00", got[1].Title)
	assert.Equal(t, "/session_00/Section_00_01", got[1].URL)
	require.Len(t, got[1].Sections, 1)
	assert.Equal(t, "Second part", got[1].Sections[0].Title)
	assert.Empty(t, got[2].Sections)
}

func TestWriteRSTReplacesFile(t *testing.T) {
	root := makeTree(t)
	path := filepath.Join(root, "index.rst")
	writeFile(t, path, "stale")

	require.NoError(t, New(ModeMinimal, "images").Write(root, path, Meta{Title: "T"}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "stale")
	assert.Contains(t, string(raw), "T\n=\n")
}
