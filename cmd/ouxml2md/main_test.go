package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliXML = `<Item>
  <CourseCode>TM112-20J</CourseCode>
  <ItemTitle>Getting started</ItemTitle>
  <Session><Figure><Image src="\\DCTM\tm112\fig1.tif"/></Figure></Session>
</Item>`

const cliHTML = `<html><head><title>Getting started</title></head><body>
<img src="https://learn.example/pluginfile.php/1/mod_oucontent/oucontent/9/fig1.png">
</body></html>`

// run executes the CLI with args and returns its standard output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// seedStore ingests one document, its rendered page and one image into a fresh store.
func seedStore(t *testing.T) (dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "ouxml.db")
	writeFile(t, filepath.Join(dir, "tm112.xml"), cliXML)
	writeFile(t, filepath.Join(dir, "tm112.html"), cliHTML)
	writeFile(t, filepath.Join(dir, "img", "fig1.png"), "PNG")

	out, err := run(t, "--db", dbPath, "ingest",
		filepath.Join(dir, "tm112.xml"),
		"--html", filepath.Join(dir, "tm112.html"),
		"--html-url", "https://learn.example/mod/oucontent/view.php?id=1",
		"--images", filepath.Join(dir, "img"))
	require.NoError(t, err)
	assert.Contains(t, out, "TM112\tGetting started\tfigures=1 rendered=1")
	assert.Contains(t, out, "images stored=1 duplicates=0")
	return dbPath
}

func TestIngestAndUnits(t *testing.T) {
	dbPath := seedStore(t)

	out, err := run(t, "--db", dbPath, "units", "getting")
	require.NoError(t, err)
	assert.Contains(t, out, "Getting started")
	assert.Contains(t, out, "TM112")

	out, err = run(t, "--db", dbPath, "units", "nothing-matches")
	require.NoError(t, err)
	assert.NotContains(t, out, "Getting started")
}

func TestIngestNeedsInput(t *testing.T) {
	_, err := run(t, "--db", filepath.Join(t.TempDir(), "x.db"), "ingest")
	assert.Error(t, err)
}

func TestImagesCommand(t *testing.T) {
	dbPath := seedStore(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Section_00_01.md"), "# A\n\n![](\\\\DCTM\\tm112\\fig1.tif)\n")

	out, err := run(t, "--db", dbPath, "images", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "resolved 1 references, rewrote 1 files")

	body, err := os.ReadFile(filepath.Join(dir, "Section_00_01.md"))
	require.NoError(t, err)
	assert.Equal(t, "# A\n\n![](images/fig1.png)\n", string(body))
	assert.FileExists(t, filepath.Join(dir, "images", "fig1.png"))
}

func TestConvertWithStubProcessor(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script processor")
	}
	dbPath := seedStore(t)
	bin := filepath.Join(t.TempDir(), "xsltproc")
	// Arguments: --stringparam filestub <stub> <stylesheet> <source>
	script := "#!/bin/sh\n" +
		"printf '# Introduction\\n\\n![](\\\\\\\\DCTM\\\\tm112\\\\fig1.tif)\\n' > \"$3_00_01.md\"\n" +
		"printf '# Next steps\\n' > \"$3_01_01.md\"\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	out := t.TempDir()
	stdout, err := run(t, "--db", dbPath, "--xsltproc", bin, "--toc-mode", "simple", "convert", "--id", "1", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "indexed")

	assert.FileExists(t, filepath.Join(out, "session_00", "Section_00_01.md"))
	assert.FileExists(t, filepath.Join(out, "session_01", "Section_01_01.md"))
	assert.FileExists(t, filepath.Join(out, "images", "fig1.png"))

	body, err := os.ReadFile(filepath.Join(out, "session_00", "Section_00_01.md"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "](../images/fig1.png)")

	index, err := os.ReadFile(filepath.Join(out, "index.rst"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "Getting started\n===============\n")
	assert.Contains(t, string(index), "Introduction <session_00/Section_00_01>")
	assert.Contains(t, string(index), "Next steps <session_01/Section_01_01>")
}

func TestTOCCommand(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "session_00", "Section_00_01.md"), "# One\n")

	out, err := run(t, "--toc-format", "jupyterbook", "toc", root, "--title", "Book")
	require.NoError(t, err)
	assert.Contains(t, out, "_toc.yml")
	raw, err := os.ReadFile(filepath.Join(root, "_toc.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "title: Book")
	assert.Contains(t, string(raw), "url: /session_00/Section_00_01")
}

func TestInvalidSettingIsRejected(t *testing.T) {
	_, err := run(t, "--toc-mode", "verbose", "toc", t.TempDir())
	assert.Error(t, err)
	_, err = run(t, "--log-level", "chatty", "toc", t.TempDir())
	assert.Error(t, err)
}
