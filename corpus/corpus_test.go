package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuffer_Format verifies each section is a delimiter line, the URL and
// the text
func TestBuffer_Format(t *testing.T) {
	var b Buffer

	assert.True(t, b.Add("https://example.com/", "Home page"))
	assert.True(t, b.Add("https://example.com/about", "About us"))

	want := "\n\n---\nhttps://example.com/\nHome page" +
		"\n\n---\nhttps://example.com/about\nAbout us"
	assert.Equal(t, want, b.String())
	assert.Equal(t, 2, b.Sections())
	assert.Equal(t, len(want), b.Len())
}

// TestBuffer_SkipsEmpty verifies pages without text add no section
func TestBuffer_SkipsEmpty(t *testing.T) {
	var b Buffer

	assert.False(t, b.Add("https://example.com/empty", ""))
	assert.True(t, b.Add("https://example.com/", "text"))

	assert.Equal(t, 1, b.Sections())
	assert.Equal(t, 1, strings.Count(b.String(), "\n"+Delimiter+"\n"))
	assert.NotContains(t, b.String(), "/empty")
}

// TestBuffer_WriteFile verifies the corpus is written and replaces old output
func TestBuffer_WriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "corpus.txt")

	var first Buffer
	first.Add("https://example.com/", "a much longer first version of the text")
	require.NoError(t, first.WriteFile(path))

	var second Buffer
	second.Add("https://example.com/", "short")
	require.NoError(t, second.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, second.String(), string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

// TestBuffer_WriteFileEmpty verifies an empty corpus still produces a file
func TestBuffer_WriteFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")

	var b Buffer
	require.NoError(t, b.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

// TestBuffer_WriteFileError verifies write failures are reported
func TestBuffer_WriteFileError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	var b Buffer
	b.Add("https://example.com/", "text")
	err := b.WriteFile(filepath.Join(blocker, "corpus.txt"))

	assert.ErrorContains(t, err, "failed to write corpus")
}
