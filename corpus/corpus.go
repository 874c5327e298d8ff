package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Delimiter is the line that opens every section of the corpus file.
const Delimiter = "---"

// Buffer accumulates page texts in traversal order. Nothing is written to
// disk until WriteFile is called at the end of a run.
type Buffer struct {
	b        strings.Builder
	sections int
}

// Add appends a section for url. Pages with no text are skipped; Add reports
// whether a section was written.
func (b *Buffer) Add(url, text string) bool {
	if text == "" {
		return false
	}

	b.b.WriteString("\n\n" + Delimiter + "\n")
	b.b.WriteString(url)
	b.b.WriteString("\n")
	b.b.WriteString(text)
	b.sections++

	return true
}

// Sections returns the number of sections added so far.
func (b *Buffer) Sections() int {
	return b.sections
}

// Len returns the size of the buffered corpus in bytes.
func (b *Buffer) Len() int {
	return b.b.Len()
}

// String returns the buffered corpus.
func (b *Buffer) String() string {
	return b.b.String()
}

// WriteFile writes the whole corpus to path, replacing any existing file.
func (b *Buffer) WriteFile(path string) error {
	if err := writeFileAtomic(path, []byte(b.b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write corpus: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place, so that readers never observe a partially written file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
