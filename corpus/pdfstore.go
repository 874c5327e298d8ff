package corpus

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PDFStore saves downloaded documents into a single directory.
type PDFStore struct {
	dir string
}

// NewPDFStore creates a store, creating dir if it doesn't exist.
func NewPDFStore(dir string) (*PDFStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create PDF directory: %w", err)
	}

	return &PDFStore{dir: dir}, nil
}

// Dir returns the directory documents are saved in.
func (s *PDFStore) Dir() string {
	return s.dir
}

// Path returns where a document named name is stored.
func (s *PDFStore) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Save calls fill with a temporary file and, if fill succeeds, moves the file
// to name inside the store, replacing any previous file of that name. When
// fill fails nothing is left behind.
func (s *PDFStore) Save(name string, fill func(w io.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(s.dir, ".download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if err := fill(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to set file mode: %w", err)
	}

	path := s.Path(name)
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}

	return path, nil
}

// Remove deletes a stored document.
func (s *PDFStore) Remove(name string) error {
	if err := os.Remove(s.Path(name)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}
