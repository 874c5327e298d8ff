package corpus

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// MetadataHeader is the fixed column order of the metadata table. The
// section label comes last so the first four columns keep their historical
// positions.
var MetadataHeader = []string{"file_name", "url", "meeting_title", "meeting_date", "section"}

// PDFRecord describes one downloaded PDF. Records are created once, after a
// successful download, and never modified.
type PDFRecord struct {
	FileName string `json:"file_name"`
	URL      string `json:"url"`
	Section  string `json:"section"`
	Title    string `json:"meeting_title"`
	Date     string `json:"meeting_date"`
}

func (r PDFRecord) row() []string {
	return []string{r.FileName, r.URL, r.Title, r.Date, r.Section}
}

// WriteMetadata writes records as CSV to path, header first, in the order
// given. An existing file is replaced. The header is written even when there
// are no records.
func WriteMetadata(path string, records []PDFRecord) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(MetadataHeader); err != nil {
		return fmt.Errorf("failed to write metadata header: %w", err)
	}
	for _, record := range records {
		if err := w.Write(record.row()); err != nil {
			return fmt.Errorf("failed to write metadata row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := writeFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}
