// Package checkpoint persists the accumulated review buffer as a CSV file.
//
// Every flush rewrites the whole file: the file on disk always mirrors the
// full in-memory buffer at the time of the last flush.
package checkpoint

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/use-agent/reviewcrawl/models"
)

// bom is the UTF-8 signature spreadsheet tools use to detect the encoding.
var bom = []byte{0xEF, 0xBB, 0xBF}

// Writer flushes review buffers into files under a single directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer rooted at dir. The directory is created lazily
// on the first flush.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Path returns the destination path for filename.
func (w *Writer) Path(filename string) string {
	return filepath.Join(w.dir, filename)
}

// Flush overwrites filename with a header row and one row per record.
// The data is written to a temporary file in the same directory and renamed
// into place, so readers never observe a half-written checkpoint.
func (w *Writer) Flush(filename string, records []models.Review) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", models.NewCrawlError(models.ErrCodeCheckpoint, "create output directory", err)
	}

	dst := w.Path(filename)
	tmp, err := os.CreateTemp(w.dir, "."+filename+".*.tmp")
	if err != nil {
		return "", models.NewCrawlError(models.ErrCodeCheckpoint, "create temp file", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := encode(tmp, records); err != nil {
		return "", models.NewCrawlError(models.ErrCodeCheckpoint, "write "+dst, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return "", models.NewCrawlError(models.ErrCodeCheckpoint, "chmod "+dst, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", models.NewCrawlError(models.ErrCodeCheckpoint, "sync "+dst, err)
	}
	if err := tmp.Close(); err != nil {
		return "", models.NewCrawlError(models.ErrCodeCheckpoint, "close "+dst, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", models.NewCrawlError(models.ErrCodeCheckpoint, "replace "+dst, err)
	}
	committed = true

	slog.Info("checkpoint saved", "path", dst, "records", len(records))
	return dst, nil
}

func encode(out io.Writer, records []models.Review) error {
	bw := bufio.NewWriter(out)
	if _, err := bw.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(bw)
	if err := cw.Write(models.Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// Read loads a checkpoint file back into records. A leading UTF-8 BOM is
// optional. The header must match models.Columns.
func Read(path string) ([]models.Review, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, bom)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("parse %s: missing header", path)
	}
	if !slices.Equal(rows[0], models.Columns) {
		return nil, fmt.Errorf("parse %s: unexpected header %v", path, rows[0])
	}

	records := make([]models.Review, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, models.Review{Rating: row[0], Date: row[1], Comment: row[2]})
	}
	return records, nil
}
