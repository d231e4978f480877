package crawler

import (
	"log/slog"

	"github.com/use-agent/reviewcrawl/models"
)

// Checkpointer persists a full record set under a file name.
// checkpoint.Writer is the production implementation.
type Checkpointer interface {
	Flush(filename string, records []models.Review) (string, error)
}

// Buffer accumulates accepted reviews for one site and writes the whole set
// every time its length reaches a multiple of the checkpoint interval.
type Buffer struct {
	filename string
	every    int
	writer   Checkpointer
	records  []models.Review
	flushes  int
	onFlush  func(path string, records int)
	log      *slog.Logger
}

// NewBuffer returns an empty buffer. A non-positive every means 50; a nil
// log means slog.Default().
func NewBuffer(w Checkpointer, filename string, every int, log *slog.Logger) *Buffer {
	if every <= 0 {
		every = 50
	}
	if log == nil {
		log = slog.Default()
	}
	return &Buffer{filename: filename, every: every, writer: w, log: log}
}

// OnFlush registers fn to run after every successful write.
func (b *Buffer) OnFlush(fn func(path string, records int)) {
	b.onFlush = fn
}

// Add appends r and flushes when the new length is a multiple of the
// interval. The record is kept even if the flush fails.
func (b *Buffer) Add(r models.Review) error {
	b.records = append(b.records, r)
	if len(b.records)%b.every != 0 {
		return nil
	}
	_, err := b.flush()
	return err
}

// Save writes the full buffer regardless of its length. An empty buffer is
// not written, so a run that found nothing never clobbers an earlier file.
func (b *Buffer) Save() (string, error) {
	if len(b.records) == 0 {
		b.log.Warn("no reviews to save", "file", b.filename)
		return "", nil
	}
	return b.flush()
}

func (b *Buffer) flush() (string, error) {
	path, err := b.writer.Flush(b.filename, b.records)
	if err != nil {
		return "", err
	}
	b.flushes++
	if b.onFlush != nil {
		b.onFlush(path, len(b.records))
	}
	return path, nil
}

// Len is the number of buffered records.
func (b *Buffer) Len() int { return len(b.records) }

// Flushes is the number of successful writes so far.
func (b *Buffer) Flushes() int { return b.flushes }

// copyRecords returns a copy of the buffered records.
func (b *Buffer) copyRecords() []models.Review {
	out := make([]models.Review, len(b.records))
	copy(out, b.records)
	return out
}
