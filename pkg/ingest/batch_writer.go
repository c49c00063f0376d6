package ingest

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteFunc is a callback that performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// BatchWriter buffers write operations and runs each full batch inside one
// transaction. Writes happen on the caller's goroutine: Submit flushes when
// the buffer is full and Close flushes the remainder.
type BatchWriter struct {
	buf    []WriteFunc
	cap    int
	closed bool
	db     *sql.DB

	// OnFlush is called after each committed batch with its size.
	OnFlush func(n int)
}

// NewBatchWriter creates a new BatchWriter.
// db: the database connection to use for transactions.
// bufferSize: flush when buffer reaches this size.
func NewBatchWriter(db *sql.DB, bufferSize int) *BatchWriter {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	return &BatchWriter{
		buf: make([]WriteFunc, 0, bufferSize),
		cap: bufferSize,
		db:  db,
	}
}

// Submit enqueues a write function, flushing if the buffer is full.
func (bw *BatchWriter) Submit(ctx context.Context, w WriteFunc) error {
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.buf = append(bw.buf, w)
	if len(bw.buf) >= bw.cap {
		return bw.Flush(ctx)
	}
	return nil
}

// Flush runs the buffered writes in one transaction. The buffer is emptied
// whether or not the batch commits; a failed batch is rolled back as a whole.
func (bw *BatchWriter) Flush(ctx context.Context) error {
	if len(bw.buf) == 0 {
		return nil
	}
	batch := bw.buf
	bw.buf = make([]WriteFunc, 0, bw.cap)
	if err := bw.executeBatch(ctx, batch); err != nil {
		return err
	}
	if bw.OnFlush != nil {
		bw.OnFlush(len(batch))
	}
	return nil
}

func (bw *BatchWriter) executeBatch(ctx context.Context, batch []WriteFunc) error {
	// If no DB is configured (e.g. testing without DB), just run callbacks with nil tx
	if bw.db == nil {
		for _, w := range batch {
			if err := w(ctx, nil); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, w := range batch {
		if err := w(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch (%d items): %w", len(batch), err)
	}
	return nil
}

// Close flushes pending writes and stops accepting submissions.
func (bw *BatchWriter) Close(ctx context.Context) error {
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.closed = true
	return bw.Flush(ctx)
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
