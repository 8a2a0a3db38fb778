package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// JSONLRecorder appends audit rows as JSON lines for offline review.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder creates/opens the target file and returns a recorder.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Append writes a single audit row to the underlying JSONL file.
func (r *JSONLRecorder) Append(_ context.Context, row AuditRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(row)
}

// Close flushes and closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// MultiSink fans one audit row out to several sinks. Every sink sees the row;
// failures are joined so the caller can log them in one place.
type MultiSink []AuditSink

// Append forwards the row to each sink.
func (m MultiSink) Append(ctx context.Context, row AuditRow) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Append(ctx, row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
