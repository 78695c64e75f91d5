package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oicur0t/logstat/pkg/models"
	"github.com/oicur0t/logstat/pkg/retry"
	"go.uber.org/zap"
)

// Sink persists the snapshot produced by a cycle
type Sink interface {
	Name() string
	Write(ctx context.Context, snapshot models.Snapshot) error
}

// PersistError reports a snapshot that a sink could not store
type PersistError struct {
	Sink   string
	Target string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist snapshot to %s %s: %v", e.Sink, e.Target, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// MarshalStats renders stats the way they are stored on disk: an indented
// object keyed by server, with a trailing newline.
func MarshalStats(stats models.ServerStats) ([]byte, error) {
	if stats == nil {
		stats = models.ServerStats{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return nil, fmt.Errorf("failed to marshal stats: %w", err)
	}
	return buf.Bytes(), nil
}

// FileSink overwrites a JSON file with the latest stats
type FileSink struct {
	path   string
	retry  retry.Config
	logger *zap.Logger
}

// NewFileSink creates a sink writing to path
func NewFileSink(path string, retryConfig retry.Config, logger *zap.Logger) *FileSink {
	return &FileSink{
		path:   path,
		retry:  retryConfig,
		logger: logger,
	}
}

func (s *FileSink) Name() string { return "file" }

// Path returns the output file location
func (s *FileSink) Path() string { return s.path }

// Write replaces the output file. Readers see either the previous file or the
// new one, never a partial write.
func (s *FileSink) Write(ctx context.Context, snapshot models.Snapshot) error {
	data, err := MarshalStats(snapshot.Stats)
	if err != nil {
		return &PersistError{Sink: s.Name(), Target: s.path, Err: err}
	}

	// Permission errors are not retried
	attempts := 0
	err = retry.Do(ctx, s.retry, func() error {
		attempts++
		err := writeFileAtomic(s.path, data, 0o644)
		if err != nil && errors.Is(err, fs.ErrPermission) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return &PersistError{Sink: s.Name(), Target: s.path, Err: err}
	}

	s.logger.Debug("Stats written",
		zap.String("path", s.path),
		zap.Int("servers", len(snapshot.Stats)),
		zap.Int("attempts", attempts))
	return nil
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place, creating missing parent directories first.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	// Temp file must live on the same filesystem for the rename
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	// Remove temp file on failure
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	// Swap into place
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace output file: %w", err)
	}

	committed = true
	return nil
}
