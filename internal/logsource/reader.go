// Package logsource reads the full current contents of a log file as lines.
package logsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/nxadm/tail"
)

// ErrNotFound is returned when the log file does not exist
var ErrNotFound = errors.New("log file not found")

// ReadError wraps any other failure to read the log file
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read log file %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ReadLines returns every line in the file at path with line endings removed.
// The file is read from the start to its current end and then released; it is
// not followed.
func ReadLines(ctx context.Context, path string) ([]string, error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    false,
		ReOpen:    false,
		MustExist: true,
		Poll:      true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		// MustExist surfaces a missing file here rather than waiting for it
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, &ReadError{Path: path, Err: err}
	}

	var lines []string
	for {
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()

		case line, ok := <-t.Lines:
			if !ok {
				// EOF reached
				if err := t.Wait(); err != nil {
					return nil, &ReadError{Path: path, Err: err}
				}
				return lines, nil
			}
			if line.Err != nil {
				t.Stop()
				return nil, &ReadError{Path: path, Err: line.Err}
			}
			lines = append(lines, line.Text)
		}
	}
}
