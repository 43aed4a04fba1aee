package capture

import (
	"fmt"
	"os"
)

// RawLog is the append-only raw-capture sink. Every received payload's exact
// bytes are appended once, in receipt order, before the ring push is
// attempted. The file is never read back by the pipeline.
//
// A RawLog is owned exclusively by the producer goroutine and needs no
// locking.
type RawLog struct {
	file *os.File
	path string
}

// OpenRawLog opens the file at path in create-or-append mode.
func OpenRawLog(path string) (*RawLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open raw capture file: %w", err)
	}

	return &RawLog{file: file, path: path}, nil
}

// Append writes p to the end of the file.
func (l *RawLog) Append(p []byte) error {
	_, err := l.file.Write(p)
	return err
}

// Path returns the file path the log was opened with.
func (l *RawLog) Path() string {
	return l.path
}

func (l *RawLog) Close() error {
	return l.file.Close()
}
