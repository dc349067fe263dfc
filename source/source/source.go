// Package source implements the sender's byte-source collaborator: a
// plain file opened for reading, chunked out MaxPayload bytes at a time.
package source

import (
	"fmt"
	"io"
	"os"
)

// FileSource reads a local file in MaxPayload-sized chunks.
type FileSource struct {
	f *os.File
}

// Open opens path for reading.
func Open(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	return &FileSource{f: f}, nil
}

// ReadUpTo reads up to n bytes from the file, returning fewer than n
// only on the final, possibly-empty read. A zero-length, nil-error
// result signals EOF: the sender's cue to prepare the EOF packet.
func (s *FileSource) ReadUpTo(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := s.f.Read(buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("source: read: %w", err)
	}
	return buf[:read], nil
}

// Close releases the underlying file handle.
func (s *FileSource) Close() error {
	return s.f.Close()
}
