// File: receiver/sink.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package receiver

import (
	"bufio"
	"fmt"
	"os"

	"github.com/momentics/vdma-stream/protocol"
)

// FileSink appends raw frame payloads, back to back, to a file.
type FileSink struct {
	f *os.File
	w *bufio.Writer
}

// NewFileSink truncates or creates path.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open frame sink: %w", err)
	}
	return &FileSink{f: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

// Write is a Handler.
func (s *FileSink) Write(_ protocol.Header, payload []byte) error {
	_, err := s.w.Write(payload)
	return err
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	ferr := s.w.Flush()
	cerr := s.f.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}
