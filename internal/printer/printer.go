// Package printer sends formatted lines to a receipt printer.
package printer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Sink accepts one formatted line at a time. Print blocks until the device
// accepted the data or failed.
type Sink interface {
	Print(ctx context.Context, line string) error
}

// render appends the paper feed that separates consecutive messages.
func render(line string, feedLines int) []byte {
	if feedLines < 0 {
		feedLines = 0
	}
	return []byte(line + "\n" + strings.Repeat("\n", feedLines))
}

// WriterSink prints to any writer. It backs dry-run mode.
type WriterSink struct {
	mu        sync.Mutex
	w         io.Writer
	feedLines int
}

// NewWriterSink creates a sink writing to w
func NewWriterSink(w io.Writer, feedLines int) *WriterSink {
	return &WriterSink{w: w, feedLines: feedLines}
}

func (s *WriterSink) Print(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(render(line, s.feedLines)); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}
