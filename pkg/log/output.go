package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes formatted entries to stderr (stdout for Debug/Info).
type ConsoleOutput struct {
	mu sync.Mutex
	// Stdout/Stderr may be overridden in tests.
	Stdout io.Writer
	Stderr io.Writer
}

// NewConsoleOutput creates a console output bound to the process streams.
func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Write writes the formatted entry to the appropriate stream.
func (o *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.Stdout
	if entry.Level >= WarnLevel {
		w = o.Stderr
	}
	if w == nil {
		if entry.Level >= WarnLevel {
			w = os.Stderr
		} else {
			w = os.Stdout
		}
	}
	_, err := w.Write(formatted)
	return err
}

// Close is a no-op for console output.
func (o *ConsoleOutput) Close() error { return nil }

// WriterOutput writes all entries to a single io.Writer.
type WriterOutput struct {
	mu sync.Mutex
	W  io.Writer
}

// Write writes the formatted entry.
func (o *WriterOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.W.Write(formatted)
	return err
}

// Close closes the underlying writer when it is an io.Closer.
func (o *WriterOutput) Close() error {
	if c, ok := o.W.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
