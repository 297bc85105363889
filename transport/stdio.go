package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"sync"
)

// DefaultMaxLineSize is the longest line the stdio transport accepts.
const DefaultMaxLineSize = 10 * 1024 * 1024

// Stdio implements a line-delimited transport over stdin and stdout. Every
// line holds one payload and every response is written as one line.
type Stdio struct {
	in          io.Reader
	out         io.Writer
	errOut      io.Writer
	maxLineSize int

	mu sync.Mutex
}

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin sets a custom stdin reader.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) {
		s.in = r
	}
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.out = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.errOut = w
	}
}

// WithMaxLineSize sets the longest accepted line in bytes.
func WithMaxLineSize(n int) StdioOption {
	return func(s *Stdio) {
		if n > 0 {
			s.maxLineSize = n
		}
	}
}

// NewStdio creates a new stdio transport.
func NewStdio(opts ...StdioOption) *Stdio {
	s := &Stdio{
		in:          os.Stdin,
		out:         os.Stdout,
		errOut:      os.Stderr,
		maxLineSize: DefaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the transport address.
func (s *Stdio) Addr() string {
	return "stdio"
}

// Serve processes lines from stdin until EOF or until ctx is canceled.
// Lines are handled in order.
func (s *Stdio) Serve(ctx context.Context, handler Handler) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, min(64*1024, s.maxLineSize)), s.maxLineSize)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			scanErr <- err
		}
	}()

	ctx = ContextWithNotificationSender(ctx, s)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if resp := handler.Handle(ctx, line); resp != nil {
				if err := s.writeLine(resp); err != nil {
					return err
				}
			}
		}
	}
}

// SendNotification writes a notification line to stdout.
func (s *Stdio) SendNotification(method string, params any) error {
	data, err := encodeNotification(method, params)
	if err != nil {
		return err
	}
	return s.writeLine(data)
}

func (s *Stdio) writeLine(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.out.Write(data); err != nil {
		return err
	}
	_, err := s.out.Write([]byte("\n"))
	return err
}
