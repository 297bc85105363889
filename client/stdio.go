package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// ErrClosed is returned for exchanges on a closed transport.
var ErrClosed = errors.New("client: transport closed")

// StdioTransport exchanges line-delimited payloads with a server over a
// pair of streams, usually the stdin and stdout of a subprocess. Exchanges
// are serialized, matching the server's in-order line handling.
type StdioTransport struct {
	w      io.Writer
	closer io.Closer
	cmd    *exec.Cmd
	stderr io.ReadCloser

	onNotify func(method string, params json.RawMessage)

	exchange sync.Mutex
	lines    chan []byte
	readErr  error
	done     chan struct{}
	stop     chan struct{}

	closeOnce sync.Once
}

// StdioOption configures a StdioTransport.
type StdioOption func(*StdioTransport)

// WithNotificationHandler receives notifications pushed by the server
// while an exchange is waiting for its reply.
func WithNotificationHandler(fn func(method string, params json.RawMessage)) StdioOption {
	return func(t *StdioTransport) {
		t.onNotify = fn
	}
}

// NewStdioTransport starts command and talks to it over its stdio.
func NewStdioTransport(command string, args []string, opts ...StdioOption) (*StdioTransport, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	t := NewStreamTransport(stdout, stdin, opts...)
	t.cmd = cmd
	t.stderr = stderr
	return t, nil
}

// NewStreamTransport exchanges payloads over r and w. If w is an
// io.Closer it is closed by Close.
func NewStreamTransport(r io.Reader, w io.Writer, opts ...StdioOption) *StdioTransport {
	t := &StdioTransport{
		w:     w,
		lines: make(chan []byte),
		done:  make(chan struct{}),
		stop:  make(chan struct{}),
	}
	if c, ok := w.(io.Closer); ok {
		t.closer = c
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.read(r)
	return t
}

func (t *StdioTransport) read(r io.Reader) {
	defer close(t.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		select {
		case t.lines <- bytes.Clone(line):
		case <-t.stop:
			return
		}
	}
	t.readErr = scanner.Err()
}

// RoundTrip writes payload as one line and, when a reply is expected,
// waits for the matching response line.
func (t *StdioTransport) RoundTrip(ctx context.Context, payload []byte, expectReply bool) ([]byte, error) {
	t.exchange.Lock()
	defer t.exchange.Unlock()

	select {
	case <-t.done:
		return nil, t.closedErr()
	default:
	}

	line := append(bytes.Clone(payload), '\n')
	if _, err := t.w.Write(line); err != nil {
		return nil, fmt.Errorf("write payload: %w", err)
	}
	if !expectReply {
		return nil, nil
	}

	want := replyMatcher(payload)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.done:
			return nil, t.closedErr()
		case reply := <-t.lines:
			if t.notification(reply) {
				continue
			}
			if want(reply) {
				return reply, nil
			}
		}
	}
}

func (t *StdioTransport) notification(line []byte) bool {
	var msg struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if line[0] != '{' || json.Unmarshal(line, &msg) != nil || msg.Method == "" {
		return false
	}
	if t.onNotify != nil {
		t.onNotify(msg.Method, msg.Params)
	}
	return true
}

// replyMatcher accepts array replies for batch payloads and replies with
// the payload's id, or a null id, for single payloads.
func replyMatcher(payload []byte) func([]byte) bool {
	if bytes.HasPrefix(bytes.TrimSpace(payload), []byte("[")) {
		return func(reply []byte) bool {
			return reply[0] == '[' || reply[0] == '{'
		}
	}

	var req struct {
		ID json.RawMessage `json:"id"`
	}
	_ = json.Unmarshal(payload, &req)
	return func(reply []byte) bool {
		var resp struct {
			ID json.RawMessage `json:"id"`
		}
		if json.Unmarshal(reply, &resp) != nil {
			return false
		}
		return bytes.Equal(resp.ID, req.ID) || string(resp.ID) == "null"
	}
}

func (t *StdioTransport) closedErr() error {
	if t.readErr != nil {
		return fmt.Errorf("%w: %w", ErrClosed, t.readErr)
	}
	return ErrClosed
}

// Stderr returns the subprocess's stderr, or nil for stream transports.
func (t *StdioTransport) Stderr() io.Reader {
	return t.stderr
}

// Close closes the write side and, for subprocesses, waits for the
// process to exit.
func (t *StdioTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		if t.closer != nil {
			_ = t.closer.Close()
		}
		if t.cmd != nil {
			err = t.cmd.Wait()
		}
	})
	return err
}
