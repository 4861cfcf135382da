package atmodem

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

// Options configures the command channel
type Options struct {
	Timeout           time.Duration // Deadline for one command and its reply
	HandshakeAttempts uint          // How often the AT handshake is tried
	HandshakeDelay    time.Duration // Initial delay between handshake attempts
}

// DefaultOptions returns the settings used when nil options are passed
func DefaultOptions() *Options {
	return &Options{
		Timeout:           2 * time.Second,
		HandshakeAttempts: 5,
		HandshakeDelay:    100 * time.Millisecond,
	}
}

// Modem speaks the line protocol of the modem firmware over any
// io.ReadWriter. Commands are serialized; deadlines are applied when the
// connection supports them.
type Modem struct {
	mu   sync.Mutex
	conn io.ReadWriter
	r    *bufio.Reader
	opts *Options
}

// NewModem wraps conn. opts may be nil.
func NewModem(conn io.ReadWriter, opts *Options) *Modem {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Modem{
		conn: conn,
		r:    bufio.NewReader(conn),
		opts: opts,
	}
}

// Dial connects to a modem endpoint. Endpoints containing a slash are unix
// sockets, everything else is a TCP address.
func Dial(endpoint string, opts *Options) (*Modem, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	network := "tcp"
	if strings.Contains(endpoint, "/") {
		network = "unix"
	}

	var conn net.Conn
	err := retry.Do(func() error {
		c, err := net.DialTimeout(network, endpoint, opts.Timeout)
		if err != nil {
			return err
		}
		conn = c
		return nil
	},
		retry.Attempts(max(1, opts.HandshakeAttempts)),
		retry.Delay(opts.HandshakeDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			Logger.Debugf("dial %s attempt %d failed: %v", endpoint, n+1, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial modem %s: %w", endpoint, err)
	}
	return NewModem(conn, opts), nil
}

// Close closes the underlying connection if it can be closed
func (m *Modem) Close() error {
	if c, ok := m.conn.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Handshake sends a bare AT until the modem answers OK
func (m *Modem) Handshake() error {
	return retry.Do(func() error {
		_, err := m.Command("")
		return err
	},
		retry.Attempts(max(1, m.opts.HandshakeAttempts)),
		retry.Delay(m.opts.HandshakeDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			Logger.Debugf("handshake attempt %d failed: %v", n+1, err)
		}),
	)
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

// Command sends AT+name=args and returns the payload of the +name: reply.
// An empty name sends a bare AT, which is answered with OK only.
func (m *Modem) Command(name string, args ...string) (string, error) {
	return m.CommandData(name, nil, args...)
}

// CommandData sends a command followed by data raw bytes
func (m *Modem) CommandData(name string, data []byte, args ...string) (string, error) {
	var payload string
	err := m.exchange(name, args, data, func() error {
		var err error
		payload, err = m.readReply(name)
		return err
	})
	return payload, err
}

// CommandSized sends a command whose reply carries <len>|<raw bytes>
func (m *Modem) CommandSized(name string, args ...string) ([]byte, error) {
	var value []byte
	err := m.exchange(name, args, nil, func() error {
		var err error
		value, err = m.readSizedReply(name)
		return err
	})
	return value, err
}

// exchange writes one request and reads its reply under the command deadline
func (m *Modem) exchange(name string, args []string, data []byte, read func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.arm()
	defer m.disarm()

	req := "AT" + lineEnd
	if name != "" {
		req = formatRequest(name, args...)
	}
	msg := append([]byte(req), data...)

	if _, err := m.conn.Write(msg); err != nil {
		m.r.Reset(m.conn)
		return fmt.Errorf("write %s: %w", strings.TrimSpace(req), err)
	}
	if err := read(); err != nil {
		if !errors.Is(err, ErrCommandFailed) {
			// drop whatever is left of a broken reply
			m.r.Reset(m.conn)
		}
		return fmt.Errorf("%s: %w", strings.TrimSpace(req), err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Reply parsing
// --------------------------------------------------------------------------

func (m *Modem) readReply(name string) (string, error) {
	line, err := m.readLine()
	if err != nil {
		return "", err
	}
	if line == replyError {
		return "", ErrCommandFailed
	}
	if name == "" {
		if line != replyOK {
			return "", fmt.Errorf("%w: expected OK, got %q", ErrMalformed, line)
		}
		return "", nil
	}

	prefix := "+" + name + ": "
	payload, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return "", fmt.Errorf("%w: expected %q, got %q", ErrMalformed, prefix, line)
	}
	return payload, m.expectOK()
}

func (m *Modem) readSizedReply(name string) ([]byte, error) {
	if err := m.skipBlankLines(); err != nil {
		return nil, err
	}
	first, err := m.r.Peek(1)
	if err != nil {
		return nil, err
	}
	if first[0] != '+' {
		line, err := m.readLine()
		if err != nil {
			return nil, err
		}
		if line == replyError {
			return nil, ErrCommandFailed
		}
		return nil, fmt.Errorf("%w: unexpected %q", ErrMalformed, line)
	}

	head, err := m.r.ReadSlice(sizeSep)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	prefix := "+" + name + ": "
	digits, ok := strings.CutPrefix(string(head[:len(head)-1]), prefix)
	if !ok {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrMalformed, prefix, head)
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 || n > maxValueSize {
		return nil, fmt.Errorf("%w: length %q", ErrMalformed, digits)
	}

	value := make([]byte, n)
	if _, err := io.ReadFull(m.r, value); err != nil {
		return nil, err
	}
	if rest, err := m.readLine(); err != nil || rest != replyOK {
		// the value is followed by CRLF, which readLine skips as a blank line
		if err == nil {
			err = fmt.Errorf("%w: expected OK, got %q", ErrMalformed, rest)
		}
		return nil, err
	}
	return value, nil
}

func (m *Modem) expectOK() error {
	line, err := m.readLine()
	if err != nil {
		return err
	}
	if line != replyOK {
		return fmt.Errorf("%w: expected OK, got %q", ErrMalformed, line)
	}
	return nil
}

// readLine returns the next non-empty line without its line ending
func (m *Modem) readLine() (string, error) {
	for {
		raw, err := m.r.ReadSlice('\n')
		if err != nil {
			if errors.Is(err, bufio.ErrBufferFull) {
				return "", fmt.Errorf("%w: line too long", ErrMalformed)
			}
			return "", err
		}
		line := string(bytes.TrimRight(raw, lineEnd))
		if len(line) > maxLineSize {
			return "", fmt.Errorf("%w: line too long", ErrMalformed)
		}
		if line != "" {
			return line, nil
		}
	}
}

func (m *Modem) skipBlankLines() error {
	for {
		b, err := m.r.Peek(1)
		if err != nil {
			return err
		}
		if b[0] != '\r' && b[0] != '\n' {
			return nil
		}
		if _, err := m.r.Discard(1); err != nil {
			return err
		}
	}
}

// --------------------------------------------------------------------------
// Deadlines
// --------------------------------------------------------------------------

type deadliner interface {
	SetDeadline(t time.Time) error
}

func (m *Modem) arm() {
	if d, ok := m.conn.(deadliner); ok && m.opts.Timeout > 0 {
		_ = d.SetDeadline(time.Now().Add(m.opts.Timeout))
	}
}

func (m *Modem) disarm() {
	if d, ok := m.conn.(deadliner); ok && m.opts.Timeout > 0 {
		_ = d.SetDeadline(time.Time{})
	}
}
