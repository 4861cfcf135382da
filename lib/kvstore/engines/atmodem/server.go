package atmodem

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/pref"
)

// Server emulates the modem firmware on top of any kvstore.IStore. All
// connections share one device; commands are executed one at a time.
type Server struct {
	mu     sync.Mutex
	driver pref.Driver

	lmu      sync.Mutex
	listener net.Listener
	conns    *xsync.MapOf[io.ReadWriter, struct{}]
	closed   atomic.Bool
}

// session is the per-connection state
type session struct {
	begun bool
}

// NewServer creates an emulator serving store
func NewServer(store kvstore.IStore) *Server {
	return &Server{
		driver: pref.NewLocalDriver(store),
		conns:  xsync.NewMapOf[io.ReadWriter, struct{}](),
	}
}

// Serve accepts connections on listener until Close is called
func (s *Server) Serve(listener net.Listener) error {
	s.lmu.Lock()
	if s.closed.Load() {
		s.lmu.Unlock()
		return listener.Close()
	}
	s.listener = listener
	s.lmu.Unlock()

	Logger.Infof("AT modem emulator listening on %s", listener.Addr())
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("accept: %v", err)
			continue
		}
		go func() {
			defer conn.Close()
			if err := s.ServeConn(conn); err != nil {
				Logger.Debugf("connection %s: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

// ServeConn answers commands on conn until it is closed. A session left
// open by the connection is ended.
func (s *Server) ServeConn(conn io.ReadWriter) error {
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)

	sess := &session{}
	defer func() {
		if sess.begun {
			s.mu.Lock()
			_ = s.driver.End()
			s.mu.Unlock()
		}
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		raw, err := r.ReadSlice('\n')
		if err != nil {
			if errors.Is(err, io.EOF) || s.closed.Load() {
				return nil
			}
			return err
		}
		line := string(bytes.TrimRight(raw, lineEnd))
		if line == "" {
			continue
		}

		reply, err := s.handle(sess, line, r)
		if err != nil {
			// the stream cannot be resynchronized
			_, _ = w.WriteString(replyError + lineEnd)
			_ = w.Flush()
			return err
		}
		if _, err := w.Write(reply); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}

// Close stops Serve and closes every connection
func (s *Server) Close() error {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	s.closed.Store(true)
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.conns.Range(func(conn io.ReadWriter, _ struct{}) bool {
		if c, ok := conn.(io.Closer); ok {
			_ = c.Close()
		}
		return true
	})
	return err
}

// --------------------------------------------------------------------------
// Command handling
// --------------------------------------------------------------------------

// handle executes one command line. A returned error means the connection
// has to be dropped; command failures are answered with ERROR instead.
func (s *Server) handle(sess *session, line string, r *bufio.Reader) ([]byte, error) {
	req, err := parseRequest(line)
	if err != nil {
		Logger.Debugf("%v", err)
		return errorReply(), nil
	}
	if req.Name == "" {
		return []byte(replyOK + lineEnd), nil
	}

	// payload bytes of str/blob puts are read before taking the device lock
	var data []byte
	if req.Name == CmdPut && len(req.Args) == 3 {
		if t, err := parseType(req.Args[1]); err == nil && !t.IsScalar() {
			n, err := strconv.Atoi(req.Args[2])
			if err != nil || n <= 0 {
				return errorReply(), nil
			}
			if n > maxValueSize {
				return nil, fmt.Errorf("payload of %d bytes exceeds %d", n, maxValueSize)
			}
			data = make([]byte, n)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, err
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reply, err := s.execute(sess, req, data)
	if err != nil {
		Logger.Debugf("%s: %v", line, err)
		return errorReply(), nil
	}
	return reply, nil
}

func (s *Server) execute(sess *session, req request, data []byte) ([]byte, error) {
	args := req.Args
	switch req.Name {
	case CmdBegin:
		if len(args) < 2 || len(args) > 3 || (args[1] != "0" && args[1] != "1") {
			return nil, ErrMalformed
		}
		label := ""
		if len(args) == 3 {
			label = args[2]
		}
		ok := !sess.begun && s.driver.Begin(args[0], args[1] == "1", label) == nil
		if ok {
			sess.begun = true
		}
		return okReply(req.Name, formatBool(ok)), nil

	case CmdEnd:
		if len(args) != 0 {
			return nil, ErrMalformed
		}
		ok := sess.begun && s.driver.End() == nil
		sess.begun = false
		return okReply(req.Name, formatBool(ok)), nil

	case CmdClear:
		if len(args) != 0 {
			return nil, ErrMalformed
		}
		return okReply(req.Name, formatBool(s.driver.Clear() == nil)), nil

	case CmdRemove:
		if len(args) != 1 {
			return nil, ErrMalformed
		}
		return okReply(req.Name, formatBool(s.driver.Remove(args[0]) == nil)), nil

	case CmdLen:
		if len(args) != 1 {
			return nil, ErrMalformed
		}
		n := 0
		if t, err := s.driver.Type(args[0]); err == nil && t.Valid() {
			n, _ = s.driver.Len(args[0], t)
		}
		return okReply(req.Name, strconv.Itoa(n)), nil

	case CmdType:
		if len(args) != 1 {
			return nil, ErrMalformed
		}
		t, err := s.driver.Type(args[0])
		if err != nil {
			t = kvstore.TypeInvalid
		}
		return okReply(req.Name, formatType(t)), nil

	case CmdPut:
		if len(args) != 3 {
			return nil, ErrMalformed
		}
		t, err := parseType(args[1])
		if err != nil {
			return nil, err
		}
		if t.IsScalar() {
			if data, err = parseScalar(t, args[2]); err != nil {
				return nil, err
			}
		}
		n, err := s.driver.Put(args[0], t, data)
		if err != nil {
			n = 0
		}
		return okReply(req.Name, strconv.Itoa(n)), nil

	case CmdGet:
		// older firmware sends a default value as third argument
		if len(args) < 2 || len(args) > 3 {
			return nil, ErrMalformed
		}
		t, err := parseType(args[1])
		if err != nil {
			return nil, err
		}
		if t.IsScalar() {
			raw, err := s.driver.Get(args[0], t, t.Size())
			if err != nil {
				return nil, err
			}
			value, err := formatScalar(t, raw)
			if err != nil {
				return nil, err
			}
			return okReply(req.Name, value), nil
		}
		n, err := s.driver.Len(args[0], t)
		if err != nil {
			return nil, err
		}
		value, err := s.driver.Get(args[0], t, n)
		if err != nil {
			return nil, err
		}
		return sizedReply(req.Name, value), nil
	}

	return nil, fmt.Errorf("%w: unknown command %q", ErrMalformed, req.Name)
}

// --------------------------------------------------------------------------
// Reply formatting
// --------------------------------------------------------------------------

func okReply(name, payload string) []byte {
	return []byte("+" + name + ": " + payload + lineEnd + replyOK + lineEnd)
}

func sizedReply(name string, value []byte) []byte {
	reply := make([]byte, 0, len(name)+len(value)+16)
	reply = append(reply, '+')
	reply = append(reply, name...)
	reply = append(reply, ": "...)
	reply = strconv.AppendInt(reply, int64(len(value)), 10)
	reply = append(reply, sizeSep)
	reply = append(reply, value...)
	reply = append(reply, lineEnd+replyOK+lineEnd...)
	return reply
}

func errorReply() []byte {
	return []byte(replyError + lineEnd)
}
