package atmodem

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
)

// Command names of the preferences command set
const (
	CmdBegin  = "PREFBEGIN"
	CmdEnd    = "PREFEND"
	CmdClear  = "PREFCLEAR"
	CmdRemove = "PREFREMOVE"
	CmdLen    = "PREFLEN"
	CmdType   = "PREFTYPE"
	CmdPut    = "PREFPUT"
	CmdGet    = "PREFGET"
)

const (
	lineEnd      = "\r\n"
	replyOK      = "OK"
	replyError   = "ERROR"
	sizeSep      = '|'
	maxLineSize  = 512
	maxValueSize = 1 << 20
)

// MaxKeyLength matches the NVS partition of the modem firmware
const MaxKeyLength = 15

var (
	// ErrCommandFailed is returned when the modem answers ERROR
	ErrCommandFailed = errors.New("modem answered ERROR")
	// ErrMalformed is returned for replies that do not follow the line format
	ErrMalformed = errors.New("malformed modem reply")
)

// --------------------------------------------------------------------------
// Request lines
// --------------------------------------------------------------------------

// request is one parsed command line: AT+<Name>=<Args...>
type request struct {
	Name string
	Args []string
}

// formatRequest renders AT+NAME=arg1,arg2 (or AT+NAME without arguments)
func formatRequest(name string, args ...string) string {
	if len(args) == 0 {
		return "AT+" + name + lineEnd
	}
	return "AT+" + name + "=" + strings.Join(args, ",") + lineEnd
}

// parseRequest splits a command line without its line ending. A bare "AT"
// yields an empty name.
func parseRequest(line string) (request, error) {
	switch {
	case line == "AT":
		return request{}, nil
	case !strings.HasPrefix(line, "AT+"):
		return request{}, fmt.Errorf("%w: %q is not an AT command", ErrMalformed, line)
	}

	name, args, hasArgs := strings.Cut(line[3:], "=")
	req := request{Name: name}
	if hasArgs {
		req.Args = strings.Split(args, ",")
	}
	return req, nil
}

// validField reports whether s can travel as a comma separated argument
func validField(s string) bool {
	return !strings.ContainsAny(s, ",\r\n\x00")
}

// validKey applies the key rules of the firmware on top of kvstore.ValidKey
func validKey(key string) bool {
	return kvstore.ValidKey(key) && len(key) <= MaxKeyLength && validField(key)
}

// --------------------------------------------------------------------------
// Scalar encoding
// --------------------------------------------------------------------------

// formatScalar renders the little-endian raw value of a scalar as decimal
func formatScalar(t kvstore.Type, raw []byte) (string, error) {
	if !t.IsScalar() || len(raw) != t.Size() {
		return "", fmt.Errorf("%w: %d bytes for %s", kvstore.ErrInvalidValue, len(raw), t)
	}

	var u uint64
	switch t.Size() {
	case 1:
		u = uint64(raw[0])
	case 2:
		u = uint64(binary.LittleEndian.Uint16(raw))
	case 4:
		u = uint64(binary.LittleEndian.Uint32(raw))
	case 8:
		u = binary.LittleEndian.Uint64(raw)
	}

	if t.IsSigned() {
		shift := 64 - 8*t.Size()
		return strconv.FormatInt(int64(u<<shift)>>shift, 10), nil
	}
	return strconv.FormatUint(u, 10), nil
}

// parseScalar is the inverse of formatScalar. Values outside the range of t
// are rejected.
func parseScalar(t kvstore.Type, s string) ([]byte, error) {
	if !t.IsScalar() {
		return nil, fmt.Errorf("%w: %s is not a scalar", kvstore.ErrInvalidValue, t)
	}

	bits := 8 * t.Size()
	var u uint64
	if t.IsSigned() {
		v, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kvstore.ErrInvalidValue, err)
		}
		u = uint64(v)
	} else {
		v, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kvstore.ErrInvalidValue, err)
		}
		u = v
	}

	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw, u)
	return raw[:t.Size()], nil
}

// parseType reads the numeric type argument
func parseType(s string) (kvstore.Type, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || !kvstore.Type(n).Valid() {
		return kvstore.TypeInvalid, fmt.Errorf("%w: type %q", kvstore.ErrInvalidValue, s)
	}
	return kvstore.Type(n), nil
}

func formatType(t kvstore.Type) string {
	return strconv.Itoa(int(t))
}

func formatBool(ok bool) string {
	if ok {
		return "1"
	}
	return "0"
}
