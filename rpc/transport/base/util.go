package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

const (
	frameHeaderSize = 20

	// MaxFrameSize bounds the payload of a single frame. The largest value
	// a device accepts is well below this.
	MaxFrameSize = 4 << 20
)

// writeFrame writes a frame to w with the format:
// - 8 bytes: deviceId (uint64, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(w io.Writer, deviceID uint64, requestID uint64, data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds %d", len(data), MaxFrameSize)
	}

	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], deviceID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(w)
	return err
}

// readFrame reads a frame from r using the provided buffer.
// If the buffer is too small, a new one is allocated for the payload.
func readFrame(r io.Reader, buf []byte) (uint64, uint64, []byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, 0, nil, err
	}

	deviceID := binary.BigEndian.Uint64(header[:8])
	requestID := binary.BigEndian.Uint64(header[8:16])
	contentLength := binary.BigEndian.Uint32(header[16:20])

	if contentLength > MaxFrameSize {
		return deviceID, requestID, nil, fmt.Errorf("frame of %d bytes exceeds %d", contentLength, MaxFrameSize)
	}
	if contentLength == 0 {
		return deviceID, requestID, []byte{}, nil
	}

	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}
	if _, err := io.ReadFull(r, buf[:contentLength]); err != nil {
		return deviceID, requestID, nil, err
	}
	return deviceID, requestID, buf[:contentLength], nil
}
