package base

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
	"github.com/andreagilardoni/ArduinoStorage/rpc/transport"
)

// unixServer/unixClient are minimal connectors so the base package can be
// tested without importing its own subpackages
type unixServer struct{}

func (unixServer) GetName() string { return "unix" }
func (unixServer) Listen(config common.ServerConfig) (net.Listener, error) {
	return net.Listen("unix", config.Transport.Endpoint)
}
func (unixServer) UpgradeConnection(net.Conn, common.ServerConfig) error { return nil }

type unixClient struct{}

func (unixClient) GetName() string                                       { return "unix" }
func (unixClient) Connect(endpoint string) (net.Conn, error)             { return net.Dial("unix", endpoint) }
func (unixClient) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

func startServer(t *testing.T, handler transport.ServerHandleFunc) string {
	t.Helper()
	return listen(t, func(srv transport.IRPCServerTransport) { srv.RegisterHandler(handler) })
}

// listen serves a base transport on a fresh socket after register set its handlers
func listen(t *testing.T, register func(transport.IRPCServerTransport)) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "bus.sock")

	srv := NewBaseServerTransport(unixServer{}, 1024)
	register(srv)

	done := make(chan error, 1)
	go func() {
		done <- srv.Listen(common.ServerConfig{
			TimeoutSecond: 2,
			Transport:     common.ServerTransportConfig{Endpoint: socket, WorkersPerConn: 4},
		})
	}()
	t.Cleanup(func() {
		require.NoError(t, srv.Close())
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("listen did not return after close")
		}
	})
	return socket
}

func connect(t *testing.T, socket string, conns int) transport.IRPCClientTransport {
	t.Helper()
	client := NewBaseClientTransport(unixClient{})
	require.NoError(t, client.Connect(common.ClientConfig{
		TimeoutSecond: 2,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{socket},
			RetryCount:             5,
			ConnectionsPerEndpoint: conns,
		},
	}))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 7, 42, []byte("hello")))
	require.Equal(t, frameHeaderSize+5, buf.Len())

	device, request, data, err := readFrame(&buf, make([]byte, 2))
	require.NoError(t, err)
	require.Equal(t, uint64(7), device)
	require.Equal(t, uint64(42), request)
	require.Equal(t, []byte("hello"), data)
}

func TestFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 1, 2, nil))

	_, _, data, err := readFrame(&buf, nil)
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestFrameRejectsOversizedPayload(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[16:], MaxFrameSize+1)

	_, _, _, err := readFrame(bytes.NewReader(header), nil)
	require.Error(t, err)
	require.Error(t, writeFrame(&bytes.Buffer{}, 0, 0, make([]byte, MaxFrameSize+1)))
}

func TestSendRoutesByDevice(t *testing.T) {
	socket := startServer(t, func(deviceId uint64, req []byte) []byte {
		return []byte(fmt.Sprintf("%d:%s", deviceId, req))
	})
	client := connect(t, socket, 1)

	resp, err := client.Send(3, []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, "3:ping", string(resp))
}

func TestConcurrentRequestsAreCorrelated(t *testing.T) {
	socket := startServer(t, func(deviceId uint64, req []byte) []byte {
		// answer out of order
		if len(req)%2 == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		return append([]byte(nil), req...)
	})
	client := connect(t, socket, 2)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte(i)}, i+1)
			resp, err := client.Send(0, payload)
			assert.NoError(t, err)
			assert.Equal(t, payload, resp)
		}(i)
	}
	wg.Wait()
}

func TestConnectFailsWithoutServer(t *testing.T) {
	client := NewBaseClientTransport(unixClient{})
	err := client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{filepath.Join(t.TempDir(), "missing.sock")},
			RetryCount: 2,
		},
	})
	require.Error(t, err)

	require.Error(t, client.Connect(common.ClientConfig{}), "no endpoints")
}

func TestSendAfterClose(t *testing.T) {
	socket := startServer(t, func(_ uint64, req []byte) []byte { return req })
	client := connect(t, socket, 1)

	require.NoError(t, client.Close())
	_, err := client.Send(0, []byte("x"))
	require.ErrorIs(t, err, ErrTransportClosed)
}

func TestListenWithoutHandler(t *testing.T) {
	srv := NewBaseServerTransport(unixServer{}, 16)
	require.Error(t, srv.Listen(common.ServerConfig{}))
}

func TestDisconnectReportsConnection(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[transport.ConnID]int{}
	)
	gone := make(chan transport.ConnID, 1)

	socket := listen(t, func(srv transport.IRPCServerTransport) {
		srv.(transport.IConnServerTransport).RegisterConnHandler(
			func(conn transport.ConnID, _ uint64, req []byte) []byte {
				mu.Lock()
				seen[conn]++
				mu.Unlock()
				return req
			},
			func(conn transport.ConnID) { gone <- conn },
		)
	})

	client := NewBaseClientTransport(unixClient{})
	require.NoError(t, client.Connect(common.ClientConfig{
		TimeoutSecond: 2,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{socket},
			RetryCount:             5,
			ConnectionsPerEndpoint: 1,
		},
	}))
	for i := 0; i < 3; i++ {
		_, err := client.Send(1, []byte("ping"))
		require.NoError(t, err)
	}

	mu.Lock()
	require.Len(t, seen, 1)
	var id transport.ConnID
	for conn, n := range seen {
		id = conn
		assert.Equal(t, 3, n)
	}
	mu.Unlock()
	assert.NotZero(t, id)

	require.NoError(t, client.Close())
	select {
	case conn := <-gone:
		assert.Equal(t, id, conn)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect was not reported")
	}
}
