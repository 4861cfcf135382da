package client

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/pref"
	kvtesting "github.com/andreagilardoni/ArduinoStorage/lib/kvstore/testing"
	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
	"github.com/andreagilardoni/ArduinoStorage/rpc/serializer"
	"github.com/andreagilardoni/ArduinoStorage/rpc/server"
	"github.com/andreagilardoni/ArduinoStorage/rpc/transport"
	httpTransport "github.com/andreagilardoni/ArduinoStorage/rpc/transport/http"
	"github.com/andreagilardoni/ArduinoStorage/rpc/transport/unix"
)

const (
	nvsDevice    = 1
	memoryDevice = 2
	tdbDevice    = 3
)

// startServer runs an emulator with one device per backend on a unix socket
func startServer(t *testing.T, s serializer.IRPCSerializer) string {
	t.Helper()
	dir := t.TempDir()
	socket := filepath.Join(dir, "kv.sock")

	srv := server.NewRPCServer(common.ServerConfig{
		Devices: []common.ServerDevice{
			{DeviceID: nvsDevice, Backend: common.DeviceBackendNVS},
			{DeviceID: memoryDevice, Backend: common.DeviceBackendMemory},
			{DeviceID: tdbDevice, Backend: common.DeviceBackendTDB},
		},
		DataDir:       dir,
		TimeoutSecond: 2,
		Transport:     common.ServerTransportConfig{Endpoint: socket, WorkersPerConn: 2},
	}, unix.NewUnixDefaultServerTransport(), s)

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		require.NoError(t, srv.Close())
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return socket
}

func newDriver(t *testing.T, socket string, device uint64, s serializer.IRPCSerializer) (pref.Driver, transport.IRPCClientTransport) {
	t.Helper()
	tr := unix.NewUnixClientTransport()
	driver, err := NewPrefDriver(device, common.ClientConfig{
		TimeoutSecond: 2,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{socket},
			RetryCount: 5,
		},
	}, tr, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return driver, tr
}

func TestPrefOverUnixSocket(t *testing.T) {
	s := serializer.NewBinarySerializer()

	kvtesting.RunStoreTests(t, "PrefRPC", func(t *testing.T) kvstore.IStore {
		// a fresh emulator per subtest, so no state leaks between them
		driver, _ := newDriver(t, startServer(t, s), nvsDevice, s)
		return pref.NewPrefStore(driver)
	})
}

func TestSerializers(t *testing.T) {
	for _, name := range []string{"json", "gob", "binary"} {
		t.Run(name, func(t *testing.T) {
			s, err := serializer.ByName(name)
			require.NoError(t, err)
			socket := startServer(t, s)
			driver, _ := newDriver(t, socket, nvsDevice, s)

			kv := kvstore.New(pref.NewPrefStore(driver))
			require.True(t, kv.Begin("ser", false, ""))
			require.Equal(t, 8, kv.PutULong64("big", 1<<63))
			require.Equal(t, 6, kv.PutString("name", "hello"))
			require.Equal(t, uint64(1<<63), kv.GetULong64("big", 0))
			require.Equal(t, "hello", kv.GetStringValue("name", ""))
			require.Equal(t, kvstore.TypeU64, kv.Type("big"))
			require.Equal(t, 1, kv.PutChar("c", -1))
			require.Equal(t, kvstore.TypeI8, kv.Type("c"))
			require.True(t, kv.End())
		})
	}
}

func TestDevicesAreIndependent(t *testing.T) {
	s := serializer.NewBinarySerializer()
	socket := startServer(t, s)

	open := func(device uint64) *kvstore.KVStore {
		driver, _ := newDriver(t, socket, device, s)
		return kvstore.New(pref.NewPrefStore(driver))
	}
	nvsKV, memKV, tdbKV := open(nvsDevice), open(memoryDevice), open(tdbDevice)

	for _, kv := range []*kvstore.KVStore{nvsKV, memKV, tdbKV} {
		require.True(t, kv.Begin("shared", false, ""))
	}
	nvsKV.PutInt("n", 1)
	memKV.PutInt("n", 2)
	tdbKV.PutInt("n", 3)

	require.Equal(t, int32(1), nvsKV.GetInt("n", 0))
	require.Equal(t, int32(2), memKV.GetInt("n", 0))
	require.Equal(t, int32(3), tdbKV.GetInt("n", 0))

	// only the nvs device keeps types
	require.Equal(t, kvstore.TypeI32, nvsKV.Type("n"))
	require.Equal(t, kvstore.TypeBlob, memKV.Type("n"))
	require.Equal(t, kvstore.TypeBlob, tdbKV.Type("n"))
}

func TestRemoteErrorsKeepCodes(t *testing.T) {
	s := serializer.NewBinarySerializer()
	socket := startServer(t, s)
	driver, _ := newDriver(t, socket, nvsDevice, s)

	require.ErrorIs(t, driver.End(), kvstore.ErrNotStarted)

	require.NoError(t, driver.Begin("codes", false, ""))
	require.NoError(t, driver.End())
	require.NoError(t, driver.Begin("codes", true, ""))
	defer driver.End()

	_, err := driver.Put("k", kvstore.TypeU8, []byte{1})
	require.Error(t, err)
	_, err = driver.Len("missing", kvstore.TypeU8)
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	typ, err := driver.Type("missing")
	require.NoError(t, err)
	require.Equal(t, kvstore.TypeInvalid, typ)
}

func TestUnknownDevice(t *testing.T) {
	s := serializer.NewBinarySerializer()
	socket := startServer(t, s)
	driver, _ := newDriver(t, socket, 99, s)

	err := driver.Begin("x", false, "")
	require.Error(t, err)

	var kvErr *kvstore.Error
	require.ErrorAs(t, err, &kvErr)
	require.Equal(t, kvstore.RetCTransport, kvErr.Code)
	require.Contains(t, err.Error(), "device 99 not found")

	require.False(t, pref.NewPrefStore(driver).Begin("x", false, ""))
}

func TestPrefOverHTTP(t *testing.T) {
	s := serializer.NewJSONSerializer()

	// reserve a free port for the emulator
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	endpoint := l.Addr().String()
	require.NoError(t, l.Close())

	srv := server.NewRPCServer(common.ServerConfig{
		Devices:       []common.ServerDevice{{DeviceID: memoryDevice, Backend: common.DeviceBackendMemory}},
		DataDir:       t.TempDir(),
		TimeoutSecond: 2,
		Transport:     common.ServerTransportConfig{Endpoint: endpoint},
	}, httpTransport.NewHttpServerTransport(), s)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })

	tr := httpTransport.NewHttpClientTransport()
	driver, err := NewPrefDriver(memoryDevice, common.ClientConfig{
		TimeoutSecond: 2,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{endpoint},
			RetryCount: 20,
		},
	}, tr, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	kv := kvstore.New(pref.NewPrefStore(driver))
	require.True(t, kv.Begin("http", false, ""))
	require.Equal(t, 2, kv.PutUShort("port", 8080))
	require.Equal(t, uint16(8080), kv.GetUShort("port", 0))
	require.True(t, kv.Remove("port"))
	require.False(t, kv.Exists("port"))
	require.True(t, kv.End())
}

func TestSessionEndsWhenClientDisconnects(t *testing.T) {
	s := serializer.NewBinarySerializer()
	socket := startServer(t, s)

	first, firstTransport := newDriver(t, socket, nvsDevice, s)
	require.NoError(t, first.Begin("owned", false, ""))
	_, err := first.Put("k", kvstore.TypeU8, []byte{7})
	require.NoError(t, err)

	// the device keeps one session, a second client cannot begin while the first is connected
	second, _ := newDriver(t, socket, nvsDevice, s)
	require.Error(t, second.Begin("owned", false, ""))

	// the first client goes away without End
	require.NoError(t, firstTransport.Close())

	require.Eventually(t, func() bool {
		return second.Begin("owned", false, "") == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer second.End()

	value, err := second.Get("k", kvstore.TypeU8, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{7}, value)
}
