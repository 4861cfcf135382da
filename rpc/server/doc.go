// Package server emulates one or more storage co-processors behind the rpc
// bus. Every device id names an independent backing store (nvs, memory or
// tdb) wrapped with metered, so a host running the pref backend can be
// exercised without hardware.
//
// Key Components:
//
//   - IRPCServerAdapter: turns a decoded request into calls on a pref.Driver.
//
//   - NewPrefServerAdapter: the adapter for the preferences call set.
//
//   - NewDeviceStore: builds the backing store of one device. The AT modem
//     emulator uses it as well.
//
//   - RPCServer: routes frames to devices by id. A device keeps one
//     namespace session, so its requests are serialized; different devices
//     are served concurrently. On tcp and unix the session is ended when the
//     connection that began it closes. The http transport has no such
//     binding, there a session lasts until End or Close.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Devices: []common.ServerDevice{
//	    {DeviceID: 1, Backend: common.DeviceBackendNVS},
//	    {DeviceID: 2, Backend: common.DeviceBackendMemory},
//	  },
//	  DataDir:       "./data",
//	  TimeoutSecond: 5,
//	  Transport:     common.ServerTransportConfig{Endpoint: "/tmp/kvstore.sock"},
//	}
//
//	s := server.NewRPCServer(config, unix.NewUnixDefaultServerTransport(), serializer.NewBinarySerializer())
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
package server
