package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/pref"
	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
	"github.com/andreagilardoni/ArduinoStorage/rpc/serializer"
	"github.com/andreagilardoni/ArduinoStorage/rpc/transport"
)

var Logger = logger.GetLogger("rpc")

// serverDevice is one emulated co-processor. Its driver holds the namespace
// session, so requests for one device are handled one at a time. owner is
// the connection that began the open session, zero if none or unknown.
type serverDevice struct {
	mu      sync.Mutex
	Store   kvstore.IStore
	Driver  pref.Driver
	Adapter IRPCServerAdapter
	owner   transport.ConnID
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		unix.NewUnixDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		devices:    xsync.NewMapOf[uint64, *serverDevice](),
	}
}

// RPCServer routes bus requests to the emulated devices
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	devices    *xsync.MapOf[uint64, *serverDevice]
}

// Serve creates the devices and serves requests until Close is called
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport and ends every open namespace session
func (s *RPCServer) Close() error {
	err := s.transport.Close()
	s.devices.Range(func(id uint64, d *serverDevice) bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		// End fails when no session is open, which is fine here
		_ = d.Driver.End()
		d.owner = 0
		return true
	})
	return err
}

// Handle decodes one request for deviceId, runs it and encodes the response
func (s *RPCServer) Handle(deviceId uint64, req []byte) []byte {
	return s.HandleConn(0, deviceId, req)
}

// HandleConn is Handle for a request that arrived on conn. A session begun
// on conn is ended by Disconnect(conn).
func (s *RPCServer) HandleConn(conn transport.ConnID, deviceId uint64, req []byte) []byte {
	var respMsg *common.Message

	if device, ok := s.devices.Load(deviceId); !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("device %d not found", deviceId))
	} else {
		var msg common.Message
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			device.mu.Lock()
			respMsg = device.Adapter.Handle(&msg, device.Driver)
			if respMsg.Ok {
				switch msg.MsgType {
				case common.MsgTPrefBegin:
					device.owner = conn
				case common.MsgTPrefEnd:
					device.owner = 0
				}
			}
			device.mu.Unlock()

			if !respMsg.Ok {
				Logger.Debugf("device %d: %s %q failed: %s", deviceId, msg.MsgType, msg.Key, respMsg.Err)
			}
		}
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// Disconnect ends the sessions begun on conn, so a client that went away
// does not keep its device's namespace open
func (s *RPCServer) Disconnect(conn transport.ConnID) {
	if conn == 0 {
		return
	}
	s.devices.Range(func(id uint64, d *serverDevice) bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.owner != conn {
			return true
		}
		d.owner = 0
		if err := d.Driver.End(); err != nil {
			Logger.Warningf("device %d: ending session of closed connection: %v", id, err)
		} else {
			Logger.Infof("device %d: ended session of closed connection", id)
		}
		return true
	})
}

func (s *RPCServer) init() error {
	if len(s.config.Devices) == 0 {
		return fmt.Errorf("no devices configured")
	}

	for _, dev := range s.config.Devices {
		store, err := NewDeviceStore(s.config.DataDir, dev)
		if err != nil {
			return err
		}
		if _, loaded := s.devices.LoadOrStore(dev.DeviceID, &serverDevice{
			Store:   store,
			Driver:  pref.NewLocalDriver(store),
			Adapter: NewPrefServerAdapter(),
		}); loaded {
			return fmt.Errorf("device %d configured twice", dev.DeviceID)
		}
		Logger.Infof("created %s device %d", dev.Backend, dev.DeviceID)
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	if ct, ok := s.transport.(transport.IConnServerTransport); ok {
		ct.RegisterConnHandler(s.HandleConn, s.Disconnect)
	} else {
		// sessions outlive connections (http), only End or Close ends them
		s.transport.RegisterHandler(s.Handle)
	}
	return nil
}
