package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// DeviceBackend names the storage a simulated co-processor runs on
type DeviceBackend string

const (
	DeviceBackendNVS    DeviceBackend = "nvs"
	DeviceBackendMemory DeviceBackend = "memory"
	DeviceBackendTDB    DeviceBackend = "tdb"
)

// ParseDeviceBackend validates a backend name
func ParseDeviceBackend(s string) (DeviceBackend, error) {
	switch b := DeviceBackend(strings.ToLower(strings.TrimSpace(s))); b {
	case DeviceBackendNVS, DeviceBackendMemory, DeviceBackendTDB:
		return b, nil
	default:
		return "", fmt.Errorf("unknown device backend %q (must be one of nvs, memory, tdb)", s)
	}
}

// ServerDevice is one simulated co-processor, addressed by the frame's
// device id
type ServerDevice struct {
	DeviceID uint64
	Backend  DeviceBackend
}

// ServerTransportConfig holds the socket options of the server transport
type ServerTransportConfig struct {
	Endpoint        string
	WorkersPerConn  int
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
	WriteBufferSize int
	ReadBufferSize  int
}

// ServerConfig holds all configuration parameters of the emulator server
type ServerConfig struct {
	Devices         []ServerDevice
	Protocol        string // "pref" or "at"
	DataDir         string
	TimeoutSecond   int64
	MetricsEndpoint string
	Transport       ServerTransportConfig
	Log             LogConfig
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Protocol", c.Protocol)
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(max(1, c.Transport.WorkersPerConn)))
	if c.MetricsEndpoint != "" {
		addField("Metrics", c.MetricsEndpoint)
	}

	addSection("Logging")
	addField("Log Level", c.Log.Level)
	addField("Log Format", c.Log.Format)

	addSection("Storage")
	addField("Data Directory", c.DataDir)

	addSection("Devices")
	devices := append([]ServerDevice(nil), c.Devices...)
	sort.Slice(devices, func(i, j int) bool { return devices[i].DeviceID < devices[j].DeviceID })
	for _, d := range devices {
		addField(strconv.FormatUint(d.DeviceID, 10), string(d.Backend))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the connection options of the client transport
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	TCPNoDelay             bool
	TCPKeepAliveSec        int
}

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))

	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
