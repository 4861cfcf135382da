package serve

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/andreagilardoni/ArduinoStorage/cmd/util"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/atmodem"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/metered"
	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
	"github.com/andreagilardoni/ArduinoStorage/rpc/server"
	"github.com/andreagilardoni/ArduinoStorage/rpc/transport/base"
	"github.com/andreagilardoni/ArduinoStorage/rpc/transport/tcp"
	"github.com/andreagilardoni/ArduinoStorage/rpc/transport/unix"
)

var Logger = logger.GetLogger("serve")

const (
	ProtocolPref = "pref"
	ProtocolAT   = "at"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Emulate a storage co-processor or an AT modem",
		Long: `Start an emulator that serves one or more storage devices. With --protocol pref
the devices answer WiFiNINA preferences calls on the rpc bus, with --protocol at
the first device answers AT+PREF commands on a tcp or unix socket.

The configuration can be set via command line flags or environment variables.
The format of the environment variables is KVSTORE_<flag> (e.g. KVSTORE_DATA_DIR=/var/lib/kvstore)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "protocol"
	ServeCmd.PersistentFlags().String(key, ProtocolPref, cmdUtil.WrapString("Protocol to serve: pref (co-processor bus) or at (modem line protocol)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the emulator will listen (e.g. localhost:8080, /tmp/kvstore.sock, ...)"))

	key = "devices"
	ServeCmd.PersistentFlags().String(key, "1=nvs", cmdUtil.WrapString("Comma-separated list of devices to serve. Format: ID=BACKEND where BACKEND is one of: nvs, memory, tdb"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory holding the partition files and images of the devices"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for reading a request and writing its response"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("Requests handled concurrently per connection (tcp and unix only)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address for the Prometheus /metrics endpoint, empty disables it"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	devices, err := cmdUtil.ParseDevices(viper.GetString("devices"))
	if err != nil {
		return err
	}

	serveCmdConfig.Devices = devices
	serveCmdConfig.Protocol = viper.GetString("protocol")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		TCPNoDelay:     true,
		TCPLingerSec:   -1,
	}
	serveCmdConfig.Log = cmdUtil.GetLogConfig()

	switch serveCmdConfig.Protocol {
	case ProtocolPref, ProtocolAT:
	default:
		return fmt.Errorf("invalid protocol %s (expected pref or at)", serveCmdConfig.Protocol)
	}

	return cmdUtil.InitLogging()
}

// closer is what run shuts down on a signal
type closer interface {
	Close() error
}

// run starts the emulator and blocks until it is closed
func run(cmd *cobra.Command, _ []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), serveCmdConfig.String())

	if serveCmdConfig.MetricsEndpoint != "" {
		metricsServer := startMetrics(serveCmdConfig.MetricsEndpoint)
		defer metricsServer.Close()
	}

	var (
		srv   closer
		serve func() error
	)
	switch serveCmdConfig.Protocol {
	case ProtocolAT:
		s, listener, err := newATServer(*serveCmdConfig)
		if err != nil {
			return err
		}
		srv, serve = s, func() error { return s.Serve(listener) }
	default:
		t, err := cmdUtil.GetServerTransport()
		if err != nil {
			return err
		}
		ser, err := cmdUtil.GetSerializer()
		if err != nil {
			return err
		}
		s := server.NewRPCServer(*serveCmdConfig, t, ser)
		srv, serve = s, s.Serve
	}

	// close on SIGINT / SIGTERM so devices end their sessions
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		if _, ok := <-sigs; ok {
			Logger.Infof("shutting down")
			_ = srv.Close()
		}
	}()

	return serve()
}

// newATServer creates the modem emulator for the first configured device
// and the listener it serves on
func newATServer(config common.ServerConfig) (*atmodem.Server, net.Listener, error) {
	if len(config.Devices) > 1 {
		Logger.Warningf("the AT protocol serves one device, using device %d", config.Devices[0].DeviceID)
	}

	var connector base.IServerConnector
	switch viper.GetString("transport") {
	case "tcp":
		connector = tcp.NewServerConnector()
	case "unix":
		connector = unix.NewServerConnector()
	default:
		return nil, nil, fmt.Errorf("the AT protocol needs the tcp or unix transport, not %s", viper.GetString("transport"))
	}

	store, err := server.NewDeviceStore(config.DataDir, config.Devices[0])
	if err != nil {
		return nil, nil, err
	}
	listener, err := connector.Listen(config)
	if err != nil {
		return nil, nil, err
	}
	return atmodem.NewServer(store), listener, nil
}

// startMetrics serves the process metrics and the per-backend operation
// metrics on endpoint
func startMetrics(endpoint string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		WriteMetrics(w)
	})

	srv := &http.Server{
		Addr:              endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint %s: %v", endpoint, err)
		}
	}()
	Logger.Infof("metrics available on http://%s/metrics", endpoint)
	return srv
}

// WriteMetrics writes everything exposed on /metrics in Prometheus text format
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, true)
	metered.WritePrometheus(w)
}
