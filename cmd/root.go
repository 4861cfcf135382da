package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andreagilardoni/ArduinoStorage/cmd/kv"
	"github.com/andreagilardoni/ArduinoStorage/cmd/serve"
	"github.com/andreagilardoni/ArduinoStorage/cmd/util"
)

const (
	Version = "0.3.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvstore",
		Short: "typed key-value storage for embedded boards",
		Long: fmt.Sprintf(`kvstore (v%s)

One typed key-value API on top of the storage found on embedded boards:
ESP32 NVS partitions, mbed TDBStore images, WiFiNINA co-processor
preferences and the AT modem of the Uno R4 WiFi. The serve command emulates
the co-processor and the modem, the kv command talks to any backend.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kvstore v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer of the co-processor bus (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport of the co-processor bus (tcp, unix, http)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("level at which logs will be output (debug, info, warn, error)"))
	key = "log-format"
	RootCmd.PersistentFlags().String(key, "console", util.WrapString("format of the log output (console, json, logfmt)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
