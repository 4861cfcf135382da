package kv

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andreagilardoni/ArduinoStorage/cmd/util"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/atmodem"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/memory"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/nvs"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/pref"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/tdb"
	"github.com/andreagilardoni/ArduinoStorage/rpc/client"
)

var (
	kvStore *kvstore.KVStore
	closers []func() error

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:   "kv",
		Short: "Perform key-value operations on a storage backend",
		Long: `Open a namespace on the selected backend, run one operation and end the session.

Backends:
  memory  in-process store (useful for bench only, nothing persists)
  nvs     ESP32 NVS partition files in --data-dir
  tdb     mbed TDBStore images in --image (defaults to --data-dir)
  pref    co-processor preferences over the rpc bus (see serve --protocol pref)
  at      Uno R4 WiFi modem over a socket (see serve --protocol at)`,
		PersistentPreRunE:  setupKVStore,
		PersistentPostRunE: teardownKVStore,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	flags := KeyValueCommands.PersistentFlags()
	flags.String("backend", "nvs", util.WrapString("Storage backend (memory, nvs, tdb, pref, at)"))
	flags.String("name", kvstore.DefaultName, util.WrapString("Namespace opened with Begin"))
	flags.Bool("read-only", false, util.WrapString("Open the namespace read-only"))
	flags.String("partition", "", util.WrapString("Partition label (nvs file, tdb area); empty selects the default partition"))
	flags.String("data-dir", "data", util.WrapString("Directory of the nvs partition files"))
	flags.String("image", "", util.WrapString("Directory of the tdb images, defaults to --data-dir"))
	flags.Bool("reformat", false, util.WrapString("Wipe damaged tdb images instead of failing"))
	flags.Uint64("device", 1, util.WrapString("ID of the co-processor device (pref backend)"))
	flags.String("modem-endpoint", "localhost:8081", util.WrapString("Address of the AT modem, a path selects a unix socket (at backend)"))

	// Add subcommands
	KeyValueCommands.AddCommand(putCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(lenCmd)
	KeyValueCommands.AddCommand(typeCmd)
	KeyValueCommands.AddCommand(existsCmd)
	KeyValueCommands.AddCommand(removeCmd)
	KeyValueCommands.AddCommand(clearCmd)
	KeyValueCommands.AddCommand(benchCmd)
}

// setupKVStore creates the backend and begins the namespace
func setupKVStore(cmd *cobra.Command, _ []string) error {
	// a failed command skips the post run, so a session may still be open
	if kvStore != nil {
		_ = teardownKVStore(cmd, nil)
	}
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	backend, err := newBackend(viper.GetString("backend"))
	if err != nil {
		return err
	}

	kvStore = kvstore.New(backend)
	name := viper.GetString("name")
	if !kvStore.Begin(name, viper.GetBool("read-only"), viper.GetString("partition")) {
		_ = closeAll()
		return fmt.Errorf("could not begin namespace %q on %s", name, viper.GetString("backend"))
	}
	return nil
}

// teardownKVStore ends the session and releases connections
func teardownKVStore(_ *cobra.Command, _ []string) error {
	var err error
	if kvStore != nil && !kvStore.End() {
		err = errors.New("end failed")
	}
	kvStore = nil
	return errors.Join(err, closeAll())
}

// newBackend creates the configured, unbegun backend
func newBackend(name string) (kvstore.IStore, error) {
	closers = nil
	dataDir := viper.GetString("data-dir")

	switch name {
	case "memory":
		return memory.NewMemoryStore(), nil

	case "nvs":
		opts := nvs.DefaultOptions()
		opts.Dir = dataDir
		return nvs.NewNVSStore(opts), nil

	case "tdb":
		dir := viper.GetString("image")
		if dir == "" {
			dir = dataDir
		}
		return tdb.NewTDBStore(&tdb.Options{Dir: dir, Reformat: viper.GetBool("reformat")}), nil

	case "pref":
		s, err := util.GetSerializer()
		if err != nil {
			return nil, err
		}
		t, err := util.GetTransport()
		if err != nil {
			return nil, err
		}
		driver, err := client.NewPrefDriver(util.GetDeviceID(), *util.GetClientConfig(), t, s)
		if err != nil {
			return nil, err
		}
		closers = append(closers, t.Close)
		return pref.NewPrefStore(driver), nil

	case "at":
		opts := atmodem.DefaultOptions()
		opts.Timeout = time.Duration(viper.GetInt("timeout")) * time.Second
		modem, err := atmodem.Dial(viper.GetString("modem-endpoint"), opts)
		if err != nil {
			return nil, err
		}
		closers = append(closers, modem.Close)
		return atmodem.NewATStore(modem), nil

	default:
		return nil, fmt.Errorf("invalid backend %s (expected one of memory, nvs, tdb, pref, at)", name)
	}
}

func closeAll() error {
	var errs []error
	for _, c := range closers {
		errs = append(errs, c())
	}
	closers = nil
	return errors.Join(errs...)
}
