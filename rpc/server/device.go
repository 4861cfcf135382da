package server

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/memory"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/nvs"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/tdb"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/metered"
	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
)

// DeviceDir returns the directory holding the files of device id
func DeviceDir(dataDir string, id uint64) string {
	return filepath.Join(dataDir, "device-"+strconv.FormatUint(id, 10))
}

// NewDeviceStore creates the metered backing store of one emulated device.
// Files of persistent backends live in DeviceDir(dataDir, id).
func NewDeviceStore(dataDir string, device common.ServerDevice) (kvstore.IStore, error) {
	dir := DeviceDir(dataDir, device.DeviceID)
	backend := device.Backend
	if backend == "" {
		backend = common.DeviceBackendNVS
	}

	var store kvstore.IStore
	switch backend {
	case common.DeviceBackendNVS:
		opts := nvs.DefaultOptions()
		opts.Dir = dir
		store = nvs.NewNVSStore(opts)
	case common.DeviceBackendMemory:
		store = memory.NewMemoryStore()
	case common.DeviceBackendTDB:
		store = tdb.NewTDBStore(&tdb.Options{Dir: dir, Reformat: true})
	default:
		return nil, fmt.Errorf("device %d: unknown backend %q", device.DeviceID, device.Backend)
	}

	return metered.New(store, string(backend)), nil
}
