// Package client implements the host side of the preferences bus. It turns
// pref.Driver calls into request messages for one device of an rpc server.
//
// Key Components:
//
//   - NewPrefDriver: connects a transport and returns a pref.Driver for one
//     device id.
//
// Errors reported by the device keep their kvstore return code, so a
// read-only namespace still matches kvstore.ErrReadOnly on the host. Bus
// failures (timeouts, unknown device, bad frames) use kvstore.RetCTransport.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:  []string{"/tmp/kvstore.sock"},
//	    RetryCount: 3,
//	  },
//	}
//
//	t := unix.NewUnixClientTransport()
//	driver, err := client.NewPrefDriver(1, config, t, serializer.NewBinarySerializer())
//	if err != nil {
//	  return err
//	}
//	defer t.Close()
//
//	prefs := kvstore.New(pref.NewPrefStore(driver))
//	prefs.Begin("wifi", false, "")
//	prefs.PutString("ssid", "home")
//
// Thread Safety:
//
//	The driver is safe for concurrent use, but a device has a single
//	namespace session shared by all its callers.
package client
