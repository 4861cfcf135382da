package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/require"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
)

func TestRemoteErrorKeepsCode(t *testing.T) {
	resp := NewGetResponse(nil, kvstore.Errorf(kvstore.RetCReadOnly, "namespace %q", "wifi"))
	require.False(t, resp.Ok)

	err := resp.RemoteError()
	require.ErrorIs(t, err, kvstore.ErrReadOnly)
	require.Contains(t, err.Error(), `namespace "wifi"`)

	require.NoError(t, NewGetResponse([]byte{1}, nil).RemoteError())
}

func TestRemoteErrorForeignMessage(t *testing.T) {
	err := NewBeginResponse(errors.New("disk on fire")).RemoteError()

	var kvErr *kvstore.Error
	require.ErrorAs(t, err, &kvErr)
	require.Equal(t, kvstore.RetCTransport, kvErr.Code)
	require.Equal(t, "disk on fire", kvErr.Msg)

	// a failed response without a message is still an error
	require.Error(t, (&Message{MsgType: MsgTPrefEnd}).RemoteError())
}

func TestMessageTypeJSON(t *testing.T) {
	raw, err := json.Marshal(NewTypeRequest("ssid"))
	require.NoError(t, err)
	require.JSONEq(t, `{"msg_type":"type","key":"ssid"}`, string(raw))

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"msg_type":"put","key":"k","type":"u16","value":"AQI="}`), &msg))
	require.Equal(t, *NewPutRequest("k", kvstore.TypeU16, []byte{1, 2}), msg)

	require.Error(t, json.Unmarshal([]byte(`{"msg_type":"lock"}`), &msg))
	require.Equal(t, "unknown", MessageType(200).String())
}

func TestParseDeviceBackend(t *testing.T) {
	b, err := ParseDeviceBackend(" NVS ")
	require.NoError(t, err)
	require.Equal(t, DeviceBackendNVS, b)

	_, err = ParseDeviceBackend("eeprom")
	require.Error(t, err)
}

func TestConfigString(t *testing.T) {
	cfg := ServerConfig{
		Devices: []ServerDevice{
			{DeviceID: 2, Backend: DeviceBackendMemory},
			{DeviceID: 1, Backend: DeviceBackendNVS},
		},
		Protocol:  "pref",
		DataDir:   "/var/lib/kvstore",
		Transport: ServerTransportConfig{Endpoint: "/tmp/kv.sock"},
	}
	out := cfg.String()
	require.Contains(t, out, "/tmp/kv.sock")
	require.Less(t, bytes.Index([]byte(out), []byte("nvs")), bytes.Index([]byte(out), []byte("memory")), "devices sorted by id")

	client := ClientConfig{Transport: ClientTransportConfig{Endpoints: []string{"a", "b"}}}
	require.Contains(t, client.String(), "Connections Per Endpoint")
}

func TestLoggerFormats(t *testing.T) {
	for format, want := range map[string]string{
		"logfmt":  `pkg=logtest`,
		"json":    `"pkg":"logtest"`,
		"console": "logtest",
	} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, InitLoggers(LogConfig{Level: "info", Format: format, Output: &buf}))

			l := CreateLogger("logtest")
			l.Infof("stored %d bytes", 4)
			l.Debugf("hidden")

			require.Contains(t, buf.String(), want)
			require.Contains(t, buf.String(), "stored 4 bytes")
			require.NotContains(t, buf.String(), "hidden")
		})
	}
}

func TestLoggerFollowsReinit(t *testing.T) {
	l := CreateLogger("early")
	l.SetLevel(logger.DEBUG)

	var buf bytes.Buffer
	require.NoError(t, InitLoggers(LogConfig{Format: "logfmt", Output: &buf}))
	l.Debugf("after init")
	require.Contains(t, buf.String(), "after init")
	require.Contains(t, buf.String(), "pkg=early")

	// switching formats rebinds the name the way the new encoder expects
	buf.Reset()
	require.NoError(t, InitLoggers(LogConfig{Format: "json", Output: &buf}))
	l.Infof("as json")
	require.Contains(t, buf.String(), `"pkg":"early"`)
	require.NotContains(t, buf.String(), "pkg=early")
}

func TestInvalidLogConfig(t *testing.T) {
	require.Error(t, InitLoggers(LogConfig{Level: "verbose"}))
	require.Error(t, InitLoggers(LogConfig{Format: "xml"}))

	level, err := ParseLogLevel("WARN")
	require.NoError(t, err)
	require.Equal(t, logger.WARNING, level)
}
