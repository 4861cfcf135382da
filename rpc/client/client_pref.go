package client

import (
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/pref"
	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
	"github.com/andreagilardoni/ArduinoStorage/rpc/serializer"
	"github.com/andreagilardoni/ArduinoStorage/rpc/transport"
)

// NewPrefDriver connects transport and returns a driver talking to the
// device deviceId. Wrap it with pref.NewPrefStore to get a kvstore backend.
// The caller closes the transport when done.
func NewPrefDriver(
	deviceId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (pref.Driver, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcPrefDriver{
		rpcClientAdapter{
			deviceId:   deviceId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcPrefDriver struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see pref.Driver)
// --------------------------------------------------------------------------

func (d *rpcPrefDriver) Begin(name string, readOnly bool, partitionLabel string) error {
	_, err := d.invoke(common.NewBeginRequest(name, readOnly, partitionLabel))
	return err
}

func (d *rpcPrefDriver) End() error {
	_, err := d.invoke(common.NewEndRequest())
	return err
}

func (d *rpcPrefDriver) Clear() error {
	_, err := d.invoke(common.NewClearRequest())
	return err
}

func (d *rpcPrefDriver) Remove(key string) error {
	_, err := d.invoke(common.NewRemoveRequest(key))
	return err
}

func (d *rpcPrefDriver) Len(key string, t kvstore.Type) (int, error) {
	resp, err := d.invoke(common.NewLenRequest(key, t))
	if err != nil {
		return 0, err
	}
	return int(resp.Size), nil
}

func (d *rpcPrefDriver) Type(key string) (kvstore.Type, error) {
	resp, err := d.invoke(common.NewTypeRequest(key))
	if err != nil {
		return kvstore.TypeInvalid, err
	}
	return resp.Type, nil
}

func (d *rpcPrefDriver) Put(key string, t kvstore.Type, value []byte) (int, error) {
	resp, err := d.invoke(common.NewPutRequest(key, t, value))
	if err != nil {
		return 0, err
	}
	return int(resp.Size), nil
}

func (d *rpcPrefDriver) Get(key string, t kvstore.Type, size int) ([]byte, error) {
	if size <= 0 {
		return nil, kvstore.ErrBufferTooSmall
	}
	resp, err := d.invoke(common.NewGetRequest(key, t, size))
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}
