package server

import (
	"fmt"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/pref"
	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
)

// maxValueSize bounds the buffer a Get request may ask the device to allocate
const maxValueSize = 1 << 20

// NewPrefServerAdapter creates the adapter answering preferences bus requests
func NewPrefServerAdapter() IRPCServerAdapter {
	return &prefServerAdapterImpl{}
}

type prefServerAdapterImpl struct{}

func (adapter *prefServerAdapterImpl) Handle(req *common.Message, driver pref.Driver) *common.Message {
	if driver == nil {
		return common.NewErrorResponse("handler: driver is nil")
	}

	switch req.MsgType {
	case common.MsgTPrefBegin:
		return common.NewBeginResponse(driver.Begin(req.Name, req.ReadOnly, req.Label))
	case common.MsgTPrefEnd:
		return common.NewEndResponse(driver.End())
	case common.MsgTPrefClear:
		return common.NewClearResponse(driver.Clear())
	case common.MsgTPrefRemove:
		return common.NewRemoveResponse(driver.Remove(req.Key))
	case common.MsgTPrefLen:
		n, err := driver.Len(req.Key, req.Type)
		return common.NewLenResponse(n, err)
	case common.MsgTPrefType:
		t, err := driver.Type(req.Key)
		return common.NewTypeResponse(t, err)
	case common.MsgTPrefPut:
		n, err := driver.Put(req.Key, req.Type, req.Value)
		return common.NewPutResponse(n, err)
	case common.MsgTPrefGet:
		if req.Size > maxValueSize {
			return common.NewGetResponse(nil, kvstore.Errorf(kvstore.RetCInvalidValue, "size %d exceeds %d", req.Size, maxValueSize))
		}
		value, err := driver.Get(req.Key, req.Type, int(req.Size))
		return common.NewGetResponse(value, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC PrefAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
