package client

import (
	"fmt"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
	"github.com/andreagilardoni/ArduinoStorage/rpc/serializer"
	"github.com/andreagilardoni/ArduinoStorage/rpc/transport"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter stores all data an RPC client needs to reach one device
type rpcClientAdapter struct {
	deviceId   uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends req to the adapter's device
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(a.deviceId, req, a.transport, a.serializer)
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests.
// Failures of the bus itself are reported with kvstore.RetCTransport, failures
// on the device keep the device's return code.
func invokeRPCRequest(deviceId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, kvstore.Errorf(kvstore.RetCTransport, "serialize %s: %v", req.MsgType, err)
	}

	respBytes, err := transport.Send(deviceId, reqBytes)
	if err != nil {
		return nil, kvstore.Errorf(kvstore.RetCTransport, "send %s: %v", req.MsgType, err)
	}

	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, kvstore.Errorf(kvstore.RetCTransport, "deserialize %s response: %v", req.MsgType, err)
	}

	// Error responses come from the server itself, not from the device
	if resp.MsgType == common.MsgTError {
		return nil, kvstore.Errorf(kvstore.RetCTransport, "RPC PrefAdapter - Error: %s", resp.Err)
	}

	if resp.MsgType != req.MsgType {
		return nil, kvstore.NewError(kvstore.RetCTransport,
			fmt.Sprintf("RPC PrefAdapter - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType))
	}

	return resp, resp.RemoteError()
}
