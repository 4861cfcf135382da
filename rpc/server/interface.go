package server

import (
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/pref"
	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle runs req against the driver of the addressed device and
	// returns the response. Errors are reported inside the response.
	Handle(req *common.Message, driver pref.Driver) (resp *common.Message)
}
