// Package http carries device bus requests over plain HTTP, for hosts that
// can only reach the emulator through a proxy.
//
// Every request is a POST of one serialized message to /devices/{deviceId}
// and the response body is the serialized reply. Unlike the framed
// transports there is no request multiplexing on a connection; the standard
// library client pools connections instead.
//
// Client errors (4xx) are not retried, transport errors and 5xx responses
// are retried with a fixed delay.
package http
