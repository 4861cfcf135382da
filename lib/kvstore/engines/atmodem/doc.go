// Package atmodem implements kvstore.ITypedStore for boards that keep their
// preferences on a WiFi modem reached through AT commands (Uno R4 WiFi).
//
// The line protocol is CRLF terminated. A command is answered with
//
//	+<CMD>: <payload>\r\nOK\r\n
//
// or with ERROR\r\n. Integers travel as decimal text. Strings and blobs are
// sent as AT+PREFPUT=<key>,<type>,<len> followed by the raw bytes, and
// returned as +PREFGET: <len>|<raw bytes>.
//
// Modem is the client side of the channel and runs over any io.ReadWriter.
// NewATStore adapts it to the kvstore contract. Server emulates the modem
// firmware on top of any kvstore.IStore, which is what the serve command
// exposes with --protocol at.
//
// Strings are counted without a terminator.
package atmodem
