// Package internal provides the vendor layer of the tdb backend: a store
// with the init/deinit/reset/set/get/get_info/remove call set of
// mbed::TDBStore, integer result codes, write-once records and a checksummed
// on-disk image (magic "TDBSTORE", version, records, CRC32).
package internal
