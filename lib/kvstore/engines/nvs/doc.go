// Package nvs implements kvstore.ITypedStore on top of bbolt, emulating the
// non-volatile storage partition of an ESP32.
//
// Layout:
//   - a partition label selects one bbolt file (<dir>/<label>.nvs, "nvs" by default)
//   - a namespace selects a bucket inside that file
//   - every record is a one byte kvstore.Type tag followed by the payload
//
// As on the device, keys and namespace names are limited to 15 characters,
// typed getters fail for values stored under a different type and strings
// are counted with their trailing NUL. Every write is committed before the
// call returns.
package nvs
