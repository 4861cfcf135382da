// Package cmd implements the command-line interface of kvstore. It opens a
// namespace on one of the storage backends and runs a single operation, or
// starts an emulator that serves backends to other processes.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (put, get, len, type, exists, remove, clear, bench)
//   - serve: Emulates a storage co-processor (rpc bus) or an AT modem
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See kvstore -help for a list of all commands.
package cmd
