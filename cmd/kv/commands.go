package kv

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/andreagilardoni/ArduinoStorage/cmd/util"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
)

const autoType = "auto"

var (
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Stores a value under a key",
		Long: `Stores a value under a key. Integers are given in decimal, blobs as hex
(e.g. put mac 0a1b2c3d4e5f --type blob).

Negative numbers look like flags, pass them with --value or after a --
separator (e.g. put --type i8 --value=-1 offset, put --type i8 -- offset -1).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value, err := putValue(cmd, args)
			if err != nil {
				return err
			}
			t, err := typeFlag(cmd, false)
			if err != nil {
				return err
			}
			raw, err := encodeValue(t, value)
			if err != nil {
				return err
			}
			n := kvstore.WriteTyped(kvStore, key, t, raw)
			if n == 0 {
				return fmt.Errorf("put %s (%s) failed", key, t)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, type=%s, written=%d\n", key, t, n)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			t, err := typeFlag(cmd, true)
			if err != nil {
				return err
			}
			if t == kvstore.TypeInvalid {
				t = kvStore.Type(key)
			}

			value, ok := readValue(key, t)
			if !ok {
				def, _ := cmd.Flags().GetString("default")
				if !cmd.Flags().Changed("default") {
					return fmt.Errorf("key %s not found", key)
				}
				value = def
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, type=%s, found=%t, value=%s\n", key, t, ok, value)
			return nil
		},
	}
	lenCmd = &cobra.Command{
		Use:   "len [key]",
		Short: "Prints the stored length of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			n := kvstore.TypedLength(kvStore, key, kvStore.Type(key))
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, len=%d\n", key, n)
			return nil
		},
	}
	typeCmd = &cobra.Command{
		Use:   "type [key]",
		Short: "Prints the type stored at a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, type=%s\n", key, kvStore.Type(key))
			return nil
		},
	}
	existsCmd = &cobra.Command{
		Use:   "exists [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, found=%t\n", key, kvStore.Exists(key))
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !kvStore.Remove(args[0]) {
				return fmt.Errorf("remove %s failed", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "removed successfully")
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes every key of the namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !kvStore.Clear() {
				return fmt.Errorf("clear failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared successfully")
			return nil
		},
	}
)

func init() {
	putCmd.Flags().String("value", "", util.WrapString("Value to store, used when no value argument is given"))
	putCmd.Flags().String("type", "str", util.WrapString("Type of the value (i8, u8, i16, u16, i32, u32, i64, u64, str, blob)"))
	getCmd.Flags().String("type", autoType, util.WrapString("Type to read (auto discovers the stored type)"))
	getCmd.Flags().String("default", "", util.WrapString("Printed instead of failing when the key is absent"))
}

// putValue returns key and value of a put. A value argument takes
// precedence over --value.
func putValue(cmd *cobra.Command, args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	if !cmd.Flags().Changed("value") {
		return "", "", fmt.Errorf("put %s: missing value (give it as argument or with --value)", args[0])
	}
	value, err := cmd.Flags().GetString("value")
	return args[0], value, err
}

// typeFlag parses --type. With allowAuto, "auto" yields TypeInvalid.
func typeFlag(cmd *cobra.Command, allowAuto bool) (kvstore.Type, error) {
	name, err := cmd.Flags().GetString("type")
	if err != nil {
		return kvstore.TypeInvalid, err
	}
	if allowAuto && name == autoType {
		return kvstore.TypeInvalid, nil
	}
	return kvstore.ParseType(name)
}

// --------------------------------------------------------------------------
// Value conversion
// --------------------------------------------------------------------------

// encodeValue converts the command line form of a value to its raw bytes
func encodeValue(t kvstore.Type, s string) ([]byte, error) {
	switch {
	case t == kvstore.TypeStr:
		return []byte(s), nil
	case t == kvstore.TypeBlob:
		raw, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("blob values are hex encoded: %w", err)
		}
		return raw, nil
	}

	bits := 8 * t.Size()
	var u uint64
	if t.IsSigned() {
		v, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", t, err)
		}
		u = uint64(v)
	} else {
		v, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", t, err)
		}
		u = v
	}
	return binary.LittleEndian.AppendUint64(nil, u)[:t.Size()], nil
}

// readValue reads the value of type t at key and renders it for output
func readValue(key string, t kvstore.Type) (string, bool) {
	switch {
	case !t.Valid():
		return "", false
	case t == kvstore.TypeStr:
		if kvstore.TypedLength(kvStore, key, t) == 0 {
			return "", false
		}
		return kvstore.GetStringValue(kvStore, key, ""), true
	}

	n := kvstore.TypedLength(kvStore, key, t)
	if n == 0 {
		return "", false
	}
	buf := make([]byte, n)
	if kvstore.ReadTyped(kvStore, key, t, buf) != n {
		return "", false
	}
	if t == kvstore.TypeBlob {
		return hex.EncodeToString(buf), true
	}

	var u uint64
	for i := n - 1; i >= 0; i-- {
		u = u<<8 | uint64(buf[i])
	}
	if t.IsSigned() {
		shift := 64 - 8*n
		return strconv.FormatInt(int64(u<<shift)>>shift, 10), true
	}
	return strconv.FormatUint(u, 10), true
}
