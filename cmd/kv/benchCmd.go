package kv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andreagilardoni/ArduinoStorage/cmd/util"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
)

var (
	benchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Measures put and get latency for every type",
		RunE:    runBench,
		PreRunE: processBenchConfig,
	}
	benchKeyPrefix  = "__b"
	benchIterations = 1000
	benchKeySpread  = 16
	benchBlobSize   = 64
	benchSkip       = make([]string, 0)
)

// benchTypes is the order in which results are reported
var benchTypes = []kvstore.Type{
	kvstore.TypeI8, kvstore.TypeU8, kvstore.TypeI16, kvstore.TypeU16,
	kvstore.TypeI32, kvstore.TypeU32, kvstore.TypeI64, kvstore.TypeU64,
	kvstore.TypeStr, kvstore.TypeBlob,
}

// benchResult holds the timers of one type
type benchResult struct {
	t        kvstore.Type
	put, get metrics.Timer
	failures int
}

func init() {
	key := "skip"
	benchCmd.Flags().String(key, "", util.WrapString("Types to skip (comma separated - e.g. str,blob)"))
	key = "iterations"
	benchCmd.Flags().Int(key, 1000, util.WrapString("Puts and gets per type"))
	key = "keys"
	benchCmd.Flags().Int(key, 16, util.WrapString("How many different keys to use per type (at most 999)"))
	key = "blob-size"
	benchCmd.Flags().Int(key, 64, util.WrapString("Size of the str and blob values in bytes"))
	key = "csv"
	benchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	benchIterations = max(1, viper.GetInt("iterations"))
	benchKeySpread = min(max(1, viper.GetInt("keys")), 999)
	benchBlobSize = max(1, viper.GetInt("blob-size"))
	benchSkip = strings.Split(viper.GetString("skip"), ",")
	return nil
}

func runBench(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Latency of typed puts and gets")
	fmt.Fprintf(out, "Backend: %s, Iterations: %d, Keys: %d\n\n", viper.GetString("backend"), benchIterations, benchKeySpread)

	registry := metrics.NewRegistry()
	var results []*benchResult
	for _, t := range benchTypes {
		if slices.Contains(benchSkip, t.String()) {
			fmt.Fprintf(out, "%-6sskipped\n", t)
			continue
		}
		result := benchType(registry, t)
		results = append(results, result)
		printBenchResult(out, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Fprintf(out, "\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to write CSV: %v", err)
		}
	}
	return nil
}

// benchType writes and reads benchIterations values of type t
func benchType(registry metrics.Registry, t kvstore.Type) *benchResult {
	result := &benchResult{
		t:   t,
		put: registry.GetOrRegister("put."+t.String(), metrics.NewTimer).(metrics.Timer),
		get: registry.GetOrRegister("get."+t.String(), metrics.NewTimer).(metrics.Timer),
	}

	getKey, iter := getKeys(t.String())
	defer iter(func(k string) { kvStore.Remove(k) })

	raw := benchValue(t)
	buf := make([]byte, len(raw))
	if t == kvstore.TypeStr && kvstore.Supports(kvStore, kvstore.FeatureStringTerminator) {
		buf = make([]byte, len(raw)+1)
	}

	for i := 0; i < benchIterations; i++ {
		key := getKey(i)
		var n int
		result.put.Time(func() { n = kvstore.WriteTyped(kvStore, key, t, raw) })
		if n == 0 {
			result.failures++
			continue
		}
		result.get.Time(func() { n = kvstore.ReadTyped(kvStore, key, t, buf) })
		if n == 0 {
			result.failures++
		}
	}
	return result
}

// benchValue returns a value of type t without NUL bytes
func benchValue(t kvstore.Type) []byte {
	size := t.Size()
	if !t.IsScalar() {
		size = benchBlobSize
	}
	raw := make([]byte, size)
	for i := range raw {
		raw[i] = byte('a' + i%26)
	}
	return raw
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, benchKeySpread)
	for i := 0; i < benchKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s%s_%d", benchKeyPrefix, prefix, i)
	}

	getKey := func(i int) string {
		return keys[i%benchKeySpread]
	}

	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printBenchResult prints the timers of one type in a formatted way
func printBenchResult(w io.Writer, r *benchResult) {
	for _, row := range []struct {
		op    string
		timer metrics.Timer
	}{{"put", r.put}, {"get", r.get}} {
		snap := row.timer.Snapshot()
		if snap.Count() == 0 {
			fmt.Fprintf(w, "%-6s%-5sno successful operations\n", r.t, row.op)
			continue
		}
		ps := snap.Percentiles([]float64{0.5, 0.99})
		fmt.Fprintf(w, "%-6s%-5smean %-12s p50 %-12s p99 %-12s n=%d\n",
			r.t, row.op, time.Duration(snap.Mean()), time.Duration(ps[0]), time.Duration(ps[1]), snap.Count())
	}
	if r.failures > 0 {
		fmt.Fprintf(w, "%-6s%d failed operations\n", r.t, r.failures)
	}
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []*benchResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Type", "Op", "Count", "MeanNs", "P50Ns", "P99Ns", "Failures",
		"Backend", "Iterations", "Keys", "BlobSize",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, r := range results {
		for op, timer := range map[string]metrics.Timer{"put": r.put, "get": r.get} {
			snap := timer.Snapshot()
			ps := snap.Percentiles([]float64{0.5, 0.99})
			row := []string{
				r.t.String(),
				op,
				strconv.FormatInt(snap.Count(), 10),
				fmt.Sprintf("%.0f", snap.Mean()),
				fmt.Sprintf("%.0f", ps[0]),
				fmt.Sprintf("%.0f", ps[1]),
				strconv.Itoa(r.failures),
				viper.GetString("backend"),
				strconv.Itoa(benchIterations),
				strconv.Itoa(benchKeySpread),
				strconv.Itoa(benchBlobSize),
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write row for %s %s: %v", r.t, op, err)
			}
		}
	}

	return writer.Error()
}
