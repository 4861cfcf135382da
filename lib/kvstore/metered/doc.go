// Package metered wraps any kvstore backend and records its calls with
// VictoriaMetrics/metrics:
//
//	kvstore_ops_total{backend,op,result}      counter, result is ok or fail
//	kvstore_op_duration_seconds{backend,op}   histogram
//
// The wrapper reports exactly the features of the wrapped backend, so the
// kvstore dispatch helpers pick the same code path with or without it.
// Series live in the package Set and are exposed with WritePrometheus.
package metered
