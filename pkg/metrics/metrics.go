// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-fieldseal.
//
// go-fieldseal is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for fieldseal
// keystore operations. It exposes operation counters, latency histograms,
// error counters, and per-kind key-count gauges.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all fieldseal metrics
	Namespace = "fieldseal"

	// Label names
	LabelOperation = "operation"
	LabelKeyKind   = "key_kind"
	LabelStatus    = "status"
	LabelErrorType = "error_type"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpGenerate = "generate"
	OpEncrypt  = "encrypt"
	OpDecrypt  = "decrypt"
	OpDerive   = "derive"
	OpExport   = "export"
	OpImport   = "import"
	OpDelete   = "delete"
	OpLoad     = "load"
	OpSave     = "save"

	// Key kinds
	KindSymmetric    = "symmetric"
	KindPassword     = "password"
	KindRecipient    = "recipient"
	KindKeyAgreement = "key_agreement"
	KindPerOrigin    = "per_origin"
)

var (
	// OperationsTotal tracks the total number of keystore operations by
	// operation, key kind, and status. Use RecordOperation to increment
	// this counter with the appropriate labels.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of keystore operations by operation, key kind, and status",
		},
		[]string{LabelOperation, LabelKeyKind, LabelStatus},
	)

	// OperationDuration tracks the duration of keystore operations in seconds.
	// Buckets are optimized for typical cryptographic operation latencies.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of keystore operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{LabelOperation, LabelKeyKind},
	)

	// ErrorsTotal tracks the total number of errors by operation, key kind,
	// and error type. Error types should be specific (e.g., "key_missing",
	// "key_disallowed", "invalid_ciphertext", "parameter").
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation, key kind, and error type",
		},
		[]string{LabelOperation, LabelKeyKind, LabelErrorType},
	)

	// KeysTotal tracks the number of stored keys per kind.
	KeysTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "keys_total",
			Help:      "Number of stored keys per kind",
		},
		[]string{LabelKeyKind},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a keystore operation with its duration and status.
// This is the primary function for tracking operational metrics.
//
// Parameters:
//   - operation: The operation name (use Op* constants)
//   - keyKind: The key kind involved (use Kind* constants)
//   - status: The operation status (use Status* constants)
//   - duration: The operation duration in seconds
func RecordOperation(operation, keyKind, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, keyKind, status).Inc()
	OperationDuration.WithLabelValues(operation, keyKind).Observe(duration)
}

// RecordError records an error event with context about where it occurred.
//
// Parameters:
//   - operation: The operation during which the error occurred (use Op* constants)
//   - keyKind: The key kind involved (use Kind* constants)
//   - errorType: A specific error type identifier (e.g., "key_missing")
func RecordError(operation, keyKind, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, keyKind, errorType).Inc()
}

// SetKeysTotal sets the stored key count for a kind.
func SetKeysTotal(keyKind string, count float64) {
	if !enabled.Load() {
		return
	}
	KeysTotal.WithLabelValues(keyKind).Set(count)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
