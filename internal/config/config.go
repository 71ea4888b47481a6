// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import "context"

// Store backend names accepted by StoreBackend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// InspectionMS is the inspection countdown in milliseconds; 0
	// disables the inspection phase entirely.
	InspectionMS int64 `koanf:"inspection_ms"`

	// HoldToStartMS is the minimum press duration before a release
	// fires a start toggle.
	HoldToStartMS int64 `koanf:"hold_to_start_ms"`

	// EventQueueSize bounds the in-memory input event queue.
	EventQueueSize int `koanf:"event_queue_size"`

	// DedupeSize sets the size of the event idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// AverageWindows are the trimmed-mean (AoN) window sizes.
	AverageWindows []int `koanf:"average_windows"`

	// MeanOfAverageWindows are the X values for mean-of-X-of-Ao5.
	MeanOfAverageWindows []int `koanf:"mean_of_average_windows"`

	// MaxListLimit caps GET /attempts?limit.
	MaxListLimit int `koanf:"max_list_limit"`

	// StoreBackend selects the history store: "memory" or "sqlite".
	StoreBackend string `koanf:"store_backend"`

	// SQLitePath is the database path for the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	// SnapshotPath, when set, is where the history snapshot document is
	// loaded from on start and saved to on shutdown.
	SnapshotPath string `koanf:"snapshot_path"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention; it is reserved for future use
// and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		InspectionMS:         15_000,
		HoldToStartMS:        300,
		EventQueueSize:       4096,
		DedupeSize:           50_000,
		AverageWindows:       []int{5, 12, 50, 100, 1000},
		MeanOfAverageWindows: []int{3, 12},
		MaxListLimit:         1000,
		StoreBackend:         BackendMemory,
		SQLitePath:           "klepsydra.db",
		SnapshotPath:         "",
	}
}
