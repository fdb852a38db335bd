// Package config defines the canonical, JSON-serializable configuration model
// for the export service. It is intentionally small and explicit so a config
// can be loaded from disk and passed through the program without additional
// glue code.
//
// Example (trimmed):
//
//	{
//	  "listen":  { "addr": ":8080" },
//	  "db":      { "dsn": "postgresql://...", "pool_size": 5 },
//	  "dataset": { "table": "public.orders", "order_key": "id" },
//	  "export":  { "text_batch_size": 10000, "timeout_seconds": 300 },
//	  "bench":   { "columns": [ { "source": "id", "target": "id" } ] }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"exportd/internal/mapper"
)

// Config is the top-level object decoded from a config file.
type Config struct {
	Listen  ListenConfig  `json:"listen"`
	DB      DBConfig      `json:"db"`
	Dataset DatasetConfig `json:"dataset"`
	Export  ExportConfig  `json:"export"`
	Bench   BenchConfig   `json:"bench"`
	Metrics MetricsConfig `json:"metrics"`
}

// ListenConfig controls the HTTP listener.
type ListenConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr"`
}

// DBConfig configures the shared connection pool.
type DBConfig struct {
	// DSN is the connection string for pgx/pgxpool (e.g., postgresql://...).
	DSN string `json:"dsn"`

	// PoolSize caps concurrent connections. It is also the admission bound on
	// concurrently executing exports: when all connections are busy, further
	// downloads wait.
	PoolSize int `json:"pool_size"`
}

// DatasetConfig identifies the exported dataset.
type DatasetConfig struct {
	// Table is the fully qualified table name (e.g., "public.orders").
	Table string `json:"table"`

	// OrderKey names the immutable monotonic column that fixes row order.
	// Every export of the dataset is ordered by this key.
	OrderKey string `json:"order_key"`
}

// ExportConfig tunes pipeline execution.
type ExportConfig struct {
	// TextBatchSize is the cursor fetch size for csv/json/xml exports.
	TextBatchSize int `json:"text_batch_size"`

	// BinaryBatchSize is the cursor fetch size for parquet exports. Each batch
	// becomes one row group, so this bounds per-group buffering.
	BinaryBatchSize int `json:"binary_batch_size"`

	// TimeoutSeconds caps one export execution. Zero disables the cap.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// BenchConfig configures the benchmark harness.
type BenchConfig struct {
	// Columns is the fixed reference column set every benchmark run exports.
	Columns []mapper.ColumnMapping `json:"columns"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	// Backend is "prometheus" or "none".
	Backend string `json:"backend"`
}

// Defaults applied by ApplyDefaults for absent fields.
const (
	DefaultAddr            = ":8080"
	DefaultPoolSize        = 5
	DefaultTextBatchSize   = 10_000
	DefaultBinaryBatchSize = 1_000
	DefaultTimeoutSeconds  = 300
	DefaultMetricsBackend  = "none"
)

// ApplyDefaults fills zero-valued fields with their defaults. It never
// overrides an explicitly configured value.
func (c *Config) ApplyDefaults() {
	if c.Listen.Addr == "" {
		c.Listen.Addr = DefaultAddr
	}
	if c.DB.PoolSize == 0 {
		c.DB.PoolSize = DefaultPoolSize
	}
	if c.Export.TextBatchSize == 0 {
		c.Export.TextBatchSize = DefaultTextBatchSize
	}
	if c.Export.BinaryBatchSize == 0 {
		c.Export.BinaryBatchSize = DefaultBinaryBatchSize
	}
	if c.Export.TimeoutSeconds == 0 {
		c.Export.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Metrics.Backend == "" {
		c.Metrics.Backend = DefaultMetricsBackend
	}
}

// Load decodes a config file and applies defaults. Unknown fields are
// rejected so typos surface at startup instead of silently configuring
// nothing.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var c Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	c.ApplyDefaults()
	return c, nil
}
