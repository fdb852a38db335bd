// This file adds a lightweight linter/validator for Config values. It
// performs static checks over a decoded Config and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"exportd/internal/mapper"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block startup.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be
	// surfaced to users but may not necessarily block startup.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "db.dsn",
// "bench.columns[1].target"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is of error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static validation of a Config. It does not mutate the
// config; callers decide whether warnings are fatal.
func Validate(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Listen.Addr) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "listen.addr",
			Message:  "listen.addr must not be empty",
		})
	}

	issues = append(issues, validateDB(c.DB)...)
	issues = append(issues, validateDataset(c.Dataset)...)
	issues = append(issues, validateExport(c.Export)...)
	issues = append(issues, validateBench(c.Bench)...)
	issues = append(issues, validateMetrics(c.Metrics)...)

	return issues
}

func validateDB(db DBConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db.dsn",
			Message:  "db.dsn must not be empty",
		})
	}
	if db.PoolSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db.pool_size",
			Message:  fmt.Sprintf("pool_size=%d; at least one connection is required", db.PoolSize),
		})
	} else if db.PoolSize == 1 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "db.pool_size",
			Message:  "pool_size=1 serializes all exports and the benchmark; consider a larger pool",
		})
	}

	return issues
}

func validateDataset(d DatasetConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(d.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "dataset.table",
			Message:  "dataset.table must not be empty",
		})
	}
	if strings.TrimSpace(d.OrderKey) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "dataset.order_key",
			Message:  "dataset.order_key must not be empty; exports need a stable row order",
		})
	}

	return issues
}

func validateExport(e ExportConfig) []Issue {
	var issues []Issue

	if e.TextBatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.text_batch_size",
			Message:  "text_batch_size must be positive",
		})
	}
	if e.BinaryBatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.binary_batch_size",
			Message:  "binary_batch_size must be positive",
		})
	} else if e.BinaryBatchSize > e.TextBatchSize && e.TextBatchSize > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "export.binary_batch_size",
			Message:  "binary_batch_size exceeds text_batch_size; parquet row groups will buffer more rows than text exports",
		})
	}
	if e.TimeoutSeconds < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.timeout_seconds",
			Message:  "timeout_seconds must not be negative",
		})
	}

	return issues
}

func validateBench(b BenchConfig) []Issue {
	var issues []Issue

	if len(b.Columns) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "bench.columns",
			Message:  "bench.columns must not be empty; the benchmark needs a reference column set",
		})
		return issues
	}
	if err := mapper.Validate(mapper.Normalize(b.Columns)); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "bench.columns",
			Message:  err.Error(),
		})
	}

	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	var issues []Issue

	known := map[string]struct{}{
		"none":       {},
		"prometheus": {},
	}
	if _, ok := known[m.Backend]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; falling back to none", m.Backend),
		})
	}

	return issues
}
