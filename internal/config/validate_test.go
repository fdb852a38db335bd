package config

import (
	"strings"
	"testing"

	"exportd/internal/mapper"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validConfig() Config {
	c := Config{
		DB:      DBConfig{DSN: "postgresql://localhost/exportd"},
		Dataset: DatasetConfig{Table: "public.orders", OrderKey: "id"},
		Bench: BenchConfig{Columns: []mapper.ColumnMapping{
			{Source: "id", Target: "id"},
			{Source: "name", Target: "name"},
		}},
	}
	c.ApplyDefaults()
	return c
}

func TestValidateCleanConfig(t *testing.T) {
	issues := Validate(validConfig())
	if len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}
}

func TestValidateMissingDSN(t *testing.T) {
	c := validConfig()
	c.DB.DSN = "  "
	issues := Validate(c)
	if !hasIssue(t, issues, SeverityError, "db.dsn", "must not be empty") {
		t.Fatalf("issues = %v", issues)
	}
}

func TestValidateDataset(t *testing.T) {
	c := validConfig()
	c.Dataset = DatasetConfig{}
	issues := Validate(c)
	if !hasIssue(t, issues, SeverityError, "dataset.table", "must not be empty") {
		t.Fatalf("issues = %v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "dataset.order_key", "stable row order") {
		t.Fatalf("issues = %v", issues)
	}
}

func TestValidatePoolSize(t *testing.T) {
	c := validConfig()
	c.DB.PoolSize = 0
	if issues := Validate(c); !hasIssue(t, issues, SeverityError, "db.pool_size", "at least one") {
		t.Fatalf("issues = %v", issues)
	}
	c.DB.PoolSize = 1
	if issues := Validate(c); !hasIssue(t, issues, SeverityWarning, "db.pool_size", "serializes") {
		t.Fatalf("issues = %v", Validate(c))
	}
}

func TestValidateBatchSizes(t *testing.T) {
	c := validConfig()
	c.Export.TextBatchSize = -1
	if issues := Validate(c); !hasIssue(t, issues, SeverityError, "export.text_batch_size", "positive") {
		t.Fatalf("issues = %v", issues)
	}

	c = validConfig()
	c.Export.BinaryBatchSize = c.Export.TextBatchSize * 2
	if issues := Validate(c); !hasIssue(t, issues, SeverityWarning, "export.binary_batch_size", "exceeds") {
		t.Fatalf("issues = %v", issues)
	}
}

func TestValidateBenchColumns(t *testing.T) {
	c := validConfig()
	c.Bench.Columns = nil
	if issues := Validate(c); !hasIssue(t, issues, SeverityError, "bench.columns", "must not be empty") {
		t.Fatalf("issues = %v", issues)
	}

	c = validConfig()
	c.Bench.Columns = []mapper.ColumnMapping{
		{Source: "a", Target: "x"},
		{Source: "b", Target: "x"},
	}
	if issues := Validate(c); !hasIssue(t, issues, SeverityError, "bench.columns", "duplicate") {
		t.Fatalf("issues = %v", issues)
	}
}

func TestValidateMetricsBackend(t *testing.T) {
	c := validConfig()
	c.Metrics.Backend = "statsd"
	if issues := Validate(c); !hasIssue(t, issues, SeverityWarning, "metrics.backend", "unknown") {
		t.Fatalf("issues = %v", issues)
	}
}
