// Package bench measures the export pipeline end to end: for every output
// format it runs a full export of the reference dataset into a private temp
// file while sampling process memory, and reports wall time, output size and
// peak resident memory per format.
package bench

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"exportd/internal/job"
	"exportd/internal/mapper"
	"exportd/internal/rowsource"
	"exportd/internal/sink"
)

// Result is one format's measurement. A failed run carries its error message
// and zeroed metrics; it never hides behind a partial number.
type Result struct {
	Format          string  `json:"format"`
	DurationSeconds float64 `json:"duration_seconds"`
	FileSizeBytes   int64   `json:"file_size_bytes"`
	PeakMemoryMB    float64 `json:"peak_memory_mb"`
	Checksum        string  `json:"checksum,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Report is the benchmark response: the reference dataset's fixed row count
// plus one Result per format, in the fixed format order.
type Report struct {
	TotalRows int64    `json:"total_rows"`
	Results   []Result `json:"results"`
}

// RowCountFunc reports the reference dataset's total row count.
type RowCountFunc func(ctx context.Context) (int64, error)

// PoolRowCount counts rows of the dataset table over the shared pool.
func PoolRowCount(pool *pgxpool.Pool, table string) RowCountFunc {
	return func(ctx context.Context) (int64, error) {
		var n int64
		if err := pool.QueryRow(ctx, rowsource.CountQuery(table)).Scan(&n); err != nil {
			return 0, fmt.Errorf("count rows: %w", err)
		}
		return n, nil
	}
}

var formats = []job.Format{job.FormatCSV, job.FormatJSON, job.FormatXML, job.FormatParquet}

// Harness drives the benchmark. It shares the coordinator's source seam, so
// each run exercises exactly the pipeline a client download would.
type Harness struct {
	open    job.OpenSourceFunc
	cols    []mapper.ColumnMapping
	count   RowCountFunc
	cfg     job.Config
	tempDir string
}

func NewHarness(open job.OpenSourceFunc, cols []mapper.ColumnMapping, count RowCountFunc, cfg job.Config) *Harness {
	return &Harness{
		open:    open,
		cols:    cols,
		count:   count,
		cfg:     cfg,
		tempDir: os.TempDir(),
	}
}

// Run executes all four format runs concurrently, each on its own pooled
// connection and temp file, and joins them at a single point. Failure domains
// are independent: one format's error lands in its own Result and the other
// measurements proceed.
func (h *Harness) Run(ctx context.Context) (Report, error) {
	total, err := h.count(ctx)
	if err != nil {
		return Report{}, err
	}

	results := make([]Result, len(formats))
	var g errgroup.Group
	for i, f := range formats {
		g.Go(func() error {
			results[i] = h.runOne(ctx, f)
			return nil
		})
	}
	g.Wait()

	return Report{TotalRows: total, Results: results}, nil
}

// runOne measures one format. The temp file is removed on success and
// failure alike.
func (h *Harness) runOne(ctx context.Context, format job.Format) Result {
	res := Result{Format: string(format)}

	coord := job.NewCoordinator(h.open, h.cfg)
	j, err := coord.Create(string(format), "", h.cols)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	f, err := os.CreateTemp(h.tempDir, "exportd-bench-*."+format.Ext())
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer func() {
		f.Close()
		os.Remove(f.Name())
	}()

	hasher := xxh3.New()
	cw := sink.NewCountingWriter(io.MultiWriter(f, hasher))

	s := startSampler(100 * time.Millisecond)
	start := time.Now()
	execErr := coord.Execute(ctx, j.ID, cw)
	elapsed := time.Since(start)
	peak := s.stop()

	res.DurationSeconds = elapsed.Seconds()
	res.PeakMemoryMB = float64(peak) / (1 << 20)
	if execErr != nil {
		res.Error = execErr.Error()
		return res
	}
	res.FileSizeBytes = cw.Count()
	res.Checksum = fmt.Sprintf("%016x", hasher.Sum64())
	return res
}
