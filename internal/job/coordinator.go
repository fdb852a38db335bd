package job

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"exportd/internal/mapper"
	"exportd/internal/metrics"
	"exportd/internal/rowsource"
	"exportd/internal/sink"
	"exportd/internal/writer"
)

// RowSource is the coordinator's view of an open cursor. Satisfied by
// *rowsource.PooledCursor in production and by fakes in tests.
type RowSource interface {
	FetchNext(ctx context.Context) ([]rowsource.Row, error)
	Close(ctx context.Context, cause error) error
}

// OpenSourceFunc abstracts cursor creation. In production it acquires a
// pooled connection and declares a cursor over the mapping's projection; in
// tests a fake can feed in-memory batches through the whole pipeline.
type OpenSourceFunc func(ctx context.Context, cols []mapper.ColumnMapping, batchSize int) (RowSource, error)

// Config tunes a Coordinator. Zero values select the defaults.
type Config struct {
	TextBatchSize   int           // rows per fetch for csv/json/xml
	BinaryBatchSize int           // rows per fetch for parquet (bounds row-group memory)
	Timeout         time.Duration // per-execution cap; 0 means none
}

// Coordinator owns the job registry and runs one-shot pipeline executions:
// row source → column mapper → format writer → optional gzip → sink.
type Coordinator struct {
	reg     *Registry
	open    OpenSourceFunc
	cfg     Config
	tempDir string
}

func NewCoordinator(open OpenSourceFunc, cfg Config) *Coordinator {
	if cfg.TextBatchSize <= 0 {
		cfg.TextBatchSize = rowsource.DefaultBatchSize
	}
	if cfg.BinaryBatchSize <= 0 {
		cfg.BinaryBatchSize = rowsource.BinaryBatchSize
	}
	return &Coordinator{
		reg:     NewRegistry(),
		open:    open,
		cfg:     cfg,
		tempDir: os.TempDir(),
	}
}

// Create validates the request, assigns identity, and registers a pending
// job. No I/O against the dataset happens here.
func (c *Coordinator) Create(format, compression string, cols []mapper.ColumnMapping) (Job, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return Job{}, err
	}
	cols = mapper.Normalize(cols)
	if err := mapper.Validate(cols); err != nil {
		return Job{}, fmt.Errorf("%w: %s", ErrInvalidColumns, err)
	}
	comp, err := ParseCompression(compression)
	if err != nil {
		return Job{}, err
	}
	if comp == CompressionGzip && f == FormatParquet {
		return Job{}, ErrUnsupportedCompression
	}

	j := &Job{
		ID:          uuid.NewString(),
		Format:      f,
		Columns:     cols,
		Compression: comp,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	c.reg.add(j)
	return *j, nil
}

// Job looks up a job snapshot by id.
func (c *Coordinator) Job(id string) (Job, bool) { return c.reg.Get(id) }

// Execute runs the pipeline for a pending job, streaming output bytes to
// out. At most one execution is permitted per job: a second call is rejected
// with ErrNotPending once the first has left pending. The job reaches exactly
// one terminal state and the pooled connection is released on every path.
func (c *Coordinator) Execute(ctx context.Context, id string, out io.Writer) error {
	j, ok := c.reg.Get(id)
	if !ok {
		return ErrNotFound
	}
	if err := c.reg.markProcessing(id); err != nil {
		return err
	}

	start := time.Now()
	cw := sink.NewCountingWriter(out)
	runErr := c.run(ctx, j, cw)
	c.reg.finish(id, runErr)

	metrics.RecordExport(string(j.Format), runErr, time.Since(start))
	metrics.RecordBytes(string(j.Format), cw.Count())
	if runErr != nil {
		log.Printf("job %s: export failed after %d bytes: %v", id, cw.Count(), runErr)
	}
	return runErr
}

func (c *Coordinator) run(ctx context.Context, j Job, out io.Writer) error {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	batchSize := c.cfg.TextBatchSize
	if j.Format.FileBased() {
		batchSize = c.cfg.BinaryBatchSize
	}

	src, err := c.open(ctx, j.Columns, batchSize)
	if err != nil {
		return err
	}

	var runErr error
	defer func() {
		// Commit or roll back after the sink has accepted everything. The
		// close context must survive cancellation so a rollback can still
		// reach the database.
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := src.Close(closeCtx, runErr); err != nil && runErr == nil {
			runErr = err
		}
	}()

	if j.Format.FileBased() {
		runErr = c.runScratch(ctx, j, src, out)
	} else {
		runErr = c.stream(ctx, j, src, out)
	}
	return runErr
}

// stream drives the fetch → map → write loop directly into the sink,
// inserting the gzip stage when requested. The loop never fetches the next
// batch before the sink has accepted the previous one: the sink is the rate
// limiter and peak memory stays around O(batchSize).
func (c *Coordinator) stream(ctx context.Context, j Job, src RowSource, out io.Writer) error {
	dst := out
	var gz io.WriteCloser
	if j.Compression == CompressionGzip {
		gz = sink.NewGzip(out)
		dst = gz
	}

	if err := c.pump(ctx, j, src, dst); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("flush gzip: %w", err)
		}
	}
	return nil
}

// runScratch writes a file-based format to a private scratch file, then
// streams the file's bytes to the sink. The scratch file is deleted on both
// success and failure.
func (c *Coordinator) runScratch(ctx context.Context, j Job, src RowSource, out io.Writer) error {
	f, err := os.CreateTemp(c.tempDir, "exportd-*."+j.Format.Ext())
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}
	defer func() {
		f.Close()
		if err := os.Remove(f.Name()); err != nil {
			log.Printf("job %s: remove scratch file: %v", j.ID, err)
		}
	}()

	if err := c.pump(ctx, j, src, f); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind scratch file: %w", err)
	}
	if _, err := io.Copy(out, f); err != nil {
		return fmt.Errorf("stream scratch file: %w", err)
	}
	return nil
}

// pump is the shared serializer loop.
func (c *Coordinator) pump(ctx context.Context, j Job, src RowSource, dst io.Writer) error {
	w, err := newWriter(j.Format, mapper.Targets(j.Columns))
	if err != nil {
		return err
	}
	if err := w.WriteHeader(dst); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	recs := make([]mapper.Record, 0, 1024)
	for {
		rows, err := src.FetchNext(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}
		recs = recs[:0]
		for _, row := range rows {
			recs = append(recs, mapper.Apply(row, j.Columns))
		}
		if err := w.WriteBatch(dst, recs); err != nil {
			return err
		}
		metrics.RecordRows(string(j.Format), int64(len(rows)))
		metrics.RecordBatches(string(j.Format), 1)
	}
	if err := w.Finalize(dst); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	return nil
}

func newWriter(f Format, targets []string) (writer.Writer, error) {
	switch f {
	case FormatCSV:
		return writer.NewCSV(targets), nil
	case FormatJSON:
		return writer.NewJSON(targets), nil
	case FormatXML:
		return writer.NewXML(targets), nil
	case FormatParquet:
		return writer.NewParquet(targets), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, f)
}
