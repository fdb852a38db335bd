// Package rowsource streams ordered query results out of Postgres in bounded
// batches using a server-side cursor.
//
// The design is pull-based: callers ask for the next batch and nothing is
// fetched until they do, so backpressure from a slow sink propagates
// structurally to the database instead of being assembled from ad hoc
// pause/resume calls. A cursor owns its transaction: the transaction exists
// only to scope the cursor, performs no writes, and needs no isolation above
// read committed.
package rowsource

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"exportd/internal/mapper"
	"exportd/internal/value"
)

// Row is one raw result row keyed by source column name.
type Row = map[string]value.Value

// DefaultBatchSize bounds one fetch round-trip for textual formats.
// BinaryBatchSize is smaller so one parquet row group stays cheap to buffer.
const (
	DefaultBatchSize = 10_000
	BinaryBatchSize  = 1_000
)

var cursorSeq atomic.Int64

// Cursor is a server-side NO SCROLL cursor over an ordered query, fetching
// up to batchSize rows per round-trip.
type Cursor struct {
	tx        pgx.Tx
	name      string
	batchSize int
	done      bool
	closed    bool
}

// Open begins a read-only transaction on conn and declares a cursor over
// query. The query must carry a stable ORDER BY; see BuildQuery.
func Open(ctx context.Context, conn *pgx.Conn, query string, batchSize int) (*Cursor, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batchSize must be > 0")
	}
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	name := fmt.Sprintf("exportd_c%d", cursorSeq.Add(1))
	if _, err := tx.Exec(ctx, "DECLARE "+name+" NO SCROLL CURSOR FOR "+query); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Printf("rowsource: rollback after declare failure: %v", rbErr)
		}
		return nil, fmt.Errorf("declare cursor: %w", err)
	}
	return &Cursor{tx: tx, name: name, batchSize: batchSize}, nil
}

// FetchNext returns the next batch, at most batchSize rows. A fetch that
// returns fewer rows than requested marks the cursor exhausted; subsequent
// calls return an empty batch.
func (c *Cursor) FetchNext(ctx context.Context) ([]Row, error) {
	if c.done || c.closed {
		return nil, nil
	}
	rows, err := c.tx.Query(ctx, fmt.Sprintf("FETCH FORWARD %d FROM %s", c.batchSize, c.name))
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer rows.Close()

	batch := make([]Row, 0, c.batchSize)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		batch = append(batch, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if len(batch) < c.batchSize {
		c.done = true
	}
	return batch, nil
}

// Close ends the transaction. With a nil cause the cursor is closed and the
// transaction committed; any cause triggers a rollback. Rollback failures are
// logged and suppressed so they never mask the original error.
func (c *Cursor) Close(ctx context.Context, cause error) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if cause != nil {
		if err := c.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			log.Printf("rowsource: rollback: %v (original error: %v)", err, cause)
		}
		return nil
	}
	if _, err := c.tx.Exec(ctx, "CLOSE "+c.name); err != nil {
		if rbErr := c.tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			log.Printf("rowsource: rollback: %v (original error: %v)", rbErr, err)
		}
		return fmt.Errorf("close cursor: %w", err)
	}
	if err := c.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// PoolSource opens cursors over a fixed dataset table using a shared
// connection pool. The pool size is the admission-control bound on concurrent
// dataset load; Open blocks until a connection is free.
type PoolSource struct {
	Pool     *pgxpool.Pool
	Table    string // possibly schema-qualified, e.g. "public.orders"
	OrderKey string // immutable monotonic key; fixes row order
}

// PooledCursor couples a Cursor with the pooled connection it runs on. The
// connection is held for the lifetime of the cursor only.
type PooledCursor struct {
	*Cursor
	conn *pgxpool.Conn
}

// Open acquires one pooled connection and declares a cursor over the
// projection of cols, ordered by the source's stable key.
func (s *PoolSource) Open(ctx context.Context, cols []mapper.ColumnMapping, batchSize int) (*PooledCursor, error) {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	cur, err := Open(ctx, conn.Conn(), BuildQuery(s.Table, cols, s.OrderKey), batchSize)
	if err != nil {
		conn.Release()
		return nil, err
	}
	return &PooledCursor{Cursor: cur, conn: conn}, nil
}

// Close ends the cursor's transaction and releases the connection on every
// path.
func (p *PooledCursor) Close(ctx context.Context, cause error) error {
	err := p.Cursor.Close(ctx, cause)
	p.conn.Release()
	return err
}

// BuildQuery renders the ordered projection query the cursor iterates.
// Ordering by a stable monotonic key is mandatory: it is the only guarantee
// that every export of the same dataset sees the same row order.
func BuildQuery(table string, cols []mapper.ColumnMapping, orderKey string) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		mapper.Projection(cols), pgFQN(table), pgIdent(orderKey))
}

// CountQuery renders the row-count query for a dataset table.
func CountQuery(table string) string {
	return "SELECT count(*) FROM " + pgFQN(table)
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.orders" to
// "public"."orders". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}
