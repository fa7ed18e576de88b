package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/lib/pq"
)

// PGConfig holds configuration for the Postgres audit sink.
type PGConfig struct {
	DSN       string
	Table     string
	BatchSize int
	FlushMS   int
	UseCopy   bool
}

// PGSink batches audit records into a JSONB table. Records accumulate until
// the batch fills or the flush timer fires; a failed flush keeps the batch
// for the next attempt.
type PGSink struct {
	config PGConfig
	db     *sql.DB

	mu    sync.Mutex
	batch []Record

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPGSinkFromEnv creates a PGSink from PG_* environment variables.
func NewPGSinkFromEnv() *PGSink {
	return &PGSink{
		config: PGConfig{
			DSN:       os.Getenv("PG_DSN"),
			Table:     getEnvOr("PG_TABLE", "verifications_json"),
			BatchSize: getIntEnv("PG_BATCH_SIZE", 500),
			FlushMS:   getIntEnv("PG_FLUSH_MS", 500),
			UseCopy:   getBoolEnv("PG_COPY", true),
		},
	}
}

// NewPGSink creates a PGSink with an explicit DSN and default batching.
func NewPGSink(dsn string) *PGSink {
	return &PGSink{
		config: PGConfig{
			DSN:       dsn,
			Table:     "verifications_json",
			BatchSize: 500,
			FlushMS:   500,
			UseCopy:   true,
		},
	}
}

func (s *PGSink) Name() string { return "postgres" }

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateTableName rejects anything that could smuggle SQL through the
// identifier position, which cannot be parameterized.
func validateTableName(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

func (s *PGSink) Start(ctx context.Context) error {
	if err := validateTableName(s.config.Table); err != nil {
		return err
	}

	db, err := sql.Open("postgres", s.config.DSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	s.db = db

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.batch = make([]Record, 0, s.config.BatchSize)
	s.done = make(chan struct{})

	if err := s.ensureSchema(); err != nil {
		s.cancel()
		db.Close()
		return err
	}

	go s.flushLoop()
	return nil
}

func (s *PGSink) ensureSchema() error {
	table := s.config.Table
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			doc JSONB NOT NULL
		)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_ts ON %s (ts)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_gin ON %s USING GIN (doc)`, table, table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(s.ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PGSink) Enqueue(r Record) error {
	s.mu.Lock()
	s.batch = append(s.batch, r)
	full := len(s.batch) >= s.config.BatchSize
	s.mu.Unlock()

	if full {
		s.flushBatch(s.ctx)
	}
	return nil
}

func (s *PGSink) flushLoop() {
	defer close(s.done)
	ticker := time.NewTicker(time.Duration(s.config.FlushMS) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			// s.ctx is already canceled here; the last flush runs on a
			// fresh context so buffered records survive shutdown.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.flushBatch(ctx)
			cancel()
			return
		case <-ticker.C:
			s.flushBatch(s.ctx)
		}
	}
}

func (s *PGSink) flushBatch(ctx context.Context) {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.batch
	s.batch = make([]Record, 0, s.config.BatchSize)
	s.mu.Unlock()

	var err error
	if s.config.UseCopy {
		err = s.flushWithCopy(ctx, batch)
	} else {
		err = s.flushWithInsert(ctx, batch)
	}
	if err != nil {
		log.Printf("audit: postgres flush failed, retaining %d records: %v", len(batch), err)
		s.mu.Lock()
		s.batch = append(batch, s.batch...)
		s.mu.Unlock()
	}
}

func (s *PGSink) flushWithInsert(ctx context.Context, batch []Record) error {
	stmt := fmt.Sprintf(
		`INSERT INTO %s (id, ts, doc) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		s.config.Table,
	)
	for _, r := range batch {
		doc, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, stmt, r.ID, r.TS, doc); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}
	return nil
}

func (s *PGSink) flushWithCopy(ctx context.Context, batch []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin copy tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.config.Table, "id", "ts", "doc"))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare copy: %w", err)
	}

	for _, r := range batch {
		doc, err := json.Marshal(r)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("encode record: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.TS, string(doc)); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("copy record: %w", err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		tx.Rollback()
		return fmt.Errorf("finish copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("close copy: %w", err)
	}
	return tx.Commit()
}

func (s *PGSink) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func getEnvOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return def
}
