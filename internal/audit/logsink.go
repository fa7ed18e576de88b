package audit

import (
	"context"
	"encoding/json"
	"log"
)

// LogSink writes each record as one NDJSON line through the process logger.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Start(ctx context.Context) error { return nil }

func (s *LogSink) Enqueue(r Record) error {
	b, _ := json.Marshal(r)
	log.Printf("audit %s", string(b))
	return nil
}

func (s *LogSink) Close() error { return nil }
