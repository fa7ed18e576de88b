package audit

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestNewRecord(t *testing.T) {
	r := NewRecord("challenge")

	if r.ID == "" {
		t.Error("record must carry an id")
	}
	if r.Outcome != "challenge" {
		t.Errorf("Outcome = %q, want challenge", r.Outcome)
	}
	if time.Since(r.TS) > time.Minute {
		t.Errorf("TS = %v, want recent", r.TS)
	}
	if other := NewRecord("challenge"); other.ID == r.ID {
		t.Error("record ids must be unique")
	}
}

func TestRecordJSONShape(t *testing.T) {
	r := NewRecord("denied")
	r.SessionID = "abc"
	r.Score = 82.5
	r.Indicators = []string{"blacklisted_user_agent"}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "ts", "session_id", "score", "indicators", "outcome"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("serialized record missing %q", key)
		}
	}
	if _, ok := decoded["challenge_id"]; ok {
		t.Error("empty challenge_id should be omitted")
	}
}

func TestLogSink(t *testing.T) {
	s := NewLogSink()
	if s.Name() != "log" {
		t.Errorf("Name() = %q, want log", s.Name())
	}
	if err := s.Start(context.Background()); err != nil {
		t.Errorf("Start: %v", err)
	}
	if err := s.Enqueue(NewRecord("success")); err != nil {
		t.Errorf("Enqueue: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewKafkaSinkFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_ACKS"} {
			os.Unsetenv(key)
		}

		s := NewKafkaSinkFromEnv()
		if s.Name() != "kafka" {
			t.Errorf("Name() = %q, want kafka", s.Name())
		}
		if len(s.config.Brokers) != 1 || s.config.Brokers[0] != "localhost:9092" {
			t.Errorf("Brokers = %v, want [localhost:9092]", s.config.Brokers)
		}
		if s.config.Topic != "gate.verifications" {
			t.Errorf("Topic = %q, want gate.verifications", s.config.Topic)
		}
		if s.config.Acks != "all" {
			t.Errorf("Acks = %q, want all", s.config.Acks)
		}
	})

	t.Run("splits and trims broker list", func(t *testing.T) {
		os.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
		defer os.Unsetenv("KAFKA_BROKERS")

		s := NewKafkaSinkFromEnv()
		if len(s.config.Brokers) != 2 || s.config.Brokers[1] != "broker2:9092" {
			t.Errorf("Brokers = %v", s.config.Brokers)
		}
	})

	t.Run("enqueue before start fails", func(t *testing.T) {
		s := NewKafkaSinkFromEnv()
		if err := s.Enqueue(NewRecord("success")); err == nil {
			t.Error("Enqueue should fail before Start")
		}
	})

	t.Run("close without start is a no-op", func(t *testing.T) {
		s := NewKafkaSinkFromEnv()
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
}
