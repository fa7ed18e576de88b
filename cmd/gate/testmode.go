package main

import (
	"log"
	"time"

	"github.com/google/uuid"

	"revinar.io/go.gate/internal/audit"
)

// generateTestRecords creates sample verification outcomes for exercising
// the configured audit sinks end to end.
func generateTestRecords() []audit.Record {
	now := time.Now().UTC()

	return []audit.Record{
		{
			ID:        uuid.New().String(),
			TS:        now,
			SessionID: "session-" + uuid.New().String()[:8],
			IP:        "203.0.113.42",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			Mode:      "human",
			Score:     0.85,
			Outcome:   "success",
		},
		{
			ID:          uuid.New().String(),
			TS:          now.Add(1 * time.Second),
			SessionID:   "session-" + uuid.New().String()[:8],
			IP:          "198.51.100.7",
			UserAgent:   "python-requests/2.31",
			Mode:        "botrisk",
			Score:       85.5,
			Indicators:  []string{"blacklisted_user_agent", "insufficient_mouse_activity", "missing_webgl"},
			Outcome:     "challenge",
			ChallengeID: "9f86d081884c7d65",
		},
		{
			ID:         uuid.New().String(),
			TS:         now.Add(2 * time.Second),
			IP:         "198.51.100.7",
			UserAgent:  "python-requests/2.31",
			Mode:       "botrisk",
			Outcome:    "incorrect",
			Indicators: []string{},
		},
		{
			ID:        uuid.New().String(),
			TS:        now.Add(3 * time.Second),
			SessionID: "session-" + uuid.New().String()[:8],
			IP:        "192.0.2.15",
			UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
			Mode:      "human",
			Score:     0.95,
			Outcome:   "success",
		},
		{
			ID:        uuid.New().String(),
			TS:        now.Add(4 * time.Second),
			IP:        "203.0.113.99",
			UserAgent: "curl/8.5.0",
			Mode:      "botrisk",
			Score:     92,
			Outcome:   "deny",
		},
	}
}

// runTestMode pushes sample records through the audit fan-out and exits.
func runTestMode(emit func(audit.Record)) {
	log.Println("test mode: sending sample audit records")

	records := generateTestRecords()
	for i, r := range records {
		log.Printf("test mode: record %d/%d outcome=%s mode=%s", i+1, len(records), r.Outcome, r.Mode)
		emit(r)
		if i < len(records)-1 {
			time.Sleep(200 * time.Millisecond)
		}
	}

	log.Println("test mode: done, check your sinks")
}
