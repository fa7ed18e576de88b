package metrics

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the Prometheus metrics for the verification gate.
type Metrics struct {
	// Counters
	Verifications   *prometheus.CounterVec
	ChallengeGrades *prometheus.CounterVec
	TokensIssued    *prometheus.CounterVec
	GateDecisions   *prometheus.CounterVec
	AuditErrors     *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec

	// Gauges
	ActiveChallenges prometheus.Gauge

	// Histograms
	HumanProbability prometheus.Histogram
	BotScore         prometheus.Histogram
	HTTPDuration     *prometheus.HistogramVec
}

// Config holds configuration for the metrics server.
type Config struct {
	Enabled bool
	Addr    string
}

// LoadConfig loads metrics configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Enabled: getBool("METRICS_ENABLED", false),
		Addr:    getOr("METRICS_ADDR", "127.0.0.1:9090"),
	}
}

// New creates and registers all gate metrics.
func New() *Metrics {
	m := &Metrics{
		Verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_verifications_total",
				Help: "Verification rounds by outcome (success, challenge, denied)",
			},
			[]string{"outcome"},
		),

		ChallengeGrades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_challenge_grades_total",
				Help: "Challenge grading attempts by result",
			},
			[]string{"result"},
		),

		TokensIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_tokens_issued_total",
				Help: "Verification tokens issued by path (score, challenge)",
			},
			[]string{"path"},
		),

		GateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_access_decisions_total",
				Help: "Access-gate middleware decisions (allow, redirect, deny)",
			},
			[]string{"decision"},
		),

		AuditErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_audit_errors_total",
				Help: "Errors writing to an audit sink",
			},
			[]string{"sink"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_http_requests_total",
				Help: "HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		ActiveChallenges: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gate_active_challenges",
				Help: "Current size of the active-challenge table",
			},
		),

		HumanProbability: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gate_human_probability",
				Help:    "Distribution of human-probability scores",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),

		BotScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gate_bot_score",
				Help:    "Distribution of bot-risk scores",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gate_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"endpoint", "method"},
		),
	}

	prometheus.MustRegister(
		m.Verifications,
		m.ChallengeGrades,
		m.TokensIssued,
		m.GateDecisions,
		m.AuditErrors,
		m.HTTPRequests,
		m.ActiveChallenges,
		m.HumanProbability,
		m.BotScore,
		m.HTTPDuration,
	)

	return m
}

// ObserveScore records the scalar from one scoring pass in the histogram for
// its mode.
func (m *Metrics) ObserveScore(mode string, value float64) {
	if m == nil {
		return
	}
	if mode == "botrisk" {
		m.BotScore.Observe(value)
		return
	}
	m.HumanProbability.Observe(value)
}

// Server is the standalone metrics HTTP server.
type Server struct {
	server *http.Server
	config Config
}

func NewServer(config Config) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:         config.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{server: srv, config: config}
}

// Start starts the metrics server in a separate goroutine.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		log.Printf("metrics: disabled (METRICS_ENABLED=false)")
		return nil
	}

	go func() {
		log.Printf("metrics: server listening on %s", s.config.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics: server error: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}
	log.Printf("metrics: shutting down server")
	return s.server.Shutdown(ctx)
}

func getOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return def
}
