package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"revinar.io/go.gate/internal/audit"
	"revinar.io/go.gate/internal/challenge"
	"revinar.io/go.gate/internal/httpx"
	"revinar.io/go.gate/internal/metrics"
	"revinar.io/go.gate/internal/scoring"
	"revinar.io/go.gate/internal/session"
	"revinar.io/go.gate/internal/token"
	"revinar.io/go.gate/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	codec, err := token.NewCodec(cfg.Secret)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	sinks := buildSinks(cfg)
	for _, s := range sinks {
		if err := s.Start(ctx); err != nil {
			log.Printf("sink %s failed to start: %v", s.Name(), err)
		}
	}

	// Audit failures are logged and counted, never surfaced to the client.
	emit := func(r audit.Record) {
		for _, s := range sinks {
			if err := s.Enqueue(r); err != nil {
				m.AuditErrors.WithLabelValues(s.Name()).Inc()
				log.Printf("audit: enqueue to %s failed: %v", s.Name(), err)
			}
		}
	}

	if len(os.Args) > 1 && os.Args[1] == "--test" {
		runTestMode(emit)
		for _, s := range sinks {
			_ = s.Close()
		}
		return
	}

	store := buildStore(cfg)
	sessions := session.NewManager(store)
	if ms, ok := store.(*session.MemoryStore); ok {
		ms.StartReaper(ctx, time.Minute)
	}

	env := httpx.Env{
		Cfg:        cfg,
		Scorer:     buildScorer(cfg),
		Sessions:   sessions,
		Challenges: challenge.NewEngine(),
		Tokens:     codec,
		Metrics:    m,
		Emit:       emit,
	}

	metricsSrv := metrics.NewServer(metrics.LoadConfig())
	_ = metricsSrv.Start(ctx)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: httpx.NewMux(env),
	}

	go func() {
		log.Printf("gate listening on %s (mode=%s, store=%s)", cfg.ServerAddr, cfg.ScoringMode, cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	for _, s := range sinks {
		_ = s.Close()
	}
}

func buildScorer(cfg config.Config) scoring.Scorer {
	if cfg.ScoringMode == config.ModeBotRisk {
		return scoring.NewBotRiskScorer(cfg.BotScoreThreshold)
	}
	return scoring.NewHumanProbabilityScorer(cfg.HumanProbThreshold)
}

func buildStore(cfg config.Config) session.Store {
	if cfg.SessionStore == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.Printf("sessions: redis store at %s", cfg.RedisAddr)
		return session.NewRedisStore(client)
	}
	return session.NewMemoryStore()
}

func buildSinks(cfg config.Config) []audit.Sink {
	var sinks []audit.Sink
	for _, out := range cfg.Outputs {
		switch out {
		case "log":
			sinks = append(sinks, audit.NewLogSink())
		case "postgres", "pg":
			sinks = append(sinks, audit.NewPGSinkFromEnv())
		case "kafka":
			sinks = append(sinks, audit.NewKafkaSinkFromEnv())
		default:
			log.Printf("unknown output %q, skipping", out)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, audit.NewLogSink())
	}
	return sinks
}
