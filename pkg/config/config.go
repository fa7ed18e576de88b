package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Scoring mode names accepted in SCORING_MODE.
const (
	ModeHumanProbability = "human"
	ModeBotRisk          = "botrisk"
)

type Config struct {
	ServerAddr   string
	TrustProxy   bool
	MaxBodyBytes int64 // bytes for /api/verify payload

	// Secret is the HMAC signing key for verification tokens. There is no
	// default: an empty SECRET_KEY is a startup error, never a silent fallback.
	Secret string

	ScoringMode        string  // "human" or "botrisk"
	BotScoreThreshold  float64 // botrisk mode: scores above this get challenged
	HumanProbThreshold float64 // human mode: probabilities above this pass

	ChallengeDifficulty string // easy, medium, hard

	SessionStore string // "memory" or "redis"
	RedisAddr    string

	Production bool     // toggles Secure on issued cookies
	Outputs    []string // enabled audit sinks: log, kafka, postgres
}

// ErrNoSecret is returned by Load when SECRET_KEY is unset or empty.
var ErrNoSecret = errors.New("SECRET_KEY must be set; refusing to sign tokens with a default")

func getOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	switch v {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return def
}

func getInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getStringSlice(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func Load() (Config, error) {
	cfg := Config{
		ServerAddr:   getOr("SERVER_ADDR", ":8080"),
		TrustProxy:   getBool("TRUST_PROXY", false),
		MaxBodyBytes: getInt64("MAX_BODY_BYTES", 1<<20), // 1 MiB default

		Secret: os.Getenv("SECRET_KEY"),

		ScoringMode:        getOr("SCORING_MODE", ModeHumanProbability),
		BotScoreThreshold:  getFloat("BOT_SCORE_THRESHOLD", 70),
		HumanProbThreshold: getFloat("HUMAN_PROB_THRESHOLD", 0.7),

		ChallengeDifficulty: getOr("CHALLENGE_DIFFICULTY", "medium"),

		SessionStore: getOr("SESSION_STORE", "memory"),
		RedisAddr:    getOr("REDIS_ADDR", "localhost:6379"),

		Production: getBool("PRODUCTION", false),
		Outputs:    getStringSlice("OUTPUTS", "log"), // default to log only
	}

	if cfg.Secret == "" {
		return Config{}, ErrNoSecret
	}
	return cfg, nil
}
