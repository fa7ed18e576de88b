package config

import (
	"errors"
	"os"
	"testing"
)

func TestGetOr(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		envValue string
		defValue string
		want     string
	}{
		{
			name:     "returns env value when set",
			key:      "TEST_KEY_1",
			envValue: "from_env",
			defValue: "default",
			want:     "from_env",
		},
		{
			name:     "returns default when env not set",
			key:      "TEST_KEY_2_UNSET",
			envValue: "",
			defValue: "default",
			want:     "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getOr(tt.key, tt.defValue)
			if got != tt.want {
				t.Errorf("getOr() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		envValue string
		defValue bool
		want     bool
	}{
		{name: "recognizes '1' as true", key: "TEST_BOOL_1", envValue: "1", defValue: false, want: true},
		{name: "recognizes 'true' as true", key: "TEST_BOOL_2", envValue: "true", defValue: false, want: true},
		{name: "recognizes 'TRUE' as true (case insensitive)", key: "TEST_BOOL_3", envValue: "TRUE", defValue: false, want: true},
		{name: "recognizes '0' as false", key: "TEST_BOOL_4", envValue: "0", defValue: true, want: false},
		{name: "recognizes 'no' as false", key: "TEST_BOOL_5", envValue: "no", defValue: true, want: false},
		{name: "returns default when unrecognized", key: "TEST_BOOL_6", envValue: "maybe", defValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv(tt.key, tt.envValue)
			defer os.Unsetenv(tt.key)

			got := getBool(tt.key, tt.defValue)
			if got != tt.want {
				t.Errorf("getBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetFloat(t *testing.T) {
	t.Run("parses float value", func(t *testing.T) {
		os.Setenv("TEST_FLOAT_1", "0.85")
		defer os.Unsetenv("TEST_FLOAT_1")

		if got := getFloat("TEST_FLOAT_1", 0.7); got != 0.85 {
			t.Errorf("getFloat() = %v, want 0.85", got)
		}
	})

	t.Run("returns default on invalid float", func(t *testing.T) {
		os.Setenv("TEST_FLOAT_2", "not-a-number")
		defer os.Unsetenv("TEST_FLOAT_2")

		if got := getFloat("TEST_FLOAT_2", 0.7); got != 0.7 {
			t.Errorf("getFloat() = %v, want 0.7", got)
		}
	})
}

func TestGetStringSlice(t *testing.T) {
	t.Run("splits and trims comma list", func(t *testing.T) {
		os.Setenv("TEST_SLICE_1", "log, postgres ,kafka")
		defer os.Unsetenv("TEST_SLICE_1")

		got := getStringSlice("TEST_SLICE_1", "")
		want := []string{"log", "postgres", "kafka"}
		if len(got) != len(want) {
			t.Fatalf("getStringSlice() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("getStringSlice()[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("uses default when unset", func(t *testing.T) {
		os.Unsetenv("TEST_SLICE_2")
		got := getStringSlice("TEST_SLICE_2", "log")
		if len(got) != 1 || got[0] != "log" {
			t.Errorf("getStringSlice() = %v, want [log]", got)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("fails without SECRET_KEY", func(t *testing.T) {
		os.Unsetenv("SECRET_KEY")

		_, err := Load()
		if !errors.Is(err, ErrNoSecret) {
			t.Errorf("Load() error = %v, want ErrNoSecret", err)
		}
	})

	t.Run("loads defaults with secret set", func(t *testing.T) {
		os.Setenv("SECRET_KEY", "test-secret")
		defer os.Unsetenv("SECRET_KEY")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.ServerAddr != ":8080" {
			t.Errorf("ServerAddr = %q, want :8080", cfg.ServerAddr)
		}
		if cfg.ScoringMode != ModeHumanProbability {
			t.Errorf("ScoringMode = %q, want %q", cfg.ScoringMode, ModeHumanProbability)
		}
		if cfg.BotScoreThreshold != 70 {
			t.Errorf("BotScoreThreshold = %v, want 70", cfg.BotScoreThreshold)
		}
		if cfg.HumanProbThreshold != 0.7 {
			t.Errorf("HumanProbThreshold = %v, want 0.7", cfg.HumanProbThreshold)
		}
		if cfg.ChallengeDifficulty != "medium" {
			t.Errorf("ChallengeDifficulty = %q, want medium", cfg.ChallengeDifficulty)
		}
		if cfg.SessionStore != "memory" {
			t.Errorf("SessionStore = %q, want memory", cfg.SessionStore)
		}
		if len(cfg.Outputs) != 1 || cfg.Outputs[0] != "log" {
			t.Errorf("Outputs = %v, want [log]", cfg.Outputs)
		}
	})

	t.Run("respects overrides", func(t *testing.T) {
		os.Setenv("SECRET_KEY", "test-secret")
		os.Setenv("SCORING_MODE", ModeBotRisk)
		os.Setenv("CHALLENGE_DIFFICULTY", "hard")
		os.Setenv("SESSION_STORE", "redis")
		defer func() {
			os.Unsetenv("SECRET_KEY")
			os.Unsetenv("SCORING_MODE")
			os.Unsetenv("CHALLENGE_DIFFICULTY")
			os.Unsetenv("SESSION_STORE")
		}()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.ScoringMode != ModeBotRisk {
			t.Errorf("ScoringMode = %q, want %q", cfg.ScoringMode, ModeBotRisk)
		}
		if cfg.ChallengeDifficulty != "hard" {
			t.Errorf("ChallengeDifficulty = %q, want hard", cfg.ChallengeDifficulty)
		}
		if cfg.SessionStore != "redis" {
			t.Errorf("SessionStore = %q, want redis", cfg.SessionStore)
		}
	})
}
