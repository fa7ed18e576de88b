package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec("test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodec(t *testing.T) {
	t.Run("rejects empty secret", func(t *testing.T) {
		if _, err := NewCodec(""); !errors.Is(err, ErrNoSecret) {
			t.Errorf("NewCodec(\"\") error = %v, want ErrNoSecret", err)
		}
	})

	t.Run("accepts non-empty secret", func(t *testing.T) {
		if _, err := NewCodec("s"); err != nil {
			t.Errorf("NewCodec error = %v", err)
		}
	})
}

func TestRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name string
		ua   string
		ip   string
	}{
		{"plain browser", "Mozilla/5.0 (X11; Linux x86_64)", "203.0.113.7"},
		{"ipv6 client", "Mozilla/5.0", "2001:db8::1"},
		{"empty user agent", "", "10.0.0.1"},
		{"user agent containing separator", "weird|agent|v2", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := c.Issue(tt.ua, tt.ip)
			claims, err := c.Validate(tok)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if claims.UserAgent != tt.ua {
				t.Errorf("UserAgent = %q, want %q", claims.UserAgent, tt.ua)
			}
			if claims.ClientIP != tt.ip {
				t.Errorf("ClientIP = %q, want %q", claims.ClientIP, tt.ip)
			}
			if claims.IssueDate != time.Now().UTC().Format("2006-01-02") {
				t.Errorf("IssueDate = %q, want today", claims.IssueDate)
			}
			if claims.HasScore() {
				t.Errorf("plain token should carry no score, got %v", claims.Score)
			}
		})
	}
}

func TestRoundTripWithScore(t *testing.T) {
	c := newTestCodec(t)

	tok := c.IssueWithScore("Mozilla/5.0", "203.0.113.7", 42.5)
	claims, err := c.Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !claims.HasScore() {
		t.Fatal("expected embedded score")
	}
	if claims.Score != 42.5 {
		t.Errorf("Score = %v, want 42.5", claims.Score)
	}
	if claims.UserAgent != "Mozilla/5.0" || claims.ClientIP != "203.0.113.7" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateRejectsMutations(t *testing.T) {
	c := newTestCodec(t)
	tok := c.Issue("Mozilla/5.0", "203.0.113.7")

	// Any single-byte mutation of payload or signature must fail validation.
	for i := 0; i < len(tok); i++ {
		if tok[i] == '.' {
			continue
		}
		mutated := []byte(tok)
		if mutated[i] == 'a' {
			mutated[i] = 'b'
		} else {
			mutated[i] = 'a'
		}
		if _, err := c.Validate(string(mutated)); err == nil {
			t.Fatalf("mutation at byte %d validated", i)
		}
	}
}

func TestValidateMalformed(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name string
		tok  string
	}{
		{"empty", ""},
		{"no separator", "justonepart"},
		{"empty signature", "data."},
		{"empty data", ".deadbeef"},
		{"non-hex signature", "ua|ip|2026-08-29.not-hex!"},
		{"valid hex wrong signature", "ua|ip|2026-08-29.deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Validate(tt.tok); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate(%q) error = %v, want ErrInvalidToken", tt.tok, err)
			}
		})
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	a := newTestCodec(t)
	b, err := NewCodec("another-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	tok := a.Issue("Mozilla/5.0", "203.0.113.7")
	if _, err := b.Validate(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token signed with a different secret validated, err = %v", err)
	}
}

func TestTokenIsDateScoped(t *testing.T) {
	c := newTestCodec(t)
	c.now = func() time.Time {
		return time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	}

	tok := c.Issue("Mozilla/5.0", "203.0.113.7")
	if !strings.Contains(tok, "2026-02-14") {
		t.Errorf("token %q does not embed the issue date", tok)
	}

	claims, err := c.Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.IssueDate != "2026-02-14" {
		t.Errorf("IssueDate = %q, want 2026-02-14", claims.IssueDate)
	}

	// The next day the same token no longer validates.
	c.now = func() time.Time {
		return time.Date(2026, 2, 15, 0, 0, 1, 0, time.UTC)
	}
	if _, err := c.Validate(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("yesterday's token validated, err = %v", err)
	}
}
