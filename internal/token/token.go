// Package token implements the stateless verification credential: an
// HMAC-SHA256 signature over a canonical payload of user-agent, client IP and
// issue date. Validation needs only the secret, never shared state, which is
// what lets the access gate run without a store lookup.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidToken covers every failure mode: malformed framing, non-hex
// signature, signature mismatch. Callers treat all of them as "not verified".
var ErrInvalidToken = errors.New("invalid verification token")

// ErrNoSecret is returned by NewCodec for an empty secret. There is no
// fallback key.
var ErrNoSecret = errors.New("token codec requires a non-empty secret")

// Claims are the fields embedded in a token's data part.
type Claims struct {
	UserAgent string
	ClientIP  string
	IssueDate string // YYYY-MM-DD, UTC
	// Score is present only on tokens issued through the challenge path;
	// -1 means no embedded score.
	Score float64
}

// HasScore reports whether the token carried an embedded score.
func (c Claims) HasScore() bool { return c.Score >= 0 }

// Codec issues and validates signed tokens with a fixed secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Codec{secret: []byte(secret), now: time.Now}, nil
}

// fieldSep separates payload fields. The date field cannot contain it, and a
// "|" inside the user-agent only shifts bytes within the signed data, so it
// cannot forge a different valid token.
const fieldSep = "|"

// Issue builds a token binding the user-agent and client IP to today's date.
// Tokens are date-scoped: validity implicitly ends with the calendar day of
// issuance.
func (c *Codec) Issue(userAgent, clientIP string) string {
	data := strings.Join([]string{userAgent, clientIP, c.isoDate()}, fieldSep)
	return data + "." + c.sign(data)
}

// IssueWithScore embeds the verification score in the payload. Used on the
// post-challenge path so the access gate can later deny over-threshold
// clients without re-scoring.
func (c *Codec) IssueWithScore(userAgent, clientIP string, score float64) string {
	data := strings.Join([]string{
		userAgent, clientIP, c.isoDate(),
		strconv.FormatFloat(score, 'f', -1, 64),
	}, fieldSep)
	return data + "." + c.sign(data)
}

// Validate recomputes the signature over the data part and compares in
// constant time. The returned Claims echo the embedded payload fields.
func (c *Codec) Validate(tok string) (Claims, error) {
	idx := strings.LastIndex(tok, ".")
	if idx <= 0 || idx == len(tok)-1 {
		return Claims{}, ErrInvalidToken
	}
	data, sig := tok[:idx], tok[idx+1:]

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(data))
	if !hmac.Equal(sigBytes, mac.Sum(nil)) {
		return Claims{}, ErrInvalidToken
	}

	parts := strings.Split(data, fieldSep)
	if len(parts) < 3 {
		return Claims{}, ErrInvalidToken
	}

	claims := Claims{Score: -1}
	// A user-agent may itself contain the separator; the IP and date are the
	// two fields before any trailing score, everything earlier is the UA.
	tail := parts[len(parts)-1]
	if score, err := strconv.ParseFloat(tail, 64); err == nil && len(parts) >= 4 && looksLikeDate(parts[len(parts)-2]) {
		claims.Score = score
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 3 || !looksLikeDate(parts[len(parts)-1]) {
		return Claims{}, ErrInvalidToken
	}
	claims.IssueDate = parts[len(parts)-1]
	claims.ClientIP = parts[len(parts)-2]
	claims.UserAgent = strings.Join(parts[:len(parts)-2], fieldSep)

	// Tokens are date-scoped: validity ends with the calendar day of issue.
	if claims.IssueDate != c.isoDate() {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) sign(data string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Codec) isoDate() string {
	return c.now().UTC().Format("2006-01-02")
}

func looksLikeDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
