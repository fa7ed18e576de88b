package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"revinar.io/go.gate/internal/assets"
	"revinar.io/go.gate/internal/audit"
	"revinar.io/go.gate/internal/challenge"
	"revinar.io/go.gate/internal/metrics"
	"revinar.io/go.gate/internal/scoring"
	"revinar.io/go.gate/internal/session"
	"revinar.io/go.gate/internal/telemetry"
	"revinar.io/go.gate/internal/token"
	cfg "revinar.io/go.gate/pkg/config"
)

const (
	tokenCookie   = "verification_token"
	sessionCookie = "sessionId"

	tokenCookieMaxAge = 24 * time.Hour
)

type Env struct {
	Cfg        cfg.Config
	Scorer     scoring.Scorer
	Sessions   *session.Manager
	Challenges *challenge.Engine
	Tokens     *token.Codec
	Metrics    *metrics.Metrics
	Emit       func(audit.Record) // injected sink fan-out
}

// challengeBody is the public view of a challenge. The answer never leaves
// the engine.
type challengeBody struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Problem string `json:"problem"`
}

type verifyResponse struct {
	Status    string         `json:"status"`
	Token     string         `json:"token,omitempty"`
	Redirect  string         `json:"redirect,omitempty"`
	Score     float64        `json:"score,omitempty"`
	Message   string         `json:"message,omitempty"`
	Challenge *challengeBody `json:"challenge,omitempty"`
}

func (e Env) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (e Env) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// VerifyPage serves the embedded verification page on GET. POST falls through
// to Verify so /verify doubles as an API alias.
func (e Env) VerifyPage(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		e.Verify(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(assets.VerifyHTML)
}

func (e Env) CollectorScript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(assets.CollectorJS)
}

// NewSession bootstraps a session for the verification page and hands the
// identifier back both as a cookie and in the body.
func (e Env) NewSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, err := e.Sessions.Create(r.Context(), clientIP(r, e.Cfg.TrustProxy), r.UserAgent())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   int(session.TTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   e.Cfg.Production,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "sessionId": s.ID})
}

// Verify is the orchestrator entry point: telemetry in, a pass token or a
// challenge out.
func (e Env) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, e.Cfg.MaxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	var p telemetry.Payload
	if err := json.Unmarshal(body, &p); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	ip := clientIP(r, e.Cfg.TrustProxy)
	sctx := scoring.Context{RequestUserAgent: r.UserAgent(), ClientIP: ip}
	sess := e.lookupSession(r, &p)
	if sess != nil {
		sctx.SessionUserAgent = sess.UserAgent
	}

	res := e.Scorer.Score(&p, sctx)
	e.Metrics.ObserveScore(res.Mode, res.ScoreValue())

	rec := audit.NewRecord("")
	rec.IP = ip
	rec.UserAgent = r.UserAgent()
	rec.Mode = res.Mode
	rec.Score = res.ScoreValue()
	rec.Indicators = res.Indicators
	if sess != nil {
		rec.SessionID = sess.ID
	}

	if res.Human {
		tok := e.Tokens.Issue(r.UserAgent(), ip)
		e.setTokenCookie(w, tok)
		if sess != nil {
			_ = e.Sessions.MarkVerified(r.Context(), sess.ID, true)
		}
		if e.Metrics != nil {
			e.Metrics.Verifications.WithLabelValues("success").Inc()
			e.Metrics.TokensIssued.WithLabelValues("score").Inc()
		}
		rec.Outcome = "success"
		e.audit(rec)
		writeJSON(w, http.StatusOK, verifyResponse{
			Status:   "success",
			Token:    tok,
			Redirect: redirectTarget(r),
			Score:    res.ScoreValue(),
		})
		return
	}

	ch, err := e.Challenges.Generate(challenge.ParseDifficulty(e.Cfg.ChallengeDifficulty))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if e.Metrics != nil {
		e.Metrics.Verifications.WithLabelValues("challenge").Inc()
		e.Metrics.ActiveChallenges.Set(float64(e.Challenges.Active()))
	}
	rec.Outcome = "challenge"
	rec.ChallengeID = ch.ID
	e.audit(rec)
	writeJSON(w, http.StatusOK, verifyResponse{
		Status:    "challenge",
		Score:     res.ScoreValue(),
		Challenge: &challengeBody{ID: ch.ID, Type: ch.Kind, Problem: ch.Problem},
	})
}

// GradeChallenge grades a submitted answer. Correct answers get a token
// through the lower-trust IssueWithScore path; wrong or stale answers get a
// replacement challenge so the client is never dead-ended.
func (e Env) GradeChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	defer r.Body.Close()
	var req struct {
		ChallengeID string `json:"challengeId"`
		Response    string `json:"response"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, e.Cfg.MaxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	gr, err := e.Challenges.Grade(req.ChallengeID, req.Response)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if e.Metrics != nil {
		e.Metrics.ChallengeGrades.WithLabelValues(gr.Outcome.String()).Inc()
		e.Metrics.ActiveChallenges.Set(float64(e.Challenges.Active()))
	}

	ip := clientIP(r, e.Cfg.TrustProxy)
	rec := audit.NewRecord(gr.Outcome.String())
	rec.IP = ip
	rec.UserAgent = r.UserAgent()
	rec.ChallengeID = req.ChallengeID
	sess := e.lookupSession(r, nil)
	if sess != nil {
		rec.SessionID = sess.ID
	}
	e.audit(rec)

	switch gr.Outcome {
	case challenge.Correct:
		tok := e.Tokens.IssueWithScore(r.UserAgent(), ip, e.passingScore())
		e.setTokenCookie(w, tok)
		if sess != nil {
			_ = e.Sessions.MarkVerified(r.Context(), sess.ID, true)
		}
		if e.Metrics != nil {
			e.Metrics.TokensIssued.WithLabelValues("challenge").Inc()
		}
		writeJSON(w, http.StatusOK, verifyResponse{
			Status:   "success",
			Token:    tok,
			Redirect: redirectTarget(r),
		})
	case challenge.Expired:
		writeJSON(w, http.StatusOK, verifyResponse{
			Status:    "challenge",
			Message:   "challenge expired",
			Challenge: &challengeBody{ID: gr.Next.ID, Type: gr.Next.Kind, Problem: gr.Next.Problem},
		})
	case challenge.Incorrect:
		writeJSON(w, http.StatusOK, verifyResponse{
			Status:    "challenge",
			Message:   "incorrect answer",
			Challenge: &challengeBody{ID: gr.Next.ID, Type: gr.Next.Kind, Problem: gr.Next.Problem},
		})
	default:
		writeJSON(w, http.StatusBadRequest, verifyResponse{
			Status:  "denied",
			Message: "unknown challenge",
		})
	}
}

// Status reports liveness plus whether the caller's session is verified.
func (e Env) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	verified := false
	if c, err := r.Cookie(sessionCookie); err == nil {
		if s, err := e.Sessions.Get(r.Context(), c.Value); err == nil {
			verified = s.Verified
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "online", "verified": verified})
}

// Protected is the demo route behind the access gate.
func (e Env) Protected(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "verified access granted",
	})
}

// passingScore is the value embedded in challenge-path tokens. Sitting
// exactly at the configured threshold, it clears the access gate while still
// marking the token as challenge-issued.
func (e Env) passingScore() float64 {
	if e.Cfg.ScoringMode == cfg.ModeBotRisk {
		return e.Cfg.BotScoreThreshold
	}
	return e.Cfg.HumanProbThreshold
}

// lookupSession resolves the caller's session from the cookie first, then the
// payload's sessionId. A stale or unknown id degrades to no session.
func (e Env) lookupSession(r *http.Request, p *telemetry.Payload) *session.Session {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	if id == "" && p != nil {
		id = p.SessionID
	}
	if id == "" {
		return nil
	}
	s, err := e.Sessions.Get(r.Context(), id)
	if err != nil {
		return nil
	}
	return s
}

func (e Env) setTokenCookie(w http.ResponseWriter, tok string) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(tokenCookieMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   e.Cfg.Production,
	})
}

func (e Env) audit(rec audit.Record) {
	if e.Emit != nil {
		e.Emit(rec)
	}
}

func redirectTarget(r *http.Request) string {
	if v := r.URL.Query().Get("redirect"); v != "" {
		return v
	}
	return "/"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
