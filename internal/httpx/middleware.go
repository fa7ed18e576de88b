package httpx

import (
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"revinar.io/go.gate/internal/audit"
	"revinar.io/go.gate/internal/metrics"
	cfg "revinar.io/go.gate/pkg/config"
)

func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s ua=%q dur=%s", r.Method, r.URL.Path, r.UserAgent(), time.Since(start))
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Very permissive for dev; tighten in production.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			m.HTTPRequests.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.status)).Inc()
			m.HTTPDuration.WithLabelValues(r.URL.Path, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

// Protect is the access gate. A request without a valid verification token is
// redirected to the verification page with the original path preserved; a
// valid token whose embedded score fails the configured threshold is refused
// outright.
func (e Env) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(tokenCookie)
		if err != nil || c.Value == "" {
			e.gateRedirect(w, r)
			return
		}

		claims, err := e.Tokens.Validate(c.Value)
		if err != nil {
			e.gateRedirect(w, r)
			return
		}

		if claims.HasScore() && e.scoreBlocked(claims.Score) {
			log.Printf("gate: blocked token score=%v path=%s ip=%s", claims.Score, r.URL.Path, clientIP(r, e.Cfg.TrustProxy))
			if e.Metrics != nil {
				e.Metrics.GateDecisions.WithLabelValues("deny").Inc()
			}
			rec := audit.NewRecord("deny")
			rec.IP = clientIP(r, e.Cfg.TrustProxy)
			rec.UserAgent = r.UserAgent()
			rec.Score = claims.Score
			e.audit(rec)
			http.Error(w, "access denied", http.StatusForbidden)
			return
		}

		if e.Metrics != nil {
			e.Metrics.GateDecisions.WithLabelValues("allow").Inc()
		}
		next.ServeHTTP(w, r)
	})
}

func (e Env) gateRedirect(w http.ResponseWriter, r *http.Request) {
	if e.Metrics != nil {
		e.Metrics.GateDecisions.WithLabelValues("redirect").Inc()
	}
	target := r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, "/verify?redirect="+url.QueryEscape(target), http.StatusFound)
}

// scoreBlocked applies the configured mode's threshold to an embedded token
// score. Bot-risk scores fail above the threshold, human probabilities fail
// below it.
func (e Env) scoreBlocked(score float64) bool {
	if e.Cfg.ScoringMode == cfg.ModeBotRisk {
		return score > e.Cfg.BotScoreThreshold
	}
	return score < e.Cfg.HumanProbThreshold
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
		if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
			return strings.TrimSpace(xrip)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
