package httpx

import "net/http"

// NewMux wires the verification surface. The demo /protected route sits
// behind the access gate; everything else is reachable without a token.
func NewMux(e Env) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", e.Healthz)
	mux.HandleFunc("/readyz", e.Readyz)

	// Verification page plus POST alias.
	mux.HandleFunc("/verify", e.VerifyPage)
	mux.HandleFunc("/assets/collector.js", e.CollectorScript)

	// API surface.
	mux.HandleFunc("/api/verify", e.Verify)
	mux.HandleFunc("/api/challenge", e.GradeChallenge)
	mux.HandleFunc("/challenge", e.GradeChallenge)
	mux.HandleFunc("/api/session", e.NewSession)
	mux.HandleFunc("/status", e.Status)

	mux.Handle("/protected", e.Protect(http.HandlerFunc(e.Protected)))

	return RequestLogger(MetricsMiddleware(e.Metrics)(cors(mux)))
}
