package metrics

import (
	"net/http"
	hpprof "net/http/pprof"
	"strings"
)

const pprofPrefix = "/debug/pprof/"

type serverOptions struct {
	pprof bool
	token string
}

type ServerOption func(*serverOptions)

// WithPprof mounts the net/http/pprof handlers under /debug/pprof/.
func WithPprof(enabled bool) ServerOption {
	return func(o *serverOptions) { o.pprof = enabled }
}

// WithToken requires "Authorization: Bearer <token>" (or ?token=) on
// /metrics and the pprof handlers. Empty disables the check.
func WithToken(token string) ServerOption {
	return func(o *serverOptions) { o.token = strings.TrimSpace(token) }
}

func mountPprof(mux *http.ServeMux, token string) {
	base := strings.TrimSuffix(pprofPrefix, "/")
	mux.HandleFunc(pprofPrefix, withToken(token, hpprof.Index))
	mux.HandleFunc(base+"/cmdline", withToken(token, hpprof.Cmdline))
	mux.HandleFunc(base+"/profile", withToken(token, hpprof.Profile))
	mux.HandleFunc(base+"/symbol", withToken(token, hpprof.Symbol))
	mux.HandleFunc(base+"/trace", withToken(token, hpprof.Trace))
}

func withToken(token string, h http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == token {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == token {
			h(w, r)
			return
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
