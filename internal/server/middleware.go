package server

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-Id"

var (
	corsMethods = strings.Join([]string{
		"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS",
		"PROPFIND", "PROPPATCH", "MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK",
	}, ", ")
	corsHeaders = strings.Join([]string{
		"Authorization", "Content-Type", "Depth", "Destination",
		"Overwrite", "If", "Lock-Token", "X-Requested-With",
	}, ", ")
)

// cors sets the fixed CORS policy on every response and answers OPTIONS
// with an empty 200 before auth runs. WebDAV clients send OPTIONS to probe
// capabilities and browsers send it as a preflight; neither carries
// credentials, so it must never 401. An empty configured origin disables
// cross-origin access entirely rather than emitting empty headers.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.CORSOrigin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Expose-Headers", "DAV, Content-Length, Allow")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestID tags each request with a UUID, honoring one supplied by the
// caller so IDs survive proxies.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// logRequest is the gorilla/handlers formatter feeding the structured log.
func (s *Server) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	s.log.WithFields(logrus.Fields{
		"method":     p.Request.Method,
		"url":        p.URL.RequestURI(),
		"status":     p.StatusCode,
		"size":       p.Size,
		"duration":   time.Since(p.TimeStamp).String(),
		"request_id": p.Request.Header.Get(requestIDHeader),
		"authorized": p.Request.Header.Get("Authorization") != "",
	}).Info("request")
}

// auth enforces HTTP Basic auth against the user store. Credentials are
// re-validated on every request; there is no session state.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || !s.authenticate(username, password) {
			if ok {
				s.log.WithField("user", username).Warn("authentication failed")
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="davshare"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate checks the credential pair, memoizing successes so a busy
// client does not pay the bcrypt cost on every PROPFIND. Only positive
// results are cached; a user removal takes effect within authCacheTTL.
func (s *Server) authenticate(username, password string) bool {
	key := credentialKey(username, password)
	if _, ok := s.authCache.Get(key); ok {
		return true
	}
	if !s.users.Authenticate(username, password) {
		return false
	}
	s.authCache.Set(key, struct{}{}, authCacheTTL)
	return true
}

func credentialKey(username, password string) string {
	sum := sha256.Sum256([]byte(username + "\x00" + password))
	return hex.EncodeToString(sum[:])
}

// rewrite strips the mount prefix before handing off to the engine, so a
// request for <prefix>/foo operates on /foo and <prefix> alone on /. The
// Destination header of COPY and MOVE is rewritten the same way.
func (s *Server) rewrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = rewritePath(r.URL.Path, s.cfg.Prefix)

		if dst := r.Header.Get("Destination"); dst != "" {
			if u, err := url.Parse(dst); err == nil {
				u.Path = rewritePath(u.Path, s.cfg.Prefix)
				r.Header.Set("Destination", u.String())
			}
		}
		next.ServeHTTP(w, r)
	})
}

func rewritePath(p, prefix string) string {
	p = strings.TrimPrefix(p, prefix)
	if p == "" {
		return "/"
	}
	return p
}
