// Package server is the HTTP gateway in front of the WebDAV engine: CORS,
// access logging, basic auth and mount-prefix rewriting wrapped around
// golang.org/x/net/webdav.
package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	gocache "github.com/pmylund/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/webdav"

	"github.com/davshare/davshare/internal/storage"
	"github.com/davshare/davshare/pkg/user"
)

// Runtime modes. Production serves the embedded web UI and is expected to
// run behind a fixed CORS origin.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// authCacheTTL bounds how long a verified credential pair skips the bcrypt
// check. Auth stays stateless per request; this only amortizes the hash cost.
const authCacheTTL = time.Minute

// Config carries everything the gateway needs at startup. There is no
// mutable global state; the CLI builds one of these and hands it over.
type Config struct {
	Addr       string
	DataDir    string
	Prefix     string // mount prefix for the WebDAV namespace, e.g. "/api"
	Mode       string
	CORSOrigin string
}

// Server serves the WebDAV namespace and the embedded UI.
type Server struct {
	cfg        Config
	users      *user.Store
	log        *logrus.Logger
	fs         *storage.FS
	authCache  *gocache.Cache
	httpServer *http.Server
}

// New prepares a server: the data directory is created if absent so the
// engine never starts over a missing root.
func New(cfg Config, store *user.Store, log *logrus.Logger) (*Server, error) {
	cfg.Prefix = strings.TrimSuffix(cfg.Prefix, "/")

	fs, err := storage.NewDisk(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:       cfg,
		users:     store,
		log:       log,
		fs:        fs,
		authCache: gocache.New(authCacheTTL, 5*time.Minute),
	}, nil
}

// Handler builds the full middleware chain. Outermost first: recovery,
// request ID, access log, CORS (with the OPTIONS short-circuit), then the
// per-route handlers.
func (s *Server) Handler() http.Handler {
	dav := &webdav.Handler{
		FileSystem: s.fs,
		LockSystem: webdav.NewMemLS(),
		Logger:     s.davLogger,
	}

	davChain := s.auth(s.rewrite(dav))

	mux := http.NewServeMux()
	if s.cfg.Prefix == "" {
		// An empty mount prefix gives the engine the whole namespace;
		// there is no room left for the UI or the status endpoint.
		mux.Handle("/", davChain)
	} else {
		mux.Handle(s.cfg.Prefix+"/", davChain)
		mux.Handle(s.cfg.Prefix, davChain)
		mux.Handle("/status", s.auth(http.HandlerFunc(s.handleStatus)))
		if s.cfg.Mode == ModeProduction {
			mux.Handle("/", uiHandler())
		}
	}

	var h http.Handler = mux
	h = s.cors(h)
	h = handlers.CustomLoggingHandler(io.Discard, h, s.logRequest)
	h = requestID(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(s.log))(h)
	return h
}

// Start runs the HTTP server until Shutdown or a listener error.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithFields(logrus.Fields{
		"addr":   s.cfg.Addr,
		"dir":    s.cfg.DataDir,
		"prefix": s.cfg.Prefix,
		"mode":   s.cfg.Mode,
	}).Info("server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// davLogger reports engine errors. 404s for the files Windows probes on
// every mount are suppressed to keep the log readable.
func (s *Server) davLogger(r *http.Request, err error) {
	if err == nil {
		return
	}
	if os.IsNotExist(err) {
		switch strings.ToLower(filepath.Base(r.URL.Path)) {
		case "desktop.ini", "autorun.inf", "thumbs.db", "folder.jpg":
			return
		}
	}
	s.log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).WithError(err).Warn("webdav error")
}
