// Package server implements the development preview server. It serves the
// dev output root, injects the live-reload client into HTML pages and pushes
// reload messages to connected browsers whenever the watcher finishes a
// rebuild.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/conneroisu/sitesmith/internal/build"
	"github.com/conneroisu/sitesmith/internal/config"
	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/logging"
	"github.com/conneroisu/sitesmith/internal/metrics"
	"github.com/conneroisu/sitesmith/internal/version"
)

// Internal routes. Everything else is served from the dev root.
const (
	WebSocketPath = "/__sitesmith/ws"
	StatusPath    = "/__sitesmith/status"
	HealthPath    = "/__sitesmith/health"
	MetricsPath   = "/__sitesmith/metrics"
)

// PreviewServer serves the dev output folder with live reload.
type PreviewServer struct {
	config      *config.Config
	root        string
	hub         *Hub
	logger      logging.Logger
	registry    *prom.Registry
	buildStats  *build.BuildMetrics
	openBrowser func(url string) error

	httpServer   *http.Server
	listener     net.Listener
	serverMutex  sync.RWMutex
	ready        chan struct{}
	shutdownOnce sync.Once

	eventMutex sync.RWMutex
	lastEvent  string
}

// Option configures a PreviewServer.
type Option func(*PreviewServer)

// WithLogger sets the server logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *PreviewServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry exposes reg on the metrics route.
func WithRegistry(reg *prom.Registry) Option {
	return func(s *PreviewServer) { s.registry = reg }
}

// WithBuildMetrics shows the given build statistics on the status page.
func WithBuildMetrics(bm *build.BuildMetrics) Option {
	return func(s *PreviewServer) { s.buildStats = bm }
}

// WithBrowserOpener replaces the function used to open the browser when
// server.open is set.
func WithBrowserOpener(open func(url string) error) Option {
	return func(s *PreviewServer) {
		if open != nil {
			s.openBrowser = open
		}
	}
}

// New creates a preview server for the folder root.
func New(cfg *config.Config, root string, opts ...Option) (*PreviewServer, error) {
	if cfg == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "preview server needs a configuration")
	}
	if strings.TrimSpace(root) == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "preview server needs a folder to serve")
	}

	s := &PreviewServer{
		config:      cfg,
		root:        filepath.Clean(root),
		hub:         NewHub(),
		logger:      logging.NewNopLogger(),
		openBrowser: openBrowser,
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("server")

	return s, nil
}

// Hub returns the live-reload hub.
func (s *PreviewServer) Hub() *Hub { return s.hub }

// Handler returns the HTTP handler serving every route. The hub must be
// running for live-reload clients to connect.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.handleWebSocket)
	mux.HandleFunc(ReloadScriptPath, s.handleReloadScript)
	mux.HandleFunc(StatusPath, s.handleStatus)
	mux.HandleFunc(HealthPath, s.handleHealth)
	if s.registry != nil {
		mux.Handle(MetricsPath, metrics.HTTPHandler(s.registry))
	}
	mux.HandleFunc("/", s.handleStatic)

	return s.addMiddleware(mux)
}

// Start listens on the configured address and serves until ctx is done.
func (s *PreviewServer) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, errors.ErrCodeInternalError, "failed to listen on "+addr)
	}

	s.serverMutex.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go s.hub.Run(ctx)
	close(s.ready)

	pageURL := s.URL()
	s.logger.Info(ctx, "Preview server listening", "url", pageURL, "root", s.root)

	if s.config.Server.Open {
		go func() {
			if err := s.openBrowser(pageURL); err != nil {
				s.logger.Warn(ctx, err, "Failed to open browser", "url", pageURL)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Ready is closed once Start is listening.
func (s *PreviewServer) Ready() <-chan struct{} { return s.ready }

// Addr returns the listening address, or nil before Start.
func (s *PreviewServer) Addr() net.Addr {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// URL returns the browser URL of the running server.
func (s *PreviewServer) URL() string {
	host := s.config.Server.Host
	port := strconv.Itoa(s.config.Server.Port)
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		port = strconv.Itoa(addr.Port)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

// Shutdown stops the server and disconnects every live-reload client.
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.hub.Close()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			if err := server.Shutdown(ctx); err != nil {
				shutdownErr = fmt.Errorf("shutting down preview server: %w", err)
			}
		}
		s.logger.Info(ctx, "Preview server stopped")
	})
	return shutdownErr
}

// Reload tells browsers that the named binding rebuilt. Style rebuilds swap
// stylesheets in place; everything else reloads the page.
func (s *PreviewServer) Reload(name string) {
	msg := UpdateMessage{Type: MessageReload, Target: name}
	if name == string(build.ClassStyles) {
		msg.Type = MessageCSSUpdate
	}
	s.setLastEvent(fmt.Sprintf("%s rebuilt", name))
	s.hub.Broadcast(msg)
}

// Failed shows a build error overlay in connected browsers.
func (s *PreviewServer) Failed(name string, err error) {
	content := "build failed"
	if err != nil {
		content = err.Error()
	}
	s.setLastEvent(fmt.Sprintf("%s failed", name))
	s.hub.Broadcast(UpdateMessage{Type: MessageError, Target: name, Content: content})
}

func (s *PreviewServer) setLastEvent(event string) {
	s.eventMutex.Lock()
	s.lastEvent = event + " at " + time.Now().Format(time.TimeOnly)
	s.eventMutex.Unlock()
}

func (s *PreviewServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	file := filepath.Join(s.root, filepath.FromSlash(name))

	info, err := os.Stat(file)
	if err == nil && info.IsDir() {
		file = filepath.Join(file, "index.html")
		info, err = os.Stat(file)
	}
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "no-store")

	if !strings.EqualFold(filepath.Ext(file), ".html") {
		http.ServeFile(w, r, file)
		return
	}

	data, err := os.ReadFile(file)
	if err != nil {
		http.Error(w, "failed to read page", http.StatusInternalServerError)
		return
	}
	if injected, err := InjectReloadScript(data); err != nil {
		s.logger.Warn(r.Context(), err, "Serving page without live reload", "path", name)
	} else {
		data = injected
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}

func (s *PreviewServer) handleReloadScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(reloadClient))
}

func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"version":   version.Get().Short(),
		"root":      s.root,
		"clients":   s.hub.ClientCount(),
		"timestamp": time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

func (s *PreviewServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := StatusPage(s.statusData()).Render(r.Context(), w); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to render status page")
	}
}

func (s *PreviewServer) statusData() StatusData {
	s.eventMutex.RLock()
	event := s.lastEvent
	s.eventMutex.RUnlock()
	if event == "" {
		event = "none"
	}

	data := StatusData{
		Version:   version.Get().Short(),
		Root:      s.root,
		Clients:   s.hub.ClientCount(),
		LastEvent: event,
	}
	if s.buildStats != nil {
		snap := s.buildStats.GetSnapshot()
		data.TotalBuilds = snap.TotalBuilds
		data.FailedBuilds = snap.FailedBuilds
		data.StageRuns = snap.StageRuns
		data.FilesWritten = snap.FilesWritten
		data.LastBuildID = snap.LastBuildID
		data.LastMode = snap.LastMode.String()
		data.LastBuildAt = snap.LastBuildAt
		data.LastError = snap.LastError
	}
	return data
}

// addMiddleware logs every request except the long-lived websocket.
func (s *PreviewServer) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == WebSocketPath {
			handler.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler.ServeHTTP(rec, r)

		s.logger.Debug(r.Context(), "Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func openBrowser(rawURL string) error {
	time.Sleep(100 * time.Millisecond)

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open %q: not an http url", rawURL)
	}
	if strings.ContainsAny(rawURL, " \t\n;&|`$") {
		return fmt.Errorf("refusing to open %q: unexpected characters", rawURL)
	}

	switch runtime.GOOS {
	case "linux":
		return exec.Command("xdg-open", rawURL).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL).Start()
	case "darwin":
		return exec.Command("open", rawURL).Start()
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}
