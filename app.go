package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/ventura3351/multiapps/pkg/browser"
	"github.com/ventura3351/multiapps/pkg/bundle"
)

const (
	msgServiceNotFound = "Serviço não encontrado"
	maxRequestBody     = 1 << 20
)

type App struct {
	config  *Config
	bundles *bundle.Fetcher
	// nil when the browser is disabled
	browser *browser.Manager
}

func newApp(cfg *Config) *App {
	app := &App{
		config:  cfg,
		bundles: bundle.NewFetcher(cfg.Services, &http.Client{Timeout: cfg.HTTPUpstreamTimeout}),
	}
	if cfg.BrowserEnabled {
		driver := &browser.ChromeDriver{
			Headless: cfg.BrowserHeadless,
			ExecPath: cfg.BrowserExecPath,
			Timeout:  cfg.BrowserTimeout,
		}
		app.browser = browser.NewManager(driver, cfg.BrowserAllowedDomains)
	}
	return app
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("write response: %v", err)
	}
}

// writeFailure keeps the 200 status; clients branch on "success".
func writeFailure(w http.ResponseWriter, msg string) {
	writeJSON(w, map[string]any{"success": false, "error": msg})
}

func (a *App) activeSessions() int {
	if a.browser == nil {
		return 0
	}
	return a.browser.Count()
}

func (a *App) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]any{"status": "online", "message": "API MULTIAPPS"})
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":          "online",
		"server":          a.config.ServerName,
		"active_sessions": a.activeSessions(),
		"services":        a.bundles.Names(),
	})
}

func (a *App) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"success": true, "message": "✅ Conexão OK!"})
}

func (a *App) handleLoadCookies(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	cookies, err := a.bundles.Load(r.Context(), service)
	if errors.Is(err, bundle.ErrUnknownService) {
		writeFailure(w, msgServiceNotFound)
		return
	}
	if err != nil {
		log.WithField("service", service).Warnf("load cookies: %v", err)
		writeFailure(w, err.Error())
		return
	}
	log.WithField("service", service).Debugf("loaded %d bytes of cookies", len(cookies))
	writeJSON(w, map[string]any{
		"success": true,
		"cookies": cookies,
		"service": service,
	})
}

type openBrowserRequest struct {
	Service string `json:"service"`
	// Either the text returned by load-cookies or the array itself.
	// Empty means fetch the service bundle.
	Cookies json.RawMessage `json:"cookies"`
}

func cookieText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

func (a *App) handleOpenBrowser(w http.ResponseWriter, r *http.Request) {
	if a.browser == nil {
		writeJSON(w, map[string]any{
			"success": true,
			"message": "Navegador seria aberto aqui",
			"test":    "Funcionando!",
		})
		return
	}

	var req openBrowserRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeFailure(w, fmt.Sprintf("invalid request: %v", err))
		return
	}
	svc, ok := a.bundles.Lookup(req.Service)
	if !ok {
		writeFailure(w, msgServiceNotFound)
		return
	}
	if svc.TargetURL == "" {
		writeFailure(w, fmt.Sprintf("service %s has no target URL", svc.Name))
		return
	}

	raw, err := cookieText(req.Cookies)
	if err == nil && raw == "" {
		raw, err = a.bundles.Load(r.Context(), svc.Name)
	}
	if err != nil {
		writeFailure(w, err.Error())
		return
	}
	cookies, err := bundle.Parse(raw)
	if err != nil {
		writeFailure(w, fmt.Sprintf("invalid cookies: %v", err))
		return
	}

	session, err := a.browser.Open(r.Context(), svc.Name, svc.TargetURL, cookies)
	if err != nil {
		log.WithField("service", svc.Name).Warnf("open browser: %v", err)
		writeFailure(w, err.Error())
		return
	}
	writeJSON(w, map[string]any{
		"success":         true,
		"message":         "Navegador aberto",
		"service":         svc.Name,
		"session_id":      session.ID,
		"active_sessions": a.browser.Count(),
	})
}

func (a *App) corsHandler() func(http.Handler) http.Handler {
	if len(a.config.CORSOrigins) > 0 {
		return cors.Handler(cors.Options{
			AllowedOrigins:   a.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           86400,
		})
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
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

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	mux.HandleFunc("GET /", a.handleHome)
	mux.HandleFunc("GET /api/status", a.handleStatus)
	mux.HandleFunc("GET /api/test-connection", a.handleTestConnection)
	mux.HandleFunc("GET /api/load-cookies/{service}", a.handleLoadCookies)
	mux.HandleFunc("POST /api/open-browser", a.handleOpenBrowser)

	return logRequests(a.corsHandler()(mux))
}

// Start serves until ctx is done, then shuts the server down and closes any
// browsers still open.
func (a *App) Start(ctx context.Context) error {
	s := &http.Server{
		Addr:         a.config.ListenAddr,
		Handler:      a.routes(),
		ReadTimeout:  a.config.HTTPReadTimeout,
		WriteTimeout: a.config.HTTPWriteTimeout,
	}

	log.Printf(
		"Listening on %s; services: %v; browser enabled: %t",
		a.config.ListenAddr,
		a.bundles.Names(),
		a.browser != nil,
	)
	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()
	err := s.Shutdown(shutdownCtx)
	if a.browser != nil {
		a.browser.CloseAll()
	}
	return err
}
