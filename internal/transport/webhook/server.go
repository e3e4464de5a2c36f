package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const (
	jsonContentType = "application/json"
	healthPath      = "/health"
	DefaultPath     = "/webhook"

	// Telegram sends one update per request; anything bigger is not an update.
	maxUpdateBytes = 1 << 20
)

// UpdateHandler receives decoded updates. It must return quickly: Telegram
// redelivers updates whose request does not finish in time.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Stats is reported by the health endpoint.
type Stats interface {
	ActiveCount() int
	QueuedCount() int
}

// Server receives Telegram updates pushed to the webhook URL.
type Server struct {
	handler UpdateHandler
	stats   Stats
	path    string
	srv     *http.Server
}

// NewServer builds a server accepting updates on path. stats may be nil.
func NewServer(listenAddr, path string, handler UpdateHandler, stats Stats) *Server {
	s := &Server{
		handler: handler,
		stats:   stats,
		path:    path,
	}
	s.srv = &http.Server{
		Addr:         listenAddr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router returns the HTTP routes, exposed for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Get(healthPath, s.healthHandler)
	r.Post(s.path, s.updateHandler)
	return r
}

// PathFromURL returns the path part of the public webhook URL. The path doubles as
// a shared secret, so deployments usually put the bot token or a random string there.
func PathFromURL(webhookURL string) string {
	u, err := url.Parse(webhookURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return DefaultPath
	}
	return "/" + strings.Trim(u.Path, "/")
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.stats != nil {
		body["active_downloads"] = s.stats.ActiveCount()
		body["queued_downloads"] = s.stats.QueuedCount()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) updateHandler(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var update tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		logutils.Log.WithError(err).WithField("request_id", reqID).Warn("Webhook: invalid update body")
		writeError(w, http.StatusBadRequest, "invalid update")
		return
	}

	logutils.Log.WithFields(map[string]any{
		"request_id": reqID,
		"update_id":  update.UpdateID,
	}).Debug("Webhook update received")

	// Downloads outlive the HTTP request.
	s.handler.HandleUpdate(context.WithoutCancel(r.Context()), update)
	w.WriteHeader(http.StatusOK)
}

// Start listens and serves. Blocks until Shutdown is called.
func (s *Server) Start() error {
	logutils.Log.WithFields(map[string]any{
		"addr": s.srv.Addr,
		"path": s.path,
	}).Info("Webhook server starting")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (*Server) Name() string {
	return "webhook_server"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logutils.Log.WithError(err).Warn("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
