// Package server provides the HTTP service of the ASL recognizer.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ahmedibraahiim/asl/internal/app"
	"github.com/ahmedibraahiim/asl/internal/metrics"
	"github.com/ahmedibraahiim/asl/internal/recognizer"
	"github.com/ahmedibraahiim/asl/internal/server/api"
	"github.com/ahmedibraahiim/asl/internal/store"
)

// Config holds the server configuration. Recognizer is required; Store,
// Live and StaticDir are optional.
type Config struct {
	StaticDir   string
	Store       *store.Store
	Recognizer  *recognizer.Recognizer
	ModelPath   string
	Live        *app.App
	CORSOrigins []string
}

// Server is the HTTP front of the recognizer.
type Server struct {
	config Config
	router *mux.Router
	start  time.Time
}

// New creates a Server with its routes registered.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: mux.NewRouter(),
		start:  time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(metrics.Middleware, corsMiddleware(s.config.CORSOrigins))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	predict := api.NewPredictHandler(s.config.Recognizer, s.config.Store)
	r.HandleFunc("/predict", predict.Upload).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/predict/base64", predict.Base64).Methods(http.MethodPost, http.MethodOptions)

	models := api.NewModelsHandler(s.config.Recognizer, s.config.Store, s.config.ModelPath)
	r.HandleFunc("/api/models", models.List).Methods(http.MethodGet)
	r.HandleFunc("/api/models/reload", models.Reload).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/models/{id}", models.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/model/report", models.Report).Methods(http.MethodGet)
	r.HandleFunc("/api/predictions", models.Predictions).Methods(http.MethodGet)

	if s.config.Live != nil {
		r.Handle("/api/live", NewLiveHandler(s.config.Live)).Methods(http.MethodGet)
		r.Handle("/api/stream", NewStreamHandler(s.config.Live)).Methods(http.MethodGet)
	}

	if s.config.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir))).Methods(http.MethodGet)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelID     string `json:"model_id,omitempty"`
	Uptime      string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "healthy",
		ModelLoaded: s.config.Recognizer.Ready(),
		ModelID:     s.config.Recognizer.ModelID(),
		Uptime:      time.Since(s.start).Round(time.Second).String(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe serves on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
