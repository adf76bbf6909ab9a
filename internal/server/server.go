package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/franckalain/leafmetric/internal/database"
	"github.com/franckalain/leafmetric/internal/ml"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// Settings configures a Server
type Settings struct {
	UploadDir string
	JWTSecret []byte
	TokenTTL  time.Duration
	Debug     bool
}

type Server struct {
	db       database.DB
	model    ml.Model
	settings Settings
	validate *validator.Validate
	clients  sync.Map // client ID -> *wsClient
	router   *mux.Router
}

func New(db database.DB, model ml.Model, settings Settings) *Server {
	if settings.Debug {
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		log.Println("Debug logging enabled")
	}
	if settings.TokenTTL <= 0 {
		settings.TokenTTL = 24 * time.Hour
	}
	s := &Server{
		db:       db,
		model:    model,
		settings: settings,
		validate: newValidator(),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving the API, uploads and the websocket feed
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	if s.settings.Debug {
		r.Use(logRequests)
	}

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket)
	r.PathPrefix("/" + uploadsPrefix + "/").Handler(
		http.StripPrefix("/"+uploadsPrefix+"/", http.FileServer(http.Dir(s.settings.UploadDir))),
	).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/user/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/user", s.handleRegister).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireAuth)
	authed.HandleFunc("/user", s.handleCurrentUser).Methods(http.MethodGet)
	authed.HandleFunc("/image", s.handleUploadImage).Methods(http.MethodPost)
	authed.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	authed.HandleFunc("/predict/save", s.handleSavePrediction).Methods(http.MethodPost)
	authed.HandleFunc("/feedback", s.handleSaveFeedback).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	return r
}

// Start serves on port until ctx is canceled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on port %s\n", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	s.closeClients()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[HTTP] %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
