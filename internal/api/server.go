package api

import (
	"context"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lox/weatherdash/internal/dashboard"
	"github.com/lox/weatherdash/internal/imagegen"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Port     string
	ImageDir string
	// Generator is optional. Without it cards use cached backdrops or the
	// gradient fallback.
	Generator imagegen.ImageGenerator
}

type Server struct {
	dash      *dashboard.Dashboard
	port      string
	tmpl      *template.Template
	backdrops *imagegen.Backdrops
	cards     *imagegen.CardCache
}

func NewServer(dash *dashboard.Dashboard, cfg Config) *Server {
	imageDir := cfg.ImageDir
	if imageDir == "" {
		imageDir = "data/images"
	}
	if cfg.Generator == nil {
		log.Printf("api: backdrop generation disabled")
	}

	return &Server{
		dash:      dash,
		port:      cfg.Port,
		tmpl:      newTemplates(),
		backdrops: imagegen.NewBackdrops(imagegen.NewCache(imageDir), cfg.Generator),
		cards:     imagegen.NewCardCache(5 * time.Minute),
	}
}

// Backdrops exposes the backdrop store so callers can wait on background
// generation.
func (s *Server) Backdrops() *imagegen.Backdrops {
	return s.backdrops
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.With(noCache).Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/cities", func(cr chi.Router) {
		cr.Post("/", s.handleAddForm)
		cr.Post("/reorder", s.handleReorderForm)
		cr.Post("/{name}/remove", s.handleRemoveForm)
		cr.Post("/{name}/pin", s.handlePinForm)
		cr.Post("/{name}/refresh", s.handleRefreshForm)
		cr.Get("/{name}/card.png", s.handleCard)
	})

	r.Route("/api/cities", func(cr chi.Router) {
		cr.Get("/", s.handleAPIList)
		cr.Post("/", s.handleAPIAdd)
		cr.Post("/reorder", s.handleAPIReorder)
		cr.Delete("/{name}", s.handleAPIRemove)
		cr.Post("/{name}/pin", s.handleAPIPin)
		cr.Post("/{name}/refresh", s.handleAPIRefresh)
	})
	return r
}

// noCache marks the dashboard page as never cacheable by intermediaries.
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-middleware-cache", "no-cache")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
