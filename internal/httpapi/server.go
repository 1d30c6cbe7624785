package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MimeLyc/cinefluent/internal/service"
	"github.com/MimeLyc/cinefluent/pkg/log"
)

// maxUploadBytes bounds a multipart subtitle upload.
const maxUploadBytes = 10 << 20

type Server struct {
	svc *service.Service

	router *chi.Mux
	server *http.Server
}

func NewServer(svc *service.Service) *Server {
	s := &Server{
		svc:    svc,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.router.Use(chimw.Recoverer)
	s.router.Use(requestLogger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/subtitles", s.handleUpload)
		r.Get("/subtitles/{id}", s.handleGetSubtitle)
		r.Get("/subtitles/{id}/segments", s.handleGetSegments)
		r.Get("/subtitles/{id}/cues", s.handleGetCues)

		r.Get("/search", s.handleSearch)
		r.Get("/search/languages", s.handleSearchLanguages)
		r.Get("/cache/stats", s.handleCacheStats)

		r.Get("/jobs", s.handleListJobs)
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs/{id}", s.handleGetJob)

		r.Get("/usage/{api}", s.handleUsage)
		r.Get("/stats", s.handleStats)
		r.Post("/sweep", s.handleSweep)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status >= http.StatusInternalServerError {
			log.Error("%s %s %d %s", r.Method, r.URL.Path, status, time.Since(start))
			return
		}
		log.Debug("%s %s %d %s", r.Method, r.URL.Path, status, time.Since(start))
	})
}
