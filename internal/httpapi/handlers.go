package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MimeLyc/cinefluent/internal/acquisition"
	"github.com/MimeLyc/cinefluent/internal/jobs"
	"github.com/MimeLyc/cinefluent/internal/provider"
	"github.com/MimeLyc/cinefluent/internal/service"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	ext := r.FormValue("format")
	if ext == "" {
		ext = filepath.Ext(header.Filename)
	}
	res, err := s.svc.ProcessUpload(r.Context(), service.UploadRequest{
		Data:      data,
		Extension: ext,
		MovieID:   r.FormValue("movie_id"),
		Language:  r.FormValue("language"),
		Title:     r.FormValue("title"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetSubtitle(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := s.svc.GetSegments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, segments)
}

func (s *Server) handleGetCues(w http.ResponseWriter, r *http.Request) {
	cues, err := s.svc.GetCues(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cues)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	priority := 0
	if raw := q.Get("priority"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < jobs.HighestPriority || p > jobs.LowestPriority {
			writeError(w, http.StatusBadRequest, "priority must be between 1 and 10")
			return
		}
		priority = p
	}

	res, err := s.svc.Search(r.Context(), service.SearchRequest{
		MovieID:  q.Get("movie_id"),
		Language: q.Get("language"),
		Title:    q.Get("title"),
		IMDBID:   q.Get("imdb_id"),
		Year:     q.Get("year"),
		Priority: priority,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	code := http.StatusOK
	if !res.Cached && len(res.Jobs) > 0 {
		code = http.StatusAccepted
	}
	writeJSON(w, code, res)
}

type languagesResponse struct {
	MovieID   string                         `json:"movie_id"`
	Languages map[string]acquisition.Payload `json:"languages"`
}

// handleSearchLanguages accepts languages as a comma separated list, a
// repeated parameter, or both.
func (s *Server) handleSearchLanguages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var langs []string
	for _, raw := range q["languages"] {
		for _, lang := range strings.Split(raw, ",") {
			if lang = strings.TrimSpace(lang); lang != "" {
				langs = append(langs, lang)
			}
		}
	}

	res, err := s.svc.SearchLanguages(r.Context(), q.Get("movie_id"), q.Get("title"), langs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, languagesResponse{MovieID: q.Get("movie_id"), Languages: res})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.GetCacheStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListJobs(r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createJobRequest struct {
	MovieID  string `json:"movie_id"`
	Language string `json:"language"`
	Title    string `json:"title"`
	FileURL  string `json:"file_url"`
	Priority int    `json:"priority"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	job, err := s.svc.EnqueueURL(jobs.EnqueueRequest{
		MovieID:  req.MovieID,
		Language: req.Language,
		Title:    req.Title,
		FileURL:  req.FileURL,
		Priority: req.Priority,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

type jobResponse struct {
	*jobs.Job
	Error *errorBody `json:"error,omitempty"`
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.GetJob(chi.URLParam(r, "id"))
	if job == nil {
		writeServiceError(w, err)
		return
	}
	resp := jobResponse{Job: job}
	if err != nil {
		resp.Error = bodyFor(err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	var day time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	rows, err := s.svc.GetUsage(r.Context(), chi.URLParam(r, "api"), day)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"api":   chi.URLParam(r, "api"),
		"usage": rows,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Sweep(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func bodyFor(err error) *errorBody {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		return &errorBody{Error: svcErr.Message, Kind: svcErr.Kind.String()}
	}
	return &errorBody{Error: err.Error(), Kind: service.ErrInternal.String()}
}

func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.ErrValidation:
		return http.StatusBadRequest
	case service.ErrParse, service.ErrJobExhausted:
		return http.StatusUnprocessableEntity
	case service.ErrNotFound:
		return http.StatusNotFound
	case service.ErrFetch:
		if errors.Is(err, provider.ErrRateLimited) {
			return http.StatusTooManyRequests
		}
		if errors.Is(err, provider.ErrTimeout) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case service.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), bodyFor(err))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
