package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/cinefluent/internal/acquisition"
	"github.com/MimeLyc/cinefluent/internal/jobs"
	"github.com/MimeLyc/cinefluent/internal/persistence"
	"github.com/MimeLyc/cinefluent/internal/provider"
	"github.com/MimeLyc/cinefluent/internal/service"
)

const sampleVTT = "WEBVTT\n\n00:01.000 --> 00:03.000\nThe detective examined the letter.\n\n" +
	"00:35.000 --> 00:37.000\nSomebody was watching.\n"

type stubSearcher struct{}

func (stubSearcher) Name() string { return "stub" }

func (stubSearcher) Search(context.Context, provider.SearchRequest) ([]provider.Candidate, error) {
	return []provider.Candidate{{ID: "c-1", FileID: 1, Provider: "stub", Language: "en"}}, nil
}

func newTestServer(t *testing.T, searcher provider.Searcher) *Server {
	t.Helper()
	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "cinefluent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := service.New(service.Deps{
		Documents: store,
		Queue:     jobs.NewQueue(jobs.DefaultOptions, store),
		Cache:     acquisition.New(store, acquisition.DefaultOptions),
		Searcher:  searcher,
	}, service.DefaultOptions)
	require.NoError(t, err)
	return NewServer(svc)
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename, body string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/subtitles", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestServer_UploadThenReadSegments(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, uploadRequest(t, "movie.en.vtt", sampleVTT, map[string]string{
		"movie_id": "tt42",
		"language": "en",
		"title":    "Night Watch",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res service.UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.SubtitleID)
	assert.Equal(t, 2, res.TotalCues)
	assert.Equal(t, 2, res.TotalSegments)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/subtitles/"+res.SubtitleID+"/segments", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var segments service.SegmentList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &segments))
	assert.Equal(t, 2, segments.Total)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/subtitles/"+res.SubtitleID+"/cues", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "The detective examined the letter.")
}

func TestServer_UploadErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name     string
		filename string
		body     string
		fields   map[string]string
		status   int
		kind     string
	}{
		{
			name:     "bad timing",
			filename: "a.srt",
			body:     "1\n00:00:05,000 --> 00:00:01,000\nHi\n",
			fields:   map[string]string{"movie_id": "m", "language": "en"},
			status:   http.StatusUnprocessableEntity,
			kind:     "Parse",
		},
		{
			name:     "missing movie",
			filename: "a.srt",
			body:     "1\n00:00:01,000 --> 00:00:02,000\nHi\n",
			fields:   map[string]string{"language": "en"},
			status:   http.StatusBadRequest,
			kind:     "Validation",
		},
		{
			name:     "unsupported format",
			filename: "a.ass",
			body:     "[Script Info]",
			fields:   map[string]string{"movie_id": "m", "language": "en"},
			status:   http.StatusUnprocessableEntity,
			kind:     "Parse",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, uploadRequest(t, tt.filename, tt.body, tt.fields))
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body.Kind)
		})
	}
}

func TestServer_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/api/subtitles/nope/segments", "/api/subtitles/nope", "/api/jobs/job-9"} {
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestServer_Search(t *testing.T) {
	t.Run("no provider", func(t *testing.T) {
		srv := newTestServer(t, nil)
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?movie_id=m&language=en", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("miss then hit", func(t *testing.T) {
		srv := newTestServer(t, stubSearcher{})
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?movie_id=m&language=en&title=Night", nil))
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

		var first service.SearchResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
		require.Len(t, first.Jobs, 1)

		rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?movie_id=m&language=en&title=night", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var second service.SearchResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
		assert.True(t, second.Cached)

		rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/jobs/"+first.Jobs[0].ID, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"queued"`)

		rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var stats acquisition.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, 1, stats.ActiveEntries)
		assert.EqualValues(t, 1, stats.Hits)
	})

	t.Run("bad priority", func(t *testing.T) {
		srv := newTestServer(t, stubSearcher{})
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?movie_id=m&language=en&priority=11", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_SearchLanguages(t *testing.T) {
	srv := newTestServer(t, stubSearcher{})

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/search/languages?movie_id=m&title=Night&languages=en,fr", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body languagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "m", body.MovieID)
	require.Len(t, body.Languages, 2)
	require.Len(t, body.Languages["en"].Candidates, 1)
	assert.Equal(t, "c-1", body.Languages["en"].Candidates[0].ID)
	assert.Empty(t, body.Languages["fr"].Candidates)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/search/languages?movie_id=m", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SearchReportsStoredDocuments(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv, uploadRequest(t, "night.vtt", sampleVTT, map[string]string{"movie_id": "m9", "language": "en"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?movie_id=m9&language=en", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res service.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Stored)
	require.Len(t, res.Documents, 1)
}

func TestServer_Jobs(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/jobs",
		strings.NewReader(`{"movie_id":"m","language":"en","file_url":"https://example.com/m.srt","priority":2}`)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/jobs?status=queued", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list service.JobList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, 2, list.Jobs[0].Priority)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/jobs?status=paused", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_UsageAndStats(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/usage/opensubtitles", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"api":"opensubtitles"`)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/usage/opensubtitles?date=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, httptest.NewRequest(http.MethodPost, "/api/sweep", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
