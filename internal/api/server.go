package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/peakline/internal/config"
	"github.com/banshee-data/peakline/internal/httputil"
	"github.com/banshee-data/peakline/internal/monitoring"
	"github.com/banshee-data/peakline/internal/peaks"
	"github.com/banshee-data/peakline/internal/store"
	"github.com/banshee-data/peakline/internal/survey"
	"github.com/banshee-data/peakline/internal/version"
)

// Server exposes the detection pipeline over HTTP: run detection for a set of
// lines, then read back the persisted groups.
type Server struct {
	survey  *survey.Survey
	store   *store.Store
	base    *config.DetectionConfig
	workers int
}

// NewServer binds a survey, a results store and the base detection config.
// workers caps the per-request worker pool.
func NewServer(s *survey.Survey, st *store.Store, base *config.DetectionConfig, workers int) *Server {
	if workers < 1 {
		workers = 1
	}
	if base == nil {
		base = config.EmptyDetectionConfig()
	}
	return &Server{survey: s, store: st, base: base, workers: workers}
}

// Routes returns the API mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/params", s.handleParams)
	mux.HandleFunc("GET /api/lines", s.handleLines)
	mux.HandleFunc("GET /api/lines/{id}/groups", s.handleLineGroups)
	mux.HandleFunc("POST /api/detect", s.handleDetect)
	return mux
}

// loggingResponseWriter records the status code for request logging.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// WithLogging wraps a handler with per-request logging.
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startAt := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf("%s %s %d %s", r.Method, r.URL.Path, lrw.statusCode, time.Since(startAt))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.base.Params())
}

func (s *Server) handleLines(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"lines": s.survey.LineIDs(),
	})
}

func (s *Server) handleLineGroups(w http.ResponseWriter, r *http.Request) {
	lineID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		httputil.BadRequest(w, "invalid line id")
		return
	}
	groups, err := s.store.GroupsForLine(r.Context(), lineID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if groups == nil {
		groups = []store.GroupRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"line_id": lineID,
		"groups":  groups,
	})
}

// detectRequest is the body of POST /api/detect. Lines defaults to every
// line in the survey; Params overlays the server's base config.
type detectRequest struct {
	Lines  []int                   `json:"lines,omitempty"`
	Params *config.DetectionConfig `json:"params,omitempty"`
}

// detectLineStatus is one line/part entry of the detect response.
type detectLineStatus struct {
	LineID int `json:"line_id"`
	Part   int `json:"part"`
	Groups int `json:"groups"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}

	cfg := s.base.Merge(req.Params)
	driver, err := peaks.NewDriver(s.survey, cfg.Params())
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	lineIDs := req.Lines
	if len(lineIDs) == 0 {
		lineIDs = s.survey.LineIDs()
	}
	parts := make(map[int][][]int, len(lineIDs))
	for _, id := range lineIDs {
		indices := s.survey.LineIndices(id)
		if len(indices) == 0 {
			httputil.NotFound(w, "unknown line id "+strconv.Itoa(id))
			return
		}
		parts[id] = s.survey.Parts(indices, cfg.GetMaxPartGap())
	}

	results, err := peaks.Run(r.Context(), driver.ComputeLines(parts), s.workers)
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away mid-computation; nothing to report.
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}

	statuses := make([]detectLineStatus, 0, len(results))
	for _, res := range results {
		if err := s.store.SaveLineResult(context.WithoutCancel(r.Context()), res); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		statuses = append(statuses, detectLineStatus{
			LineID: res.LineID,
			Part:   res.Part,
			Groups: len(res.Groups),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": statuses,
	})
}
