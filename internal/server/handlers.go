package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/ancsummary/pkg/archive"
	"github.com/matzehuels/ancsummary/pkg/buildinfo"
	apperr "github.com/matzehuels/ancsummary/pkg/errors"
	"github.com/matzehuels/ancsummary/pkg/pipeline"
)

// contentTypes maps artifact formats to response content types.
var contentTypes = map[string]string{
	pipeline.FormatNewick: "text/x-newick; charset=utf-8",
	pipeline.FormatNEXUS:  "text/x-nexus; charset=utf-8",
	pipeline.FormatJSON:   "application/json",
	pipeline.FormatDOT:    "text/vnd.graphviz; charset=utf-8",
	pipeline.FormatSVG:    "image/svg+xml",
	pipeline.FormatPNG:    "image/png",
	pipeline.FormatPDF:    "application/pdf",
	pipeline.FormatTSV:    "text/tab-separated-values; charset=utf-8",
}

// summaryResponse is the JSON envelope of a summary request. Text artifacts
// are returned as strings, binary ones (png, pdf) base64-encoded.
type summaryResponse struct {
	RunID     string            `json:"run_id"`
	Kind      string            `json:"kind"`
	CacheHit  bool              `json:"cache_hit"`
	Samples   int               `json:"samples"`
	Burnin    int               `json:"burnin"`
	Nodes     int               `json:"nodes"`
	Duration  string            `json:"duration"`
	Artifacts map[string]string `json:"artifacts"`
	Binary    map[string][]byte `json:"binary,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var opts pipeline.Options
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, apperr.New(apperr.ErrCodeInvalidInput, "request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeError(w, http.StatusBadRequest, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	opts.Kind = chi.URLParam(r, "kind")
	opts.Logger = s.Logger

	raw := r.URL.Query().Get("format")
	if raw != "" {
		opts.Formats = []string{raw}
	}

	res, err := s.Runner.Execute(r.Context(), opts)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	if raw != "" {
		w.Header().Set("Content-Type", contentTypes[raw])
		w.Header().Set("X-Run-ID", res.RunID)
		w.Header().Set("X-Cache", cacheHeader(res.CacheHit))
		w.Write(res.Artifacts[raw])
		return
	}

	resp := summaryResponse{
		RunID:     res.RunID,
		Kind:      res.Kind,
		CacheHit:  res.CacheHit,
		Samples:   res.Stats.Samples,
		Burnin:    res.Stats.Burnin,
		Nodes:     res.Stats.Nodes,
		Duration:  time.Since(start).String(),
		Artifacts: make(map[string]string, len(res.Artifacts)),
	}
	for format, data := range res.Artifacts {
		if format == pipeline.FormatPNG || format == pipeline.FormatPDF || !utf8.Valid(data) {
			if resp.Binary == nil {
				resp.Binary = make(map[string][]byte)
			}
			resp.Binary[format] = data
			continue
		}
		resp.Artifacts[format] = string(data)
	}
	w.Header().Set("X-Cache", cacheHeader(res.CacheHit))
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := archive.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, apperr.New(apperr.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		limit = n
	}
	runs, err := s.Runner.Archive.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []archive.Run{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.Runner.Archive.Get(r.Context(), id)
	if errors.Is(err, archive.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, apperr.New(apperr.ErrCodeNotFound, "run %s not found", id))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, buildinfo.Get())
}

// =============================================================================
// Responses
// =============================================================================

// statusFor maps a pipeline error to an HTTP status: configuration errors
// are the caller's fault, missing resources are 404, the rest 500.
func statusFor(err error) int {
	switch {
	case apperr.IsConfiguration(err):
		return http.StatusBadRequest
	case apperr.Is(err, apperr.ErrCodeNotFound), apperr.Is(err, apperr.ErrCodeFileNotFound):
		return http.StatusNotFound
	case apperr.Is(err, apperr.ErrCodeMissingTrace), apperr.Is(err, apperr.ErrCodeNoSamples), apperr.Is(err, apperr.ErrCodeDecode):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	code := apperr.GetCode(err)
	if code == "" {
		code = apperr.ErrCodeInternal
	}
	msg := apperr.UserMessage(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: errorBody{Code: string(code), Message: msg}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("write response", "error", err)
	}
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
