package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ancsummary/pkg/archive"
	"github.com/matzehuels/ancsummary/pkg/cache"
	apperr "github.com/matzehuels/ancsummary/pkg/errors"
	"github.com/matzehuels/ancsummary/pkg/observability"
	"github.com/matzehuels/ancsummary/pkg/pipeline"
)

const (
	summaryTree = "(A:1,B:1);"

	stateLog = "Iteration\t1\t2\t3\n" +
		"0\t0\t1\t0\n" +
		"10\t0\t1\t1\n" +
		"20\t1\t1\t0\n" +
		"30\t0\t1\t0\n"

	historyLog = "Iteration\t1\t2\t3\n" +
		"0\t{1,0.5:0,0.5}\t{2,1}\t{0,0}\n" +
		"10\t{0,1}\t{2,1}\t{0,0}\n"
)

func newTestServer(t *testing.T) (*Server, *archive.MemoryArchive) {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(fc, nil, logger)
	arch := archive.NewMemoryArchive()
	runner.Archive = arch

	m := NewMetrics()
	m.Register()
	t.Cleanup(observability.Reset)
	return New(runner, logger, m), arch
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSummarizeStates(t *testing.T) {
	s, arch := newTestServer(t)
	h := s.Handler()

	body := map[string]any{
		"summary_tree": summaryTree,
		"state_log":    stateLog,
		"formats":      []string{"newick", "json"},
	}
	rec := do(t, h, http.MethodPost, "/v1/states", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Kind != pipeline.KindStates || resp.Samples != 4 || resp.Nodes != 3 {
		t.Errorf("resp = %+v", resp)
	}
	if !strings.Contains(resp.Artifacts["newick"], `anc_state_1="0"`) {
		t.Errorf("newick = %s", resp.Artifacts["newick"])
	}
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", rec.Header().Get("X-Cache"))
	}

	if _, err := arch.Get(context.Background(), resp.RunID); err != nil {
		t.Errorf("run %s not archived: %v", resp.RunID, err)
	}

	rec = do(t, h, http.MethodPost, "/v1/states", body)
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Errorf("second request X-Cache = %q, want HIT", rec.Header().Get("X-Cache"))
	}
}

func TestSummarizeRawFormat(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodPost, "/v1/transitions?format=tsv", map[string]any{
		"summary_tree": summaryTree,
		"state_log":    historyLog,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/tab-separated-values") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "iteration\t") {
		t.Errorf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("X-Run-ID") == "" {
		t.Error("missing X-Run-ID")
	}
}

func TestSummarizeErrors(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name   string
		target string
		body   any
		status int
		code   string
	}{
		{
			name:   "unknown kind",
			target: "/v1/phylogeny",
			body:   map[string]any{"summary_tree": summaryTree, "state_log": stateLog},
			status: http.StatusBadRequest,
			code:   "INVALID_CONFIG",
		},
		{
			name:   "burn-in too large",
			target: "/v1/states",
			body:   map[string]any{"summary_tree": summaryTree, "state_log": stateLog, "burnin": 4},
			status: http.StatusBadRequest,
			code:   "INVALID_BURNIN",
		},
		{
			name:   "zero slices",
			target: "/v1/charmap",
			body:   map[string]any{"summary_tree": summaryTree, "state_log": historyLog, "slices": 0},
			status: http.StatusBadRequest,
			code:   "INVALID_CONFIG",
		},
		{
			name:   "missing log",
			target: "/v1/states",
			body:   map[string]any{"summary_tree": summaryTree},
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "unknown field",
			target: "/v1/states",
			body:   map[string]any{"summary_tree": summaryTree, "state_log": stateLog, "state_log_file": "/etc/passwd"},
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "format for other kind",
			target: "/v1/transitions?format=svg",
			body:   map[string]any{"summary_tree": summaryTree, "state_log": historyLog},
			status: http.StatusBadRequest,
			code:   "INVALID_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.code)
			}
		})
	}
}

func TestRuns(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/v1/runs", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodPost, "/v1/charmap", map[string]any{
		"summary_tree": summaryTree,
		"state_log":    historyLog,
		"slices":       10,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("charmap status = %d, body = %s", rec.Code, rec.Body)
	}
	var created summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = do(t, h, http.MethodGet, "/v1/runs/"+created.RunID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get run status = %d", rec.Code)
	}
	var run archive.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}
	if run.Kind != pipeline.KindCharMap || run.Options["slices"] != "10" {
		t.Errorf("run = %+v", run)
	}

	rec = do(t, h, http.MethodGet, "/v1/runs/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/v1/runs?limit=x", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestHealthAndVersion(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/version", nil)
	if !strings.Contains(rec.Body.String(), `"go_version"`) {
		t.Errorf("version body = %s", rec.Body)
	}
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	do(t, h, http.MethodGet, "/healthz", nil)
	do(t, h, http.MethodPost, "/v1/states", map[string]any{
		"summary_tree": summaryTree,
		"state_log":    stateLog,
	})

	rec := do(t, h, http.MethodGet, "/metrics", nil)
	body := rec.Body.String()
	for _, want := range []string{
		`ancsummary_http_requests_total{method="GET",route="/healthz",status="200"} 1`,
		`ancsummary_http_requests_total{method="POST",route="/v1/{kind}",status="200"} 1`,
		`ancsummary_pipeline_summaries_total{kind="states",status="ok"} 1`,
		`ancsummary_cache_events_total{event="set",key_type="nexus"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.New(apperr.ErrCodeInvalidBurnin, "x"), http.StatusBadRequest},
		{apperr.New(apperr.ErrCodeFileNotFound, "x"), http.StatusNotFound},
		{apperr.New(apperr.ErrCodeMissingTrace, "x"), http.StatusUnprocessableEntity},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
