// Package quantatest provides an in-process fake of the Quanta service
// for offline tests: a chi-routed HTTP API backed by a local artifact
// directory. Jobs advance one lifecycle step per status poll and produce
// canned, decodable result bundles.
package quantatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/entangle-io/quanta-go/pkg/quanta"
)

type jobFile struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
}

type submitRequest struct {
	Algorithm string    `json:"algorithm"`
	Label     string    `json:"label"`
	TimeLimit int       `json:"timelimit"`
	Files     []jobFile `json:"files"`
}

type jobRecord struct {
	id        string
	algorithm string
	label     string
	script    []string // remaining states, consumed one per status poll
	status    string
	detail    string
	inputs    []jobFile
	outputs   []jobFile
}

// Service is the fake Quanta service. Zero-value knobs give a job that
// goes NEW, RUNNING, DONE and succeeds for every circuit.
type Service struct {
	mu   sync.Mutex
	jobs map[string]*jobRecord

	artifactRoot string
	log          zerolog.Logger

	// Script overrides the per-poll state sequence for jobs submitted
	// after it is set, e.g. {"NEW", "RUNNING", "ERROR"}.
	Script []string
	// ErrorDetail is attached to jobs that end in ERROR.
	ErrorDetail string
	// FailCircuits maps 1-based circuit indexes to inline error
	// messages, producing per-circuit failures in DONE jobs.
	FailCircuits map[int]string
	// OmitResultManifest produces a result bundle without results.json,
	// for integrity-error tests.
	OmitResultManifest bool
	// MaxTimeLimitMinutes is reported by the account limits endpoint.
	MaxTimeLimitMinutes int
}

// NewService creates a fake service sharing artifactRoot with a
// transport.DirStore.
func NewService(artifactRoot string, log zerolog.Logger) *Service {
	return &Service{
		jobs:                make(map[string]*jobRecord),
		artifactRoot:        artifactRoot,
		log:                 log.With().Str("component", "fake_service").Logger(),
		MaxTimeLimitMinutes: 120,
	}
}

// Router returns the HTTP API.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/jobs", s.handleSubmit)
	r.Get("/api/v1/jobs/{jobID}", s.handleStatus)
	r.Get("/api/v1/jobs/{jobID}/files", s.handleFiles)
	r.Post("/api/v1/jobs/{jobID}/cancel", s.handleCancel)
	r.Get("/api/v1/account/limits", s.handleLimits)
	return r
}

// Start runs the fake service on an httptest server. The caller owns the
// returned server and must Close it.
func (s *Service) Start() *httptest.Server {
	return httptest.NewServer(s.Router())
}

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad submit payload", http.StatusBadRequest)
		return
	}

	script := s.Script
	if len(script) == 0 {
		script = []string{"NEW", "RUNNING", "DONE"}
	}

	job := &jobRecord{
		id:        uuid.NewString(),
		algorithm: req.Algorithm,
		label:     req.Label,
		script:    append([]string(nil), script...),
		status:    "NEW",
		inputs:    req.Files,
	}

	s.mu.Lock()
	s.jobs[job.id] = job
	s.mu.Unlock()

	s.log.Debug().Str("job_id", job.id).Str("label", job.label).Msg("Accepted job")
	writeJSON(w, map[string]string{"id": job.id, "status": "NEW"})
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[chi.URLParam(r, "jobID")]
	if !ok {
		http.Error(w, "no such job", http.StatusNotFound)
		return
	}

	// Terminal states are sticky; otherwise consume the next scripted
	// state on each poll.
	if !terminal(job.status) && len(job.script) > 0 {
		job.status = job.script[0]
		job.script = job.script[1:]

		if job.status == "ERROR" {
			job.detail = s.ErrorDetail
		}
		if job.status == "DONE" && job.outputs == nil {
			if err := s.produceResults(job); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
	}

	writeJSON(w, map[string]string{"id": job.id, "status": job.status, "detail": job.detail})
}

func (s *Service) handleFiles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[chi.URLParam(r, "jobID")]
	if !ok {
		http.Error(w, "no such job", http.StatusNotFound)
		return
	}

	files := job.inputs
	if r.URL.Query().Get("kind") == "output" {
		files = job.outputs
	}
	writeJSON(w, map[string]any{"files": files})
}

func (s *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[chi.URLParam(r, "jobID")]
	if !ok {
		http.Error(w, "no such job", http.StatusNotFound)
		return
	}
	if !terminal(job.status) {
		job.status = "CANCELED"
		job.script = nil
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleLimits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]int{"max_timelimit_minutes": s.MaxTimeLimitMinutes})
}

// produceResults writes a decodable result bundle for the job into the
// artifact root: result files plus the result manifest, unless
// OmitResultManifest is set.
func (s *Service) produceResults(job *jobRecord) error {
	manifest, err := s.readCircuitManifest(job)
	if err != nil {
		return err
	}

	circuits := len(manifest.Circuits)
	if circuits == 0 {
		circuits = 1
	}

	type manifestEntry struct {
		Error string `json:"error,omitempty"`
		File  string `json:"file,omitempty"`
	}

	entries := make([]manifestEntry, 0, circuits)
	for i := 1; i <= circuits; i++ {
		if msg, ok := s.FailCircuits[i]; ok {
			entries = append(entries, manifestEntry{Error: msg})
			continue
		}

		name := fmt.Sprintf("result_%d.res", i)
		payload, err := msgpack.Marshal(cannedResult(job.algorithm, manifest))
		if err != nil {
			return err
		}
		if err := s.writeOutput(job, name, payload); err != nil {
			return err
		}
		entries = append(entries, manifestEntry{File: name})
	}

	if s.OmitResultManifest {
		return nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.writeOutput(job, "results.json", data)
}

type circuitManifest struct {
	Samples    int      `json:"samples"`
	Bitstrings []string `json:"bitstrings"`
	Circuits   []struct {
		File string `json:"file"`
		Type string `json:"type"`
	} `json:"circuits"`
}

// readCircuitManifest loads the staged circuits.json the client uploaded.
func (s *Service) readCircuitManifest(job *jobRecord) (*circuitManifest, error) {
	var manifest circuitManifest
	for _, f := range job.inputs {
		if f.Name != "circuits.json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.artifactRoot, filepath.FromSlash(f.Key)))
		if err != nil {
			return nil, fmt.Errorf("fake service cannot read uploaded manifest: %w", err)
		}
		if err := json.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("fake service cannot parse uploaded manifest: %w", err)
		}
		return &manifest, nil
	}
	return &manifest, nil
}

func (s *Service) writeOutput(job *jobRecord, name string, data []byte) error {
	key := "jobs/" + job.id + "/output/" + name
	path := filepath.Join(s.artifactRoot, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	job.outputs = append(job.outputs, jobFile{Name: name, Key: key, Size: int64(len(data))})
	return nil
}

// cannedResult builds a deterministic result whose counts and amplitudes
// line up with the submitted parameters.
func cannedResult(algorithm string, manifest *circuitManifest) *quanta.SimulationResult {
	samples := manifest.Samples
	if samples == 0 {
		samples = 1
	}

	width := 1
	if len(manifest.Bitstrings) > 0 {
		width = len(manifest.Bitstrings[0])
	}

	simulator := "quanta-sv"
	if algorithm == "mps" {
		simulator = "quanta-mps"
	}

	result := &quanta.SimulationResult{
		Simulator: simulator,
		Version:   "2.4.1",
		Timing: map[string]float64{
			"parse":    0.002,
			"simulate": 0.183,
			"sample":   0.011,
		},
		Fidelity:     0.997,
		AvgGateError: 0.0004,
		Counts: map[string]int{
			strings.Repeat("0", width): samples,
		},
	}
	for range manifest.Bitstrings {
		result.Amplitudes = append(result.Amplitudes, quanta.Amplitude{Re: 1, Im: 0})
	}
	return result
}

func terminal(status string) bool {
	return status == "DONE" || status == "ERROR" || status == "CANCELED"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
