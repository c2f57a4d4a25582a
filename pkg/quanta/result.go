package quanta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/stat"
)

// RemoteError is a per-circuit failure inside an otherwise DONE batch job.
// It is a data value in the result list, not a Go error: one circuit's
// failure must not prevent reading the other circuits' results.
type RemoteError struct {
	Message string `msgpack:"message" json:"message"`
}

func (e RemoteError) String() string { return e.Message }

// Amplitude is one requested complex amplitude.
type Amplitude struct {
	Re float64 `msgpack:"re" json:"re"`
	Im float64 `msgpack:"im" json:"im"`
}

// Complex returns the amplitude as a complex128.
func (a Amplitude) Complex() complex128 { return complex(a.Re, a.Im) }

// SimulationResult is the decoded outcome of one circuit's execution.
type SimulationResult struct {
	Simulator string `msgpack:"simulator" json:"simulator"`
	Version   string `msgpack:"version" json:"version"`

	// Timing is the per-phase wall-clock breakdown in seconds, e.g.
	// "parse", "simulate", "sample".
	Timing map[string]float64 `msgpack:"timing" json:"timing"`

	// Fidelity is the simulator's estimate for the produced state.
	Fidelity float64 `msgpack:"fidelity" json:"fidelity"`

	// AvgGateError is the estimated average multi-qubit gate error.
	AvgGateError float64 `msgpack:"avg_gate_error" json:"avg_gate_error"`

	// Counts maps sampled classical-register outcomes to occurrence
	// counts.
	Counts map[string]int `msgpack:"counts" json:"counts"`

	// Amplitudes are the requested amplitudes, aligned with the
	// submission's bitstring targets.
	Amplitudes []Amplitude `msgpack:"amplitudes,omitempty" json:"amplitudes,omitempty"`
}

// TotalSamples returns the number of samples across all outcomes.
func (r *SimulationResult) TotalSamples() int {
	total := 0
	for _, n := range r.Counts {
		total += n
	}
	return total
}

// Probabilities returns the sampled outcome distribution normalized to 1.
func (r *SimulationResult) Probabilities() map[string]float64 {
	total := float64(r.TotalSamples())
	probs := make(map[string]float64, len(r.Counts))
	if total == 0 {
		return probs
	}
	for outcome, n := range r.Counts {
		probs[outcome] = float64(n) / total
	}
	return probs
}

// Entropy returns the Shannon entropy (in nats) of the sampled outcome
// distribution.
func (r *SimulationResult) Entropy() float64 {
	probs := r.Probabilities()
	if len(probs) == 0 {
		return 0
	}
	outcomes := make([]string, 0, len(probs))
	for outcome := range probs {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	p := make([]float64, len(outcomes))
	for i, outcome := range outcomes {
		p[i] = probs[outcome]
	}
	return stat.Entropy(p)
}

// ResultEntry is the outcome for one submitted circuit: exactly one of
// Result and Err is set.
type ResultEntry struct {
	Result *SimulationResult
	Err    *RemoteError
}

// Failed reports whether this circuit failed remotely.
func (e ResultEntry) Failed() bool { return e.Err != nil }

// resultManifestEntry is one entry of the downloaded result manifest:
// either an inline error message or a reference to a result file.
type resultManifestEntry struct {
	Error string `json:"error,omitempty"`
	File  string `json:"file,omitempty"`
}

// decodeResults parses a downloaded result bundle into one entry per
// submitted circuit, order preserved. The bundle must contain the result
// manifest; entries referencing a missing result file fail with a
// ResultIntegrityError.
func decodeResults(dir string, files []string) ([]ResultEntry, error) {
	found := false
	for _, name := range files {
		if filepath.Base(name) == resultManifestName {
			found = true
			break
		}
	}
	if !found {
		return nil, &ResultIntegrityError{Missing: resultManifestName}
	}

	data, err := os.ReadFile(filepath.Join(dir, resultManifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read result manifest: %w", err)
	}

	var manifest []resultManifestEntry
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse result manifest: %w", err)
	}

	entries := make([]ResultEntry, 0, len(manifest))
	for _, m := range manifest {
		if m.Error != "" {
			entries = append(entries, ResultEntry{Err: &RemoteError{Message: m.Error}})
			continue
		}

		payload, err := os.ReadFile(filepath.Join(dir, m.File))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &ResultIntegrityError{Missing: m.File}
			}
			return nil, fmt.Errorf("failed to read result file %s: %w", m.File, err)
		}

		var result SimulationResult
		if err := msgpack.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("failed to decode result file %s: %w", m.File, err)
		}
		entries = append(entries, ResultEntry{Result: &result})
	}

	return entries, nil
}
