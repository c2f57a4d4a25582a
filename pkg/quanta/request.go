package quanta

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/entangle-io/quanta-go/internal/hash"
)

// Protocol constants shared with the service.
const (
	// Executor names the remote execution kind for circuit jobs.
	Executor = "Circuits"

	apiLang            = "go"
	apiVersion         = "1.3"
	circuitsAPIVersion = "1.1"

	circuitFilePrefix  = "circuit_"
	manifestFileName   = "circuits.json"
	metadataFileName   = "request.json"
	resultManifestName = "results.json"
)

// circuitDescriptor describes one staged circuit file in the manifest.
type circuitDescriptor struct {
	File   string      `json:"file"`
	Type   CircuitType `json:"type"`
	Digest string      `json:"digest"`
}

// requestManifest is the structured manifest staged alongside the circuit
// files ("circuits.json").
type requestManifest struct {
	Algorithm     Algorithm           `json:"algorithm"`
	Samples       int                 `json:"samples"`
	Seed          int64               `json:"seed"`
	Bitstrings    []string            `json:"bitstrings"`
	BondDimension int                 `json:"bondDimension,omitempty"`
	EntDimension  int                 `json:"entDimension,omitempty"`
	Extra         map[string]any      `json:"extra,omitempty"`
	Circuits      []circuitDescriptor `json:"circuits"`
}

// requestMetadata is the execution request descriptor ("request.json").
type requestMetadata struct {
	RequestID          string `json:"requestid"`
	Executor           string `json:"executor"`
	TimeLimit          int    `json:"timelimit"`
	APILang            string `json:"apilang"`
	APIVersion         string `json:"apiversion"`
	CircuitsAPIVersion string `json:"circuitsapiversion"`
}

// requestBundle is a staged submission: a temporary directory holding the
// manifest, the request metadata and one file per circuit. The bundle is
// exclusively owned by the build-and-submit sequence that created it and
// must be removed on every exit path.
type requestBundle struct {
	dir   string
	files []string // ordered: manifest, metadata, circuits in submission order
}

// cleanup removes the staging directory and everything in it.
func (b *requestBundle) cleanup() {
	if b.dir != "" {
		os.RemoveAll(b.dir)
	}
}

// buildBundle stages every circuit source into a fresh temporary
// directory, computes content digests, and writes the manifest and request
// metadata. On any failure the staging directory is removed before the
// error propagates; a partial bundle is never returned.
func buildBundle(sources []CircuitSource, vp *ValidatedParameters) (*requestBundle, error) {
	dir, err := os.MkdirTemp("", "quanta-request-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	bundle, err := stageInto(dir, sources, vp)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return bundle, nil
}

func stageInto(dir string, sources []CircuitSource, vp *ValidatedParameters) (*requestBundle, error) {
	descriptors := make([]circuitDescriptor, 0, len(sources))

	for i, src := range sources {
		info, err := src.inspect()
		if err != nil {
			return nil, err
		}

		name := fmt.Sprintf("%s%d%s", circuitFilePrefix, i+1, info.Type.Ext())
		dest := filepath.Join(dir, name)

		if src.circuit != nil {
			payload, err := src.circuit.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("failed to serialize circuit %d: %w", i+1, err)
			}
			if err := os.WriteFile(dest, payload, 0o644); err != nil {
				return nil, fmt.Errorf("failed to stage circuit %d: %w", i+1, err)
			}
		} else if err := copyFile(src.path, dest); err != nil {
			return nil, fmt.Errorf("failed to stage circuit %d: %w", i+1, err)
		}

		digest, err := hash.File(dest)
		if err != nil {
			return nil, fmt.Errorf("failed to digest circuit %d: %w", i+1, err)
		}

		descriptors = append(descriptors, circuitDescriptor{File: name, Type: info.Type, Digest: digest})
	}

	manifest := requestManifest{
		Algorithm:     vp.algorithm,
		Samples:       vp.samples,
		Seed:          vp.seed,
		Bitstrings:    vp.amplitudes,
		BondDimension: vp.bondDim,
		EntDimension:  vp.entDim,
		Extra:         vp.extra,
		Circuits:      descriptors,
	}
	if manifest.Bitstrings == nil {
		manifest.Bitstrings = []string{}
	}
	if err := writeJSON(filepath.Join(dir, manifestFileName), manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	metadata := requestMetadata{
		RequestID:          uuid.NewString(),
		Executor:           Executor,
		TimeLimit:          vp.timeLimit,
		APILang:            apiLang,
		APIVersion:         apiVersion,
		CircuitsAPIVersion: circuitsAPIVersion,
	}
	if err := writeJSON(filepath.Join(dir, metadataFileName), metadata); err != nil {
		return nil, fmt.Errorf("failed to write request metadata: %w", err)
	}

	files := []string{
		filepath.Join(dir, manifestFileName),
		filepath.Join(dir, metadataFileName),
	}
	for _, d := range descriptors {
		files = append(files, filepath.Join(dir, d.File))
	}

	return &requestBundle{dir: dir, files: files}, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
