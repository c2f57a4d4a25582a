package quanta

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func writeResultFile(t *testing.T, dir, name string, result *SimulationResult) {
	t.Helper()
	payload, err := msgpack.Marshal(result)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), payload, 0o644))
}

func writeResultManifest(t *testing.T, dir string, entries []resultManifestEntry) {
	t.Helper()
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, resultManifestName), data, 0o644))
}

func TestDecodeResults_PartialFailurePreservesOrder(t *testing.T) {
	dir := t.TempDir()
	writeResultFile(t, dir, "result_1.res", &SimulationResult{Simulator: "quanta-sv", Counts: map[string]int{"0": 8}})
	writeResultFile(t, dir, "result_3.res", &SimulationResult{Simulator: "quanta-sv", Counts: map[string]int{"1": 8}})
	writeResultManifest(t, dir, []resultManifestEntry{
		{File: "result_1.res"},
		{Error: "mps did not converge"},
		{File: "result_3.res"},
	})

	entries, err := decodeResults(dir, []string{"result_1.res", "result_3.res", resultManifestName})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.False(t, entries[0].Failed())
	assert.Equal(t, map[string]int{"0": 8}, entries[0].Result.Counts)

	require.True(t, entries[1].Failed())
	assert.Equal(t, "mps did not converge", entries[1].Err.Message)
	assert.Nil(t, entries[1].Result)

	assert.False(t, entries[2].Failed())
	assert.Equal(t, map[string]int{"1": 8}, entries[2].Result.Counts)
}

func TestDecodeResults_MissingManifest(t *testing.T) {
	dir := t.TempDir()
	// A result file exists but must not be parsed without the manifest.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "result_1.res"), []byte{0xFF, 0xFF}, 0o644))

	_, err := decodeResults(dir, []string{"result_1.res"})
	require.Error(t, err)
	assert.True(t, IsResultIntegrity(err))
	assert.Contains(t, err.Error(), resultManifestName)
}

func TestDecodeResults_MissingReferencedFile(t *testing.T) {
	dir := t.TempDir()
	writeResultManifest(t, dir, []resultManifestEntry{{File: "result_1.res"}})

	_, err := decodeResults(dir, []string{resultManifestName})
	require.Error(t, err)
	assert.True(t, IsResultIntegrity(err))
	assert.Contains(t, err.Error(), "result_1.res")
}

func TestDecodeResults_CorruptResultFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "result_1.res"), []byte("not msgpack at all"), 0o644))
	writeResultManifest(t, dir, []resultManifestEntry{{File: "result_1.res"}})

	_, err := decodeResults(dir, []string{resultManifestName, "result_1.res"})
	require.Error(t, err)
	assert.False(t, IsResultIntegrity(err))
}

func TestSimulationResult_Probabilities(t *testing.T) {
	r := &SimulationResult{Counts: map[string]int{"00": 30, "11": 10}}

	assert.Equal(t, 40, r.TotalSamples())

	probs := r.Probabilities()
	assert.InDelta(t, 0.75, probs["00"], 1e-12)
	assert.InDelta(t, 0.25, probs["11"], 1e-12)
}

func TestSimulationResult_Entropy(t *testing.T) {
	uniform := &SimulationResult{Counts: map[string]int{"00": 5, "01": 5, "10": 5, "11": 5}}
	assert.InDelta(t, math.Log(4), uniform.Entropy(), 1e-12)

	deterministic := &SimulationResult{Counts: map[string]int{"0000": 100}}
	assert.InDelta(t, 0, deterministic.Entropy(), 1e-12)

	empty := &SimulationResult{}
	assert.Zero(t, empty.Entropy())
}

func TestAmplitude_Complex(t *testing.T) {
	a := Amplitude{Re: 0.5, Im: -0.5}
	assert.Equal(t, complex(0.5, -0.5), a.Complex())
}
