package quanta

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// statusStep is one scripted Status response.
type statusStep struct {
	state  string
	detail string
}

// fakeChannel is a scripted Channel for lifecycle tests.
type fakeChannel struct {
	mu sync.Mutex

	script      []statusStep
	statusCalls int

	submitID    string
	submitState string
	submitErr   error
	submittedDir   string
	submittedFiles []string
	submittedAlg   string
	submittedLabel string
	submittedLimit int

	// results maps file name to content, written into destDir on
	// DownloadResults.
	results       map[string][]byte
	downloadCalls int
	cancelCalls   int

	maxTimeLimit int
}

func (f *fakeChannel) Submit(_ context.Context, dir string, files []string, algorithm, label string, timeLimitMin int) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", "", f.submitErr
	}
	f.submittedDir = dir
	f.submittedFiles = append([]string(nil), files...)
	f.submittedAlg = algorithm
	f.submittedLabel = label
	f.submittedLimit = timeLimitMin
	id := f.submitID
	if id == "" {
		id = "job-1"
	}
	state := f.submitState
	if state == "" {
		state = "NEW"
	}
	return id, state, nil
}

func (f *fakeChannel) Status(context.Context, string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusCalls >= len(f.script) {
		return "", "", errors.New("status called past end of script")
	}
	step := f.script[f.statusCalls]
	f.statusCalls++
	return step.state, step.detail, nil
}

func (f *fakeChannel) DownloadResults(_ context.Context, _ string, destDir string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadCalls++
	names := make([]string, 0, len(f.results))
	for name, content := range f.results {
		if err := os.WriteFile(filepath.Join(destDir, name), content, 0o644); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeChannel) DownloadInputs(context.Context, string, string) ([]string, error) {
	return nil, nil
}

func (f *fakeChannel) Cancel(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return nil
}

func (f *fakeChannel) AccountLimits(context.Context) (int, error) {
	if f.maxTimeLimit == 0 {
		return 0, errors.New("limits unavailable")
	}
	return f.maxTimeLimit, nil
}

// successBundle builds downloadable result files for n circuits.
func successBundle(t *testing.T, n int) map[string][]byte {
	t.Helper()
	type entry struct {
		Error string `json:"error,omitempty"`
		File  string `json:"file,omitempty"`
	}
	entries := make([]entry, 0, n)
	files := make(map[string][]byte)
	for i := 1; i <= n; i++ {
		name := "result_" + string(rune('0'+i)) + ".res"
		payload, err := msgpack.Marshal(&SimulationResult{
			Simulator: "quanta-mps",
			Version:   "2.4.1",
			Counts:    map[string]int{"00": 10, "11": 6},
			Fidelity:  0.99,
		})
		require.NoError(t, err)
		files[name] = payload
		entries = append(entries, entry{File: name})
	}
	manifest, err := json.Marshal(entries)
	require.NoError(t, err)
	files["results.json"] = manifest
	return files
}

func fastJob(ch Channel) *Job {
	c := NewClient(ch)
	c.SetPollInterval(time.Millisecond)
	return c.Job("job-1")
}

func TestJobWait_PollsUntilDone(t *testing.T) {
	ch := &fakeChannel{
		script: []statusStep{
			{state: "NEW"}, {state: "NEW"}, {state: "RUNNING"}, {state: "DONE"},
		},
		results: successBundle(t, 1),
	}

	entries, err := fastJob(ch).Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, ch.statusCalls, "one status call per scripted state")
	assert.Equal(t, 1, ch.downloadCalls, "decode triggered exactly once")
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Failed())
	assert.Equal(t, "quanta-mps", entries[0].Result.Simulator)
}

func TestJobWait_ErrorWithDetail(t *testing.T) {
	ch := &fakeChannel{
		script: []statusStep{
			{state: "RUNNING"},
			{state: "ERROR", detail: "timelimit exceeded on node 7"},
		},
	}

	_, err := fastJob(ch).Wait(context.Background())
	require.Error(t, err)
	assert.True(t, IsRemoteExecution(err))
	assert.Equal(t, "timelimit exceeded on node 7", err.Error())
	assert.Zero(t, ch.downloadCalls)
}

func TestJobWait_ErrorWithoutDetail(t *testing.T) {
	ch := &fakeChannel{script: []statusStep{{state: "ERROR"}}}

	_, err := fastJob(ch).Wait(context.Background())
	require.Error(t, err)
	assert.True(t, IsRemoteExecution(err))
	assert.Equal(t, "remote job errored", err.Error())
}

func TestJobWait_Canceled(t *testing.T) {
	ch := &fakeChannel{script: []statusStep{{state: "NEW"}, {state: "CANCELED"}}}

	_, err := fastJob(ch).Wait(context.Background())
	require.Error(t, err)
	assert.True(t, IsRemoteCancellation(err))
	assert.False(t, IsRemoteExecution(err), "cancellation must not take the error path")
}

func TestJobWait_ContextCancellation(t *testing.T) {
	// An endless stream of RUNNING states; the wait must stop when the
	// context does, while the remote job is untouched.
	steps := make([]statusStep, 100)
	for i := range steps {
		steps[i] = statusStep{state: "RUNNING"}
	}
	ch := &fakeChannel{script: steps}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(ch)
	c.SetPollInterval(5 * time.Millisecond)
	_, err := c.Job("job-1").Wait(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, ch.cancelCalls, "abandoning the wait must not cancel the remote job")
}

func TestJobWait_UnknownStatus(t *testing.T) {
	ch := &fakeChannel{script: []statusStep{{state: "EXPLODED"}}}

	_, err := fastJob(ch).Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXPLODED")
}

func TestJobResult_SingleResult(t *testing.T) {
	ch := &fakeChannel{
		script:  []statusStep{{state: "DONE"}},
		results: successBundle(t, 1),
	}

	result, err := fastJob(ch).Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, result.TotalSamples())
}

func TestJobResult_WarnsAndReturnsFirstOfMany(t *testing.T) {
	ch := &fakeChannel{
		script:  []statusStep{{state: "DONE"}},
		results: successBundle(t, 3),
	}

	result, err := fastJob(ch).Result(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestJobResult_FirstEntryFailed(t *testing.T) {
	files := map[string][]byte{
		"results.json": []byte(`[{"error":"qubit budget exceeded"}]`),
	}
	ch := &fakeChannel{
		script:  []statusStep{{state: "DONE"}},
		results: files,
	}

	_, err := fastJob(ch).Result(context.Background())
	require.Error(t, err)
	assert.True(t, IsRemoteExecution(err))
	assert.Equal(t, "qubit budget exceeded", err.Error())
}

func TestJobCancel(t *testing.T) {
	ch := &fakeChannel{}
	require.NoError(t, fastJob(ch).Cancel(context.Background()))
	assert.Equal(t, 1, ch.cancelCalls)
}

func TestJobStatus_Detail(t *testing.T) {
	ch := &fakeChannel{script: []statusStep{{state: "ERROR", detail: "boom"}}}

	status, detail, err := fastJob(ch).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusError, status)
	assert.Equal(t, "boom", detail)
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, StatusNew.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusDone.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.True(t, StatusCanceled.Terminal())
}
