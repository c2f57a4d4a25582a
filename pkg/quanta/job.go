package quanta

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// JobStatus is the job lifecycle vocabulary exposed by the service.
// NEW and RUNNING are non-terminal; DONE, ERROR and CANCELED are terminal
// and no transition ever leaves them.
type JobStatus string

const (
	StatusNew      JobStatus = "NEW"
	StatusRunning  JobStatus = "RUNNING"
	StatusDone     JobStatus = "DONE"
	StatusError    JobStatus = "ERROR"
	StatusCanceled JobStatus = "CANCELED"
)

// Terminal reports whether no further transition can occur.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusError || s == StatusCanceled
}

func parseStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case StatusNew, StatusRunning, StatusDone, StatusError, StatusCanceled:
		return JobStatus(s), nil
	}
	return "", fmt.Errorf("service reported unknown job status %q", s)
}

// Job is a handle to a submitted job. The service is the source of truth
// for job state; a handle carries no client-side state beyond its
// identifier and can be reconstructed from a bare ID via Client.Job.
type Job struct {
	ID string

	channel      Channel
	pollInterval time.Duration
	recorder     SubmissionRecorder
	log          zerolog.Logger
}

// Status fetches the job's current state. The detail string carries the
// server-supplied error message for failed jobs, when present.
func (j *Job) Status(ctx context.Context) (JobStatus, string, error) {
	state, detail, err := j.channel.Status(ctx, j.ID)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch status of job %s: %w", j.ID, err)
	}
	status, err := parseStatus(state)
	if err != nil {
		return "", "", err
	}
	return status, detail, nil
}

// Wait polls the job at the configured interval until it reaches a
// terminal state, then fetches and decodes the results. Status checks are
// strictly sequential; the delay between them is a plain pause with no
// backoff. Cancelling ctx abandons the wait only; the remote job keeps
// running and can still be cancelled explicitly via Cancel.
//
// A job ending in ERROR yields a RemoteExecutionError carrying the
// server's message verbatim (or a generic one when none was attached); a
// job ending in CANCELED yields a RemoteCancellationError.
func (j *Job) Wait(ctx context.Context) ([]ResultEntry, error) {
	status, detail, err := j.Status(ctx)
	if err != nil {
		return nil, err
	}

	for !status.Terminal() {
		j.log.Debug().
			Str("job_id", j.ID).
			Str("status", string(status)).
			Msg("Job not finished, waiting")

		timer := time.NewTimer(j.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		status, detail, err = j.Status(ctx)
		if err != nil {
			return nil, err
		}
	}

	j.recordOutcome(status, detail)

	switch status {
	case StatusError:
		return nil, &RemoteExecutionError{JobID: j.ID, Message: detail}
	case StatusCanceled:
		return nil, &RemoteCancellationError{JobID: j.ID}
	}

	return j.fetchResults(ctx)
}

// Result waits for the job and returns the first result only. It is a
// convenience for single-circuit submissions: when the job produced more
// than one result, a warning is logged and the first is returned. A
// per-circuit remote failure on the first entry is returned as a
// RemoteExecutionError.
func (j *Job) Result(ctx context.Context) (*SimulationResult, error) {
	entries, err := j.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &ResultIntegrityError{Missing: "result entries"}
	}
	if len(entries) > 1 {
		j.log.Warn().
			Str("job_id", j.ID).
			Int("results", len(entries)).
			Msg("Job has multiple results, returning the first")
	}
	if entries[0].Err != nil {
		return nil, &RemoteExecutionError{JobID: j.ID, Message: entries[0].Err.Message}
	}
	return entries[0].Result, nil
}

// Cancel asks the service to cancel the remote job. It does not wait for
// the cancellation to take effect.
func (j *Job) Cancel(ctx context.Context) error {
	if err := j.channel.Cancel(ctx, j.ID); err != nil {
		return fmt.Errorf("failed to cancel job %s: %w", j.ID, err)
	}
	return nil
}

// DownloadResults fetches the raw result bundle into destDir without
// decoding it.
func (j *Job) DownloadResults(ctx context.Context, destDir string) ([]string, error) {
	names, err := j.channel.DownloadResults(ctx, j.ID, destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to download results of job %s: %w", j.ID, err)
	}
	return names, nil
}

// DownloadInputs fetches the files the job was submitted with into destDir.
func (j *Job) DownloadInputs(ctx context.Context, destDir string) ([]string, error) {
	names, err := j.channel.DownloadInputs(ctx, j.ID, destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to download inputs of job %s: %w", j.ID, err)
	}
	return names, nil
}

// fetchResults downloads the result bundle into a scratch directory,
// decodes it, and removes the directory again.
func (j *Job) fetchResults(ctx context.Context) ([]ResultEntry, error) {
	dir, err := os.MkdirTemp("", "quanta-results-")
	if err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	defer os.RemoveAll(dir)

	names, err := j.DownloadResults(ctx, dir)
	if err != nil {
		return nil, err
	}
	return decodeResults(dir, names)
}

func (j *Job) recordOutcome(status JobStatus, detail string) {
	if j.recorder == nil {
		return
	}
	if err := j.recorder.RecordOutcome(j.ID, string(status), detail); err != nil {
		j.log.Warn().Err(err).Str("job_id", j.ID).Msg("Failed to record job outcome")
	}
}
