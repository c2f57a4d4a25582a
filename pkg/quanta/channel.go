package quanta

import "context"

// Channel is the capability interface to the remote execution service.
// Implementations own their transport concerns (auth, retries, file
// movement); this package never reinterprets their errors. Signatures use
// plain types so implementations need not import this package.
type Channel interface {
	// Submit sends a staged request bundle and returns the new job's
	// identifier and initial state.
	Submit(ctx context.Context, bundleDir string, files []string, algorithm, label string, timeLimitMin int) (jobID, state string, err error)

	// Status reports the job's current state plus optional detail (for
	// failed jobs, the server-supplied error message).
	Status(ctx context.Context, jobID string) (state, detail string, err error)

	// DownloadResults fetches the job's result bundle into destDir and
	// returns the downloaded file names.
	DownloadResults(ctx context.Context, jobID, destDir string) ([]string, error)

	// DownloadInputs fetches the job's submitted input files into destDir.
	DownloadInputs(ctx context.Context, jobID, destDir string) ([]string, error)

	// Cancel asks the service to cancel the job.
	Cancel(ctx context.Context, jobID string) error
}

// AccountLimiter is implemented by channels that can report the
// per-account maximum time limit in minutes.
type AccountLimiter interface {
	AccountLimits(ctx context.Context) (maxTimeLimitMin int, err error)
}

// SubmissionRecorder receives submission lifecycle notifications, e.g. for
// a local history store. Recording failures are logged, never fatal.
type SubmissionRecorder interface {
	RecordSubmission(jobID, label, algorithm string, circuits int) error
	RecordOutcome(jobID, status, message string) error
}
