package quanta

import "errors"

// genericRemoteMessage is used when the service reports a failed job
// without attaching any detail.
const genericRemoteMessage = "remote job errored"

// ValidationError reports caller-fixable input problems: bad parameter
// ranges, qubit-count mismatches, empty circuits, unrecognized circuit
// files. It is always raised before any network interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RemoteExecutionError reports a job that reached the ERROR state on the
// service. Message carries the server-supplied detail verbatim when one
// was attached.
type RemoteExecutionError struct {
	JobID   string
	Message string
}

func (e *RemoteExecutionError) Error() string {
	if e.Message == "" {
		return genericRemoteMessage
	}
	return e.Message
}

// IsRemoteExecution reports whether err is (or wraps) a RemoteExecutionError.
func IsRemoteExecution(err error) bool {
	var re *RemoteExecutionError
	return errors.As(err, &re)
}

// RemoteCancellationError reports a job that reached the CANCELED state.
// It is a distinct type so callers can branch differently from a genuine
// execution failure.
type RemoteCancellationError struct {
	JobID string
}

func (e *RemoteCancellationError) Error() string {
	return "remote job canceled: " + e.JobID
}

// IsRemoteCancellation reports whether err is (or wraps) a RemoteCancellationError.
func IsRemoteCancellation(err error) bool {
	var ce *RemoteCancellationError
	return errors.As(err, &ce)
}

// ResultIntegrityError reports a downloaded result bundle that is missing
// an expected artifact. This usually indicates a protocol mismatch between
// client and service versions.
type ResultIntegrityError struct {
	Missing string
}

func (e *ResultIntegrityError) Error() string {
	return "not a valid circuits result bundle: missing " + e.Missing
}

// IsResultIntegrity reports whether err is (or wraps) a ResultIntegrityError.
func IsResultIntegrity(err error) bool {
	var ie *ResultIntegrityError
	return errors.As(err, &ie)
}
