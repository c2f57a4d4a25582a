// Package transport implements the submission channel to the Quanta
// service: a JSON HTTP API for job control plus an artifact store for
// moving circuit and result files. Files are addressed by their content
// digest so the service can deduplicate uploads.
package transport

import "context"

// ArtifactStore moves files between the local filesystem and the
// service's artifact storage.
type ArtifactStore interface {
	// Upload stores the file at path under the given key.
	Upload(ctx context.Context, key, path string) error
	// Download fetches the object under key into destPath.
	Download(ctx context.Context, key, destPath string) error
}
