// Package hash computes content digests for staged artifact files.
// The remote service uses these digests to deduplicate and verify uploads,
// so the digest must be a pure function of the file bytes.
package hash

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// File calculates the SHA256 digest of a file, streaming its contents.
// The returned string is prefixed with the algorithm name, e.g.
// "sha256:9f86d0...". An I/O failure is returned as-is; a partial digest
// is never produced.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}

// Bytes calculates the SHA256 digest of an in-memory payload using the
// same format as File.
func Bytes(data []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}
