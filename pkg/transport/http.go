package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/entangle-io/quanta-go/internal/hash"
)

const defaultBaseURL = "https://api.quanta-cloud.io"

// JobFile describes one file attached to a job, referenced by the key it
// lives under in the artifact store.
type JobFile struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
}

type submitRequest struct {
	Algorithm string    `json:"algorithm"`
	Label     string    `json:"label"`
	TimeLimit int       `json:"timelimit"`
	Files     []JobFile `json:"files"`
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type filesResponse struct {
	Files []JobFile `json:"files"`
}

type limitsResponse struct {
	MaxTimeLimitMinutes int `json:"max_timelimit_minutes"`
}

// Client is the HTTP submission channel. It satisfies the quanta Channel
// and AccountLimiter contracts.
type Client struct {
	baseURL    string
	token      string
	store      ArtifactStore
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a transport client against the given endpoint. Pass
// an empty endpoint to use the public service URL. The artifact store
// carries the actual file bytes; the API only sees digests and keys.
func NewClient(endpoint, token string, store ArtifactStore, log zerolog.Logger) *Client {
	if endpoint == "" {
		endpoint = defaultBaseURL
	}
	return &Client{
		baseURL: endpoint,
		token:   token,
		store:   store,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("component", "transport").Logger(),
	}
}

// Submit uploads the staged files and creates the job.
func (c *Client) Submit(ctx context.Context, bundleDir string, files []string, algorithm, label string, timeLimitMin int) (string, string, error) {
	jobFiles := make([]JobFile, 0, len(files))
	for _, path := range files {
		digest, err := hash.File(path)
		if err != nil {
			return "", "", fmt.Errorf("failed to digest %s: %w", path, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return "", "", fmt.Errorf("failed to stat %s: %w", path, err)
		}

		key := "artifacts/" + digest
		if err := c.store.Upload(ctx, key, path); err != nil {
			return "", "", fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
		}

		jobFiles = append(jobFiles, JobFile{
			Name:   filepath.Base(path),
			Key:    key,
			Digest: digest,
			Size:   info.Size(),
		})
	}

	req := submitRequest{
		Algorithm: algorithm,
		Label:     label,
		TimeLimit: timeLimitMin,
		Files:     jobFiles,
	}

	var resp jobResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/jobs", req, &resp); err != nil {
		return "", "", err
	}

	c.log.Debug().
		Str("job_id", resp.ID).
		Int("files", len(jobFiles)).
		Msg("Submitted job")

	return resp.ID, resp.Status, nil
}

// Status fetches the job's state and error detail.
func (c *Client) Status(ctx context.Context, jobID string) (string, string, error) {
	var resp jobResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return "", "", err
	}
	return resp.Status, resp.Detail, nil
}

// DownloadResults fetches the job's output files into destDir.
func (c *Client) DownloadResults(ctx context.Context, jobID, destDir string) ([]string, error) {
	return c.downloadFiles(ctx, jobID, "output", destDir)
}

// DownloadInputs fetches the job's submitted input files into destDir.
func (c *Client) DownloadInputs(ctx context.Context, jobID, destDir string) ([]string, error) {
	return c.downloadFiles(ctx, jobID, "input", destDir)
}

func (c *Client) downloadFiles(ctx context.Context, jobID, kind, destDir string) ([]string, error) {
	var resp filesResponse
	path := "/api/v1/jobs/" + url.PathEscape(jobID) + "/files?kind=" + kind
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.Files))
	for _, f := range resp.Files {
		if err := c.store.Download(ctx, f.Key, filepath.Join(destDir, f.Name)); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}
		names = append(names, f.Name)
	}
	return names, nil
}

// Cancel asks the service to cancel the job.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(jobID)+"/cancel", nil, nil)
}

// AccountLimits reports the per-account maximum time limit in minutes.
func (c *Client) AccountLimits(ctx context.Context) (int, error) {
	var resp limitsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/account/limits", nil, &resp); err != nil {
		return 0, err
	}
	return resp.MaxTimeLimitMinutes, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, bytes.TrimSpace(payload))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
