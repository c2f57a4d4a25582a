package quanta

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Client submits circuit jobs over a Channel and hands out Job handles.
// It holds no shared mutable state between jobs: each submission owns its
// staging directory and each handle polls independently.
type Client struct {
	channel      Channel
	log          zerolog.Logger
	pollInterval time.Duration
	recorder     SubmissionRecorder

	mu           sync.Mutex
	maxTimeLimit int // minutes; 0 = ask the channel, fall back to default
}

// NewClient creates a client on top of a submission channel.
func NewClient(channel Channel) *Client {
	return &Client{
		channel:      channel,
		log:          zerolog.Nop(),
		pollInterval: time.Second,
	}
}

// SetLogger sets the logger for the client and the jobs it creates.
func (c *Client) SetLogger(log zerolog.Logger) {
	c.log = log.With().Str("component", "quanta").Logger()
}

// SetPollInterval sets the delay between job status checks.
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// SetMaxTimeLimit overrides the time-limit ceiling (minutes) instead of
// asking the service for the per-account value.
func (c *Client) SetMaxTimeLimit(minutes int) {
	c.mu.Lock()
	c.maxTimeLimit = minutes
	c.mu.Unlock()
}

// SetRecorder installs a submission recorder (e.g. the local history
// store).
func (c *Client) SetRecorder(r SubmissionRecorder) {
	c.recorder = r
}

// resolveMaxTimeLimit returns the applicable time-limit ceiling: the
// explicitly configured value, the per-account value reported by the
// channel, or the package default. The resolved value is cached on the
// client under mu; concurrent submissions may each fetch it once.
func (c *Client) resolveMaxTimeLimit(ctx context.Context) int {
	c.mu.Lock()
	cached := c.maxTimeLimit
	c.mu.Unlock()
	if cached > 0 {
		return cached
	}

	if limiter, ok := c.channel.(AccountLimiter); ok {
		max, err := limiter.AccountLimits(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("Failed to fetch account limits, using default time limit ceiling")
		} else if max > 0 {
			c.mu.Lock()
			c.maxTimeLimit = max
			c.mu.Unlock()
			return max
		}
	}
	return DefaultMaxTimeLimit
}

// Submit validates the parameters against the circuits, stages a request
// bundle, and sends it. The staging directory is removed before Submit
// returns, on success and failure alike. Validation failures surface as
// ValidationError before any network interaction with the job API.
func (c *Client) Submit(ctx context.Context, sources []CircuitSource, params ExecutionParameters) (*Job, error) {
	infos := make([]circuitInfo, len(sources))
	for i, src := range sources {
		info, err := src.inspect()
		if err != nil {
			return nil, err
		}
		infos[i] = info
	}

	vp, err := params.validate(infos, c.resolveMaxTimeLimit(ctx), c.log)
	if err != nil {
		return nil, err
	}

	bundle, err := buildBundle(sources, vp)
	if err != nil {
		return nil, err
	}
	defer bundle.cleanup()

	id, state, err := c.channel.Submit(ctx, bundle.dir, bundle.files, string(vp.algorithm), vp.label, vp.timeLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}
	if _, err := parseStatus(state); err != nil {
		return nil, err
	}

	c.log.Info().
		Str("job_id", id).
		Str("algorithm", string(vp.algorithm)).
		Int("circuits", len(sources)).
		Str("label", vp.label).
		Msg("Job submitted")

	if c.recorder != nil {
		if err := c.recorder.RecordSubmission(id, vp.label, string(vp.algorithm), len(sources)); err != nil {
			c.log.Warn().Err(err).Str("job_id", id).Msg("Failed to record submission")
		}
	}

	return c.Job(id), nil
}

// Job reconstructs a handle from a bare job identifier. The service is
// the source of truth for jobs, so nothing beyond the ID is needed.
func (c *Client) Job(id string) *Job {
	return &Job{
		ID:           id,
		channel:      c.channel,
		pollInterval: c.pollInterval,
		recorder:     c.recorder,
		log:          c.log,
	}
}

// Run submits a single circuit, waits for completion and returns its
// result.
func (c *Client) Run(ctx context.Context, source CircuitSource, params ExecutionParameters) (*SimulationResult, error) {
	job, err := c.Submit(ctx, []CircuitSource{source}, params)
	if err != nil {
		return nil, err
	}
	return job.Result(ctx)
}

// RunBatch submits several circuits as one job, waits for completion and
// returns one entry per circuit in submission order. Individual circuits
// may fail while the batch completes; inspect each entry.
func (c *Client) RunBatch(ctx context.Context, sources []CircuitSource, params ExecutionParameters) ([]ResultEntry, error) {
	job, err := c.Submit(ctx, sources, params)
	if err != nil {
		return nil, err
	}
	return job.Wait(ctx)
}
