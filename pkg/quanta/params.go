package quanta

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Algorithm selects the remote simulation backend.
type Algorithm string

const (
	// AlgorithmAuto lets the service pick a backend. Not allowed for
	// batch submissions.
	AlgorithmAuto Algorithm = "auto"
	// AlgorithmStatevector forces the state-vector simulator.
	AlgorithmStatevector Algorithm = "statevector"
	// AlgorithmMPS forces the matrix-product-state simulator.
	AlgorithmMPS Algorithm = "mps"
)

// Parameter bounds enforced by validation. Violations are rejected, never
// clamped.
const (
	MaxSamples = 65536

	MinBondDim     = 1
	MaxBondDim     = 4096
	DefaultBondDim = 256

	MinEntDim     = 4
	MaxEntDim     = 64
	DefaultEntDim = 16

	DefaultSamples = 1024

	// DefaultTimeLimit and DefaultMaxTimeLimit are in minutes. The
	// maximum is only a fallback: when the transport reports a
	// per-account limit, that value is injected instead.
	DefaultTimeLimit    = 5
	DefaultMaxTimeLimit = 60
)

// ExecutionParameters holds caller-supplied execution settings for one
// submission. NewParameters fills in the package defaults; values are
// validated as given, never resolved or clamped.
type ExecutionParameters struct {
	Algorithm  Algorithm
	Samples    int
	Amplitudes []string // bit-pattern targets for amplitude extraction
	TimeLimit  int      // wall-clock limit in minutes
	BondDim    int
	EntDim     int
	// ForceLowEntDim relaxes the lower entanglement-dimension bound
	// (with a warning). The upper bound is never relaxed.
	ForceLowEntDim bool
	Seed           int64
	Label          string
	Extra          map[string]any
}

// NewParameters returns parameters with the package defaults filled in.
func NewParameters() ExecutionParameters {
	return ExecutionParameters{
		Algorithm: AlgorithmAuto,
		Samples:   DefaultSamples,
		TimeLimit: DefaultTimeLimit,
		BondDim:   DefaultBondDim,
		EntDim:    DefaultEntDim,
	}
}

// ValidatedParameters is the immutable, fully resolved parameter set
// produced by validation. bondDim and entDim are zero when the resolved
// algorithm cannot use them; they are then omitted from the request
// entirely.
type ValidatedParameters struct {
	algorithm  Algorithm
	samples    int
	amplitudes []string
	timeLimit  int
	bondDim    int
	entDim     int
	seed       int64
	label      string
	extra      map[string]any
}

func (p *ValidatedParameters) Algorithm() Algorithm  { return p.algorithm }
func (p *ValidatedParameters) Samples() int          { return p.samples }
func (p *ValidatedParameters) Amplitudes() []string  { return append([]string(nil), p.amplitudes...) }
func (p *ValidatedParameters) TimeLimit() int        { return p.timeLimit }
func (p *ValidatedParameters) BondDim() int          { return p.bondDim }
func (p *ValidatedParameters) EntDim() int           { return p.entDim }
func (p *ValidatedParameters) Seed() int64           { return p.seed }
func (p *ValidatedParameters) Label() string         { return p.label }

// Validate checks the parameters against the submitted circuit sources and
// returns the resolved set or a ValidationError. maxTimeLimit is the
// applicable time-limit ceiling in minutes; pass 0 to use
// DefaultMaxTimeLimit. Validation has no side effects beyond the optional
// forced-entdim warning on log.
func (p ExecutionParameters) Validate(sources []CircuitSource, maxTimeLimit int, log zerolog.Logger) (*ValidatedParameters, error) {
	infos := make([]circuitInfo, len(sources))
	for i, src := range sources {
		info, err := src.inspect()
		if err != nil {
			return nil, err
		}
		infos[i] = info
	}
	return p.validate(infos, maxTimeLimit, log)
}

func (p ExecutionParameters) validate(infos []circuitInfo, maxTimeLimit int, log zerolog.Logger) (*ValidatedParameters, error) {
	if len(infos) == 0 {
		return nil, &ValidationError{Field: "circuits", Reason: "no circuits to submit"}
	}
	if maxTimeLimit <= 0 {
		maxTimeLimit = DefaultMaxTimeLimit
	}

	switch p.Algorithm {
	case AlgorithmAuto, AlgorithmStatevector, AlgorithmMPS:
	default:
		return nil, &ValidationError{
			Field:  "algorithm",
			Reason: fmt.Sprintf("unknown algorithm %q", p.Algorithm),
		}
	}

	if len(infos) > 1 && p.Algorithm == AlgorithmAuto {
		return nil, &ValidationError{
			Field:  "algorithm",
			Reason: "batch submissions must name an explicit backend, got auto",
		}
	}

	if p.Samples < 1 || p.Samples > MaxSamples {
		return nil, &ValidationError{
			Field:  "samples",
			Reason: fmt.Sprintf("must be between 1 and %d, got %d", MaxSamples, p.Samples),
		}
	}

	if p.TimeLimit <= 0 || p.TimeLimit > maxTimeLimit {
		return nil, &ValidationError{
			Field:  "timelimit",
			Reason: fmt.Sprintf("must be between 1 and %d minutes, got %d", maxTimeLimit, p.TimeLimit),
		}
	}

	for i, info := range infos {
		if info.Ops == 0 {
			return nil, &ValidationError{
				Field:  "circuits",
				Reason: fmt.Sprintf("circuit %d has no operations", i+1),
			}
		}
	}

	for _, target := range p.Amplitudes {
		if target == "" || strings.Trim(target, "01") != "" {
			return nil, &ValidationError{
				Field:  "amplitudes",
				Reason: fmt.Sprintf("target %q is not a bit string", target),
			}
		}
		for i, info := range infos {
			if len(target) != info.Qubits {
				return nil, &ValidationError{
					Field: "amplitudes",
					Reason: fmt.Sprintf("target %q has width %d but circuit %d has %d qubits",
						target, len(target), i+1, info.Qubits),
				}
			}
		}
	}

	vp := &ValidatedParameters{
		algorithm:  p.Algorithm,
		samples:    p.Samples,
		amplitudes: append([]string(nil), p.Amplitudes...),
		timeLimit:  p.TimeLimit,
		seed:       p.Seed,
		label:      p.Label,
		extra:      p.Extra,
	}

	// The MPS tuning knobs only exist for backends that can use them.
	// For anything else they are dropped, valid or not. Values are
	// checked as given: zero is out of range, not a request for the
	// default.
	if p.Algorithm == AlgorithmAuto || p.Algorithm == AlgorithmMPS {
		if p.BondDim < MinBondDim || p.BondDim > MaxBondDim {
			return nil, &ValidationError{
				Field:  "bonddim",
				Reason: fmt.Sprintf("must be between %d and %d, got %d", MinBondDim, MaxBondDim, p.BondDim),
			}
		}
		vp.bondDim = p.BondDim

		if p.EntDim < MinEntDim {
			if !p.ForceLowEntDim || p.EntDim < 1 {
				return nil, &ValidationError{
					Field:  "entdim",
					Reason: fmt.Sprintf("must be between %d and %d, got %d", MinEntDim, MaxEntDim, p.EntDim),
				}
			}
			log.Warn().
				Int("entdim", p.EntDim).
				Int("minimum", MinEntDim).
				Msg("Entanglement dimension below recommended minimum, forced by caller")
		}
		if p.EntDim > MaxEntDim {
			return nil, &ValidationError{
				Field:  "entdim",
				Reason: fmt.Sprintf("must be between %d and %d, got %d", MinEntDim, MaxEntDim, p.EntDim),
			}
		}
		vp.entDim = p.EntDim
	}

	return vp, nil
}
