// Package causal tests every (effect, cause) series pair for lagged causality with a Granger
// F-test and a transfer-entropy estimate, and keeps the pairs that pass either.
package causal

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	r "github.com/invertedv/rca"
)

const (
	DefaultMaxLag              = 6
	DefaultAlpha               = 0.05
	DefaultMinExplainedEntropy = 0.1
	DefaultBins                = 3
	DefaultSurrogates          = 100
)

type Engine struct {
	maxLag int
	alpha  float64
	minEE  float64
	bins   int
	surr   int

	log *slog.Logger
}

// Opt configures an Engine.
type Opt func(e *Engine) error

func MaxLag(lag int) Opt {
	return func(e *Engine) error {
		if lag < 1 {
			return fmt.Errorf("max lag must be at least 1, got %d", lag)
		}

		e.maxLag = lag
		return nil
	}
}

// Alpha is the Granger p-value threshold.
func Alpha(alpha float64) Opt {
	return func(e *Engine) error {
		if alpha <= 0 || alpha >= 1 {
			return fmt.Errorf("alpha must be in (0,1), got %v", alpha)
		}

		e.alpha = alpha
		return nil
	}
}

// MinExplainedEntropy is the explained entropy a pair must exceed to pass on transfer entropy alone.
func MinExplainedEntropy(ee float64) Opt {
	return func(e *Engine) error {
		if ee < 0 || ee > 1 {
			return fmt.Errorf("min explained entropy must be in [0,1], got %v", ee)
		}

		e.minEE = ee
		return nil
	}
}

// Bins is the number of equal-frequency bins used to discretize series for entropy estimates.
func Bins(bins int) Opt {
	return func(e *Engine) error {
		if bins < 2 {
			return fmt.Errorf("need at least 2 bins, got %d", bins)
		}

		e.bins = bins
		return nil
	}
}

// Surrogates is the number of shuffles of the cause series behind the transfer-entropy bias
// correction and significance cut.
func Surrogates(n int) Opt {
	return func(e *Engine) error {
		if n < 20 {
			return fmt.Errorf("need at least 20 surrogates, got %d", n)
		}

		e.surr = n
		return nil
	}
}

func Logger(log *slog.Logger) Opt {
	return func(e *Engine) error {
		if log == nil {
			return fmt.Errorf("nil logger")
		}

		e.log = log
		return nil
	}
}

func New(opts ...Opt) (*Engine, error) {
	e := &Engine{
		maxLag: DefaultMaxLag,
		alpha:  DefaultAlpha,
		minEE:  DefaultMinExplainedEntropy,
		bins:   DefaultBins,
		surr:   DefaultSurrogates,
		log:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

func (e *Engine) MaxLag() int {
	return e.maxLag
}

// Run tests every effect KPI in mother against every node table and returns the significant
// pairs, ranked. Pairs whose statistics can't be computed are skipped. No nodes, no results.
func (e *Engine) Run(ctx context.Context, mother r.Table, nodes map[string]r.Table) (r.Results, error) {
	if len(mother) == 0 || len(nodes) == 0 {
		return nil, nil
	}

	p := &r.Prepared{Mother: mother, Nodes: nodes}
	names := p.NodeNames()

	var out r.Results
	for _, effect := range mother.IDs() {
		effectTable := mother.Filter(effect)
		for _, cause := range names {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			res, err := e.Pair(effect, effectTable, cause, nodes[cause])
			if err != nil {
				e.log.Debug("pair skipped", "effect", effect, "cause", cause, "error", err)
				continue
			}

			if res != nil {
				out = append(out, *res)
			}
		}
	}

	out.Sort()
	e.log.Debug("rca finished", "effects", len(mother.IDs()), "causes", len(names), "significant", len(out))

	return out, nil
}

// RunPrepared is Run on the output of PrepareRCA.
func (e *Engine) RunPrepared(ctx context.Context, p *r.Prepared) (r.Results, error) {
	if p.Empty() {
		return nil, nil
	}

	return e.Run(ctx, p.Mother, p.Nodes)
}

// Pair tests a single (effect, cause) pair. It returns nil, nil when the pair is not significant.
func (e *Engine) Pair(effectID string, effect r.Table, causeID string, cause r.Table) (res *r.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrDegenerate, rec)
		}
	}()

	_, y, x := r.Join(effect, cause)
	if len(y) < r.MinObservations {
		return nil, fmt.Errorf("%w: %d common months", ErrTooShort, len(y))
	}

	var g grangerResult
	if g, err = granger(y, x, e.maxLag); err != nil {
		return nil, fmt.Errorf("granger: %w", err)
	}

	te, teErr := transferEntropy(y, x, e.maxLag, e.bins, e.surr, e.alpha)
	if teErr != nil {
		te = entropyResult{te: math.NaN(), ee: math.NaN()}
	}

	return e.assess(effectID, causeID, g, te), nil
}

// Significant reports which tests a pair passes. NaN explained entropy never passes.
func (e *Engine) Significant(pValue, explainedEntropy float64) (byGranger, byEntropy bool) {
	byGranger = !math.IsNaN(pValue) && pValue < e.alpha
	byEntropy = !math.IsNaN(explainedEntropy) && explainedEntropy > e.minEE

	return byGranger, byEntropy
}

// assess keeps a pair if either test passes. Transfer entropy only counts when it also beat
// its shuffled surrogates. The reported lag is the Granger lag when Granger passes, the
// entropy-maximizing lag otherwise.
func (e *Engine) assess(effectID, causeID string, g grangerResult, te entropyResult) *r.Result {
	byGranger, byEntropy := e.Significant(g.pValue, te.ee)
	byEntropy = byEntropy && te.significant
	if !byGranger && !byEntropy {
		return nil
	}

	lag := g.lag
	if !byGranger {
		lag = te.lag
	}

	return &r.Result{
		EffectKPI:        effectID,
		CauseKPI:         causeID,
		MinPValue:        g.pValue,
		TransferEntropy:  te.te,
		ExplainedEntropy: te.ee,
		Lag:              lag,
	}
}
