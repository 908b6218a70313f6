// Package pipeline sequences C1 through C11 (cloud search through score
// finalisation) into the single Run entry point, the way TuftsBCB-seq's
// top-level aligner wires its stages together.
package pipeline

import (
	"errors"
	"fmt"
	"log"

	"gonum.org/v1/gonum/floats"

	"github.com/wheeler-lab/cloudfb/cloud"
	"github.com/wheeler-lab/cloudfb/decode"
	"github.com/wheeler-lab/cloudfb/dp"
	"github.com/wheeler-lab/cloudfb/edgebound"
	"github.com/wheeler-lab/cloudfb/score"
	"github.com/wheeler-lab/cloudfb/seqmodel"
	"github.com/wheeler-lab/cloudfb/spmatrix"
	"github.com/wheeler-lab/cloudfb/trace"
)

// Sentinel errors, one per spec §7 error kind. Run returns only
// ErrInvalidInput and ErrInternal, wrapped via %w; the originating error is
// added as text (%v), so errors.Is matches the pipeline sentinel but not the
// originating package's own. Run does not return ErrCloudExhausted,
// ErrResourceExceeded or ErrNumericalDegeneracy: it reports those conditions
// through Result.FilterFailed and Result.Unreliable.
var (
	// ErrInvalidInput covers malformed profiles/sequences/seeds caught
	// before any DP kernel runs.
	ErrInvalidInput = errors.New("pipeline: invalid input")
	// ErrCloudExhausted means the cloud search produced an empty or
	// degenerate edgebound set, so there is nothing to score.
	ErrCloudExhausted = errors.New("pipeline: cloud exhausted")
	// ErrResourceExceeded means the cloud search or domain DP exceeded
	// the configured hard cell-count limit.
	ErrResourceExceeded = errors.New("pipeline: resource limit exceeded")
	// ErrNumericalDegeneracy means a Forward/Backward score pair
	// diverged beyond tolerance or produced NaN/-Inf where a finite
	// score was expected.
	ErrNumericalDegeneracy = errors.New("pipeline: numerical degeneracy")
	// ErrInternal covers invariant violations in plumbing between
	// stages (orientation mismatches, missing cells) that indicate a
	// bug rather than bad input.
	ErrInternal = errors.New("pipeline: internal error")
)

// forwardBackwardTolerance bounds how far a Forward/Backward score pair
// over the same cloud may disagree before Run reports numerical
// degeneracy (spec §8 "testable property 1").
const forwardBackwardTolerance = 1e-2

// ProfileSource resolves a profile by its source-file offset (spec §6
// "Profile source"), kept external so file formats stay out of scope.
type ProfileSource interface {
	ProfileAt(offset int64) (*seqmodel.Profile, error)
}

// SequenceSource resolves a sequence by its source-file offset (spec §6
// "Sequence source").
type SequenceSource interface {
	SequenceAt(offset int64) (*seqmodel.Sequence, error)
}

// SeedSource supplies the prefilter-produced seed alignments a caller
// wants scored (spec §6 "Seed source").
type SeedSource interface {
	Seeds() ([]cloud.Seed, error)
}

// DomainResult is one accepted domain's alignment and scores (spec §3
// "Result / scores", decomposed per domain).
type DomainResult struct {
	A, B int

	NatScore    float64
	Null2       float32
	OptAccScore float32

	Score score.Result
	Trace trace.Trace
}

// Result is the outcome of scoring one profile/sequence/seed triple (spec
// §3). Domains is empty, and Unreliable or FilterFailed is set, when the
// cloud search or whole-cloud Forward/Backward did not produce a usable
// alignment.
type Result struct {
	CloudScore float32
	Domains    []DomainResult

	Unreliable   bool
	FilterFailed bool
	FilterReason string
}

// Run sequences the full C1->C11 pipeline for one profile/sequence/seed
// triple against cfg (spec §2's table, §5's ordering guarantees):
// cloud search (both sweeps) -> union -> reorient -> allocate sparse
// matrix -> full-cloud Forward -> full-cloud Backward -> Posterior ->
// domain decomposition -> (per domain: restrict -> Forward -> Backward ->
// Posterior -> Null2) -> Optimal-Accuracy + traceback -> score
// finalisation.
func Run(p *seqmodel.Profile, s *seqmodel.Sequence, seed cloud.Seed, cfg Config) (*Result, error) {
	logger := cfg.logger()

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	enc, err := s.Encode(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	cloudResult, err := cloud.Search(p, enc, seed, cfg.CloudParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if cloudResult.Forward.Terminated == cloud.CellCapExceeded || cloudResult.Backward.Terminated == cloud.CellCapExceeded {
		return &Result{FilterFailed: true, FilterReason: "cloud search exceeded hard cell limit"}, nil
	}

	union, err := edgebound.Union(cloudResult.Forward.Edgebounds, cloudResult.Backward.Edgebounds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if union.NumBounds() == 0 {
		return &Result{FilterFailed: true, FilterReason: "union of both sweeps is empty"}, nil
	}
	if cfg.HardLimit > 0 && union.CellCount() > cfg.HardLimit {
		return &Result{FilterFailed: true, FilterReason: "pruned cloud exceeds configured hard limit"}, nil
	}

	rowEdges, err := edgebound.ReorientToRow(union)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	sm, err := spmatrix.New(rowEdges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	fwdSpecial := spmatrix.NewSpecial(rowEdges.QLen())
	fwdScore, err := dp.Forward(p, enc, sm, fwdSpecial, cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	bckSM, err := spmatrix.New(rowEdges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	bckSpecial := spmatrix.NewSpecial(rowEdges.QLen())
	bckScore, err := dp.Backward(p, enc, bckSM, bckSpecial, cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if diff := float32diff(fwdScore, bckScore); diff > forwardBackwardTolerance {
		logger.Printf("pipeline: forward/backward score mismatch: fwd=%v bck=%v diff=%v", fwdScore, bckScore, diff)
		return &Result{Unreliable: true, CloudScore: cloudResult.CloudScore}, nil
	}

	_, special, err := dp.Posterior(p, sm, bckSM, fwdSpecial, bckSpecial, fwdScore, cfg.MatrixRecycling)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	inside := decode.Inside(special)
	domains := decode.Domains(inside, cfg.Thresholds)
	logger.Printf("pipeline: %d domain(s) after decomposition", len(domains))

	result := &Result{CloudScore: cloudResult.CloudScore}
	for _, d := range domains {
		dr, err := runDomain(p, enc, rowEdges, cloudResult.CloudScore, seed, d, cfg, logger)
		if err != nil {
			logger.Printf("pipeline: domain [%d,%d] skipped: %v", d.A, d.B, err)
			continue
		}
		result.Domains = append(result.Domains, *dr)
	}

	return result, nil
}

// runDomain reruns Forward/Backward/Posterior restricted to one domain's
// row range, computes its null2 correction, runs optimal-accuracy
// traceback, and finalises its score (spec §4.5 step 2, §4.6, §4.7, §4.8).
func runDomain(p *seqmodel.Profile, enc seqmodel.EncodedSequence, rowEdges *edgebound.Edgebounds, cloudScore float32, seed cloud.Seed, d decode.Domain, cfg Config, logger *log.Logger) (*DomainResult, error) {
	domainEdges, err := rowEdges.RestrictRows(d.A, d.B)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	domSM, err := spmatrix.New(domainEdges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	domFwdSpecial := spmatrix.NewSpecial(domainEdges.QLen())
	domFwdScore, err := dp.Forward(p, enc, domSM, domFwdSpecial, cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	domBckSM, err := spmatrix.New(domainEdges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	domBckSpecial := spmatrix.NewSpecial(domainEdges.QLen())
	if _, err := dp.Backward(p, enc, domBckSM, domBckSpecial, cfg.Observer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	domPost, domSpecial, err := dp.Posterior(p, domSM, domBckSM, domFwdSpecial, domBckSpecial, domFwdScore, cfg.MatrixRecycling)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	null2 := decode.Null2(p, domPost, enc, d)

	oaScore, oa, err := dp.OptimalAccuracy(p, domPost, domSpecial)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	tr := dp.Traceback(p, oa, domainEdges.QLen())

	bgAvg := floats.Sum(p.Background) / float64(len(p.Background))
	raw := score.RawScores{
		ViterbiScore:  seed.ViterbiScore,
		ForwardScore:  float64(domFwdScore),
		CloudScore:    float64(cloudScore),
		Null2:         float64(null2),
		QueryLen:      enc.Len(),
		BackgroundAvg: bgAvg,
	}
	dist := score.Distributions{}
	dist.ViterbiGumbel.Lambda, dist.ViterbiGumbel.Mu = p.ViterbiGumbel.Lambda, p.ViterbiGumbel.Mu
	dist.ForwardExp.Lambda, dist.ForwardExp.Tau = p.ForwardExp.Lambda, p.ForwardExp.Tau
	res := score.Finalize(raw, dist, cfg.Score, cfg.DBSize)

	return &DomainResult{
		A: d.A, B: d.B,
		NatScore:    res.NatScore,
		Null2:       null2,
		OptAccScore: oaScore,
		Score:       res,
		Trace:       tr,
	}, nil
}

func float32diff(a, b float32) float32 {
	if a > b {
		return a - b
	}
	return b - a
}
