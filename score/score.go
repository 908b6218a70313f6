// Package score implements score finalisation (spec §4.8): null1 bias,
// bitscore, Gumbel/exponential P-values, E-value, and threshold pass/fail
// flags.
package score

import "math"

// RawScores holds the nat-scores score.Finalize combines (spec §3
// "Result / scores").
type RawScores struct {
	ViterbiScore float64 // nats
	ForwardScore float64 // nats, before null2 correction
	CloudScore   float64 // nats, cloud.Result.CloudScore composite
	Null2        float64 // nats, subtracted from ForwardScore
	QueryLen     int
	BackgroundAvg float64 // profile's background-weighted average match emission
}

// Distributions holds the fitted null-model tail distributions (spec §4.8).
type Distributions struct {
	ViterbiGumbel struct{ Lambda, Mu float64 }
	ForwardExp    struct{ Lambda, Tau float64 }
}

// Thresholds names the four pass/fail cutoffs spec §6 Config lists.
type Thresholds struct {
	ViterbiP     float64
	CloudP       float64
	BoundForwardP float64
	ReportE      float64
}

// Result is spec §3's "Result / scores" struct.
type Result struct {
	Null1       float64
	NatScore    float64 // Forward nat-score minus null1 and null2
	BitScore    float64
	ViterbiP    float64
	CloudP      float64
	ForwardP    float64
	EValue      float64

	PassViterbi      bool
	PassCloud        bool
	PassBoundForward bool
	PassReport       bool
}

// Null1 computes spec §4.8's length-dependent null-model score,
// supplemented from original_source/mmore/src/work/work_scoring.c:
// null1 = Q * log(bgAvg).
func Null1(queryLen int, backgroundAvg float64) float64 {
	return float64(queryLen) * math.Log(backgroundAvg)
}

// ViterbiPValue is the Gumbel-tail P-value for a Viterbi nat-score under a
// Gumbel fit (lambda, mu) also in nats; no unit conversion is applied (spec
// §4.8): 1 - exp(-exp(-lambda*(score-mu))).
func ViterbiPValue(score, lambda, mu float64) float64 {
	return 1 - math.Exp(-math.Exp(-lambda*(score-mu)))
}

// ForwardPValue is the exponential-tail P-value for a Forward nat-score
// (spec §4.8): exp(-lambda*(score-tau)).
func ForwardPValue(score, lambda, tau float64) float64 {
	return math.Exp(-lambda * (score - tau))
}

// EValue converts a P-value to an E-value against a database of dbSize
// sequences (spec §4.8).
func EValue(pValue, dbSize float64) float64 {
	return pValue * dbSize
}

// BitScore converts a nat-score to bits (spec §4.8): natscore / ln2.
func BitScore(natScore float64) float64 {
	return natScore / math.Ln2
}

// Finalize implements spec §4.8 end to end: null1/null2 correction,
// bitscore, both P-values, E-value, and the four threshold flags.
func Finalize(raw RawScores, dist Distributions, th Thresholds, dbSize float64) Result {
	null1 := Null1(raw.QueryLen, raw.BackgroundAvg)
	natScore := raw.ForwardScore - null1 - raw.Null2

	vp := ViterbiPValue(raw.ViterbiScore, dist.ViterbiGumbel.Lambda, dist.ViterbiGumbel.Mu)
	// The cloud threshold runs the cloud composite score (not the Viterbi
	// score) through the Forward tail, per work_threshold.c's
	// WORK_cloud_natsc_to_eval/WORK_cloud_test_threshold.
	cp := ForwardPValue(raw.CloudScore, dist.ForwardExp.Lambda, dist.ForwardExp.Tau)
	fp := ForwardPValue(natScore, dist.ForwardExp.Lambda, dist.ForwardExp.Tau)
	ev := EValue(fp, dbSize)

	return Result{
		Null1:    null1,
		NatScore: natScore,
		BitScore: BitScore(natScore),
		ViterbiP: vp,
		CloudP:   cp,
		ForwardP: fp,
		EValue:   ev,

		PassViterbi:      vp <= th.ViterbiP,
		PassCloud:        cp <= th.CloudP,
		PassBoundForward: fp <= th.BoundForwardP,
		PassReport:       ev <= th.ReportE,
	}
}
