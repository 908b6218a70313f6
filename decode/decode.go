// Package decode implements domain decomposition (spec §4.5) and null2
// bias correction (spec §4.6).
package decode

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/wheeler-lab/cloudfb/dp"
	"github.com/wheeler-lab/cloudfb/seqmodel"
	"github.com/wheeler-lab/cloudfb/spmatrix"
)

// Default domain-decomposition thresholds (spec §4.5).
const (
	DefaultRT1 = 0.25
	DefaultRT2 = 0.10
	DefaultRT3 = 0.20
)

// Thresholds configures the open/extend/reject walk (spec §4.5).
type Thresholds struct {
	RT1, RT2, RT3 float32
}

// DefaultThresholds returns spec §4.5's named defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{RT1: DefaultRT1, RT2: DefaultRT2, RT3: DefaultRT3}
}

// Domain is a query-coordinate range spec §4.5 identifies as a candidate
// alignment, plus its envelope peak row.
type Domain struct {
	A, B int
	Peak int
}

// Domains walks inside (indexed 1..Q, spec §4.5 "probability that row q
// is inside any alignment") and returns the accepted domains: open at the
// first row where inside >= rt1, extend while inside >= rt2, close
// otherwise, and reject any domain whose envelope peak falls below rt3.
func Domains(inside []float32, th Thresholds) []Domain {
	var out []Domain
	open := false
	var cur Domain
	peakVal := float32(0)

	closeDomain := func(end int) {
		cur.B = end
		if peakVal >= th.RT3 {
			out = append(out, cur)
		}
		open = false
	}

	for q := 1; q < len(inside); q++ {
		v := inside[q]
		if !open {
			if v >= th.RT1 {
				open = true
				cur = Domain{A: q, Peak: q}
				peakVal = v
			}
			continue
		}
		if v > peakVal {
			peakVal = v
			cur.Peak = q
		}
		if v < th.RT2 {
			closeDomain(q - 1)
		}
	}
	if open {
		closeDomain(len(inside) - 1)
	}
	return out
}

// Inside computes the per-row "inside any alignment" probability from a
// posterior Special (spec §4.5 step 1): 1 - P(N) - P(C) - P(J).
func Inside(special *dp.Special) []float32 {
	qLen := special.QLen()
	inside := make([]float32, qLen+1)
	for q := 1; q <= qLen; q++ {
		inside[q] = special.Inside(q)
	}
	return inside
}

// Null2 implements spec §4.6: the expected-emission distribution over a
// domain range, scored against the background and log-sum-exp'd into a
// single bias correction in nats.
func Null2(profile *seqmodel.Profile, post *spmatrix.SparseMatrix, seq seqmodel.EncodedSequence, domain Domain) float32 {
	const omega = 1.0 / 256.0

	alphaLen := profile.Alphabet.Len()
	expected := make([]float64, alphaLen)

	edges := post.Edgebounds()
	for q := domain.A; q <= domain.B; q++ {
		for _, bound := range edges.RowBounds(q) {
			for t := bound.LB; t < bound.RB; t++ {
				node := profile.Nodes[t-1]
				pm := float64(post.At(spmatrix.Match, q, t))
				pi := float64(post.At(spmatrix.Insert, q, t))
				for x := 0; x < alphaLen; x++ {
					expected[x] += pm*math.Exp(float64(node.MatEmit.LookupIndex(x))) + pi*math.Exp(float64(node.InsEmit.LookupIndex(x)))
				}
			}
		}
	}

	total := floats.Sum(expected)
	if total <= 0 {
		return 0
	}
	for x := range expected {
		expected[x] /= total
	}

	scores := make([]float64, 0, domain.B-domain.A+1)
	for q := domain.A; q <= domain.B; q++ {
		x := int(seq.Symbols[q-1])
		e := expected[x]
		if e <= 0 {
			continue
		}
		bg := profile.Background[x]
		scores = append(scores, math.Log(e)-math.Log(bg))
	}
	scores = append(scores, math.Log(omega))

	return float32(logSumExp(scores))
}

func logSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return math.Inf(-1)
	}
	max := xs[0]
	for _, x := range xs[1:] {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}
