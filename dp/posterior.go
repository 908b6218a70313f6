package dp

import (
	"math"

	"github.com/wheeler-lab/cloudfb/seqmodel"
	"github.com/wheeler-lab/cloudfb/spmatrix"
)

// Special holds the per-row emission posteriors of the N/J/C special
// states (spec §4.4's "further combinators"), alongside the "inside"
// probability domain decomposition (spec §4.5) consumes directly.
type Special struct {
	qLen int
	n, j, c []float32 // P(state emits at row q), index by q in [1, qLen]
}

// NEmit, JEmit and CEmit return the emission posterior of the respective
// special state at row q.
func (s *Special) NEmit(q int) float32 { return s.n[q] }
func (s *Special) JEmit(q int) float32 { return s.j[q] }
func (s *Special) CEmit(q int) float32 { return s.c[q] }

// Inside returns 1 - P(N emits) - P(C emits) - P(J emits) at row q, the
// per-row "inside any alignment" probability domain decomposition walks
// (spec §4.5 step 1).
func (s *Special) Inside(q int) float32 {
	return 1 - s.n[q] - s.j[q] - s.c[q]
}

// QLen returns the query length this Special was built for.
func (s *Special) QLen() int { return s.qLen }

// Posterior implements spec §4.4: given populated Forward and Backward
// sparse matrices plus the Forward special matrix and score, it computes
// cell-wise posterior probabilities for M/I (Delete cells are left at 0,
// since deletes emit no residue) and the N/J/C emission combinators.
//
// When inPlace is true, the posterior M/I values overwrite bck directly
// (the recycling contract spec §5/§9 describe); otherwise a fresh
// SparseMatrix is allocated over the same edgebounds.
func Posterior(profile *seqmodel.Profile, fwd, bck *spmatrix.SparseMatrix, fwdSpecial, bckSpecial *spmatrix.SpecialMatrix, fwdScore float32, inPlace bool) (*spmatrix.SparseMatrix, *Special, error) {
	edges := fwd.Edgebounds()
	if err := checkRowOriented(edges); err != nil {
		return nil, nil, err
	}

	// Read every fwd/bck value needed below before touching bck again:
	// when inPlace is true, out aliases bck's own backing array, and
	// Recycle consumes bck immediately (spmatrix.Recycle refills the shared
	// storage with -Inf and marks bck consumed), so
	// any bck.At call issued after allocating out would panic.
	qLen := edges.QLen()
	type posteriorCell struct {
		i, t   int
		pm, pi float32
	}
	cells := make([]posteriorCell, 0, edges.CellCount())
	for i := 0; i <= qLen; i++ {
		for _, bound := range edges.RowBounds(i) {
			for t := bound.LB; t < bound.RB; t++ {
				pm := float32(math.Exp(float64(fwd.At(spmatrix.Match, i, t) + bck.At(spmatrix.Match, i, t) - fwdScore)))
				pi := float32(math.Exp(float64(fwd.At(spmatrix.Insert, i, t) + bck.At(spmatrix.Insert, i, t) - fwdScore)))
				cells = append(cells, posteriorCell{i: i, t: t, pm: pm, pi: pi})
			}
		}
	}

	var out *spmatrix.SparseMatrix
	if inPlace {
		var err error
		out, err = bck.Recycle(edges)
		if err != nil {
			return nil, nil, err
		}
	} else {
		var err error
		out, err = spmatrix.New(edges)
		if err != nil {
			return nil, nil, err
		}
	}

	for _, c := range cells {
		_ = out.Set(spmatrix.Match, c.i, c.t, c.pm)
		_ = out.Set(spmatrix.Insert, c.i, c.t, c.pi)
		_ = out.Set(spmatrix.Delete, c.i, c.t, 0)
	}

	special := &Special{qLen: qLen, n: make([]float32, qLen+1), j: make([]float32, qLen+1), c: make([]float32, qLen+1)}
	sp := profile.Special
	for q := 1; q <= qLen; q++ {
		special.n[q] = float32(math.Exp(float64(fwdSpecial.At(spmatrix.N, q-1) + float32(sp.NLoop) + bckSpecial.At(spmatrix.N, q) - fwdScore)))
		special.c[q] = float32(math.Exp(float64(fwdSpecial.At(spmatrix.C, q-1) + float32(sp.CLoop) + bckSpecial.At(spmatrix.C, q) - fwdScore)))
		special.j[q] = float32(math.Exp(float64(fwdSpecial.At(spmatrix.J, q-1) + float32(sp.JLoop) + bckSpecial.At(spmatrix.J, q) - fwdScore)))
	}

	return out, special, nil
}
