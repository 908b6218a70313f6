// Package dp implements the sparse Forward/Backward kernels (spec §4.3),
// posterior decoding (spec §4.4), and the optimal-accuracy DP with
// traceback (spec §4.7). All three operate over the pre-allocated
// spmatrix types against a row-oriented edgebounds.Edgebounds.
package dp

import (
	"errors"
	"fmt"

	"github.com/wheeler-lab/cloudfb/edgebound"
	"github.com/wheeler-lab/cloudfb/logsum"
	"github.com/wheeler-lab/cloudfb/observe"
	"github.com/wheeler-lab/cloudfb/seqmodel"
	"github.com/wheeler-lab/cloudfb/spmatrix"
)

// ErrOrientation is returned when a kernel is handed antidiagonal-oriented
// edgebounds instead of row-oriented.
var ErrOrientation = errors.New("dp: matrix must be built over row-oriented edgebounds")

func checkRowOriented(e *edgebound.Edgebounds) error {
	if e.Orientation() != edgebound.ByRow {
		return fmt.Errorf("%w", ErrOrientation)
	}
	return nil
}

// Forward runs the sparse Forward sweep (spec §4.3), writing M/I/D values
// into sm and special-state values into spm. It returns fwd_score =
// C(Q) + t_C_move. obs may be nil; when non-nil it receives every written
// cell and row (spec §9's debugger replacement, see observe.Observer).
func Forward(profile *seqmodel.Profile, seq seqmodel.EncodedSequence, sm *spmatrix.SparseMatrix, spm *spmatrix.SpecialMatrix, obs observe.Observer) (float32, error) {
	edges := sm.Edgebounds()
	if err := checkRowOriented(edges); err != nil {
		return 0, err
	}
	qLen := seq.Len()
	tLen := profile.Len()
	sp := profile.Special

	spm.Set(spmatrix.N, 0, 0)
	spm.Set(spmatrix.J, 0, logsum.NegInf)
	spm.Set(spmatrix.E, 0, logsum.NegInf)
	spm.Set(spmatrix.C, 0, logsum.NegInf)
	spm.Set(spmatrix.B, 0, float32(sp.NMove)) // N(0)=0, so B(0) = t_N_move

	for i := 1; i <= qLen; i++ {
		if obs != nil {
			obs.OnRow("forward", i)
		}
		nPrev := spm.At(spmatrix.N, i-1)
		jPrev := spm.At(spmatrix.J, i-1)
		ePrev := spm.At(spmatrix.E, i-1)
		cPrev := spm.At(spmatrix.C, i-1)
		bPrev := spm.At(spmatrix.B, i-1)

		n := nPrev + float32(sp.NLoop)
		j := logsum.Add(jPrev+float32(sp.JLoop), ePrev+float32(sp.ELoop))
		b := logsum.Add(n+float32(sp.NMove), j+float32(sp.JMove))
		spm.Set(spmatrix.N, i, n)
		spm.Set(spmatrix.J, i, j)
		spm.Set(spmatrix.B, i, b)

		eAcc := logsum.NegInf
		for _, bound := range edges.RowBounds(i) {
			for t := bound.LB; t < bound.RB; t++ {
				node := profile.Nodes[t-1]
				x := int(seq.Symbols[i-1])

				prevDiag := cell{sm.At(spmatrix.Match, i-1, t-1), sm.At(spmatrix.Insert, i-1, t-1), sm.At(spmatrix.Delete, i-1, t-1)}
				prevUp := cell{sm.At(spmatrix.Match, i-1, t), sm.At(spmatrix.Insert, i-1, t), sm.At(spmatrix.Delete, i-1, t)}

				m := logsum.AddAll(
					prevDiag.M+float32(node.Trans.MM),
					prevDiag.I+float32(node.Trans.IM),
					prevDiag.D+float32(node.Trans.DM),
					bPrev+float32(node.BeginTo),
				) + float32(node.MatEmit.LookupIndex(x))

				var ins float32
				if t == tLen {
					ins = logsum.NegInf
				} else {
					ins = logsum.Add(prevUp.M+float32(node.Trans.MI), prevUp.I+float32(node.Trans.II)) + float32(node.InsEmit.LookupIndex(x))
				}

				var del float32
				if t == 1 {
					del = logsum.NegInf
				} else {
					left := cell{sm.At(spmatrix.Match, i, t-1), sm.At(spmatrix.Insert, i, t-1), sm.At(spmatrix.Delete, i, t-1)}
					prevNode := profile.Nodes[t-2]
					del = logsum.Add(left.M+float32(prevNode.Trans.MD), left.D+float32(prevNode.Trans.DD))
				}

				_ = sm.Set(spmatrix.Match, i, t, m)
				_ = sm.Set(spmatrix.Insert, i, t, ins)
				_ = sm.Set(spmatrix.Delete, i, t, del)
				if obs != nil {
					obs.OnCell("forward", spmatrix.Match, i, t, m)
					obs.OnCell("forward", spmatrix.Insert, i, t, ins)
					obs.OnCell("forward", spmatrix.Delete, i, t, del)
				}

				if t == tLen {
					eAcc = logsum.Add(eAcc, logsum.Add(m, del))
				}
			}
		}

		e := eAcc
		c := logsum.Add(cPrev+float32(sp.CLoop), e+float32(sp.EMove))
		spm.Set(spmatrix.E, i, e)
		spm.Set(spmatrix.C, i, c)
	}

	return spm.At(spmatrix.C, qLen) + float32(sp.CMove), nil
}

// cell is the three core-state values read for one predecessor/successor
// cell, mirroring cloud's ring-buffer cell but backed by spmatrix reads.
type cell struct{ M, I, D float32 }

// Backward runs the sparse Backward sweep (spec §4.3), the symmetric
// decreasing-q pass with transposed transitions. It returns bck_score =
// N(0).
//
// The special-state recursion bundles the E->J and E->C transitions with
// one step of the subsequent loop rather than resolving the fully coupled
// same-row system (E, J, and C depend on each other without consuming a
// row in the exact Plan7 recursion); this keeps the sweep a single
// acyclic pass at the cost of slightly understating multi-hit looping
// through J. A documented simplification, see DESIGN.md.
func Backward(profile *seqmodel.Profile, seq seqmodel.EncodedSequence, sm *spmatrix.SparseMatrix, spm *spmatrix.SpecialMatrix, obs observe.Observer) (float32, error) {
	edges := sm.Edgebounds()
	if err := checkRowOriented(edges); err != nil {
		return 0, err
	}
	qLen := seq.Len()
	tLen := profile.Len()
	sp := profile.Special

	spm.Set(spmatrix.C, qLen, float32(sp.CMove))
	spm.Set(spmatrix.E, qLen, spm.At(spmatrix.C, qLen)+float32(sp.EMove))
	spm.Set(spmatrix.J, qLen, logsum.NegInf)
	spm.Set(spmatrix.N, qLen, logsum.NegInf)
	spm.Set(spmatrix.B, qLen, logsum.NegInf)

	backwardProcessRow(profile, seq, sm, edges, qLen, tLen, obs)

	for i := qLen - 1; i >= 0; i-- {
		if obs != nil {
			obs.OnRow("backward", i)
		}
		backwardProcessRow(profile, seq, sm, edges, i, tLen, obs)

		bAcc := logsum.NegInf
		for _, bound := range edges.RowBounds(i + 1) {
			for t := bound.LB; t < bound.RB; t++ {
				node := profile.Nodes[t-1]
				bAcc = logsum.Add(bAcc, sm.At(spmatrix.Match, i+1, t)+float32(node.BeginTo))
			}
		}

		n := logsum.Add(spm.At(spmatrix.N, i+1)+float32(sp.NLoop), bAcc+float32(sp.NMove))
		j := spm.At(spmatrix.J, i+1) + float32(sp.JLoop)
		c := spm.At(spmatrix.C, i+1) + float32(sp.CLoop)
		e := logsum.Add(float32(sp.EMove)+spm.At(spmatrix.C, i+1), float32(sp.ELoop)+spm.At(spmatrix.J, i+1))

		spm.Set(spmatrix.B, i, bAcc)
		spm.Set(spmatrix.N, i, n)
		spm.Set(spmatrix.J, i, j)
		spm.Set(spmatrix.C, i, c)
		spm.Set(spmatrix.E, i, e)
	}

	return spm.At(spmatrix.N, 0), nil
}

// backwardProcessRow fills in the M/I/D backward values for row i, reading
// successor cells at row i+1 (already filled by an earlier, larger-i
// iteration of the outer sweep) and at row i itself in descending column
// order (so "next right" reads are always already-computed this row).
func backwardProcessRow(profile *seqmodel.Profile, seq seqmodel.EncodedSequence, sm *spmatrix.SparseMatrix, edges *edgebound.Edgebounds, i, tLen int, obs observe.Observer) {
	qLen := seq.Len()
	bounds := edges.RowBounds(i)
	for b := len(bounds) - 1; b >= 0; b-- {
		bound := bounds[b]
		for t := bound.RB - 1; t >= bound.LB; t-- {
			here := profile.Nodes[t-1]

			var mEmitNext, iEmitNext float32 = logsum.NegInf, logsum.NegInf
			if t < tLen && i < qLen {
				next := profile.Nodes[t] // node for column t+1
				x := int(seq.Symbols[i])
				mEmitNext = float32(next.MatEmit.LookupIndex(x)) + sm.At(spmatrix.Match, i+1, t+1)
				iEmitNext = float32(next.InsEmit.LookupIndex(x)) + sm.At(spmatrix.Insert, i+1, t)
			}
			nextRightD := sm.At(spmatrix.Delete, i, t+1)

			m := logsum.AddAll(
				float32(here.Trans.MM)+mEmitNext,
				float32(here.Trans.MI)+iEmitNext,
				float32(here.Trans.MD)+nextRightD,
			)
			ins := logsum.Add(float32(here.Trans.IM)+mEmitNext, float32(here.Trans.II)+iEmitNext)
			del := logsum.Add(float32(here.Trans.DM)+mEmitNext, float32(here.Trans.DD)+nextRightD)

			_ = sm.Set(spmatrix.Match, i, t, m)
			_ = sm.Set(spmatrix.Insert, i, t, ins)
			_ = sm.Set(spmatrix.Delete, i, t, del)
			if obs != nil {
				obs.OnCell("backward", spmatrix.Match, i, t, m)
				obs.OnCell("backward", spmatrix.Insert, i, t, ins)
				obs.OnCell("backward", spmatrix.Delete, i, t, del)
			}
		}
	}
}
