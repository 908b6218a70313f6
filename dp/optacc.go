package dp

import (
	"github.com/wheeler-lab/cloudfb/logsum"
	"github.com/wheeler-lab/cloudfb/seqmodel"
	"github.com/wheeler-lab/cloudfb/spmatrix"
	"github.com/wheeler-lab/cloudfb/trace"
)

// oaCell holds the three accumulated-accuracy values and the predecessor
// that produced each, for the deterministic M>I>D>B traceback (spec §4.7).
type oaCell struct {
	m, i, d       float32
	mPred, iPred, dPred pred
}

// pred names which predecessor state fed a given cell's optimum.
type pred int

const (
	predNone pred = iota
	predM
	predI
	predD
	predB
)

// OptimalAccuracy runs the optimal-accuracy DP (spec §4.7): same topology
// as Viterbi, but additively accumulating posterior mass. post is the
// posterior sparse matrix (spec §4.4's output), special its per-row
// N/J/C emission posteriors. The score it returns is the larger of the M
// and D accumulated values at cell (Q, T) plus the C emission posterior of
// row Q; no C-state recursion runs over earlier rows and no t_C_move term is
// added. It also returns the OA matrix needed for Traceback.
func OptimalAccuracy(profile *seqmodel.Profile, post *spmatrix.SparseMatrix, special *Special) (float32, map[[2]int]oaCell, error) {
	edges := post.Edgebounds()
	if err := checkRowOriented(edges); err != nil {
		return 0, nil, err
	}
	qLen := edges.QLen()
	tLen := profile.Len()

	oa := make(map[[2]int]oaCell, edges.CellCount())
	bVal := make([]float32, qLen+1)
	bVal[0] = 0 // A_B(0) starts the accumulation at zero accumulated mass

	get := func(i, t int) oaCell {
		if c, ok := oa[[2]int{i, t}]; ok {
			return c
		}
		return oaCell{m: logsum.NegInf, i: logsum.NegInf, d: logsum.NegInf}
	}

	for i := 1; i <= qLen; i++ {
		for _, bound := range edges.RowBounds(i) {
			for t := bound.LB; t < bound.RB; t++ {
				diag := get(i-1, t-1)
				up := get(i-1, t)

				m, mPred := maxPred4(diag.m, predM, diag.i, predI, diag.d, predD, bVal[i-1], predB)
				m += post.At(spmatrix.Match, i, t)

				var ins float32
				var iPred pred
				if t == tLen {
					ins, iPred = logsum.NegInf, predNone
				} else {
					ins, iPred = maxPred2(up.m, predM, up.i, predI)
					ins += post.At(spmatrix.Insert, i, t)
				}

				var del float32
				var dPred pred
				if t == 1 {
					del, dPred = logsum.NegInf, predNone
				} else {
					left := get(i, t-1)
					del, dPred = maxPred2(left.m, predM, left.d, predD)
				}

				oa[[2]int{i, t}] = oaCell{m: m, i: ins, d: del, mPred: mPred, iPred: iPred, dPred: dPred}
			}
		}
		// A_B(i) carries forward with no accuracy contribution of its own
		// beyond the N/J emission posteriors already folded in at this row.
		bVal[i] = bVal[i-1] + special.NEmit(i) + special.JEmit(i)
	}

	eScore := logsum.NegInf
	for _, bound := range edges.RowBounds(qLen) {
		for t := bound.LB; t < bound.RB; t++ {
			if t != tLen {
				continue
			}
			c := get(qLen, t)
			eScore = maxf(eScore, c.m, c.d)
		}
	}
	finalScore := eScore + special.CEmit(qLen)

	return finalScore, oa, nil
}

func maxf(vs ...float32) float32 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// maxPred4/maxPred2 pick the best of several (value, predecessor) pairs,
// breaking ties with the deterministic M > I > D > B policy spec §4.7
// requires (candidates are always passed in that priority order, and a
// strict ">" comparison keeps the first-seen maximum, i.e. the
// higher-priority predecessor, on a tie).
func maxPred4(v1 float32, p1 pred, v2 float32, p2 pred, v3 float32, p3 pred, v4 float32, p4 pred) (float32, pred) {
	best, bp := v1, p1
	if v2 > best {
		best, bp = v2, p2
	}
	if v3 > best {
		best, bp = v3, p3
	}
	if v4 > best {
		best, bp = v4, p4
	}
	return best, bp
}

func maxPred2(v1 float32, p1 pred, v2 float32, p2 pred) (float32, pred) {
	if v2 > v1 {
		return v2, p2
	}
	return v1, p1
}

// Traceback walks the optimal-accuracy matrix from the terminal cell back
// to the start, emitting an ordered trace.Trace (spec §4.7).
func Traceback(profile *seqmodel.Profile, oa map[[2]int]oaCell, qLen int) trace.Trace {
	tLen := profile.Len()
	var steps []trace.Step
	steps = append(steps, trace.Step{State: trace.T})
	steps = append(steps, trace.Step{State: trace.C})

	i, t, cur := qLen, tLen, predM
	for i > 0 && cur != predNone {
		c, ok := oa[[2]int{i, t}]
		if !ok {
			break
		}
		switch cur {
		case predM:
			steps = append(steps, trace.Step{State: trace.Match, I: i, J: t})
			cur = c.mPred
			i, t = i-1, t-1
		case predI:
			steps = append(steps, trace.Step{State: trace.Insert, I: i, J: t})
			cur = c.iPred
			i--
		case predD:
			steps = append(steps, trace.Step{State: trace.Delete, I: i, J: t})
			cur = c.dPred
			t--
		case predB:
			steps = append(steps, trace.Step{State: trace.B})
			cur = predNone
		default:
			cur = predNone
		}
		if t < 1 {
			break
		}
	}
	steps = append(steps, trace.Step{State: trace.N})
	steps = append(steps, trace.Step{State: trace.S})

	reversed := make([]trace.Step, len(steps))
	for k, s := range steps {
		reversed[len(steps)-1-k] = s
	}
	return trace.Trace{Steps: reversed}
}
