package dp

import (
	"github.com/wheeler-lab/cloudfb/logsum"
	"github.com/wheeler-lab/cloudfb/seqmodel"
)

// DenseForward computes the full (unsparsified) Plan7 Forward recursion
// over the whole Q x T matrix, with no pruning. It is never called from
// the production pipeline; it exists purely as a reference implementation
// so the sparse Forward's score can be checked against it (testable
// property 1, spec §8) over a cloud that covers the whole matrix.
// Supplemented from original_source/fbpruner/src/algs_quad/bound_fwdbck_quad.c.
func DenseForward(profile *seqmodel.Profile, seq seqmodel.EncodedSequence) float32 {
	qLen, tLen := seq.Len(), profile.Len()
	sp := profile.Special

	type cell struct{ m, i, d float32 }
	prev := make([]cell, tLen+1)
	cur := make([]cell, tLen+1)
	for t := range prev {
		prev[t] = cell{logsum.NegInf, logsum.NegInf, logsum.NegInf}
	}

	n, j, e, c := float32(0), logsum.NegInf, logsum.NegInf, logsum.NegInf
	b := float32(sp.NMove)

	for i := 1; i <= qLen; i++ {
		nPrev, jPrev, ePrev, cPrev, bPrev := n, j, e, c, b
		n = nPrev + float32(sp.NLoop)
		j = logsum.Add(jPrev+float32(sp.JLoop), ePrev+float32(sp.ELoop))
		b = logsum.Add(n+float32(sp.NMove), j+float32(sp.JMove))

		for t := range cur {
			cur[t] = cell{logsum.NegInf, logsum.NegInf, logsum.NegInf}
		}
		eAcc := logsum.NegInf
		x := int(seq.Symbols[i-1])
		for t := 1; t <= tLen; t++ {
			node := profile.Nodes[t-1]
			diag := prev[t-1]
			up := prev[t]

			m := logsum.AddAll(
				diag.m+float32(node.Trans.MM),
				diag.i+float32(node.Trans.IM),
				diag.d+float32(node.Trans.DM),
				bPrev+float32(node.BeginTo),
			) + float32(node.MatEmit.LookupIndex(x))

			var ins float32
			if t == tLen {
				ins = logsum.NegInf
			} else {
				ins = logsum.Add(up.m+float32(node.Trans.MI), up.i+float32(node.Trans.II)) + float32(node.InsEmit.LookupIndex(x))
			}

			var del float32
			if t == 1 {
				del = logsum.NegInf
			} else {
				left := cur[t-1]
				prevNode := profile.Nodes[t-2]
				del = logsum.Add(left.m+float32(prevNode.Trans.MD), left.d+float32(prevNode.Trans.DD))
			}

			cur[t] = cell{m, ins, del}
			if t == tLen {
				eAcc = logsum.Add(eAcc, logsum.Add(m, del))
			}
		}

		e = eAcc
		c = logsum.Add(cPrev+float32(sp.CLoop), e+float32(sp.EMove))
		prev, cur = cur, prev
	}

	return c + float32(sp.CMove)
}

// DenseBackward is DenseForward's symmetric counterpart: the full
// unsparsified Backward recursion, decreasing q from Q to 0. It shares
// DenseForward's "not part of the production pipeline" status and the
// same special-state bundling simplification documented on Backward.
func DenseBackward(profile *seqmodel.Profile, seq seqmodel.EncodedSequence) float32 {
	qLen, tLen := seq.Len(), profile.Len()
	sp := profile.Special

	type cell struct{ m, i, d float32 }
	next := make([]cell, tLen+2)
	cur := make([]cell, tLen+2)
	for t := range next {
		next[t] = cell{logsum.NegInf, logsum.NegInf, logsum.NegInf}
	}

	c := float32(sp.CMove)
	e := c + float32(sp.EMove)
	jv := logsum.NegInf
	n := logsum.NegInf

	for i := qLen; i >= 0; i-- {
		for t := range cur {
			cur[t] = cell{logsum.NegInf, logsum.NegInf, logsum.NegInf}
		}
		if i < qLen {
			x := int(seq.Symbols[i])
			for t := tLen; t >= 1; t-- {
				here := profile.Nodes[t-1]

				var mEmitNext, iEmitNext float32 = logsum.NegInf, logsum.NegInf
				if t < tLen {
					nextNode := profile.Nodes[t]
					mEmitNext = float32(nextNode.MatEmit.LookupIndex(x)) + next[t+1].m
					iEmitNext = float32(nextNode.InsEmit.LookupIndex(x)) + next[t].i
				}
				nextRightD := cur[t+1].d

				m := logsum.AddAll(
					float32(here.Trans.MM)+mEmitNext,
					float32(here.Trans.MI)+iEmitNext,
					float32(here.Trans.MD)+nextRightD,
				)
				ins := logsum.Add(float32(here.Trans.IM)+mEmitNext, float32(here.Trans.II)+iEmitNext)
				del := logsum.Add(float32(here.Trans.DM)+mEmitNext, float32(here.Trans.DD)+nextRightD)

				cur[t] = cell{m, ins, del}
			}
		}

		if i < qLen {
			bAcc := logsum.NegInf
			for t := 1; t <= tLen; t++ {
				bAcc = logsum.Add(bAcc, next[t].m+float32(profile.Nodes[t-1].BeginTo))
			}
			nNext, jNext, cNext := n, jv, c
			n = logsum.Add(nNext+float32(sp.NLoop), bAcc+float32(sp.NMove))
			jv = jNext + float32(sp.JLoop)
			c = cNext + float32(sp.CLoop)
			e = logsum.Add(float32(sp.EMove)+cNext, float32(sp.ELoop)+jNext)
		}

		next, cur = cur, next
	}

	return n
}
