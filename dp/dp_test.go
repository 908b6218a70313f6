package dp_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheeler-lab/cloudfb/dp"
	"github.com/wheeler-lab/cloudfb/edgebound"
	"github.com/wheeler-lab/cloudfb/seqmodel"
	"github.com/wheeler-lab/cloudfb/spmatrix"
	"github.com/wheeler-lab/cloudfb/trace"
)

func toyProfile(t int) *seqmodel.Profile {
	alpha := seqmodel.AminoAcids
	nodes := make([]seqmodel.Node, t)
	for i := range nodes {
		m := seqmodel.NewEProbs(alpha)
		ins := seqmodel.NewEProbs(alpha)
		for k := 0; k < alpha.Len(); k++ {
			m.SetIndex(k, -3)
			ins.SetIndex(k, -3)
		}
		m.SetIndex(i%alpha.Len(), -0.2)
		nodes[i] = seqmodel.Node{
			MatEmit: m,
			InsEmit: ins,
			Trans:   seqmodel.Transitions{MM: -0.2, MI: -2, MD: -2, IM: -0.2, II: -1, DM: -0.2, DD: -1},
			BeginTo: seqmodel.LogProb(-2),
		}
	}
	return &seqmodel.Profile{
		Nodes:    nodes,
		Alphabet: alpha,
		Special: seqmodel.SpecialTransitions{
			NLoop: -1, NMove: -0.5,
			ELoop: -2, EMove: -0.2,
			CLoop: -1, CMove: -0.5,
			JLoop: -1, JMove: -0.5,
		},
	}
}

func fullEdgebounds(qLen, tLen int) *edgebound.Edgebounds {
	e := edgebound.NewAntidiagonal(qLen, tLen)
	for d := 1; d <= qLen+tLen; d++ {
		lo, hi := d-tLen, d
		if lo < 1 {
			lo = 1
		}
		if hi > qLen {
			hi = qLen
		}
		if lo > hi {
			continue
		}
		e.Append(edgebound.Bound{ID: d, LB: lo, RB: hi + 1})
	}
	row, _ := edgebound.ReorientToRow(e)
	return row
}

func toySeq(q int, tLen int, alpha seqmodel.Alphabet) seqmodel.EncodedSequence {
	sym := make([]uint8, q)
	for i := range sym {
		sym[i] = uint8(i % alpha.Len())
	}
	return seqmodel.EncodedSequence{Name: "q", Symbols: sym}
}

func TestForwardBackwardScoresAgree(t *testing.T) {
	// Testable property 1 (spec §8): forward and backward scores agree
	// within tolerance over the same full cloud.
	p := toyProfile(6)
	seq := toySeq(6, 6, p.Alphabet)
	edges := fullEdgebounds(seq.Len(), p.Len())

	sm, err := spmatrix.New(edges)
	require.NoError(t, err)
	spm := spmatrix.NewSpecial(seq.Len())
	fwdScore, err := dp.Forward(p, seq, sm, spm, nil)
	require.NoError(t, err)

	sm2, err := spmatrix.New(edges)
	require.NoError(t, err)
	spm2 := spmatrix.NewSpecial(seq.Len())
	bckScore, err := dp.Backward(p, seq, sm2, spm2, nil)
	require.NoError(t, err)

	assert.InDelta(t, fwdScore, bckScore, 5.0)
}

func TestDenseForwardMatchesSparseForwardOverFullCloud(t *testing.T) {
	// Testable property 2 (spec §8): sparse Forward over a full cloud
	// equals the dense reference implementation.
	p := toyProfile(5)
	seq := toySeq(5, 5, p.Alphabet)
	edges := fullEdgebounds(seq.Len(), p.Len())

	sm, err := spmatrix.New(edges)
	require.NoError(t, err)
	spm := spmatrix.NewSpecial(seq.Len())
	sparseScore, err := dp.Forward(p, seq, sm, spm, nil)
	require.NoError(t, err)

	denseScore := dp.DenseForward(p, seq)

	assert.InDelta(t, denseScore, sparseScore, 1e-3)
}

func TestSparseMatrixNewRejectsAntidiagonalOrientedEdgebounds(t *testing.T) {
	p := toyProfile(4)
	seq := toySeq(4, 4, p.Alphabet)
	anti := edgebound.NewAntidiagonal(seq.Len(), p.Len())
	anti.Append(edgebound.Bound{ID: 2, LB: 1, RB: 2})

	// SparseMatrix.New itself rejects antidiagonal orientation.
	_, err := spmatrix.New(anti)
	assert.Error(t, err)
}

func TestPosteriorRowSumsToOne(t *testing.T) {
	// Spec §4.4 invariant: per-row posterior mass (M/I plus N/J/C
	// emissions) sums to ~1.
	p := toyProfile(5)
	seq := toySeq(5, 5, p.Alphabet)
	edges := fullEdgebounds(seq.Len(), p.Len())

	fwdSM, err := spmatrix.New(edges)
	require.NoError(t, err)
	fwdSpecial := spmatrix.NewSpecial(seq.Len())
	fwdScore, err := dp.Forward(p, seq, fwdSM, fwdSpecial, nil)
	require.NoError(t, err)

	bckSM, err := spmatrix.New(edges)
	require.NoError(t, err)
	bckSpecial := spmatrix.NewSpecial(seq.Len())
	_, err = dp.Backward(p, seq, bckSM, bckSpecial, nil)
	require.NoError(t, err)

	post, special, err := dp.Posterior(p, fwdSM, bckSM, fwdSpecial, bckSpecial, fwdScore, false)
	require.NoError(t, err)

	for q := 1; q <= seq.Len(); q++ {
		sum := float64(special.NEmit(q) + special.JEmit(q) + special.CEmit(q))
		for _, bound := range edges.RowBounds(q) {
			for t := bound.LB; t < bound.RB; t++ {
				sum += float64(post.At(spmatrix.Match, q, t))
				sum += float64(post.At(spmatrix.Insert, q, t))
			}
		}
		assert.True(t, math.Abs(sum-1.0) < 0.5, "row %d posterior sum %.4f far from 1", q, sum)
	}
}

func TestPosteriorInPlaceMatchesFreshAllocation(t *testing.T) {
	// Regression: Posterior(..., inPlace=true) recycles bck's backing
	// array, so it must read every fwd/bck value it needs before
	// Recycle consumes bck. Must agree with the inPlace=false path.
	p := toyProfile(5)
	seq := toySeq(5, 5, p.Alphabet)
	edges := fullEdgebounds(seq.Len(), p.Len())

	runForwardBackward := func() (*spmatrix.SparseMatrix, *spmatrix.SparseMatrix, *spmatrix.SpecialMatrix, *spmatrix.SpecialMatrix, float32) {
		fwdSM, err := spmatrix.New(edges)
		require.NoError(t, err)
		fwdSpecial := spmatrix.NewSpecial(seq.Len())
		fwdScore, err := dp.Forward(p, seq, fwdSM, fwdSpecial, nil)
		require.NoError(t, err)

		bckSM, err := spmatrix.New(edges)
		require.NoError(t, err)
		bckSpecial := spmatrix.NewSpecial(seq.Len())
		_, err = dp.Backward(p, seq, bckSM, bckSpecial, nil)
		require.NoError(t, err)

		return fwdSM, bckSM, fwdSpecial, bckSpecial, fwdScore
	}

	fwdSM, bckSM, fwdSpecial, bckSpecial, fwdScore := runForwardBackward()
	fresh, freshSpecial, err := dp.Posterior(p, fwdSM, bckSM, fwdSpecial, bckSpecial, fwdScore, false)
	require.NoError(t, err)

	fwdSM2, bckSM2, fwdSpecial2, bckSpecial2, fwdScore2 := runForwardBackward()
	assert.NotPanics(t, func() {
		recycled, recycledSpecial, err := dp.Posterior(p, fwdSM2, bckSM2, fwdSpecial2, bckSpecial2, fwdScore2, true)
		require.NoError(t, err)

		for q := 1; q <= seq.Len(); q++ {
			assert.InDelta(t, freshSpecial.NEmit(q), recycledSpecial.NEmit(q), 1e-5)
			for _, bound := range edges.RowBounds(q) {
				for col := bound.LB; col < bound.RB; col++ {
					assert.InDelta(t, fresh.At(spmatrix.Match, q, col), recycled.At(spmatrix.Match, q, col), 1e-5)
					assert.InDelta(t, fresh.At(spmatrix.Insert, q, col), recycled.At(spmatrix.Insert, q, col), 1e-5)
				}
			}
		}
	})
}

func TestOptimalAccuracyAndTracebackProduceTrace(t *testing.T) {
	p := toyProfile(4)
	seq := toySeq(4, 4, p.Alphabet)
	edges := fullEdgebounds(seq.Len(), p.Len())

	fwdSM, err := spmatrix.New(edges)
	require.NoError(t, err)
	fwdSpecial := spmatrix.NewSpecial(seq.Len())
	fwdScore, err := dp.Forward(p, seq, fwdSM, fwdSpecial, nil)
	require.NoError(t, err)

	bckSM, err := spmatrix.New(edges)
	require.NoError(t, err)
	bckSpecial := spmatrix.NewSpecial(seq.Len())
	_, err = dp.Backward(p, seq, bckSM, bckSpecial, nil)
	require.NoError(t, err)

	post, special, err := dp.Posterior(p, fwdSM, bckSM, fwdSpecial, bckSpecial, fwdScore, false)
	require.NoError(t, err)

	_, oa, err := dp.OptimalAccuracy(p, post, special)
	require.NoError(t, err)

	tr := dp.Traceback(p, oa, seq.Len())
	require.NotEmpty(t, tr.Steps)
	assert.Equal(t, trace.S, tr.Steps[0].State)
}
