package pipeline_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheeler-lab/cloudfb/cloud"
	"github.com/wheeler-lab/cloudfb/pipeline"
	"github.com/wheeler-lab/cloudfb/seqmodel"
)

func toyProfile(t int) *seqmodel.Profile {
	alpha := seqmodel.AminoAcids
	nodes := make([]seqmodel.Node, t)
	for i := range nodes {
		m := seqmodel.NewEProbs(alpha)
		ins := seqmodel.NewEProbs(alpha)
		residual := math.Log(0.5 / float64(alpha.Len()-1))
		for k := 0; k < alpha.Len(); k++ {
			m.SetIndex(k, seqmodel.LogProb(residual))
			ins.SetIndex(k, seqmodel.LogProb(math.Log(1.0/float64(alpha.Len()))))
		}
		m.SetIndex(i%alpha.Len(), seqmodel.LogProb(math.Log(0.5)))
		nodes[i] = seqmodel.Node{
			MatEmit: m,
			InsEmit: ins,
			Trans: seqmodel.Transitions{
				MM: seqmodel.LogProb(math.Log(0.8)), MI: seqmodel.LogProb(math.Log(0.1)), MD: seqmodel.LogProb(math.Log(0.1)),
				IM: seqmodel.LogProb(math.Log(0.9)), II: seqmodel.LogProb(math.Log(0.1)),
				DM: seqmodel.LogProb(math.Log(0.9)), DD: seqmodel.LogProb(math.Log(0.1)),
			},
			BeginTo: seqmodel.LogProb(math.Log(1.0 / float64(t))),
		}
	}
	bg := make([]float64, alpha.Len())
	for i := range bg {
		bg[i] = 1.0 / float64(alpha.Len())
	}
	return &seqmodel.Profile{
		Nodes:      nodes,
		Alphabet:   alpha,
		Background: bg,
		Special: seqmodel.SpecialTransitions{
			NLoop: -1, NMove: -0.5,
			ELoop: -2, EMove: -0.2,
			CLoop: -1, CMove: -0.5,
			JLoop: -1, JMove: -0.5,
		},
		ViterbiGumbel: seqmodel.GumbelParams{Lambda: 0.7, Mu: 10},
		ForwardExp:    seqmodel.ExponentialParams{Lambda: 0.7, Tau: 5},
	}
}

func randomSequence(q, seedN int, alpha seqmodel.Alphabet) seqmodel.Sequence {
	r := rand.New(rand.NewSource(int64(seedN)))
	letters := alpha.String()
	bs := make([]byte, q)
	for i := range bs {
		bs[i] = letters[r.Intn(len(letters))]
	}
	return seqmodel.NewSequenceString("s", string(bs))
}

func TestRunProducesScoredDomains(t *testing.T) {
	p := toyProfile(20)
	seq := randomSequence(20, 7, p.Alphabet)
	seed := cloud.Seed{QStart: 8, QEnd: 12, TStart: 8, TEnd: 12, ViterbiScore: 15}

	cfg := pipeline.NewConfig(
		pipeline.WithAlpha(1000),
		pipeline.WithBeta(2000),
		pipeline.WithGamma(0),
		pipeline.WithDBSize(100),
	)

	res, err := pipeline.Run(p, &seq, seed, cfg)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Unreliable)
	assert.False(t, res.FilterFailed)

	if assert.NotEmpty(t, res.Domains) {
		d := res.Domains[0]
		assert.GreaterOrEqual(t, d.B, d.A)
		assert.NotEmpty(t, d.Trace.Steps)
		assert.InDelta(t, d.Score.BitScore, d.Score.NatScore/math.Ln2, 1e-6)
	}
}

func TestRunRejectsInvalidSeed(t *testing.T) {
	p := toyProfile(10)
	seq := randomSequence(10, 1, p.Alphabet)
	seed := cloud.Seed{QStart: 0, QEnd: 100, TStart: 0, TEnd: 5}

	_, err := pipeline.Run(p, &seq, seed, pipeline.DefaultConfig())
	assert.ErrorIs(t, err, pipeline.ErrInvalidInput)
}

func TestRunReportsFilterFailedOnHardLimit(t *testing.T) {
	p := toyProfile(20)
	seq := randomSequence(20, 3, p.Alphabet)
	seed := cloud.Seed{QStart: 8, QEnd: 12, TStart: 8, TEnd: 12}

	cfg := pipeline.NewConfig(
		pipeline.WithAlpha(1000),
		pipeline.WithBeta(2000),
		pipeline.WithGamma(0),
		pipeline.WithHardLimit(1),
	)

	res, err := pipeline.Run(p, &seq, seed, cfg)
	require.NoError(t, err)
	assert.True(t, res.FilterFailed)
	assert.NotEmpty(t, res.FilterReason)
}
