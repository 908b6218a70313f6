package seqmodel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheeler-lab/cloudfb/seqmodel"
)

func smallProfile(t *testing.T) *seqmodel.Profile {
	t.Helper()
	alpha := seqmodel.AminoAcids
	n := alpha.Len()
	mkRow := func(hot int) seqmodel.EProbs {
		ep := seqmodel.NewEProbs(alpha)
		for i := 0; i < n; i++ {
			if i == hot {
				ep.SetIndex(i, 0)
			}
		}
		return ep
	}
	nodes := []seqmodel.Node{
		{MatEmit: mkRow(0), InsEmit: mkRow(1), Trans: seqmodel.Transitions{MM: -0.105, MI: -3, MD: -3, IM: -0.105, II: -2.3, DM: -0.105, DD: -2.3}, BeginTo: -0.1},
		{MatEmit: mkRow(2), InsEmit: mkRow(1), Trans: seqmodel.Transitions{MM: -0.105, MI: -3, MD: -3, IM: -0.105, II: -2.3, DM: -0.105, DD: -2.3}, BeginTo: -0.1},
	}
	bg := make([]float64, n)
	for i := range bg {
		bg[i] = 1.0 / float64(n)
	}
	return &seqmodel.Profile{
		Name:       "toy",
		Nodes:      nodes,
		Alphabet:   alpha,
		Background: bg,
	}
}

func TestProfileValidate(t *testing.T) {
	p := smallProfile(t)
	require.NoError(t, p.Validate())
}

func TestProfileValidateRejectsZeroLength(t *testing.T) {
	p := &seqmodel.Profile{Alphabet: seqmodel.AminoAcids}
	assert.ErrorIs(t, p.Validate(), seqmodel.ErrInvalidProfile)
}

func TestProfileValidateRejectsBadStochasticRow(t *testing.T) {
	p := smallProfile(t)
	p.Nodes[0].Trans.MM = 0
	p.Nodes[0].Trans.MI = 0
	p.Nodes[0].Trans.MD = 0
	assert.ErrorIs(t, p.Validate(), seqmodel.ErrNotStochastic)
}

func TestProfileSlicePreservesAncillaryFields(t *testing.T) {
	p := smallProfile(t)
	p.ViterbiGumbel = seqmodel.GumbelParams{Lambda: 0.7, Mu: 10}
	sliced := p.Slice(0, 1)
	assert.Equal(t, 1, sliced.Len())
	assert.Equal(t, p.ViterbiGumbel, sliced.ViterbiGumbel)
	assert.Equal(t, seqmodel.LogProb(0), sliced.Nodes[0].Trans.MM)
}

func TestEProbsLookupMissingResidueIsMin(t *testing.T) {
	ep := seqmodel.NewEProbs(seqmodel.AminoAcids)
	ep.Set('A', -1)
	assert.Equal(t, seqmodel.LogProb(-1), ep.Lookup('A'))
	assert.True(t, ep.Lookup('?').IsMin())
}
