package seqmodel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wheeler-lab/cloudfb/seqmodel"
)

func TestEncodeCanonicalResidues(t *testing.T) {
	p := smallProfile(t)
	seq := seqmodel.NewSequenceString("q", "AC")
	enc, err := seq.Encode(p)
	assert.NoError(t, err)
	assert.Equal(t, 2, enc.Len())
}

func TestEncodeFoldsAmbiguityCode(t *testing.T) {
	p := smallProfile(t)
	seq := seqmodel.NewSequenceString("q", "X")
	enc, err := seq.Encode(p)
	assert.NoError(t, err)
	assert.Equal(t, 1, enc.Len())
}

func TestEncodeRejectsUnmappedByte(t *testing.T) {
	p := smallProfile(t)
	seq := seqmodel.NewSequenceString("q", "1")
	_, err := seq.Encode(p)
	assert.ErrorIs(t, err, seqmodel.ErrUnmappedResidue)
}

func TestSequenceSliceSharesBackingArray(t *testing.T) {
	seq := seqmodel.NewSequenceString("q", "ACDEF")
	view := seq.Slice(1, 3)
	view.Residues[0] = 'Z'
	assert.Equal(t, seqmodel.Residue('Z'), seq.Residues[1])
}

func TestEncodedSequenceViewDoesNotMutate(t *testing.T) {
	p := smallProfile(t)
	seq := seqmodel.NewSequenceString("q", "ACDEF")
	enc, err := seq.Encode(p)
	assert.NoError(t, err)
	view := enc.View(1, 3)
	assert.Equal(t, 2, view.Len())
	assert.Equal(t, enc.Symbols[1:3], view.Symbols)
}
