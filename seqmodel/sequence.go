package seqmodel

import (
	"errors"
	"fmt"
)

// ErrUnmappedResidue is returned by Encode when a sequence contains a byte
// that is neither a canonical amino acid nor a recognised ambiguity code
// (spec §7 InvalidInput: "sequence contains unmapped byte").
var ErrUnmappedResidue = errors.New("seqmodel: sequence contains unmapped residue")

// Sequence is a biological sequence over the amino-acid alphabet. It is
// immutable once constructed; views taken with Slice share the backing
// array and must not be used to mutate the original.
type Sequence struct {
	Name     string
	Residues []Residue
}

// NewSequenceString builds a Sequence from a name and a residue string.
func NewSequenceString(name, residues string) Sequence {
	rs := make([]Residue, len(residues))
	for i := 0; i < len(residues); i++ {
		rs[i] = Residue(residues[i])
	}
	return Sequence{Name: name, Residues: rs}
}

// Len returns the number of residues in the sequence.
func (s Sequence) Len() int { return len(s.Residues) }

// Slice returns a non-copying view of the sequence over the half-open range
// [start, end). The name is preserved; the returned sequence shares the
// original's backing array.
func (s Sequence) Slice(start, end int) Sequence {
	return Sequence{Name: s.Name, Residues: s.Residues[start:end]}
}

// Copy returns a deep copy of the sequence.
func (s Sequence) Copy() Sequence {
	rs := make([]Residue, len(s.Residues))
	copy(rs, s.Residues)
	return Sequence{Name: s.Name, Residues: rs}
}

// Bytes returns the residues as a byte slice.
func (s Sequence) Bytes() []byte {
	bs := make([]byte, len(s.Residues))
	for i, r := range s.Residues {
		bs[i] = byte(r)
	}
	return bs
}

// EncodedSequence is the integer-index form of a Sequence used by the DP
// kernels so emission lookups are O(1) (spec §3). Symbols are indices into
// the profile's Alphabet; ambiguity codes are resolved once, at encode time,
// to the fold member with the highest background frequency rather than
// carried as a distribution through the DP.
type EncodedSequence struct {
	Name    string
	Symbols []uint8
}

// Len returns the number of positions in the encoded sequence.
func (e EncodedSequence) Len() int { return len(e.Symbols) }

// View returns a non-copying view over [start, end), the "domain view"
// spec §3 requires for per-domain DP reruns (C8/C9). It never mutates the
// underlying sequence.
func (e EncodedSequence) View(start, end int) EncodedSequence {
	return EncodedSequence{Name: e.Name, Symbols: e.Symbols[start:end]}
}

// Encode converts s into its index form against p's alphabet, resolving
// ambiguity codes by picking the fold member with the highest background
// frequency in p. It returns ErrUnmappedResidue, wrapped with the offending
// byte and position, for any residue that is neither canonical nor a known
// ambiguity code.
func (s Sequence) Encode(p *Profile) (EncodedSequence, error) {
	index := p.Alphabet.Index()
	out := make([]uint8, len(s.Residues))
	for i, r := range s.Residues {
		if idx := index[byte(r)]; idx >= 0 {
			out[i] = uint8(idx)
			continue
		}
		fold := Fold(r)
		bestIdx, bestFreq := -1, -1.0
		for _, cand := range fold {
			if idx := index[byte(cand)]; idx >= 0 && p.Background[idx] > bestFreq {
				bestIdx, bestFreq = idx, p.Background[idx]
			}
		}
		if bestIdx < 0 {
			return EncodedSequence{}, fmt.Errorf("%w: byte %q at position %d", ErrUnmappedResidue, byte(r), i)
		}
		out[i] = uint8(bestIdx)
	}
	return EncodedSequence{Name: s.Name, Symbols: out}, nil
}
