package seqmodel

import (
	"encoding/json"

	"github.com/biogo/biogo/alphabet"
)

// Residue is a single amino-acid symbol. Sequences and profile emission
// tables are both indexed through it.
type Residue byte

// Alphabet is an ordered set of residues. Indices into an Alphabet
// correspond to indices into a profile's emission columns.
type Alphabet []Residue

// NewAlphabet builds an Alphabet from the residues given, in order.
func NewAlphabet(residues ...Residue) Alphabet {
	return Alphabet(residues)
}

// Len returns the number of residues in the alphabet.
func (a Alphabet) Len() int { return len(a) }

// Index returns a constant-time mapping from ASCII byte to residue index.
// Bytes not present in the alphabet map to -1.
func (a Alphabet) Index() [256]int {
	var idx [256]int
	for i := range idx {
		idx[i] = -1
	}
	for i, r := range a {
		idx[r] = i
	}
	return idx
}

func (a1 Alphabet) Equals(a2 Alphabet) bool {
	if len(a1) != len(a2) {
		return false
	}
	for i, r := range a1 {
		if r != a2[i] {
			return false
		}
	}
	return true
}

func (a Alphabet) String() string {
	bs := make([]byte, len(a))
	for i, r := range a {
		bs[i] = byte(r)
	}
	return string(bs)
}

func (a *Alphabet) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Alphabet) UnmarshalJSON(bs []byte) error {
	var str string
	if err := json.Unmarshal(bs, &str); err != nil {
		return err
	}
	*a = make(Alphabet, len(str))
	for i := 0; i < len(str); i++ {
		(*a)[i] = Residue(str[i])
	}
	return nil
}

// AminoAcids is the 20-symbol canonical amino-acid alphabet used by every
// profile in this module (spec: amino-acid only, no nucleotide support).
var AminoAcids = NewAlphabet(
	'A', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'K', 'L',
	'M', 'N', 'P', 'Q', 'R', 'S', 'T', 'V', 'W', 'Y',
)

// ambiguityFolds maps degeneracy symbols to the canonical residues they fold
// across, used when a sequence byte isn't one of the 20 canonical symbols
// (spec §3: "degeneracy handling for ambiguity symbols: uniform, or fold
// into the standard 20 by prior").
var ambiguityFolds = map[Residue][]Residue{
	'B': {'D', 'N'},
	'Z': {'E', 'Q'},
	'J': {'I', 'L'},
	'X': AminoAcids,
	'U': {'C'}, // selenocysteine folded to cysteine
	'O': {'K'}, // pyrrolysine folded to lysine
}

// IsKnownResidue reports whether r is either a canonical amino acid or a
// recognised ambiguity code, using biogo's protein alphabet as the
// authority for the canonical 20 (domain-stack validation, see DESIGN.md).
func IsKnownResidue(r Residue) bool {
	if alphabet.Protein.IsValid(alphabet.Letter(byte(r))) {
		return true
	}
	_, ambiguous := ambiguityFolds[r]
	return ambiguous
}

// Fold returns the set of canonical residues an ambiguity code should be
// treated as, with uniform prior weight 1/len(result). A canonical residue
// folds to itself.
func Fold(r Residue) []Residue {
	if fold, ok := ambiguityFolds[r]; ok {
		return fold
	}
	return []Residue{r}
}
