// Package trace represents the alignment trace produced by optimal-accuracy
// traceback (spec §4.7), generalising TuftsBCB-seq's pairwise
// Alignment{A, B []Residue} to a full Plan7 trace carrying the special
// states a profile/sequence alignment passes through.
package trace

import (
	"fmt"
	"strings"

	"github.com/wheeler-lab/cloudfb/seqmodel"
)

// State is one Plan7 state along a trace.
type State int

const (
	S State = iota
	N
	B
	Match
	Insert
	Delete
	E
	J
	C
	T
)

func (st State) String() string {
	switch st {
	case S:
		return "S"
	case N:
		return "N"
	case B:
		return "B"
	case Match:
		return "M"
	case Insert:
		return "I"
	case Delete:
		return "D"
	case E:
		return "E"
	case J:
		return "J"
	case C:
		return "C"
	case T:
		return "T"
	default:
		return "?"
	}
}

// Step is one visited cell: the state, the query row I (0 for states that
// don't consume a residue) and the profile column J (0 for states that
// don't advance the model).
type Step struct {
	State State
	I, J  int
}

// Trace is an ordered, start-to-end sequence of Steps (spec §3 "Alignment
// trace").
type Trace struct {
	Steps []Step
}

// DomainRange returns the [first, last] query rows touched by Match or
// Insert steps in the trace, or (0, 0, false) if the trace emits no
// residues.
func (t Trace) DomainRange() (first, last int, ok bool) {
	for _, s := range t.Steps {
		if s.State != Match && s.State != Insert {
			continue
		}
		if !ok {
			first = s.I
			ok = true
		}
		last = s.I
	}
	return first, last, ok
}

// CIGAR renders the trace as a CIGAR string over M/I/D operators,
// run-length encoded (special states N/J/B/E/C/S/T are not part of a
// CIGAR and are skipped).
func (t Trace) CIGAR() string {
	var b strings.Builder
	runOp := byte(0)
	runLen := 0
	flush := func() {
		if runLen > 0 {
			fmt.Fprintf(&b, "%d%c", runLen, runOp)
		}
	}
	for _, s := range t.Steps {
		var op byte
		switch s.State {
		case Match:
			op = 'M'
		case Insert:
			op = 'I'
		case Delete:
			op = 'D'
		default:
			continue
		}
		if op == runOp {
			runLen++
			continue
		}
		flush()
		runOp, runLen = op, 1
	}
	flush()
	return b.String()
}

// AlignedQuery renders the query-side of the alignment, with '-' standing
// in for Delete columns (profile advances without consuming a residue).
func (t Trace) AlignedQuery(seq seqmodel.Sequence) string {
	var b strings.Builder
	for _, s := range t.Steps {
		switch s.State {
		case Match, Insert:
			b.WriteByte(byte(seq.Residues[s.I-1]))
		case Delete:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// AlignedTarget renders the profile-consensus side of the alignment,
// using p's per-node match-emission argmax residue and '-' for Insert
// columns (profile does not advance).
func (t Trace) AlignedTarget(p *seqmodel.Profile) string {
	var b strings.Builder
	for _, s := range t.Steps {
		switch s.State {
		case Match, Delete:
			b.WriteByte(byte(consensusResidue(p, s.J)))
		case Insert:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// MatchLine renders a HMMER-style middle line: the consensus residue
// where Match agrees with the query's most probable emission, a space
// for Insert/Delete columns.
func (t Trace) MatchLine(seq seqmodel.Sequence, p *seqmodel.Profile) string {
	var b strings.Builder
	for _, s := range t.Steps {
		switch s.State {
		case Match:
			if seqmodel.Residue(seq.Residues[s.I-1]) == consensusResidue(p, s.J) {
				b.WriteByte(byte(consensusResidue(p, s.J)))
			} else {
				b.WriteByte('+')
			}
		case Insert, Delete:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func consensusResidue(p *seqmodel.Profile, j int) seqmodel.Residue {
	node := p.Nodes[j-1]
	best := p.Alphabet[0]
	bestProb := seqmodel.MinProb
	for _, r := range p.Alphabet {
		if prob := node.MatEmit.Lookup(r); prob > bestProb {
			best, bestProb = r, prob
		}
	}
	return best
}
