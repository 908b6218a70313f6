package seqmodel

import (
	"errors"
	"fmt"
	"math"
)

// LogProb is a natural-log probability, in nats. MinProb represents an
// impossible transition or emission; it is literal -Inf, and IsMin tests
// for it.
type LogProb float64

// MinProb is the value used for impossible transitions/emissions.
var MinProb = LogProb(math.Inf(-1))

// IsMin reports whether p is the impossible-event sentinel.
func (p LogProb) IsMin() bool { return math.IsInf(float64(p), -1) }

func (p LogProb) String() string {
	if p.IsMin() {
		return "*"
	}
	return fmt.Sprintf("%v", float64(p))
}

// Transitions holds the seven Plan7 core-state transition log-probabilities
// for one profile node (spec §3: "Seven transition log-probs").
type Transitions struct {
	MM, MI, MD LogProb
	IM, II     LogProb
	DM, DD     LogProb
}

// SpecialTransitions holds the Plan7 N/J/B/E/C outer-state LOOP/MOVE
// transition log-probabilities (spec §3: "special-state transitions for the
// outer state machine"). Supplemented from original_source's XTSC macro
// table, dropped by the distilled spec's terse mention but required to run
// Forward/Backward at all.
type SpecialTransitions struct {
	NLoop, NMove LogProb
	ELoop, EMove LogProb // E->J (loop, multi-hit) / E->C (move, done)
	CLoop, CMove LogProb
	JLoop, JMove LogProb
}

// EProbs is an emission log-probability row over a fixed Alphabet.
type EProbs struct {
	alphabet Alphabet
	index    [256]int
	probs    []LogProb
}

// NewEProbs allocates an emission row over alphabet, initialised to MinProb.
func NewEProbs(alphabet Alphabet) EProbs {
	probs := make([]LogProb, alphabet.Len())
	for i := range probs {
		probs[i] = MinProb
	}
	return EProbs{alphabet: alphabet, index: alphabet.Index(), probs: probs}
}

// Lookup returns the emission log-probability for r, or MinProb if r is not
// in the row's alphabet.
func (e EProbs) Lookup(r Residue) LogProb {
	i := e.index[byte(r)]
	if i < 0 {
		return MinProb
	}
	return e.probs[i]
}

// LookupIndex returns the emission log-probability for an already-encoded
// alphabet index, the hot path used by the DP kernels.
func (e EProbs) LookupIndex(i int) LogProb {
	return e.probs[i]
}

// Set sets the emission log-probability of r.
func (e *EProbs) Set(r Residue, p LogProb) {
	i := e.index[byte(r)]
	if i < 0 {
		panic(fmt.Sprintf("seqmodel: residue %q not in alphabet %q", byte(r), e.alphabet.String()))
	}
	e.probs[i] = p
}

// SetIndex sets the emission log-probability at an alphabet index directly.
func (e *EProbs) SetIndex(i int, p LogProb) {
	e.probs[i] = p
}

// Node is a single match/insert column of a profile HMM plus its outgoing
// transitions and begin-transition weight (spec §3).
type Node struct {
	MatEmit EProbs
	InsEmit EProbs
	Trans   Transitions
	// BeginTo is the B->M(t) begin-transition log-probability for this node.
	BeginTo LogProb
}

// GumbelParams fits the Viterbi-score null distribution (spec §3, §4.8).
type GumbelParams struct{ Lambda, Mu float64 }

// ExponentialParams fits the Forward-score null distribution (spec §3,
// §4.8).
type ExponentialParams struct{ Lambda, Tau float64 }

// Profile is a Plan7 profile HMM of length T (number of Nodes).
type Profile struct {
	Name, Accession, Description string

	Nodes    []Node
	Alphabet Alphabet

	// Background is the null-model residue composition, indexed the same
	// way as Alphabet (spec §3, §4.8 "null1").
	Background []float64

	Special SpecialTransitions

	ViterbiGumbel GumbelParams
	ForwardExp    ExponentialParams
}

// Len returns T, the profile length.
func (p *Profile) Len() int { return len(p.Nodes) }

// ErrInvalidProfile is the InvalidInput sentinel for structurally broken
// profiles (spec §7).
var ErrInvalidProfile = errors.New("seqmodel: invalid profile")

// ErrNotStochastic is returned by Validate when a row of emission or
// transition probabilities does not sum to 1 within tolerance (spec §3
// invariant).
var ErrNotStochastic = errors.New("seqmodel: emission/transition row is not stochastic")

const stochasticTolerance = 1e-3

// Validate checks the invariants spec §3 states for a profile: length > 0,
// and every stochastic choice (each M/I emission row, and the M{M,I,D},
// I{M,I}, D{M,D} transition groups) sums to 1 within tolerance after
// exponentiation.
func (p *Profile) Validate() error {
	if p.Len() <= 0 {
		return fmt.Errorf("%w: length must be positive, got %d", ErrInvalidProfile, p.Len())
	}
	for t, node := range p.Nodes {
		if err := checkStochasticRow(node.MatEmit.probs); err != nil {
			return fmt.Errorf("%w: node %d match emissions: %v", ErrNotStochastic, t, err)
		}
		if err := checkStochasticRow(node.InsEmit.probs); err != nil {
			return fmt.Errorf("%w: node %d insert emissions: %v", ErrNotStochastic, t, err)
		}
		if t == len(p.Nodes)-1 {
			// The last node's core transitions are not checked. Slice gives
			// them an end-state pattern; dp.Forward reads their MM/IM/DM for
			// the match cells of column T.
			continue
		}
		if err := checkStochasticRow([]LogProb{node.Trans.MM, node.Trans.MI, node.Trans.MD}); err != nil {
			return fmt.Errorf("%w: node %d M transitions: %v", ErrNotStochastic, t, err)
		}
		if err := checkStochasticRow([]LogProb{node.Trans.IM, node.Trans.II}); err != nil {
			return fmt.Errorf("%w: node %d I transitions: %v", ErrNotStochastic, t, err)
		}
		if err := checkStochasticRow([]LogProb{node.Trans.DM, node.Trans.DD}); err != nil {
			return fmt.Errorf("%w: node %d D transitions: %v", ErrNotStochastic, t, err)
		}
	}
	return nil
}

func checkStochasticRow(row []LogProb) error {
	sum := 0.0
	any := false
	for _, p := range row {
		if p.IsMin() {
			continue
		}
		any = true
		sum += math.Exp(float64(p))
	}
	if !any {
		// An entirely-impossible row (e.g. an emission column never
		// observed) is not a stochastic violation on its own; only a
		// partially-populated row that fails to sum to 1 is.
		return nil
	}
	if math.Abs(sum-1.0) > stochasticTolerance {
		return fmt.Errorf("sum %.6f not within %.0e of 1.0", sum, stochasticTolerance)
	}
	return nil
}

// Slice returns a new profile restricted to nodes [start, end), with the
// transitions of the final node forced into the end-state pass-through
// pattern used by HMMER-style profile slicing (kept from TuftsBCB-seq's
// HMM.Slice, generalised to carry Background/Special/distributions
// through unchanged).
func (p *Profile) Slice(start, end int) *Profile {
	nodes := make([]Node, end-start)
	copy(nodes, p.Nodes[start:end])
	last := len(nodes) - 1
	nodes[last].Trans = Transitions{
		MM: 0, MI: MinProb, MD: MinProb,
		IM: 0, II: MinProb,
		DM: 0, DD: MinProb,
	}
	return &Profile{
		Name:          p.Name,
		Accession:     p.Accession,
		Description:   p.Description,
		Nodes:         nodes,
		Alphabet:      p.Alphabet,
		Background:    p.Background,
		Special:       p.Special,
		ViterbiGumbel: p.ViterbiGumbel,
		ForwardExp:    p.ForwardExp,
	}
}
