// Package cloud implements the antidiagonal pruned cloud search (spec
// §4.1): two rotating-buffer antidiagonal sweeps (forward from the seed
// start, backward from the seed end) that produce a pruned cloud of DP
// cells around a prefilter-supplied seed alignment.
package cloud

import (
	"errors"
	"fmt"

	"github.com/wheeler-lab/cloudfb/dp"
	"github.com/wheeler-lab/cloudfb/edgebound"
	"github.com/wheeler-lab/cloudfb/logsum"
	"github.com/wheeler-lab/cloudfb/seqmodel"
	"github.com/wheeler-lab/cloudfb/spmatrix"
)

// Seed is the prefilter-supplied alignment endpoint pair anchoring the
// cloud search (spec §4.1 input, §6 "Seed source").
type Seed struct {
	QStart, QEnd int // i_s, i_e
	TStart, TEnd int // j_s, j_e

	// ViterbiScore is the prefilter's own Viterbi nat-score for this hit
	// (spec §1: "an upstream tool supplies seed coordinates and a Viterbi
	// score"). This package never recomputes it; producing a Viterbi
	// traceback is explicitly out of scope.
	ViterbiScore float64
}

// Params configures the pruning behaviour (spec §4.1).
type Params struct {
	Alpha     float32 // per-diagonal x-drop
	Beta      float32 // global x-drop termination
	Gamma     int     // free initial antidiagonals with no pruning
	HardLimit int     // 0 means unlimited
}

// TerminationReason records why a sweep stopped. None of these are errors
// (spec §7): CloudExhausted and ResourceExceeded are reported, not raised.
type TerminationReason int

const (
	ReachedEnd TerminationReason = iota
	GlobalXDrop
	CellCapExceeded
	BoundsExhausted
)

func (r TerminationReason) String() string {
	switch r {
	case ReachedEnd:
		return "reached-end"
	case GlobalXDrop:
		return "global-x-drop"
	case CellCapExceeded:
		return "cell-cap-exceeded"
	case BoundsExhausted:
		return "bounds-exhausted"
	default:
		return "unknown"
	}
}

// ErrInvalidSeed is the InvalidInput sentinel for a seed outside [0,Q]x[0,T]
// (spec §7, §4.1 "the caller is expected to have validated").
var ErrInvalidSeed = errors.New("cloud: invalid seed")

// SweepResult is the outcome of one antidiagonal sweep.
type SweepResult struct {
	Edgebounds  *edgebound.Edgebounds
	InnerMax    float32
	OuterMax    float32
	Terminated  TerminationReason
}

// Result is the outcome of a full forward+backward cloud search.
type Result struct {
	Forward, Backward SweepResult
	CloudScore        float32
}

func validateSeed(seed Seed, qLen, tLen int) error {
	if seed.QStart < 0 || seed.QEnd > qLen || seed.TStart < 0 || seed.TEnd > tLen {
		return fmt.Errorf("%w: seed (%d,%d)-(%d,%d) outside [0,%d]x[0,%d]",
			ErrInvalidSeed, seed.QStart, seed.TStart, seed.QEnd, seed.TEnd, qLen, tLen)
	}
	if seed.QStart > seed.QEnd || seed.TStart > seed.TEnd {
		return fmt.Errorf("%w: seed start after end", ErrInvalidSeed)
	}
	return nil
}

// Search runs both sweeps and returns the pruned antidiagonal edgebounds
// plus the composite cloud score (spec §4.1).
func Search(profile *seqmodel.Profile, seq seqmodel.EncodedSequence, seed Seed, params Params) (Result, error) {
	qLen, tLen := seq.Len(), profile.Len()
	if err := validateSeed(seed, qLen, tLen); err != nil {
		return Result{}, err
	}

	fwd, err := sweepForward(profile, seq, seed, params)
	if err != nil {
		return Result{}, err
	}
	bck, err := sweepBackward(profile, seq, seed, params)
	if err != nil {
		return Result{}, err
	}

	cloudScore := fwd.InnerMax + (fwd.OuterMax - fwd.InnerMax) + (bck.OuterMax - bck.InnerMax)

	return Result{Forward: fwd, Backward: bck, CloudScore: cloudScore}, nil
}

// cell holds the three Plan7 core-state values for one DP cell.
type cell struct{ M, I, D float32 }

var negInfCell = cell{logsum.NegInf, logsum.NegInf, logsum.NegInf}

// ring is the three rotating antidiagonal buffers the linear-space sweep
// keeps live at once (spec §4.1: "(d mod 3, k) where k = i"), keyed by row
// index i within each generation.
type ring struct {
	gen [3]map[int]cell
}

func newRing() *ring {
	return &ring{gen: [3]map[int]cell{{}, {}, {}}}
}

func (r *ring) at(d, i int) cell {
	c, ok := r.gen[((d%3)+3)%3][i]
	if !ok {
		return negInfCell
	}
	return c
}

func (r *ring) set(d, i int, c cell) {
	r.gen[((d%3)+3)%3][i] = c
}

func (r *ring) clear(d int) {
	r.gen[((d%3)+3)%3] = map[int]cell{}
}

func maxOf(vs ...float32) float32 {
	m := logsum.NegInf
	for _, v := range vs {
		if v > m {
			m = v
		}
	}
	return m
}

// sweepForward runs the forward antidiagonal sweep from the seed start in
// two passes.
//
// Pass one walks antidiagonals (the loop below) to decide the cloud's
// *shape*: which cells survive x-drop trimming. Within that loop the begin
// transition into M is anchored at the seed cell only (bPrev is 0 exactly
// at (i_s, j_s), -Inf elsewhere) — a bootstrap value, not a claim about
// where domains may actually begin. A single antidiagonal touches many
// query rows at once, each at a different column, so a row's column-T cell
// (the one E depends on) can be produced antidiagonals after that same
// row's column-1 cell; an exact N/J/B/E/C recursion cannot be advanced
// mid-antidiagonal without knowing a row is finished. Spec §4.1's "advance
// per query row, not per antidiagonal" is honoured by deferring the
// special-state recursion entirely to pass two, below: once the band shape
// is fixed, refineForwardScores reruns dp.Forward's exact row-major
// recursion restricted to that band, so B(i-1) is always known by the time
// row i needs it. InnerMax/OuterMax (and hence CloudScore) come from that
// second, exact pass, not the bootstrap approximation in pass one.
func sweepForward(profile *seqmodel.Profile, seq seqmodel.EncodedSequence, seed Seed, params Params) (SweepResult, error) {
	qLen, tLen := seq.Len(), profile.Len()
	dStart := seed.QStart + seed.TStart
	dEnd := qLen + tLen
	dEndSeed := seed.QEnd + seed.TEnd

	edg := edgebound.NewAntidiagonalSized(qLen, tLen, dEnd-dStart+1)
	buf := newRing()
	buf.set(dStart, seed.QStart, cell{M: 0, I: logsum.NegInf, D: logsum.NegInf})
	edg.Append(edgebound.Bound{ID: dStart, LB: seed.QStart, RB: seed.QStart + 1})

	lb, rb := seed.QStart, seed.QStart+1
	totalMax := float32(0)
	innerMax, outerMax := float32(0), float32(0)
	cellTotal := 1
	term := ReachedEnd

	for d := dStart + 1; d <= dEnd; d++ {
		candLB, candRB := lb-1, rb+1
		if lo := d - tLen; lo > candLB {
			candLB = lo
		}
		if candLB < 0 {
			candLB = 0
		}
		if candRB > d+1 {
			candRB = d + 1
		}
		if candRB > qLen+1 {
			candRB = qLen + 1
		}

		dMax := logsum.NegInf
		for i := candLB; i < candRB; i++ {
			j := d - i
			if i < 0 || i > qLen || j < 1 || j > tLen {
				continue
			}
			c := forwardCell(profile, seq, buf, d, i, j, i == seed.QStart && j == seed.TStart)
			if c == negInfCell {
				continue
			}
			buf.set(d, i, c)
			dMax = maxOf(dMax, c.M, c.I, c.D)
		}

		if d-dStart >= params.Gamma {
			newLB, newRB, ok := edgeTrim(buf, d, candLB, candRB, dMax-params.Alpha)
			if !ok {
				term = BoundsExhausted
				buf.clear(d - 2)
				break
			}
			lb, rb = newLB, newRB
		} else {
			lb, rb = candLB, candRB
		}

		if dMax > totalMax {
			totalMax = dMax
		}
		if d >= dStart && d <= dEndSeed {
			innerMax = maxOf(innerMax, dMax)
		}
		outerMax = maxOf(outerMax, dMax)

		edg.Append(edgebound.Bound{ID: d, LB: lb, RB: rb})
		cellTotal += rb - lb

		if dMax < totalMax-params.Beta {
			term = GlobalXDrop
			buf.clear(d - 2)
			break
		}
		if params.HardLimit > 0 && cellTotal > params.HardLimit {
			term = CellCapExceeded
			buf.clear(d - 2)
			break
		}
		buf.clear(d - 2)
	}

	// Pass one's maxima are stored first; the refined values computed below
	// always replace them.
	result := SweepResult{Edgebounds: edg, InnerMax: innerMax, OuterMax: outerMax, Terminated: term}

	refinedInner, refinedOuter, err := refineForwardScores(profile, seq, edg, dStart, dEndSeed)
	if err != nil {
		return SweepResult{}, err
	}
	result.InnerMax, result.OuterMax = refinedInner, refinedOuter
	return result, nil
}

// refineForwardScores is sweepForward's pass two: it reorients the
// antidiagonal-shaped cloud from pass one to row form and reruns
// dp.Forward's exact row-major recursion over it, so N/J/B/E/C advance once
// per finished query row the way spec §4.1 requires. It returns the
// inner/outer cell-score maxima the real (non-bootstrap) M/I/D values give,
// the basis for CloudScore.
func refineForwardScores(profile *seqmodel.Profile, seq seqmodel.EncodedSequence, edg *edgebound.Edgebounds, dLo, dHi int) (innerMax, outerMax float32, err error) {
	rowEdges, err := edgebound.ReorientToRow(edg)
	if err != nil {
		return 0, 0, err
	}
	sm, err := spmatrix.New(rowEdges)
	if err != nil {
		return 0, 0, err
	}
	spm := spmatrix.NewSpecial(rowEdges.QLen())
	if _, err := dp.Forward(profile, seq, sm, spm, nil); err != nil {
		return 0, 0, err
	}
	inner, outer := cellExtremes(sm, rowEdges, dLo, dHi)
	return inner, outer, nil
}

// cellExtremes scans every cell named by edges and returns the maximum
// core-state value within the [dLo, dHi] antidiagonal band (innerMax, spec
// §4.1) and over the whole cloud (outerMax).
func cellExtremes(sm *spmatrix.SparseMatrix, edges *edgebound.Edgebounds, dLo, dHi int) (innerMax, outerMax float32) {
	innerMax, outerMax = logsum.NegInf, logsum.NegInf
	for i := 0; i <= edges.QLen(); i++ {
		for _, bound := range edges.RowBounds(i) {
			for t := bound.LB; t < bound.RB; t++ {
				v := maxOf(sm.At(spmatrix.Match, i, t), sm.At(spmatrix.Insert, i, t), sm.At(spmatrix.Delete, i, t))
				if d := i + t; d >= dLo && d <= dHi {
					innerMax = maxOf(innerMax, v)
				}
				outerMax = maxOf(outerMax, v)
			}
		}
	}
	return innerMax, outerMax
}

func forwardCell(profile *seqmodel.Profile, seq seqmodel.EncodedSequence, buf *ring, d, i, j int, isSeedAnchor bool) cell {
	node := profile.Nodes[j-1]
	x := int(seq.Symbols[i-1])

	prevDiag := buf.at(d-2, i-1) // (i-1, j-1)
	prevUp := buf.at(d-1, i-1)   // (i-1, j)

	bPrev := float32(logsum.NegInf)
	if isSeedAnchor {
		bPrev = 0
	}

	m := logsum.AddAll(
		prevDiag.M+float32(node.Trans.MM),
		prevDiag.I+float32(node.Trans.IM),
		prevDiag.D+float32(node.Trans.DM),
		bPrev+float32(node.BeginTo),
	) + float32(node.MatEmit.LookupIndex(x))

	ins := logsum.Add(
		prevUp.M+float32(node.Trans.MI),
		prevUp.I+float32(node.Trans.II),
	) + float32(node.InsEmit.LookupIndex(x))

	var del float32
	if j == 1 {
		del = logsum.NegInf
	} else {
		prevNode := profile.Nodes[j-2]
		left := buf.at(d-1, i)
		del = logsum.Add(left.M+float32(prevNode.Trans.MD), left.D+float32(prevNode.Trans.DD))
	}

	return cell{M: m, I: ins, D: del}
}

// edgeTrim implements spec §4.1 step 3: the edge-trim (non-bifurcating)
// pruning variant. It walks from the left until a cell's max state value
// meets limit, and from the right symmetrically, returning the new [lb, rb).
// ok is false if no cell in [lb, rb) survives.
func edgeTrim(buf *ring, d, lb, rb int, limit float32) (newLB, newRB int, ok bool) {
	newLB = rb
	for i := lb; i < rb; i++ {
		c := buf.at(d, i)
		if maxOf(c.M, c.I, c.D) >= limit {
			newLB = i
			break
		}
	}
	if newLB == rb {
		return 0, 0, false
	}
	newRB = newLB
	for i := rb - 1; i >= newLB; i-- {
		c := buf.at(d, i)
		if maxOf(c.M, c.I, c.D) >= limit {
			newRB = i + 1
			break
		}
	}
	return newLB, newRB, true
}

// sweepBackward runs the backward antidiagonal sweep from the seed end,
// symmetric to sweepForward with transposed transitions and decreasing d.
// Its first pass decides cloud shape with the same seed-anchored bootstrap
// value for B; its second pass, refineBackwardScores, reruns dp.Backward's
// exact row-major recursion over the fixed band for the real N/J/B/E/C
// values and the InnerMax/OuterMax that follow from them (see sweepForward
// for why the special-state recursion can't be advanced mid-antidiagonal).
func sweepBackward(profile *seqmodel.Profile, seq seqmodel.EncodedSequence, seed Seed, params Params) (SweepResult, error) {
	qLen, tLen := seq.Len(), profile.Len()
	dEnd := seed.QEnd + seed.TEnd
	dStop := 0
	dStartSeed := seed.QStart + seed.TStart

	edg := edgebound.NewAntidiagonalSized(qLen, tLen, dEnd-dStop+1)
	buf := newRing()
	buf.set(dEnd, seed.QEnd, cell{M: 0, I: logsum.NegInf, D: logsum.NegInf})
	edg.Append(edgebound.Bound{ID: dEnd, LB: seed.QEnd, RB: seed.QEnd + 1})

	lb, rb := seed.QEnd, seed.QEnd+1
	totalMax := float32(0)
	innerMax, outerMax := float32(0), float32(0)
	cellTotal := 1
	term := ReachedEnd

	for d := dEnd - 1; d >= dStop; d-- {
		candLB, candRB := lb-1, rb+1
		if candLB < 0 {
			candLB = 0
		}
		if hi := d + 1; candRB > hi {
			candRB = hi
		}
		if candRB > qLen+1 {
			candRB = qLen + 1
		}

		dMax := logsum.NegInf
		for i := candLB; i < candRB; i++ {
			j := d - i
			if i < 0 || i > qLen || j < 0 || j > tLen {
				continue
			}
			if j == 0 {
				continue
			}
			c := backwardCell(profile, seq, buf, d, i, j, qLen, tLen, i == seed.QEnd && j == seed.TEnd)
			if c == negInfCell {
				continue
			}
			buf.set(d, i, c)
			dMax = maxOf(dMax, c.M, c.I, c.D)
		}

		if dEnd-d >= params.Gamma {
			newLB, newRB, ok := edgeTrim(buf, d, candLB, candRB, dMax-params.Alpha)
			if !ok {
				term = BoundsExhausted
				buf.clear(d + 2)
				break
			}
			lb, rb = newLB, newRB
		} else {
			lb, rb = candLB, candRB
		}

		if dMax > totalMax {
			totalMax = dMax
		}
		if d <= dEnd && d >= dStartSeed {
			innerMax = maxOf(innerMax, dMax)
		}
		outerMax = maxOf(outerMax, dMax)

		edg.Append(edgebound.Bound{ID: d, LB: lb, RB: rb})
		cellTotal += rb - lb

		if dMax < totalMax-params.Beta {
			term = GlobalXDrop
			buf.clear(d + 2)
			break
		}
		if params.HardLimit > 0 && cellTotal > params.HardLimit {
			term = CellCapExceeded
			buf.clear(d + 2)
			break
		}
		buf.clear(d + 2)
	}

	result := SweepResult{Edgebounds: edg, InnerMax: innerMax, OuterMax: outerMax, Terminated: term}

	refinedInner, refinedOuter, err := refineBackwardScores(profile, seq, edg, dStartSeed, dEnd)
	if err != nil {
		return SweepResult{}, err
	}
	result.InnerMax, result.OuterMax = refinedInner, refinedOuter
	return result, nil
}

// refineBackwardScores is sweepBackward's pass two, dp.Backward's exact
// row-major counterpart to refineForwardScores.
func refineBackwardScores(profile *seqmodel.Profile, seq seqmodel.EncodedSequence, edg *edgebound.Edgebounds, dLo, dHi int) (innerMax, outerMax float32, err error) {
	rowEdges, err := edgebound.ReorientToRow(edg)
	if err != nil {
		return 0, 0, err
	}
	sm, err := spmatrix.New(rowEdges)
	if err != nil {
		return 0, 0, err
	}
	spm := spmatrix.NewSpecial(rowEdges.QLen())
	if _, err := dp.Backward(profile, seq, sm, spm, nil); err != nil {
		return 0, 0, err
	}
	inner, outer := cellExtremes(sm, rowEdges, dLo, dHi)
	return inner, outer, nil
}

func backwardCell(profile *seqmodel.Profile, seq seqmodel.EncodedSequence, buf *ring, d, i, j, qLen, tLen int, isSeedAnchor bool) cell {
	// Backward transposes the forward recurrence: the value at (i,j) is
	// built from successors (i+1,j+1), (i+1,j), (i,j+1).
	var nextDiag, nextDown, nextRight cell
	if i+1 <= qLen {
		nextDiag = buf.at(d+2, i+1) // (i+1, j+1)
		nextDown = buf.at(d+1, i+1) // (i+1, j)
	} else {
		nextDiag, nextDown = negInfCell, negInfCell
	}
	nextRight = buf.at(d+1, i) // (i, j+1)

	anchor := float32(logsum.NegInf)
	if isSeedAnchor {
		anchor = 0
	}

	var mEmitNext float32 = logsum.NegInf
	var node seqmodel.Node
	if j+1 <= tLen {
		node = profile.Nodes[j] // node index j+1-1 == j
		x := int(seq.Symbols[i])
		if i+1 <= qLen {
			mEmitNext = float32(node.MatEmit.LookupIndex(x)) + nextDiag.M
		}
	}

	here := profile.Nodes[j-1]

	m := float32(logsum.NegInf)
	if isSeedAnchor {
		m = anchor
	} else {
		m = logsum.AddAll(
			float32(here.Trans.MM)+mEmitNext,
			float32(here.Trans.MI)+float32(here.InsEmit.LookupIndex(int(seq.Symbols[i])))+nextDown.I,
			float32(here.Trans.MD)+nextRight.D,
		)
	}

	ins := logsum.Add(
		float32(here.Trans.IM)+mEmitNext,
		float32(here.Trans.II)+float32(here.InsEmit.LookupIndex(int(seq.Symbols[i])))+nextDown.I,
	)

	del := logsum.Add(
		float32(here.Trans.DM)+mEmitNext,
		float32(here.Trans.DD)+nextRight.D,
	)

	return cell{M: m, I: ins, D: del}
}
