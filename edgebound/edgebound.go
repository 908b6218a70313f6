// Package edgebound implements the sparse DP index (spec §3 "Edgebounds",
// §4.2): antidiagonal-indexed bounds produced by cloud search, and the
// row-indexed form every DP kernel consumes.
package edgebound

import (
	"errors"
	"fmt"
	"sort"
)

// Orientation distinguishes antidiagonal-indexed Edgebounds (the form cloud
// search emits) from row-indexed ones (the form the DP kernels consume).
type Orientation int

const (
	ByAntidiagonal Orientation = iota
	ByRow
)

// Bound names the cells {(id, j): LB <= j < RB} (row orientation) or
// {(i, j): i+j = id, LB <= i < RB} (antidiagonal orientation), per spec §3.
type Bound struct {
	ID, LB, RB int
}

// Len returns the number of cells the bound names.
func (b Bound) Len() int { return b.RB - b.LB }

// ErrInvalidBound is the InvalidInput sentinel for a bound violating the
// half-open LB <= RB convention or falling outside [1, T+1] / [0, Q] (spec
// §3 invariants).
var ErrInvalidBound = errors.New("edgebound: invalid bound")

// Edgebounds is an ordered sequence of Bounds over one orientation.
type Edgebounds struct {
	orientation      Orientation
	bounds           []Bound
	rowIndex         []int // ByRow only: first bound index with ID == row
	qLen, tLen       int
	rowIndexBuilt    bool
}

// NewAntidiagonal creates an empty antidiagonal-oriented Edgebounds for a
// (qLen, tLen) matrix, the form cloud search appends to.
func NewAntidiagonal(qLen, tLen int) *Edgebounds {
	return NewAntidiagonalSized(qLen, tLen, 0)
}

// NewAntidiagonalSized is NewAntidiagonal with a capacity hint, mirroring
// original_source's VECTOR_BOUND_GrowTo amortised-growth pattern (spec §4,
// supplemented from vector_bound.h).
func NewAntidiagonalSized(qLen, tLen, hint int) *Edgebounds {
	return &Edgebounds{
		orientation: ByAntidiagonal,
		bounds:      make([]Bound, 0, hint),
		qLen:        qLen,
		tLen:        tLen,
	}
}

// Orientation reports which indexing scheme e uses.
func (e *Edgebounds) Orientation() Orientation { return e.orientation }

// QLen and TLen report the (Q, T) dimensions e was built against.
func (e *Edgebounds) QLen() int { return e.qLen }
func (e *Edgebounds) TLen() int { return e.tLen }

// Append adds a bound to an antidiagonal-oriented Edgebounds. It panics if e
// is row-oriented; callers build row form only via ReorientToRow.
func (e *Edgebounds) Append(b Bound) {
	if e.orientation != ByAntidiagonal {
		panic("edgebound: Append only valid on antidiagonal-oriented Edgebounds")
	}
	e.bounds = append(e.bounds, b)
}

// Bounds returns the raw bound list, in append/sorted order depending on
// whether the Edgebounds has been through Union/ReorientToRow.
func (e *Edgebounds) Bounds() []Bound { return e.bounds }

// NumBounds returns the number of Bound entries (not cells).
func (e *Edgebounds) NumBounds() int { return len(e.bounds) }

// CellCount brute-force counts every cell named across all bounds, used by
// testable property 5 (spec §8: row-form and antidiagonal-form cell counts
// must agree after reorientation).
func (e *Edgebounds) CellCount() int {
	n := 0
	for _, b := range e.bounds {
		n += b.Len()
	}
	return n
}

// RowBounds returns the bounds of row i in O(1) amortised (a slice of the
// backing array), valid only on row-oriented Edgebounds built with
// buildRowIndex (i.e. returned by ReorientToRow).
func (e *Edgebounds) RowBounds(i int) []Bound {
	if e.orientation != ByRow {
		panic("edgebound: RowBounds only valid on row-oriented Edgebounds")
	}
	if !e.rowIndexBuilt || i < 0 || i >= len(e.rowIndex)-1 {
		return nil
	}
	return e.bounds[e.rowIndex[i]:e.rowIndex[i+1]]
}

// Contains reports whether row-oriented e names cell (i, j).
func (e *Edgebounds) Contains(i, j int) bool {
	for _, b := range e.RowBounds(i) {
		if j >= b.LB && j < b.RB {
			return true
		}
	}
	return false
}

// Validate checks the by-row invariants from spec §3: bounds sorted
// ascending by ID, within a row sorted ascending by LB and non-overlapping,
// 1 <= LB < RB <= T+1, 0 <= ID <= Q.
func (e *Edgebounds) Validate() error {
	lastID, lastRB := -1, 0
	for _, b := range e.bounds {
		if b.LB >= b.RB {
			return fmt.Errorf("%w: id=%d lb=%d rb=%d (lb must be < rb)", ErrInvalidBound, b.ID, b.LB, b.RB)
		}
		if e.orientation == ByRow {
			if b.ID < 0 || b.ID > e.qLen {
				return fmt.Errorf("%w: row id=%d out of [0,%d]", ErrInvalidBound, b.ID, e.qLen)
			}
			if b.LB < 1 || b.RB > e.tLen+1 {
				return fmt.Errorf("%w: id=%d lb=%d rb=%d out of [1,%d]", ErrInvalidBound, b.ID, b.LB, b.RB, e.tLen+1)
			}
			if b.ID == lastID && b.LB < lastRB {
				return fmt.Errorf("%w: row %d bounds overlap or are not sorted by lb", ErrInvalidBound, b.ID)
			}
		}
		if b.ID < lastID {
			return fmt.Errorf("%w: bounds not sorted ascending by id", ErrInvalidBound)
		}
		lastID, lastRB = b.ID, b.RB
	}
	return nil
}

func sortBounds(bs []Bound) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].ID != bs[j].ID {
			return bs[i].ID < bs[j].ID
		}
		return bs[i].LB < bs[j].LB
	})
}

// coalesce merges sorted (by ID then LB), touching/overlapping bounds
// sharing an ID into single bounds (spec §4.2 union, §8 scenario S6).
func coalesce(bs []Bound) []Bound {
	if len(bs) == 0 {
		return bs
	}
	out := make([]Bound, 0, len(bs))
	cur := bs[0]
	for _, b := range bs[1:] {
		if b.ID == cur.ID && b.LB <= cur.RB {
			if b.RB > cur.RB {
				cur.RB = b.RB
			}
			continue
		}
		out = append(out, cur)
		cur = b
	}
	out = append(out, cur)
	return out
}

// Union computes the set-union of two antidiagonal-oriented Edgebounds over
// the same (Q, T) matrix, merging and coalescing bounds sharing an
// antidiagonal id (spec §4.2 "Union").
func Union(a, b *Edgebounds) (*Edgebounds, error) {
	if a.orientation != ByAntidiagonal || b.orientation != ByAntidiagonal {
		return nil, fmt.Errorf("%w: Union requires antidiagonal-oriented inputs", ErrInvalidBound)
	}
	if a.qLen != b.qLen || a.tLen != b.tLen {
		return nil, fmt.Errorf("%w: Union requires matching (Q,T): (%d,%d) vs (%d,%d)", ErrInvalidBound, a.qLen, a.tLen, b.qLen, b.tLen)
	}
	merged := make([]Bound, 0, len(a.bounds)+len(b.bounds))
	merged = append(merged, a.bounds...)
	merged = append(merged, b.bounds...)
	sortBounds(merged)
	merged = coalesce(merged)
	return &Edgebounds{orientation: ByAntidiagonal, bounds: merged, qLen: a.qLen, tLen: a.tLen}, nil
}

// rowBuilder accumulates, per row, a sorted set of right-open intervals
// (spec §4.2 "Reorientation"). It indexes the antidiagonal walk by row
// during emission so the whole operation stays linear (spec §9's
// performance redesign note), instead of the naive O(Q*T*log T) approach.
type rowBuilder struct {
	rows [][]Bound // rows[i] holds the (unsorted-yet) intervals touching row i
}

func newRowBuilder(qLen int) *rowBuilder {
	return &rowBuilder{rows: make([][]Bound, qLen+1)}
}

func (rb *rowBuilder) add(i, lb, rb_ int) {
	rb.rows[i] = append(rb.rows[i], Bound{ID: i, LB: lb, RB: rb_})
}

// ReorientToRow converts an antidiagonal-oriented Edgebounds to row-oriented
// form (spec §4.2). Every cell named by the antidiagonal set is walked
// exactly once: for antidiagonal id d with [lb, rb) over i, each i in
// [lb, rb) contributes the single column j = d - i to row i. Columns
// contributed by the same antidiagonal bound to consecutive rows are
// necessarily singletons (an antidiagonal bound is one column per row by
// construction), so per-row intervals are built by scanning bounds ordered
// by ID and, for fixed row i, merging by ascending column - this is done by
// first emitting one length-1 interval per (row, column) pair implied by
// each antidiagonal bound, then coalescing per row, which stays linear in
// total cell count.
func ReorientToRow(a *Edgebounds) (*Edgebounds, error) {
	if a.orientation != ByAntidiagonal {
		return nil, fmt.Errorf("%w: ReorientToRow requires antidiagonal-oriented input", ErrInvalidBound)
	}
	rb := newRowBuilder(a.qLen)
	for _, bound := range a.bounds {
		d := bound.ID
		for i := bound.LB; i < bound.RB; i++ {
			if i < 0 || i > a.qLen {
				continue
			}
			j := d - i
			rb.add(i, j, j+1)
		}
	}
	var out []Bound
	rowIndex := make([]int, a.qLen+2)
	for i := 0; i <= a.qLen; i++ {
		row := rb.rows[i]
		sort.Slice(row, func(x, y int) bool { return row[x].LB < row[y].LB })
		row = coalesce(row)
		rowIndex[i] = len(out)
		out = append(out, row...)
	}
	rowIndex[a.qLen+1] = len(out)
	return &Edgebounds{
		orientation:   ByRow,
		bounds:        out,
		rowIndex:      rowIndex,
		qLen:          a.qLen,
		tLen:          a.tLen,
		rowIndexBuilt: true,
	}, nil
}

// ReorientToAntidiagonal converts row-oriented Edgebounds back to
// antidiagonal form (the inverse direction, needed for testable property 4's
// round-trip and for no other production code path).
func ReorientToAntidiagonal(r *Edgebounds) (*Edgebounds, error) {
	if r.orientation != ByRow {
		return nil, fmt.Errorf("%w: ReorientToAntidiagonal requires row-oriented input", ErrInvalidBound)
	}
	byDiag := map[int][]Bound{}
	for i := 0; i <= r.qLen; i++ {
		for _, b := range r.RowBounds(i) {
			for j := b.LB; j < b.RB; j++ {
				d := i + j
				byDiag[d] = append(byDiag[d], Bound{ID: d, LB: i, RB: i + 1})
			}
		}
	}
	var out []Bound
	for d, bs := range byDiag {
		sort.Slice(bs, func(x, y int) bool { return bs[x].LB < bs[y].LB })
		out = append(out, coalesce(bs)...)
		_ = d
	}
	sortBounds(out)
	return &Edgebounds{orientation: ByAntidiagonal, bounds: out, qLen: r.qLen, tLen: r.tLen}, nil
}

// RestrictRows returns a new row-oriented Edgebounds containing only rows in
// [a, b], used by the per-domain restricted Forward/Backward rerun (spec
// §4.5's pipeline loop; supplemented from original_source's
// work_posterior_bydom.c row-range restriction, see DESIGN.md).
func (e *Edgebounds) RestrictRows(a, b int) (*Edgebounds, error) {
	if e.orientation != ByRow {
		return nil, fmt.Errorf("%w: RestrictRows requires row-oriented input", ErrInvalidBound)
	}
	if a < 0 || b > e.qLen || a > b {
		return nil, fmt.Errorf("%w: restrict range [%d,%d] out of [0,%d]", ErrInvalidBound, a, b, e.qLen)
	}
	var out []Bound
	rowIndex := make([]int, e.qLen+2)
	for i := 0; i <= e.qLen; i++ {
		rowIndex[i] = len(out)
		if i >= a && i <= b {
			out = append(out, e.RowBounds(i)...)
		}
	}
	rowIndex[e.qLen+1] = len(out)
	return &Edgebounds{
		orientation:   ByRow,
		bounds:        out,
		rowIndex:      rowIndex,
		qLen:          e.qLen,
		tLen:          e.tLen,
		rowIndexBuilt: true,
	}, nil
}
