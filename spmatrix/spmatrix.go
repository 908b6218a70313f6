// Package spmatrix implements the sparse 3-state DP matrix and the dense
// 5-state special-state matrix spec §3 describes, including the
// ownership-transfer form of matrix recycling spec §5/§9 call for.
package spmatrix

import (
	"errors"
	"fmt"

	"github.com/wheeler-lab/cloudfb/edgebound"
	"github.com/wheeler-lab/cloudfb/logsum"
)

// State is one of the three Plan7 core DP states stored per cell.
type State int

const (
	Match State = iota
	Insert
	Delete
	numStates
)

func (s State) String() string {
	switch s {
	case Match:
		return "M"
	case Insert:
		return "I"
	case Delete:
		return "D"
	default:
		return "?"
	}
}

// SpecialState is one of the five Plan7 outer states, always stored dense.
type SpecialState int

const (
	N SpecialState = iota
	J
	B
	E
	C
	numSpecial
)

// ErrCellNotPresent is returned by operations that require a cell to be
// named by the backing Edgebounds (as opposed to reading it, which silently
// returns -Inf per spec §3's invariant).
var ErrCellNotPresent = errors.New("spmatrix: cell not present in edgebounds")

// DebugChecks is the toggle named for InternalInvariant checks (spec §7,
// §9). No code in this module reads it, so setting it enables no checks.
var DebugChecks = false

// rowSpan is the per-row offset into the backing array plus the row's
// column bounds, including one padding column at lb-1, to the left of the
// row's first bound. There is no padding on the right or between rows.
type rowSpan struct {
	lb, rb int // inclusive padding: valid column index range is [lb-1, rb]
	offset int // offset of column (lb-1) within the backing array
}

// SparseMatrix stores M/I/D values only for cells named by its backing
// Edgebounds, plus one padding column to the left of each stored row (spec
// §3). A consumed matrix (post-Recycle) panics on further reads.
type SparseMatrix struct {
	edges    *edgebound.Edgebounds
	rows     []rowSpan // indexed by row i, nil entry => empty row
	data     []float32 // numStates * totalCellsWithPadding
	consumed bool
}

// New allocates a SparseMatrix that stores, for each row, every column from
// one left of its first bound through the last column of its last bound
// (gaps between a row's bounds included), all initialised to -Inf (spec §3).
func New(e *edgebound.Edgebounds) (*SparseMatrix, error) {
	if e.Orientation() != edgebound.ByRow {
		return nil, fmt.Errorf("%w: spmatrix requires row-oriented edgebounds", ErrCellNotPresent)
	}
	qLen := e.QLen()
	sm := &SparseMatrix{edges: e, rows: make([]rowSpan, qLen+1)}
	offset := 0
	for i := 0; i <= qLen; i++ {
		bounds := e.RowBounds(i)
		if len(bounds) == 0 {
			sm.rows[i] = rowSpan{lb: 0, rb: -1, offset: -1}
			continue
		}
		lb := bounds[0].LB
		rb := bounds[len(bounds)-1].RB - 1
		width := (rb - (lb - 1)) + 1 // + one padding column at lb-1
		sm.rows[i] = rowSpan{lb: lb, rb: rb, offset: offset}
		offset += width
	}
	sm.data = make([]float32, int(numStates)*offset)
	for i := range sm.data {
		sm.data[i] = logsum.NegInf
	}
	return sm, nil
}

func (sm *SparseMatrix) cellIndex(state State, i, j int) (int, bool) {
	if sm.consumed {
		panic("spmatrix: read from a matrix that has been recycled away")
	}
	if i < 0 || i >= len(sm.rows) {
		return 0, false
	}
	r := sm.rows[i]
	if r.offset < 0 {
		return 0, false
	}
	if j < r.lb-1 || j > r.rb {
		return 0, false
	}
	col := j - (r.lb - 1)
	return int(state)*len(sm.data)/int(numStates) + r.offset + col, true
}

// At returns the value of (state, i, j), or -Inf if the cell (including its
// one-cell padding) is not present (spec §3 invariant).
func (sm *SparseMatrix) At(state State, i, j int) float32 {
	idx, ok := sm.cellIndex(state, i, j)
	if !ok {
		return logsum.NegInf
	}
	return sm.data[idx]
}

// Set writes a value to (state, i, j). It returns ErrCellNotPresent if the
// cell is outside the padded row span.
func (sm *SparseMatrix) Set(state State, i, j int, v float32) error {
	idx, ok := sm.cellIndex(state, i, j)
	if !ok {
		return fmt.Errorf("%w: state=%d i=%d j=%d", ErrCellNotPresent, state, i, j)
	}
	sm.data[idx] = v
	return nil
}

// RowRange returns the [lb, rb) of present (non-padding) columns for row i.
func (sm *SparseMatrix) RowRange(i int) (lb, rb int, ok bool) {
	if i < 0 || i >= len(sm.rows) {
		return 0, 0, false
	}
	r := sm.rows[i]
	if r.offset < 0 {
		return 0, 0, false
	}
	return r.lb, r.rb + 1, true
}

// Edgebounds returns the Edgebounds this matrix was built from.
func (sm *SparseMatrix) Edgebounds() *edgebound.Edgebounds { return sm.edges }

// Recycle transfers ownership of sm's backing storage to a fresh
// SparseMatrix built over newEdges (spec §5, §9: "a deliberate transfer of
// ownership between phases rather than aliasing"). sm itself becomes
// unusable; any further read panics. The new matrix's cells are
// re-initialised to -Inf: recycling reuses the allocation, not the values.
func (sm *SparseMatrix) Recycle(newEdges *edgebound.Edgebounds) (*SparseMatrix, error) {
	if sm.consumed {
		return nil, errors.New("spmatrix: matrix already recycled")
	}
	fresh, err := New(newEdges)
	if err != nil {
		return nil, err
	}
	if len(fresh.data) <= len(sm.data) {
		fresh.data = sm.data[:len(fresh.data)]
		for i := range fresh.data {
			fresh.data[i] = logsum.NegInf
		}
	}
	sm.consumed = true
	sm.data = nil
	return fresh, nil
}

// SpecialMatrix is the dense (5, Q+1) special-state matrix (spec §3).
type SpecialMatrix struct {
	qLen int
	data []float32 // numSpecial * (qLen+1)
}

// NewSpecial allocates a dense special-state matrix for a query of length
// qLen, initialised to -Inf.
func NewSpecial(qLen int) *SpecialMatrix {
	sm := &SpecialMatrix{qLen: qLen, data: make([]float32, int(numSpecial)*(qLen+1))}
	for i := range sm.data {
		sm.data[i] = logsum.NegInf
	}
	return sm
}

func (sm *SpecialMatrix) index(state SpecialState, q int) int {
	return int(state)*(sm.qLen+1) + q
}

// At returns the value of (state, q).
func (sm *SpecialMatrix) At(state SpecialState, q int) float32 {
	if q < 0 || q > sm.qLen {
		return logsum.NegInf
	}
	return sm.data[sm.index(state, q)]
}

// Set writes a value to (state, q).
func (sm *SpecialMatrix) Set(state SpecialState, q int, v float32) {
	sm.data[sm.index(state, q)] = v
}

// QLen returns the query length this matrix is sized for.
func (sm *SpecialMatrix) QLen() int { return sm.qLen }
