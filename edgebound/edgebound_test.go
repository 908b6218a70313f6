package edgebound_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheeler-lab/cloudfb/edgebound"
)

func TestUnionCoalescesAbuttingBounds(t *testing.T) {
	// Scenario S6 (spec §8): abutting bounds on the same antidiagonal merge.
	a := edgebound.NewAntidiagonal(20, 20)
	a.Append(edgebound.Bound{ID: 10, LB: 3, RB: 6})
	b := edgebound.NewAntidiagonal(20, 20)
	b.Append(edgebound.Bound{ID: 10, LB: 6, RB: 9})

	u, err := edgebound.Union(a, b)
	require.NoError(t, err)
	require.Len(t, u.Bounds(), 1)
	assert.Equal(t, edgebound.Bound{ID: 10, LB: 3, RB: 9}, u.Bounds()[0])
}

func TestUnionKeepsNonAbuttingBoundsSeparate(t *testing.T) {
	a := edgebound.NewAntidiagonal(20, 20)
	a.Append(edgebound.Bound{ID: 10, LB: 3, RB: 5})
	b := edgebound.NewAntidiagonal(20, 20)
	b.Append(edgebound.Bound{ID: 10, LB: 7, RB: 9})

	u, err := edgebound.Union(a, b)
	require.NoError(t, err)
	assert.Len(t, u.Bounds(), 2)
}

func TestReorientRoundTrip(t *testing.T) {
	// Testable property 4 (spec §8).
	a := edgebound.NewAntidiagonal(10, 10)
	a.Append(edgebound.Bound{ID: 5, LB: 1, RB: 4})
	a.Append(edgebound.Bound{ID: 6, LB: 2, RB: 5})
	a.Append(edgebound.Bound{ID: 8, LB: 0, RB: 3})

	row, err := edgebound.ReorientToRow(a)
	require.NoError(t, err)

	back, err := edgebound.ReorientToAntidiagonal(row)
	require.NoError(t, err)

	assert.ElementsMatch(t, cellSet(a), cellSet(back))
}

func TestReorientCellCountInvariant(t *testing.T) {
	// Testable property 5 (spec §8).
	a := edgebound.NewAntidiagonal(10, 10)
	a.Append(edgebound.Bound{ID: 5, LB: 1, RB: 4})
	a.Append(edgebound.Bound{ID: 6, LB: 2, RB: 6})

	row, err := edgebound.ReorientToRow(a)
	require.NoError(t, err)
	assert.Equal(t, a.CellCount(), row.CellCount())
}

func TestSingleCellProfile(t *testing.T) {
	// Scenario S5 (spec §8): T=1, Q=1 -> exactly one bound after reorientation.
	a := edgebound.NewAntidiagonal(1, 1)
	a.Append(edgebound.Bound{ID: 2, LB: 1, RB: 2})
	row, err := edgebound.ReorientToRow(a)
	require.NoError(t, err)
	require.Len(t, row.Bounds(), 1)
	assert.Equal(t, edgebound.Bound{ID: 1, LB: 1, RB: 2}, row.Bounds()[0])
	assert.Equal(t, 1, row.CellCount())
}

func TestRestrictRowsLimitsToRange(t *testing.T) {
	a := edgebound.NewAntidiagonal(5, 5)
	a.Append(edgebound.Bound{ID: 4, LB: 1, RB: 3})
	a.Append(edgebound.Bound{ID: 5, LB: 1, RB: 4})
	row, err := edgebound.ReorientToRow(a)
	require.NoError(t, err)

	restricted, err := row.RestrictRows(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, restricted.CellCount())
}

func TestValidateRejectsBadLBRB(t *testing.T) {
	a := edgebound.NewAntidiagonal(5, 5)
	a.Append(edgebound.Bound{ID: 1, LB: 5, RB: 2})
	assert.ErrorIs(t, a.Validate(), edgebound.ErrInvalidBound)
}

type cell struct{ i, j int }

func cellSet(e *edgebound.Edgebounds) []cell {
	var cells []cell
	if e.Orientation() == edgebound.ByAntidiagonal {
		for _, b := range e.Bounds() {
			for i := b.LB; i < b.RB; i++ {
				cells = append(cells, cell{i: i, j: b.ID - i})
			}
		}
		return cells
	}
	for _, b := range e.Bounds() {
		for j := b.LB; j < b.RB; j++ {
			cells = append(cells, cell{i: b.ID, j: j})
		}
	}
	return cells
}
