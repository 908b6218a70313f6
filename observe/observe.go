// Package observe replaces the C source's global "debugger" singleton
// (spec §9) with an explicit, optional collaborator threaded through
// pipeline.Config: a nil Observer costs nothing, and dp calls a non-nil
// one only at cell/row granularity, never as a hidden global.
package observe

import "github.com/wheeler-lab/cloudfb/spmatrix"

// Observer receives cell and row events from the DP kernels. Implementations
// must not retain the arguments beyond the call (no aliasing guarantees).
type Observer interface {
	OnCell(phase string, state spmatrix.State, i, j int, v float32)
	OnRow(phase string, i int)
}

// DenseDump is a concrete Observer that materialises every observed cell
// into a dense [][]float32 per (phase, state), for debug dumps (spec §6
// "optional debug dumps ... a side-channel, not part of the contract").
type DenseDump struct {
	qLen, tLen int
	cells      map[string][][]float32 // keyed by "phase:state"
	rows       []string
}

// NewDenseDump allocates a dump sized for a (qLen, tLen) matrix.
func NewDenseDump(qLen, tLen int) *DenseDump {
	return &DenseDump{qLen: qLen, tLen: tLen, cells: map[string][][]float32{}}
}

func (d *DenseDump) key(phase string, state spmatrix.State) string {
	return phase + ":" + state.String()
}

// OnCell implements Observer.
func (d *DenseDump) OnCell(phase string, state spmatrix.State, i, j int, v float32) {
	k := d.key(phase, state)
	grid, ok := d.cells[k]
	if !ok {
		grid = make([][]float32, d.qLen+1)
		for r := range grid {
			grid[r] = make([]float32, d.tLen+1)
		}
		d.cells[k] = grid
	}
	if i < 0 || i > d.qLen || j < 0 || j > d.tLen {
		return
	}
	grid[i][j] = v
}

// OnRow implements Observer.
func (d *DenseDump) OnRow(phase string, i int) {
	d.rows = append(d.rows, phase)
	_ = i
}

// Grid returns the dense dump for (phase, state), or nil if nothing was
// ever observed for that pair.
func (d *DenseDump) Grid(phase string, state spmatrix.State) [][]float32 {
	return d.cells[d.key(phase, state)]
}
