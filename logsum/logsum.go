// Package logsum provides a process-global, lazily-initialised log-sum-exp
// table used by every DP kernel in this module.
package logsum

import (
	"math"
	"sync"
)

// NegInf is the sentinel used throughout the module for "impossible" log
// probabilities.
var NegInf = float32(math.Inf(-1))

const (
	tableStep  = 0.0009765625 // 1/1024
	tableLimit = 16.0
)

// Table is the tabulated correction term ln(1 + exp(-|a-b|)) for
// |a-b| <= tableLimit, stepped by tableStep. It is built once, lazily, and
// is read-only thereafter: a package-level constant in everything but
// construction.
type Table struct {
	vals []float32
}

var (
	once    sync.Once
	theOnly *Table
)

func get() *Table {
	once.Do(func() {
		n := int(tableLimit/tableStep) + 2
		t := &Table{vals: make([]float32, n)}
		for i := range t.vals {
			x := float64(i) * tableStep
			t.vals[i] = float32(math.Log1p(math.Exp(-x)))
		}
		theOnly = t
	})
	return theOnly
}

func (t *Table) lookup(diff float32) float32 {
	if diff >= tableLimit {
		return 0
	}
	idx := int(diff / tableStep)
	if idx >= len(t.vals) {
		idx = len(t.vals) - 1
	}
	return t.vals[idx]
}

// Add returns log(exp(a) + exp(b)) using the tabulated correction term,
// falling back to max(a, b) when the two values are too far apart for the
// correction term to matter (spec: table valid for |a-b| <= 16).
func Add(a, b float32) float32 {
	if a == NegInf {
		return b
	}
	if b == NegInf {
		return a
	}
	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}
	diff := hi - lo
	if diff > tableLimit {
		return hi
	}
	return hi + get().lookup(diff)
}

// AddAll folds Add across all of xs, short-circuiting on an empty slice to
// NegInf (the log of zero terms).
func AddAll(xs ...float32) float32 {
	acc := NegInf
	for _, x := range xs {
		acc = Add(acc, x)
	}
	return acc
}
