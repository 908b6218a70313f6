package logsum_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wheeler-lab/cloudfb/logsum"
)

func TestAddMatchesNaiveLog(t *testing.T) {
	cases := []struct{ a, b float32 }{
		{0, 0},
		{-1, -2},
		{-10, -10.5},
		{1.5, -0.25},
	}
	for _, c := range cases {
		got := logsum.Add(c.a, c.b)
		want := math.Log(math.Exp(float64(c.a)) + math.Exp(float64(c.b)))
		assert.InDelta(t, want, float64(got), 1e-3)
	}
}

func TestAddNegInfIdentity(t *testing.T) {
	assert.Equal(t, float32(3), logsum.Add(logsum.NegInf, 3))
	assert.Equal(t, float32(3), logsum.Add(3, logsum.NegInf))
	assert.Equal(t, logsum.NegInf, logsum.Add(logsum.NegInf, logsum.NegInf))
}

func TestAddFarApartFallsBackToMax(t *testing.T) {
	assert.Equal(t, float32(100), logsum.Add(100, 0))
}

func TestAddAllEmptyIsNegInf(t *testing.T) {
	assert.Equal(t, logsum.NegInf, logsum.AddAll())
}

func TestAddAllAccumulates(t *testing.T) {
	got := logsum.AddAll(-1, -1, -1)
	want := math.Log(3 * math.Exp(-1))
	assert.InDelta(t, want, float64(got), 1e-2)
}
