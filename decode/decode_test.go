package decode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wheeler-lab/cloudfb/decode"
)

func TestDomainsOpensExtendsAndRejects(t *testing.T) {
	// inside[q] for q=1..10; a domain spans q=2..5 with a peak of 0.9.
	inside := []float32{0, 0.05, 0.3, 0.9, 0.5, 0.15, 0.05, 0.05, 0.05, 0.05, 0.05}
	domains := decode.Domains(inside, decode.DefaultThresholds())
	if assert.Len(t, domains, 1) {
		assert.Equal(t, 2, domains[0].A)
		assert.Equal(t, 5, domains[0].B)
		assert.Equal(t, 3, domains[0].Peak)
	}
}

func TestDomainsRejectsWeakPeak(t *testing.T) {
	// rt3 set above rt1 so a domain can open yet still have its peak
	// fall short of the rejection bar.
	inside := []float32{0, 0.3, 0.22, 0.05}
	th := decode.Thresholds{RT1: 0.25, RT2: 0.10, RT3: 0.5}
	domains := decode.Domains(inside, th)
	assert.Empty(t, domains)
}

func TestDomainsNoOpenWhenBelowRT1(t *testing.T) {
	inside := []float32{0, 0.1, 0.05, 0.05}
	domains := decode.Domains(inside, decode.DefaultThresholds())
	assert.Empty(t, domains)
}

func TestDomainsClosesOpenDomainAtSequenceEnd(t *testing.T) {
	inside := []float32{0, 0.05, 0.9, 0.5}
	domains := decode.Domains(inside, decode.DefaultThresholds())
	if assert.Len(t, domains, 1) {
		assert.Equal(t, 3, domains[0].B)
	}
}
