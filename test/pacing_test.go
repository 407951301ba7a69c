package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/variant"
	"github.com/MRamiBalles/CalculusMatrix/internal/engine"
)

func TestPacing_AllVariantsHoldInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("pacing run skipped in short mode")
	}
	pt := NewPacingTest(600, 1, nil)

	results := pt.RunAll(context.Background())

	require.Len(t, results, 2*len(variant.Names()))
	for _, r := range results {
		assert.True(t, r.Passed, "%s: %s", r.ScenarioName, r.Reason)
		assert.Equal(t, 600, r.Summary.Ticks)
	}
	assert.Equal(t, results, pt.GetResults())
}

func TestPacing_UnknownVariantFails(t *testing.T) {
	pt := NewPacingTest(10, 1, nil)

	r := pt.RunVariant(context.Background(), "nope", engine.Options{})

	assert.False(t, r.Passed)
	assert.Contains(t, r.Reason, "unknown variant")
}
