package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	r, err := Load([]byte(`seed: 42
steps: 500
`))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), r.Seed)
	assert.Equal(t, 500, r.Steps)
	assert.Equal(t, 0, r.CrashEvery)
	assert.InDelta(t, 0.85, r.SuccessRate, 1e-9)
}

func TestLoad_RejectsNonPositiveSteps(t *testing.T) {
	_, err := Load([]byte(`seed: 1
steps: 0
`))
	require.Error(t, err)
}

func TestLoad_RejectsOutOfRangeSuccessRate(t *testing.T) {
	_, err := Load([]byte(`seed: 1
steps: 10
successRate: 1.5
`))
	require.Error(t, err)
}

func TestLoad_AcceptsOverriddenCrashEvery(t *testing.T) {
	r, err := Load([]byte(`seed: 7
steps: 1000
crashEvery: 100
description: "stress"
`))
	require.NoError(t, err)
	assert.Equal(t, 100, r.CrashEvery)
	assert.Equal(t, "stress", r.Description)
}
