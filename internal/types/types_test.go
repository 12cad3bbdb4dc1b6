package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlippageBps(t *testing.T) {
	tests := []struct {
		percent string
		want    uint16
		wantErr bool
	}{
		{"15", 1500, false},
		{"0.5", 50, false},
		{"100", 10000, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"100.01", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.percent, func(t *testing.T) {
			got, err := SlippageBps(decimal.RequireFromString(tt.percent))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPriorityLevels(t *testing.T) {
	level, err := ParsePriorityLevel(" High ")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, level)

	_, err = ParsePriorityLevel("turbo")
	assert.Error(t, err)

	assert.EqualValues(t, 2_000, PriorityMedium.FeeLamports())
	assert.EqualValues(t, 50_000, PriorityExtreme.FeeLamports())
	assert.Zero(t, PriorityLevel("unknown").FeeLamports())

	for i := 1; i < len(PriorityLevels); i++ {
		assert.Greater(t, PriorityLevels[i].FeeLamports(), PriorityLevels[i-1].FeeLamports())
	}
}
