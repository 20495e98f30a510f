package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSMA(t *testing.T) {
	s, err := CalculateSMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)

	_, ok := s.At(1)
	assert.False(t, ok, "index inside lookback must be undefined")

	v, ok := s.At(2)
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)

	v, ok = s.At(4)
	require.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-9)
}

func TestCalculateSMA_Errors(t *testing.T) {
	_, err := CalculateSMA([]float64{1, 2}, 3)
	assert.Error(t, err)
	_, err = CalculateSMA([]float64{1, 2}, 0)
	assert.Error(t, err)
}

func TestCalculateRSI_Bounds(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = float64(100 + i)
	}
	s, err := CalculateRSI(up, 14)
	require.NoError(t, err)

	_, ok := s.At(13)
	assert.False(t, ok)
	v, ok := s.At(29)
	require.True(t, ok)
	assert.InDelta(t, 100.0, v, 1e-9)

	zig := make([]float64, 40)
	zig[0] = 100
	for i := 1; i < len(zig); i++ {
		if i%2 == 1 {
			zig[i] = zig[i-1] + 2
		} else {
			zig[i] = zig[i-1] - 1
		}
	}
	s, err = CalculateRSI(zig, 14)
	require.NoError(t, err)
	for i := 14; i < len(zig); i++ {
		v, ok := s.At(i)
		require.True(t, ok)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestCalculateRSI_Insufficient(t *testing.T) {
	_, err := CalculateRSI(make([]float64, 14), 14)
	assert.Error(t, err)
}
