package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAllocations(t *testing.T) {
	tests := []struct {
		name        string
		allocations map[string]float64
		wantErr     error
	}{
		{name: "exact", allocations: map[string]float64{"a": 60, "b": 40}},
		{name: "within tolerance", allocations: map[string]float64{"a": 60, "b": 40.009}},
		{name: "below", allocations: map[string]float64{"a": 60, "b": 39}, wantErr: ErrAllocationSum},
		{name: "above", allocations: map[string]float64{"a": 60, "b": 40.02}, wantErr: ErrAllocationSum},
		{name: "empty", allocations: map[string]float64{}, wantErr: ErrAllocationSum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAllocations(tt.allocations)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateAllocations_MessageIncludesTotal(t *testing.T) {
	err := ValidateAllocations(map[string]float64{"a": 50})
	assert.EqualError(t, err, "allocations must sum to 100%, got 50.00%")
}

func TestCheckAllocationCaps(t *testing.T) {
	assert.NoError(t, CheckAllocationCaps(map[string]float64{"a": 5, "b": 4.5}, 5))

	err := CheckAllocationCaps(map[string]float64{"a": 60, "b": 40}, 5)
	assert.ErrorIs(t, err, ErrAllocationExceedsCap)
	assert.Contains(t, err.Error(), "a has 60.00%")
}

func TestNormalizeAllocations(t *testing.T) {
	normalized := NormalizeAllocations(map[string]float64{"a": 30, "b": 10})
	assert.InDelta(t, 75.0, normalized["a"], 1e-9)
	assert.InDelta(t, 25.0, normalized["b"], 1e-9)

	zeros := map[string]float64{"a": 0, "b": 0}
	assert.Equal(t, zeros, NormalizeAllocations(zeros))
}
