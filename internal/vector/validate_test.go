package vector

import (
	"math"
	"testing"
)

func TestValidate(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	negInf := float32(math.Inf(-1))

	tests := []struct {
		name       string
		vec        []float32
		dimensions int
		wantErr    bool
	}{
		{"valid", []float32{0.1, 0.2, 0.3}, 3, false},
		{"valid negative components", []float32{-1, 0, 1}, 3, false},
		{"too short", []float32{0.1, 0.2}, 3, true},
		{"too long", []float32{0.1, 0.2, 0.3, 0.4}, 3, true},
		{"empty against positive dimensions", []float32{}, 3, true},
		{"nil against positive dimensions", nil, 3, true},
		{"nan component", []float32{0.1, nan, 0.3}, 3, true},
		{"positive infinity", []float32{inf, 0, 0}, 3, true},
		{"negative infinity", []float32{0, 0, negInf}, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.vec, tt.dimensions)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
