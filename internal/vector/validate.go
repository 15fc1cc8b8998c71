package vector

import (
	"fmt"
	"math"
)

// Validate checks that vec has exactly dimensions components and that every
// component is a finite number. NaN and infinite components would poison
// every similarity computed against the stored vector, so they are rejected
// before anything reaches disk.
func Validate(vec []float32, dimensions int) error {
	if len(vec) != dimensions {
		return fmt.Errorf("embedding has %d dimensions, expected %d", len(vec), dimensions)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) {
			return fmt.Errorf("embedding component %d is NaN", i)
		}
		if math.IsInf(f, 0) {
			return fmt.Errorf("embedding component %d is infinite", i)
		}
	}
	return nil
}
