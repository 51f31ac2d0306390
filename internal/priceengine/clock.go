package priceengine

import (
	"math/rand"
	"time"
)

// SystemClock reads the real wall clock, for production wiring; tests
// use their own fixed Clock double instead.
type SystemClock struct{}

func (SystemClock) NowMS() int64 { return time.Now().UnixMilli() }

// MathRNG wraps a *rand.Rand as a uniform (0, 1) source.
type MathRNG struct {
	r *rand.Rand
}

// NewMathRNG seeds a MathRNG from the given seed. cmd/server seeds it
// from the wall clock at startup.
func NewMathRNG(seed int64) *MathRNG {
	return &MathRNG{r: rand.New(rand.NewSource(seed))}
}

func (m *MathRNG) Uniform01() float64 {
	for {
		if v := m.r.Float64(); v > 0 {
			return v
		}
	}
}
