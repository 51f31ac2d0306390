package priceengine

import (
	"math"
	"testing"
)

// fixedRNG returns a deterministic sequence of uniforms, cycling.
type fixedRNG struct {
	values []float64
	i      int
}

func (f *fixedRNG) Uniform01() float64 {
	v := f.values[f.i%len(f.values)]
	f.i++
	return v
}

type fixedClock struct{ ms int64 }

func (c *fixedClock) NowMS() int64 { return c.ms }

func TestZeroVolatilityStillDrifts(t *testing.T) {
	s := NewState("X", 100, 0.08, 0, 1.0/252.0, 0.01, 1.0, 60000)
	rng := &fixedRNG{values: []float64{0.5, 0.5}}
	clock := &fixedClock{}

	prices := make([]float64, 0, 100)
	for i := 0; i < 100; i++ {
		prices = append(prices, s.Step(rng, clock))
	}

	// With sigma = 0, the diffusion term vanishes regardless of epsilon,
	// so every step multiplies by exp(drift*dt): a constant ratio.
	ratio := prices[1] / prices[0]
	for i := 2; i < len(prices); i++ {
		got := prices[i] / prices[i-1]
		if math.Abs(got-ratio) > 1e-9 {
			t.Fatalf("step %d: ratio %v differs from %v, variance should be ~0 at sigma=0", i, got, ratio)
		}
	}
}

func TestPriceNeverGoesBelowFloor(t *testing.T) {
	s := NewState("X", 0.01, -0.5, 0.5, 1.0/252.0, 0.01, 1.0, 60000)
	rng := &fixedRNG{values: []float64{0.999999, 0.999999}}
	clock := &fixedClock{}

	for i := 0; i < 1000; i++ {
		price := s.Step(rng, clock)
		if price < PriceFloor {
			t.Fatalf("step %d: price %v fell below floor %v", i, price, PriceFloor)
		}
		if math.IsNaN(price) {
			t.Fatalf("step %d: price is NaN", i)
		}
	}
}

func TestPressureIsBoundedAndZeroWithNoVolume(t *testing.T) {
	if got := pressure(0, 0); got != 0 {
		t.Fatalf("expected 0 pressure with no volume, got %v", got)
	}
	if got := pressure(10, 0); got != 1 {
		t.Fatalf("expected +1 pressure with all-buy volume, got %v", got)
	}
	if got := pressure(0, 10); got != -1 {
		t.Fatalf("expected -1 pressure with all-sell volume, got %v", got)
	}
}

func TestRecordOrderAccumulatesAndExpires(t *testing.T) {
	s := NewState("X", 100, 0.08, 0.2, 1.0/252.0, 0.01, 1.0, 1000)
	clock := &fixedClock{ms: 0}
	s.RecordOrder(clock, SideBuy, 5)
	s.RecordOrder(clock, SideSell, 2)

	if s.buyVolume != 5 || s.sellVolume != 2 {
		t.Fatalf("unexpected accumulators: buy=%v sell=%v", s.buyVolume, s.sellVolume)
	}

	rng := &fixedRNG{values: []float64{0.5, 0.5}}
	clock.ms = 5000 // far beyond the 1000ms window
	s.Step(rng, clock)

	if len(s.arrivals) != 0 {
		t.Fatalf("expected expired arrivals to be pruned, got %d remaining", len(s.arrivals))
	}
	if s.buyVolume != 0 || s.sellVolume != 0 {
		t.Fatalf("expected accumulators cleared after step, got buy=%v sell=%v", s.buyVolume, s.sellVolume)
	}
}

func TestBoxMullerRedrawsOnNearZeroUniform(t *testing.T) {
	rng := &fixedRNG{values: []float64{1e-6, 0.4, 0.3}}
	v := boxMuller(rng)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		t.Fatalf("expected a finite normal sample after redraw, got %v", v)
	}
}
