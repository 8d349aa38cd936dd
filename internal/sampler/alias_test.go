package sampler

import "testing"

func TestAliasDistributionFidelity(t *testing.T) {
	weights := []float64{3, 1}
	a := NewAlias(weights)
	rng := NewRNG(1)

	const n = 1_000_000
	counts := make([]int, len(weights))
	for i := 0; i < n; i++ {
		counts[a.Sample(rng)]++
	}

	ratio := float64(counts[0]) / float64(counts[1])
	if ratio < 2.94 || ratio > 3.06 {
		t.Fatalf("keyspace weight ratio %.4f outside [2.94, 3.06]", ratio)
	}
}

func TestAliasUniformOverManyWeights(t *testing.T) {
	weights := []float64{1, 1, 1, 1, 1}
	a := NewAlias(weights)
	rng := NewRNG(42)

	const n = 1_000_000
	counts := make([]int, len(weights))
	for i := 0; i < n; i++ {
		counts[a.Sample(rng)]++
	}

	expected := float64(n) / float64(len(weights))
	for i, c := range counts {
		dev := (float64(c) - expected) / expected
		if dev < -0.02 || dev > 0.02 {
			t.Fatalf("bucket %d frequency deviates %.4f from uniform expectation", i, dev)
		}
	}
}

func TestAliasPanicsOnZeroWeight(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on all-zero weights")
		}
	}()
	NewAlias([]float64{0, 0})
}
