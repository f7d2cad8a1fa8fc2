package main

import (
	"math/rand/v2"
)

// DefaultSeed seeds the generator when no positive seed is given.
const DefaultSeed = 20091982

// Generator draws uniform deviates from a seeded PCG stream, so the same seed
// always reproduces the same sequence.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator returns a generator for seed. Seeds <= 0 fall back to DefaultSeed.
func NewGenerator(seed int64) *Generator {
	if seed <= 0 {
		seed = DefaultSeed
	}
	return &Generator{rnd: rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))}
}

// Flat returns a uniform deviate in [a, b).
func (g *Generator) Flat(a, b float64) float64 {
	return a + (b-a)*g.rnd.Float64()
}
