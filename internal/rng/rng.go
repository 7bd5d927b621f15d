// Package rng provides deterministic seed splitting. Every source of
// randomness in the pipeline is derived from one master seed through Split,
// so a run is reproducible from that single number.
package rng

import "math/rand"

// splitmix64 constants (Steele, Lea & Flood; the same finalizer xorshift
// used by java.util.SplittableRandom).
const (
	gamma = 0x9e3779b97f4a7c15
	mix1  = 0xbf58476d1ce4e5b9
	mix2  = 0x94d049bb133111eb
)

// Split derives the i-th child seed of parent. The derivation is a pure
// function of (parent, i): child k of a given parent is the same no matter
// how many siblings are drawn or in what order.
func Split(parent, i uint64) uint64 {
	z := parent + gamma*(i+1)
	z = (z ^ (z >> 30)) * mix1
	z = (z ^ (z >> 27)) * mix2
	return z ^ (z >> 31)
}

// New returns a rand.Rand seeded with s.
func New(s uint64) *rand.Rand {
	return rand.New(rand.NewSource(int64(s)))
}
