// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package block

import (
	"fmt"
	"math/rand/v2"

	"github.com/linkforge/linkforge/internal/metrics"
)

// WarnProductSize is the pair-product size above which sampling emits a
// warning: at that scale the caller is close to attempting a full cross
// comparison, which is rarely what they want.
const WarnProductSize = 100_000_000

// PairSpace models the implicit cartesian product of n_left x n_right
// record positions. It supports drawing exactly k distinct positions
// uniformly without ever enumerating the product: each position is a single
// integer x in [0, Size()), mapped to (x / NRight, x % NRight).
type PairSpace struct {
	NLeft  int64
	NRight int64
}

// Size returns the number of positions in the product.
func (s PairSpace) Size() int64 {
	return s.NLeft * s.NRight
}

// Unrank maps a position to its (left index, right index) pair.
func (s PairSpace) Unrank(x int64) (int64, int64) {
	return x / s.NRight, x % s.NRight
}

// SampleIndexes draws exactly k distinct positions uniformly from the
// product. A non-nil seed makes the draw reproducible: identical
// (NLeft, NRight, k, seed) always produce the identical set.
//
// The draw oversamples and deduplicates in rounds until k unique positions
// are collected. Each round only draws what is still missing (plus slack),
// so the loop terminates once k unique draws exist; k > Size() is rejected
// up front as unreachable.
func (s PairSpace) SampleIndexes(k int64, seed *uint64) ([]int64, error) {
	size := s.Size()
	if k < 0 || k > size {
		return nil, fmt.Errorf("cannot sample %d distinct pairs from a product of %d", k, size)
	}
	if k == 0 {
		return []int64{}, nil
	}

	var rng *rand.Rand
	if seed != nil {
		rng = rand.New(rand.NewPCG(*seed, *seed))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	seen := make(map[int64]struct{}, k)
	out := make([]int64, 0, k)
	for int64(len(out)) < k {
		metrics.SamplingRounds.Inc()
		// Oversample the shortfall by 10% to absorb collisions.
		need := k - int64(len(out))
		batch := need + need/10 + 16
		for i := int64(0); i < batch && int64(len(out)) < k; i++ {
			x := rng.Int64N(size)
			if _, dup := seen[x]; dup {
				continue
			}
			seen[x] = struct{}{}
			out = append(out, x)
		}
	}
	return out, nil
}
