/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package stats computes significance for ABX trial outcomes.
package stats

import "math"

// SignificanceLevel is the p-value threshold for calling a result
// distinguishable.
const SignificanceLevel = 0.05

// BinomialTail returns P(X >= k) for X ~ Binomial(n, 0.5), the chance of
// scoring at least k correct out of n by guessing.
func BinomialTail(n, k int) float64 {
	if n <= 0 || k <= 0 {
		return 1
	}
	if k > n {
		return 0
	}

	// Sum exact terms in log space to stay stable for large n.
	var p float64
	for i := k; i <= n; i++ {
		p += math.Exp(logChoose(n, i) - float64(n)*math.Ln2)
	}
	if p > 1 {
		p = 1
	}
	return p
}

// Significant reports whether k correct out of n beats guessing at the
// standard threshold.
func Significant(n, k int) bool {
	return BinomialTail(n, k) < SignificanceLevel
}

func logChoose(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	lg, _ := math.Lgamma(float64(n + 1))
	lk, _ := math.Lgamma(float64(k + 1))
	lnk, _ := math.Lgamma(float64(n - k + 1))
	return lg - lk - lnk
}
