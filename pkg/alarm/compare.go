// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package alarm

import "math"

// Epsilon is the absolute tolerance of the equality operators on readings.
const Epsilon = 1e-6

// Compare applies op between a reading and a threshold. The orderings are
// plain IEEE-754 comparisons, so a NaN reading satisfies none of them; it is
// unequal to everything.
func Compare(value, threshold float64, op Operator) bool {
	switch op {
	case OpGreaterThan:
		return value > threshold
	case OpLessThan:
		return value < threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLessEqual:
		return value <= threshold
	case OpEqual:
		return math.Abs(value-threshold) < Epsilon
	case OpNotEqual:
		return !(math.Abs(value-threshold) < Epsilon)
	default:
		return false
	}
}
