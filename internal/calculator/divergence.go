package calculator

// HasDivergence reports whether the last step of prices and indicator moved
// in different directions. Directions are compared by sign, so a flat step
// only matches another flat step. An indicator without two defined trailing
// values never diverges.
func HasDivergence(prices, indicator []float64) bool {
	if len(prices) < 2 || len(indicator) < 2 {
		return false
	}
	p1, p0 := prices[len(prices)-1], prices[len(prices)-2]
	i1, i0 := indicator[len(indicator)-1], indicator[len(indicator)-2]
	if !Defined(p1) || !Defined(p0) || !Defined(i1) || !Defined(i0) {
		return false
	}
	return sign(p1-p0) != sign(i1-i0)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
