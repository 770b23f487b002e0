// Package util provides common utility functions for price calculations.
package util

import "math"

// centTick is the minimum price increment option premiums quote in.
const centTick = 0.01

// MidPrice estimates a fillable per-share price from a quote, rounded to the
// cent tick. Preference order: bid/ask midpoint, bid alone, 90% of ask, last
// trade. Returns 0 when no usable price exists.
func MidPrice(bid, ask, last float64) float64 {
	var px float64
	switch {
	case bid > 0 && ask > 0:
		px = (bid + ask) / 2
	case bid > 0:
		px = bid
	case ask > 0:
		px = ask * 0.9
	case last > 0:
		px = last
	default:
		return 0
	}
	return RoundToTick(px, centTick)
}

// RoundToTick rounds x to the nearest tick increment.
// For example, with tick=0.01, 1.2345 becomes 1.23.
func RoundToTick(x, tick float64) float64 {
	if tick <= 0 {
		return x
	}
	return math.Round(x/tick) * tick
}
