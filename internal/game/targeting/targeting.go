// Package targeting implements nearest-target acquisition for auto-firing weapons.
package targeting

import "math"

// Vec2 is a position in world space.
type Vec2 struct {
	X float64
	Y float64
}

// DistanceTo returns the Euclidean distance between v and o.
func (v Vec2) DistanceTo(o Vec2) float64 {
	return math.Hypot(o.X-v.X, o.Y-v.Y)
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Scale returns v multiplied by k.
func (v Vec2) Scale(k float64) Vec2 {
	return Vec2{X: v.X * k, Y: v.Y * k}
}

// Positioned is anything with a world position, such as the controlled character.
type Positioned interface {
	Position() Vec2
}

// Targetable is an entity a weapon may acquire. Selection only reads it.
type Targetable interface {
	Positioned
	Active() bool
}

// Point is a fixed Positioned value.
type Point Vec2

// Position implements Positioned.
func (p Point) Position() Vec2 { return Vec2(p) }

// SelectClosest scans candidates in order and returns the active candidate
// nearest to origin whose distance is strictly less than maxRange.
// When several candidates share the minimum distance the first one encountered wins.
//
// Precondition: candidates may contain nil entries, which are skipped.
// Postcondition: Returns (target, true) on acquisition, or (nil, false) when no candidate qualifies.
func SelectClosest(origin Vec2, candidates []Targetable, maxRange float64) (Targetable, bool) {
	var best Targetable
	bestDist := maxRange
	for _, c := range candidates {
		if c == nil || !c.Active() {
			continue
		}
		d := origin.DistanceTo(c.Position())
		// strict comparison keeps the earliest candidate on ties and excludes d == maxRange
		if d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best, best != nil
}
