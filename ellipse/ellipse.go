// Package ellipse provides closed-form ellipse geometry. The perimeter
// has no closed form; three approximations of increasing accuracy are
// offered, with Ramanujan I as the default.
package ellipse

import "math"

// Ellipse is defined by its semi-axes. Negative axes are folded to
// their absolute value.
type Ellipse struct {
	a, b float64
}

// New returns an Ellipse with semi-axes a and b.
func New(a, b float64) Ellipse {
	return Ellipse{a: math.Abs(a), b: math.Abs(b)}
}

// A returns the first semi-axis.
func (e Ellipse) A() float64 { return e.a }

// B returns the second semi-axis.
func (e Ellipse) B() float64 { return e.b }

// Area returns the enclosed area.
func (e Ellipse) Area() float64 { return math.Pi * e.a * e.b }

// Circumference returns the perimeter using Ramanujan's first
// approximation, a good default for most axis ratios.
func (e Ellipse) Circumference() float64 { return e.PerimeterRamanujan1() }

// PerimeterKeppler approximates the perimeter as that of a circle with
// the mean radius. Fast, and accurate only for near-circles.
func (e Ellipse) PerimeterKeppler() float64 {
	return math.Pi * (e.a + e.b)
}

// PerimeterRamanujan1 is Srinivasa Ramanujan's first approximation.
func (e Ellipse) PerimeterRamanujan1() float64 {
	a3 := 3 * e.a
	b3 := 3 * e.b
	return math.Pi * (a3 + b3 - math.Sqrt((a3+e.b)*(e.a+b3)))
}

// PerimeterRamanujan2 is Srinivasa Ramanujan's second approximation,
// accurate to a few parts per million even for flat ellipses.
func (e Ellipse) PerimeterRamanujan2() float64 {
	x := e.a - e.b
	y := e.a + e.b
	h3 := 3 * x * x / (y * y)
	return math.Pi * y * (1 + h3/(10+math.Sqrt(4-h3)))
}

// Eccentricity returns 0 for a circle up to 1 for a degenerate flat
// ellipse, measured against the major axis.
func (e Ellipse) Eccentricity() float64 {
	if e.a == e.b {
		return 0
	}
	major, minor := e.a, e.b
	if minor > major {
		major, minor = minor, major
	}
	return math.Sqrt(major*major-minor*minor) / major
}

// IsCircle reports whether the axes differ by less than epsilon. With
// epsilon 0 it requires exact equality.
func (e Ellipse) IsCircle(epsilon float64) bool {
	if epsilon == 0 {
		return e.a == e.b
	}
	return math.Abs(e.a-e.b) < epsilon
}

// IsFlat reports whether the major axis exceeds four times the minor.
func (e Ellipse) IsFlat() bool {
	if e.a > e.b {
		return e.a > 4*e.b
	}
	return e.b > 4*e.a
}

// FocalDistance returns the distance from the center to either focus.
func (e Ellipse) FocalDistance() float64 {
	major := e.a
	if e.b > major {
		major = e.b
	}
	return e.Eccentricity() * major
}

// Angle returns the angle in degrees at which a circle of the major
// diameter must be tilted to project this ellipse.
func (e Ellipse) Angle() float64 {
	c := e.a / e.b
	if e.b > e.a {
		c = e.b / e.a
	}
	return math.Acos(1/c) * 180 / math.Pi
}
