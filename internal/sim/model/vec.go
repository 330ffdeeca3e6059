package model

import "math"

// Vec2 is a direction or point on the X/Z ground plane.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Vec3 is a world position. Y is a fixed elevation; gameplay ignores it.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) XZ() Vec2 { return Vec2{X: v.X, Z: v.Z} }

// WithXZ returns v moved to p on the ground plane, keeping the elevation.
func (v Vec3) WithXZ(p Vec2) Vec3 { return Vec3{X: p.X, Y: v.Y, Z: p.Z} }

func (a Vec2) Add(b Vec2) Vec2 { return Vec2{X: a.X + b.X, Z: a.Z + b.Z} }
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{X: a.X - b.X, Z: a.Z - b.Z} }
func (a Vec2) Scale(k float64) Vec2 { return Vec2{X: a.X * k, Z: a.Z * k} }
func (a Vec2) Dot(b Vec2) float64 { return a.X*b.X + a.Z*b.Z }
func (a Vec2) Len() float64 { return math.Hypot(a.X, a.Z) }
func (a Vec2) IsZero() bool { return a.X == 0 && a.Z == 0 }
func (a Vec2) Perp() Vec2 { return Vec2{X: -a.Z, Z: a.X} }
func (a Vec2) Dist(b Vec2) float64 { return a.Sub(b).Len() }

// Normalize returns the unit vector and false when a has no length.
func (a Vec2) Normalize() (Vec2, bool) {
	l := a.Len()
	if l < 1e-12 {
		return Vec2{}, false
	}
	return Vec2{X: a.X / l, Z: a.Z / l}, true
}

// DistXZ is the ground-plane distance between two positions.
func DistXZ(a, b Vec3) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}

// AngleDeg is the unsigned angle between a and b in degrees. A zero vector
// on either side yields 0.
func AngleDeg(a, b Vec2) float64 {
	la, lb := a.Len(), b.Len()
	if la < 1e-12 || lb < 1e-12 {
		return 0
	}
	c := a.Dot(b) / (la * lb)
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c) * 180 / math.Pi
}
