package models

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"gonum.org/v1/gonum/num/quat"
)

// UnitZ is the world vertical axis.
var UnitZ = r3.Vector{X: 0, Y: 0, Z: 1}

// Identity is the identity orientation.
var Identity = quat.Number{Real: 1}

// Pose is a position plus a unit-quaternion orientation.
// Pose is a value type; the helper methods return modified copies.
type Pose struct {
	// Position is the translation in the base frame, in meters.
	Position r3.Vector `json:"position"`
	// Orientation is a unit quaternion (Real is w).
	Orientation quat.Number `json:"orientation"`
}

// NewPose builds a pose at (x, y, z) with identity orientation.
func NewPose(x, y, z float64) Pose {
	return Pose{
		Position:    r3.Vector{X: x, Y: y, Z: z},
		Orientation: Identity,
	}
}

// RotationAboutAxis returns the unit quaternion for a rotation of angle about axis.
// A zero axis yields the identity.
func RotationAboutAxis(angle s1.Angle, axis r3.Vector) quat.Number {
	if axis.Norm() == 0 {
		return Identity
	}
	a := axis.Normalize()
	half := angle.Radians() / 2
	s := math.Sin(half)
	return quat.Number{
		Real: math.Cos(half),
		Imag: a.X * s,
		Jmag: a.Y * s,
		Kmag: a.Z * s,
	}
}

// WithOrientation returns a copy of p with the orientation replaced.
func (p Pose) WithOrientation(q quat.Number) Pose {
	p.Orientation = q
	return p
}

// Translate returns a copy of p shifted by offset. Orientation is kept.
func (p Pose) Translate(offset r3.Vector) Pose {
	p.Position = p.Position.Add(offset)
	return p
}

// Yaw returns the rotation of the orientation about the world Z axis.
func (p Pose) Yaw() s1.Angle {
	q := p.Orientation
	siny := 2 * (q.Real*q.Kmag + q.Imag*q.Jmag)
	cosy := 1 - 2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag)
	return s1.Angle(math.Atan2(siny, cosy))
}

// IsUnit reports whether the orientation is a unit quaternion within tol.
func (p Pose) IsUnit(tol float64) bool {
	return math.Abs(quat.Abs(p.Orientation)-1) <= tol
}

// ApproxEqual reports whether two poses match within tol. Quaternions q and -q
// describe the same rotation and compare equal.
func (p Pose) ApproxEqual(o Pose, tol float64) bool {
	if p.Position.Sub(o.Position).Norm() > tol {
		return false
	}
	a, b := p.Orientation, o.Orientation
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	return math.Abs(math.Abs(dot)-1) <= tol
}

// String renders the pose for logs.
func (p Pose) String() string {
	q := p.Orientation
	return fmt.Sprintf("pos=(%.3f, %.3f, %.3f) quat=(w=%.3f, x=%.3f, y=%.3f, z=%.3f)",
		p.Position.X, p.Position.Y, p.Position.Z, q.Real, q.Imag, q.Jmag, q.Kmag)
}
