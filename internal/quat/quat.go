// Package quat provides the small amount of quaternion arithmetic shared by
// the Gaussian extent computation (C5) and the TRS/SH transform stage (C9):
// normalization, Hamilton product, and rotating a vector by a unit
// quaternion.
package quat

import "math"

// Quat is a quaternion in (w,x,y,z) order, matching the splat table's
// rot_0..rot_3 column convention.
type Quat struct {
	W, X, Y, Z float32
}

// Norm returns the Euclidean norm of q.
func (q Quat) Norm() float32 {
	return float32(math.Sqrt(float64(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)))
}

// Normalized returns q scaled to unit length. If q has zero (or non-finite)
// norm, the identity quaternion is returned.
func (q Quat) Normalized() Quat {
	n := q.Norm()
	if n == 0 || math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
		return Quat{W: 1}
	}
	return Quat{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// Mul computes the Hamilton product a⊗b.
func Mul(a, b Quat) Quat {
	return Quat{
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
	}
}

// RotateVector rotates v by unit quaternion q (q is assumed already
// normalized; callers that can't guarantee that should call Normalized first).
func RotateVector(q Quat, v [3]float32) [3]float32 {
	qv := Quat{W: 0, X: v[0], Y: v[1], Z: v[2]}
	conj := Quat{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
	r := Mul(Mul(q, qv), conj)
	return [3]float32{r.X, r.Y, r.Z}
}

// FromEulerXYZIntrinsic builds a unit quaternion from intrinsic XYZ Euler
// angles given in degrees, per spec §4.8's Rotate action.
func FromEulerXYZIntrinsic(degX, degY, degZ float32) Quat {
	rx := axisAngle(Quat{}, [3]float32{1, 0, 0}, degX)
	ry := axisAngle(Quat{}, [3]float32{0, 1, 0}, degY)
	rz := axisAngle(Quat{}, [3]float32{0, 0, 1}, degZ)
	return Mul(Mul(rx, ry), rz)
}

func axisAngle(_ Quat, axis [3]float32, degrees float32) Quat {
	rad := float64(degrees) * math.Pi / 180
	half := rad / 2
	s := float32(math.Sin(half))
	c := float32(math.Cos(half))
	return Quat{W: c, X: axis[0] * s, Y: axis[1] * s, Z: axis[2] * s}
}

// LargestComponentIndex returns the index (0=w,1=x,2=y,3=z) of q's
// largest-magnitude component, used by the SH-rotation codebook path
// (spec §4.9/§4.7) to pick a canonical sign.
func LargestComponentIndex(q Quat) int {
	vals := [4]float32{q.W, q.X, q.Y, q.Z}
	best := 0
	for i := 1; i < 4; i++ {
		if abs32(vals[i]) > abs32(vals[best]) {
			best = i
		}
	}
	return best
}

// CanonicalSign negates q entirely if its largest-magnitude component is
// negative, so that two quaternions representing the same rotation compare
// equal after normalization (spec §4.7's SOG quaternion encoding step).
func CanonicalSign(q Quat) Quat {
	idx := LargestComponentIndex(q)
	vals := [4]float32{q.W, q.X, q.Y, q.Z}
	if vals[idx] < 0 {
		return Quat{W: -q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
	}
	return q
}

// ToMat3 builds the row-major rotation matrix (m[row][col]) corresponding to
// unit quaternion q, used by the TRS transform stage (C9) to rotate
// positions and to derive the spherical-harmonic rotation matrices.
func ToMat3(q Quat) [3][3]float64 {
	w, x, y, z := float64(q.W), float64(q.X), float64(q.Y), float64(q.Z)
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
