package mech

import "math"

// TransformKind identifies the elementary transform attaching a frame to its
// parent. Each frame carries exactly one elementary transform, driven either
// by a configuration variable or by a constant parameter.
type TransformKind int

const (
	TransX TransformKind = iota
	TransY
	TransZ
	RotX
	RotY
	RotZ
	// Fixed is a constant rigid offset (translation plus roll/pitch/yaw),
	// never driven by a variable.
	Fixed
)

var kindNames = [...]string{"tx", "ty", "tz", "rx", "ry", "rz", "fixed"}

func (k TransformKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// IsRotation reports whether the kind rotates rather than translates.
func (k TransformKind) IsRotation() bool {
	return k == RotX || k == RotY || k == RotZ
}

// Transform is a rigid transform: rotation R and translation P. The same
// struct also holds derivatives of transforms with respect to configuration
// variables; those are not rigid (R loses orthonormality) but compose
// linearly through the homogeneous product.
type Transform struct {
	R [3][3]float64
	P [3]float64
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{R: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Compose returns a∘b for b a true transform: R = Ra·Rb, P = Ra·Pb + Pa.
// The left factor may be a derivative container.
func Compose(a, b Transform) Transform {
	var out Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = a.R[i][0]*b.R[0][j] + a.R[i][1]*b.R[1][j] + a.R[i][2]*b.R[2][j]
		}
		out.P[i] = a.R[i][0]*b.P[0] + a.R[i][1]*b.P[1] + a.R[i][2]*b.P[2] + a.P[i]
	}
	return out
}

// ComposeD returns a∘b for b a derivative container (homogeneous bottom row
// zero): R = Ra·Rb, P = Ra·Pb. Without this split the affine offset of the
// left factor would leak into derivative products.
func ComposeD(a, b Transform) Transform {
	var out Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = a.R[i][0]*b.R[0][j] + a.R[i][1]*b.R[1][j] + a.R[i][2]*b.R[2][j]
		}
		out.P[i] = a.R[i][0]*b.P[0] + a.R[i][1]*b.P[1] + a.R[i][2]*b.P[2]
	}
	return out
}

// Apply maps a point from the transform's local frame to its parent frame.
func (t Transform) Apply(p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = t.R[i][0]*p[0] + t.R[i][1]*p[1] + t.R[i][2]*p[2] + t.P[i]
	}
	return out
}

// Inverse returns the rigid inverse. Only valid for true transforms.
func (t Transform) Inverse() Transform {
	var out Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = t.R[j][i]
		}
	}
	for i := 0; i < 3; i++ {
		out.P[i] = -(out.R[i][0]*t.P[0] + out.R[i][1]*t.P[1] + out.R[i][2]*t.P[2])
	}
	return out
}

// RPY returns the rotation about fixed axes x (roll), then y (pitch), then
// z (yaw), used by Fixed frames.
func RPY(roll, pitch, yaw float64) Transform {
	return Compose(local(RotZ, yaw), Compose(local(RotY, pitch), local(RotX, roll)))
}

// local builds the elementary transform of the given kind at parameter x.
func local(kind TransformKind, x float64) Transform {
	t := Identity()
	switch kind {
	case TransX:
		t.P[0] = x
	case TransY:
		t.P[1] = x
	case TransZ:
		t.P[2] = x
	case RotX:
		c, s := math.Cos(x), math.Sin(x)
		t.R = [3][3]float64{{1, 0, 0}, {0, c, -s}, {0, s, c}}
	case RotY:
		c, s := math.Cos(x), math.Sin(x)
		t.R = [3][3]float64{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
	case RotZ:
		c, s := math.Cos(x), math.Sin(x)
		t.R = [3][3]float64{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
	}
	return t
}

// localDeriv builds the order-th derivative of the elementary transform with
// respect to its parameter. Translations vanish beyond first order; rotation
// derivatives cycle with period four, so the third order is the negated
// first.
func localDeriv(kind TransformKind, x float64, order int) Transform {
	var t Transform
	switch kind {
	case TransX, TransY, TransZ:
		if order == 1 {
			axis := int(kind - TransX)
			t.P[axis] = 1
		}
		return t
	case Fixed:
		return t
	}

	c, s := math.Cos(x), math.Sin(x)
	switch order % 4 {
	case 2:
		c, s = -c, -s
	case 3:
		c, s = s, -c
	default: // order 1 (and 5, ...)
		c, s = -s, c
	}
	switch kind {
	case RotX:
		t.R = [3][3]float64{{0, 0, 0}, {0, c, -s}, {0, s, c}}
	case RotY:
		t.R = [3][3]float64{{c, 0, s}, {0, 0, 0}, {-s, 0, c}}
	case RotZ:
		t.R = [3][3]float64{{c, -s, 0}, {s, c, 0}, {0, 0, 0}}
	}
	return t
}

// unskew extracts the axial vector of a skew-symmetric matrix.
func unskew(m [3][3]float64) [3]float64 {
	return [3]float64{m[2][1], m[0][2], m[1][0]}
}

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// rtr returns aᵀ·b for the rotation blocks of two containers.
func rtr(a, b Transform) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a.R[0][i]*b.R[0][j] + a.R[1][i]*b.R[1][j] + a.R[2][i]*b.R[2][j]
		}
	}
	return out
}

func addM3(a, b [3][3]float64) [3][3]float64 {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			a[i][j] += b[i][j]
		}
	}
	return a
}
