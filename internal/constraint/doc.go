// Package constraint implements the holonomic constraints that attach to a
// mechanical system:
//
//   - [Distance]: fixed distance between two frame origins
//   - [PointOnPlane]: a frame origin confined to a plane
//
// All types satisfy the mech.Constraint interface: each reports its residual
// g(q), the Jacobian ∂g/∂q, and the multiplier-weighted second derivative
// the Newton solve consumes. The integrator enforces g(q)=0 at every
// accepted step through Lagrange multipliers.
package constraint
