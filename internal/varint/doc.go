// Package varint advances a mechanical system with a discrete variational
// integrator. The update is the stationarity condition of a discretized
// action, so momentum maps are conserved exactly and energy error stays
// bounded over arbitrarily long runs instead of drifting.
//
// Each step solves the discrete Euler–Lagrange equations plus the holonomic
// constraints for the next configuration and its Lagrange multipliers:
//
//	p1 + D1·Ld(q1,q2) + f⁻ − Dg(q1)ᵀλ = 0   (dynamic rows)
//	g(q2) = 0
//
// by Newton iteration, then commits the next momentum through the discrete
// Legendre transform p2 = D2·Ld(q1,q2) + f⁺. Two discrete Lagrangians are
// available ([Midpoint], the default, and [Trapezoid]); both are
// second-order accurate and structure-preserving.
//
// A [Stepper] owns the step history and all evaluation caches for one
// simulation. Failed steps are atomic: the committed history is untouched,
// and retrying with a smaller timestep is the caller's decision.
//
// After a converged midpoint step, [Stepper.Linearize] differentiates the
// update map exactly through the implicit function theorem, which is what
// feedback design (LQR) consumes.
package varint
