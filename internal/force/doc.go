// Package force implements the non-conservative generalized forces that
// attach to a mechanical system:
//
//   - [Damping]: viscous damping, uniform or per-variable
//   - [ConfigForce]: an actuation input applied to one configuration variable
//   - [FramePoint]: an external world-frame force at a frame origin
//
// All types satisfy the mech.Force interface. Forces enter the integrator
// through the discrete forcing terms, so each implementation also provides
// the Jacobians the Newton solve and step linearization consume.
package force
