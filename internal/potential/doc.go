// Package potential implements the conservative energies that attach to a
// mechanical system:
//
//   - [Gravity]: uniform field acting on every point mass
//   - [LinearSpring]: spring between two frame origins
//   - [ConfigSpring]: torsional/linear spring on one configuration variable
//
// All types satisfy the mech.Potential interface; derivatives accumulate
// into caller-owned buffers so registrations sum in order.
package potential
