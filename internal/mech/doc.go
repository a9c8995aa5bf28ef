// Package mech describes mechanical systems as trees of coordinate frames
// and evaluates the kinematic and dynamic quantities a variational
// integrator consumes.
//
// A system is declared once through a [Builder] and becomes an immutable
// [System]:
//
//   - [Builder]: accumulates frames, variables, inputs, and registries
//   - [System]: finalized structure with name lookups and dimensions
//   - [Frame]: one node of the tree, joined to its parent by an elementary
//     transform that is fixed or driven by a configuration variable
//   - [ConfigVar]: a dynamic (integrated) or kinematic (prescribed) variable
//   - [Kinematics]: per-engine cache of world poses and their derivatives
//     with respect to the configuration, up to third order
//
// Interaction terms attach through three registries: [Potential] for
// conservative energies, [Force] for non-conservative generalized forces,
// and [Constraint] for holonomic constraints enforced with Lagrange
// multipliers.
//
// # Evaluation model
//
// All derivative recursions run sparsely over each frame's affect list, the
// configuration variables on its path to the world frame. A parent's list
// is always a prefix of its child's, so mass-matrix assembly and its
// contractions touch only the entries that can be nonzero.
//
// # Thread safety
//
// A frozen System is safe for concurrent readers. Each [Kinematics] cache
// is single-threaded; create one per goroutine with [System.NewKinematics].
package mech
