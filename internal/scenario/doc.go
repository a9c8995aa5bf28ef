// Package scenario registers prebuilt mechanical systems by name, each with
// parameter defaults and a consistent initial state. Scenarios cover the
// structural range of the engine: plain chains (pendulum, double-pendulum,
// spring-mass), constrained systems (linked-masses, fourbar), kinematic
// prescription (crane), and actuation (cartpole).
package scenario
