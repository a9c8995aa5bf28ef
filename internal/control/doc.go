// Package control implements input sources for simulation runs. Every type
// satisfies sim.Controller, producing actuation values and prescribed
// kinematic positions per step:
//
//   - [None]: zero inputs, held kinematics
//   - [PID]: per-input feedback on one configuration variable
//   - [LQR]: static state feedback u = −K(x − x*) over x = [q_d; p], with
//     [DLQR] computing the gain from a step linearization
//   - [Shuttle]: piecewise-linear position profile for kinematic variables
package control
