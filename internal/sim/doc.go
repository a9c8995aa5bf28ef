// Package sim manages the trajectory of one simulated system. A
// [Simulator] pairs a mech.System with a variational stepper and keeps an
// append-only history of committed [State] values; failed steps never touch
// the history, and the system is frozen against structural edits from the
// first step until [Simulator.Reset].
//
// [Simulator.Run] drives a fixed-timestep loop with optional controller
// inputs, metrics, and observer callbacks. [Ensemble] repeats runs on a
// bounded worker pool with one independent simulator per run.
package sim
