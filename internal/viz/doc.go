// Package viz renders mechanisms and trajectories in the terminal.
//
//   - [Canvas]: Braille pixel canvas with a world-to-screen projection of
//     the x-z plane; draws a mechanism skeleton from its frame tree
//   - [Plot]: asciigraph traces with styled captions
//   - [Live]: Bubble Tea program stepping a simulation in real time
//
// # Key Bindings (live view)
//
//	Space - Pause/Resume
//	R     - Reset to initial state
//	+/-   - Faster/slower playback
//	Q     - Quit
package viz
