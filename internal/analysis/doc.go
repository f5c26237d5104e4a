// Package analysis provides plotting helpers and dynamics analysis over a
// [sim.Simulation].
//
// These work on the last run of a simulation:
//
//   - [PhasePlot]: one state against another, or a projected 3-D trajectory
//   - [VectorField]: slope field for one state, planar field for two
//   - [PoincareSection]: points where a trajectory crosses a threshold
//   - [PowerSpectrum]: power spectrum and dominant frequency of a series
//
// These integrate their own copies of the system:
//
//   - [LyapunovExponent]: largest Lyapunov exponent via trajectory separation
//   - [LyapunovSpectrum]: separation rate along each state direction
//   - [Bifurcation]: parameter sweep recording the long-run values of a state
//
// A positive largest Lyapunov exponent indicates chaotic dynamics:
//
//	lambda, err := analysis.LyapunovExponent(ctx, s, analysis.LyapunovOptions{})
//	if err == nil && lambda > 0 {
//	    // chaotic
//	}
package analysis
