// Package viz renders simulation output in the terminal.
//
//   - [Canvas]: braille pixel canvas, 2x4 sub-pixels per cell
//   - [Chart]: framed x/y plots with lines, markers, arrows and a legend
//   - [Camera] and [Render3DTrajectory]: projected 3-D phase portraits
//   - [SeriesPlot] and [HistogramPlot]: asciigraph line and density plots
//   - [FitProgress]: a Bubble Tea view of sampler progress
//
// Colours come from [CurrentTheme]; when output is not a terminal lipgloss
// strips them and the plots degrade to plain text.
package viz
