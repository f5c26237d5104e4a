package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/san-kum/dynfit/internal/analysis"
	"github.com/san-kum/dynfit/internal/sim"
)

func lyapunovModel(cmd *cobra.Command, args []string) error {
	exp, err := loadExperiment(cmd, args[0])
	if err != nil {
		return err
	}
	opts := analysis.LyapunovOptions{Dt: lyapDt, Duration: lyapTime}
	s := exp.Simulation()

	if lyapAll {
		rates, err := analysis.LyapunovSpectrum(cmd.Context(), s, opts)
		if err != nil {
			return err
		}
		for i, name := range s.StateNames() {
			fmt.Printf("  %s: %.6g\n", name, rates[i])
		}
		return nil
	}

	lambda, err := analysis.LyapunovExponent(cmd.Context(), s, opts)
	if err != nil {
		return err
	}
	fmt.Printf("largest lyapunov exponent: %.6g\n", lambda)
	switch {
	case lambda > 1e-3:
		fmt.Println("trajectories diverge: chaotic")
	case lambda < -1e-3:
		fmt.Println("trajectories converge: stable")
	default:
		fmt.Println("neutral: periodic or marginal")
	}
	return nil
}

func spectrumModel(cmd *cobra.Command, args []string) error {
	exp, _, err := runExperiment(cmd, args[0])
	if err != nil {
		return err
	}
	sp, err := analysis.PowerSpectrum(exp.Simulation(), args[1])
	if err != nil {
		return err
	}
	fmt.Println(sp.Render(args[1], plotWidth, plotHeight))
	if f := sp.Dominant(); f > 0 {
		fmt.Printf("dominant frequency: %.4g\n", f)
		fmt.Printf("period: %.4g\n", 1/f)
	}
	return nil
}

func bifurcationModel(cmd *cobra.Command, args []string) error {
	exp, err := loadExperiment(cmd, args[0])
	if err != nil {
		return err
	}
	values := sim.Linspace(bifFrom, bifTo, bifPoints)
	points, err := analysis.Bifurcation(cmd.Context(), exp.Simulation(), bifParam, values, bifState, analysis.BifurcationOptions{})
	if err != nil {
		return err
	}
	fmt.Println(analysis.RenderBifurcation(points, bifParam, bifState, plotWidth, plotHeight))
	return nil
}
